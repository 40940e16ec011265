package dispatcher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/local/homeworkhero/internal/generator"
)

// Job is the queued payload for one worksheet generation.
type Job struct {
	ID string `json:"job_id"`
	generator.Request
	Model     string    `json:"model,omitempty"`
	Level     string    `json:"level,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (j Job) Marshal() ([]byte, error) { return json.Marshal(j) }

// DecodeJob parses a queued payload.
func DecodeJob(b []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return Job{}, &JobError{Stage: StageDecode, Err: err}
	}
	if j.ID == "" {
		return Job{}, &JobError{Stage: StageDecode, Err: fmt.Errorf("payload has no job_id")}
	}
	return j, nil
}
