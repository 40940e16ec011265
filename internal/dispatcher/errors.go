package dispatcher

import "fmt"

// Stages a job can fail in.
const (
	StageDecode = "decode"
	StageBuild  = "build"
	StageSave   = "save"
)

// JobError records where a job failed.
type JobError struct {
	JobID string
	Stage string
	Err   error
}

func (e *JobError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("job %s %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
