package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/homeworkhero/internal/generator"
	logpkg "github.com/local/homeworkhero/internal/logger"
	"github.com/local/homeworkhero/internal/metrics"
	"github.com/local/homeworkhero/internal/store"
)

type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
	Ack(ctx context.Context, msgID string) error
	AddDLQ(ctx context.Context, payload []byte, reason string) error
}

type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

type Builder interface {
	Build(ctx context.Context, req generator.Request) (*generator.Result, error)
}

type ResultSaver interface {
	Save(ctx context.Context, jobID string, data []byte) (string, error)
}

type Config struct {
	Name        string
	Concurrency int
	JobTimeout  time.Duration
	DequeueWait time.Duration
}

type Worker struct {
	cfg     Config
	q       Queue
	status  StatusStore
	builder Builder
	results ResultSaver

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, q Queue, status StatusStore, b Builder, results ResultSaver) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.DequeueWait <= 0 {
		cfg.DequeueWait = 2 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "worker"
	}
	return &Worker{cfg: cfg, q: q, status: status, builder: b, results: results}
}

// Start launches the worker goroutines. They run until Stop or ctx ends.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx, i)
	}
}

// Stop cancels the loops and waits for in-flight jobs, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context, id int) {
	defer w.wg.Done()
	consumer := fmt.Sprintf("%s-%d", w.cfg.Name, id)
	log.Info().Int("worker", id).Str("consumer", consumer).Msg("dispatcher worker started")
	for {
		if ctx.Err() != nil {
			log.Info().Int("worker", id).Msg("dispatcher worker stopped")
			return
		}
		msgID, data, err := w.q.Dequeue(ctx, consumer, w.cfg.DequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Msg("queue dequeue error")
			select {
			case <-ctx.Done():
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if msgID == "" {
			continue
		}
		// In-flight jobs finish even while stopping.
		_ = w.Process(context.WithoutCancel(ctx), msgID, data)
	}
}

// Process runs one queued job to a terminal status and acks the message.
func (w *Worker) Process(ctx context.Context, msgID string, payload []byte) error {
	defer func() {
		if err := w.q.Ack(ctx, msgID); err != nil {
			log.Warn().Err(err).Str("msg_id", msgID).Msg("ack failed")
		}
	}()

	job, err := DecodeJob(payload)
	if err != nil {
		log.Error().Err(err).Str("msg_id", msgID).Msg("dropping undecodable job")
		w.deadLetter(ctx, payload, err)
		return err
	}
	logger := logpkg.Component("dispatcher").With().Str("job_id", job.ID).Str("dataset", job.Dataset).Str("theme", job.Theme).Logger()

	st := w.current(ctx, job.ID)
	now := time.Now().UTC()
	st.Status = store.StateProcessing
	st.Progress = 10
	st.Message = "Building worksheet..."
	if st.Start == nil {
		st.Start = &now
	}
	w.setStatus(ctx, job.ID, st)

	res, err := w.build(ctx, job)
	if err == nil {
		st.Progress = 70
		st.Message = "Saving worksheet..."
		w.setStatus(ctx, job.ID, st)

		var ref string
		ref, err = w.results.Save(ctx, job.ID, res.JSON)
		if err != nil {
			err = &JobError{JobID: job.ID, Stage: StageSave, Err: err}
		} else {
			end := time.Now().UTC()
			st.Status = store.StateSuccess
			st.Progress = 100
			st.Message = "Worksheet ready."
			st.End = &end
			st.Metadata["result_ref"] = ref
			st.Metadata["sections_kept"] = res.Sections
			w.setStatus(ctx, job.ID, st)
			metrics.IncJob(store.StateSuccess)
			logger.Info().Str("result_ref", ref).Int("sections_kept", res.Sections).Dur("took", end.Sub(*st.Start)).Msg("job completed")
			return nil
		}
	}

	end := time.Now().UTC()
	st.Status = store.StateFailed
	st.Message = err.Error()
	st.End = &end
	st.Metadata["error_kind"] = generator.Outcome(err)
	var je *JobError
	if errors.As(err, &je) {
		st.Metadata["stage"] = je.Stage
	}
	w.setStatus(ctx, job.ID, st)
	metrics.IncJob(store.StateFailed)
	w.deadLetter(ctx, payload, err)
	logger.Error().Err(err).Msg("job failed")
	return err
}

func (w *Worker) build(ctx context.Context, job Job) (*generator.Result, error) {
	bctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()
	res, err := w.builder.Build(bctx, job.Request)
	if err != nil {
		return nil, &JobError{JobID: job.ID, Stage: StageBuild, Err: err}
	}
	return res, nil
}

func (w *Worker) current(ctx context.Context, jobID string) store.Status {
	st, ok, err := w.status.Get(ctx, jobID)
	if err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("status read failed")
	}
	if !ok {
		st = store.Status{}
	}
	if st.Metadata == nil {
		st.Metadata = map[string]any{}
	}
	return st
}

func (w *Worker) setStatus(ctx context.Context, jobID string, st store.Status) {
	if err := w.status.Set(ctx, jobID, st); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Str("status", st.Status).Msg("status write failed")
	}
}

func (w *Worker) deadLetter(ctx context.Context, payload []byte, cause error) {
	if err := w.q.AddDLQ(ctx, payload, cause.Error()); err != nil {
		log.Error().Err(err).Msg("dlq add failed")
	}
}
