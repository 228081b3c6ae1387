package classifier

import (
	"context"
	"lyrics-lab/domain"
	apperrors "lyrics-lab/errors"
)

// Job is a training pass running in the background.
type Job struct {
	cancel  context.CancelFunc
	done    chan struct{}
	history domain.TrainingHistory
	err     error
}

// TrainAsync starts a training pass and returns immediately. The in-flight guard
// is taken before returning, so a concurrent Train fails with
// ErrTrainingInProgress until the job is done.
func (p *Pipeline) TrainAsync(ctx context.Context, samples []domain.Sample, opts TrainOptions) (*Job, error) {
	if !p.training.CompareAndSwap(false, true) {
		return nil, apperrors.ErrTrainingInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(job.done)
		defer cancel()
		defer p.training.Store(false)
		job.history, job.err = p.train(ctx, samples, opts)
	}()
	return job, nil
}

// Cancel asks the job to stop after the current epoch.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed once the job has finished and its buffers are released.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (domain.TrainingHistory, error) {
	select {
	case <-j.done:
		return j.history, j.err
	case <-ctx.Done():
		return domain.TrainingHistory{}, ctx.Err()
	}
}
