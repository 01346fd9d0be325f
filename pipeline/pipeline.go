// Package pipeline runs the ordered ingestion steps and produces the run
// summary.
//
// Steps execute sequentially in declared order. A failing step does not halt
// the run: later steps still execute unless they declare the failed step as a
// dependency, in which case they are skipped. Each step is retried as a whole
// on transient failure, on top of the per-call retry inside the API client.
package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"ytpipeline/config"
	"ytpipeline/retry"
	"ytpipeline/warehouse"
	"ytpipeline/youtube"
)

// Step is one unit of the run.
type Step struct {
	// Name identifies the step in summaries and logs.
	Name string
	// Deps lists step names that must have succeeded for this step to run.
	Deps []string
	// Run executes the step. It may be invoked several times on transient
	// failure and must therefore be idempotent.
	Run func(ctx context.Context) error
}

// Runner executes steps in order and records a Summary.
type Runner struct {
	Steps []Step
	// Policy governs whole-step retries. Zero value means no retries
	// beyond the first attempt.
	Policy retry.Policy
	Now    func() time.Time
}

// Run executes every step and never returns an error: failures are recorded
// in the summary, and the summary's Status tells the caller how the run went.
func (r *Runner) Run(ctx context.Context) *Summary {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: now(),
	}
	log.Printf("pipeline: run %s started, %d steps", summary.RunID, len(r.Steps))

	succeeded := make(map[string]bool, len(r.Steps))
	for _, step := range r.Steps {
		res := r.runStep(ctx, step, succeeded, now)
		summary.Steps = append(summary.Steps, res)
		if res.Status == StepOK {
			succeeded[step.Name] = true
		}
	}

	summary.FinishedAt = now()
	summary.Status = overallStatus(summary.Steps)
	log.Printf("pipeline: run %s finished %s in %s",
		summary.RunID, summary.Status, summary.Elapsed().Round(time.Millisecond))
	return summary
}

func (r *Runner) runStep(ctx context.Context, step Step, succeeded map[string]bool, now func() time.Time) StepResult {
	for _, dep := range step.Deps {
		if !succeeded[dep] {
			log.Printf("pipeline: step %s skipped, dependency %s did not succeed", step.Name, dep)
			return StepResult{Name: step.Name, Status: StepSkipped, Error: "dependency " + dep + " did not succeed"}
		}
	}

	log.Printf("pipeline: step %s started", step.Name)
	start := now()
	attempts := 0
	err := retry.Do(ctx, r.Policy, stepTransient, func(ctx context.Context) error {
		attempts++
		return step.Run(ctx)
	})

	res := StepResult{
		Name:     step.Name,
		Attempts: attempts,
		Duration: now().Sub(start),
	}
	if err != nil {
		res.Status = StepFailed
		res.Error = err.Error()
		log.Printf("pipeline: step %s failed after %d attempt(s): %v", step.Name, attempts, err)
		return res
	}
	res.Status = StepOK
	log.Printf("pipeline: step %s ok in %s", step.Name, res.Duration.Round(time.Millisecond))
	return res
}

// stepTransient decides whether a whole step is worth re-running. Storage
// failures are retried: the step re-reads its watermark and upserts, so a
// rerun converges. Configuration problems never fix themselves.
func stepTransient(err error) bool {
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		return false
	}
	var serr *warehouse.StorageError
	if errors.As(err, &serr) {
		return true
	}
	return youtube.Transient(err)
}

func overallStatus(steps []StepResult) Status {
	ok, failed := 0, 0
	for _, s := range steps {
		switch s.Status {
		case StepOK:
			ok++
		case StepFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusOK
	case ok > 0:
		return StatusPartial
	default:
		return StatusFail
	}
}
