package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ytpipeline/retry"
	"ytpipeline/warehouse"
	"ytpipeline/youtube"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
}

func okStep(name string) Step {
	return Step{Name: name, Run: func(ctx context.Context) error { return nil }}
}

func failStep(name string, err error) Step {
	return Step{Name: name, Run: func(ctx context.Context) error { return err }}
}

func TestRunAllStepsSucceed(t *testing.T) {
	r := &Runner{Steps: []Step{okStep("a"), okStep("b")}}
	summary := r.Run(context.Background())

	if summary.Status != StatusOK {
		t.Errorf("status = %s, want OK", summary.Status)
	}
	if summary.RunID == "" {
		t.Error("run ID should be set")
	}
	for _, s := range summary.Steps {
		if s.Status != StepOK || s.Attempts != 1 {
			t.Errorf("step %s = %+v, want OK with 1 attempt", s.Name, s)
		}
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	ran := false
	steps := []Step{
		failStep("first", errors.New("boom")),
		{Name: "second", Run: func(ctx context.Context) error { ran = true; return nil }},
	}
	summary := (&Runner{Steps: steps}).Run(context.Background())

	if !ran {
		t.Error("an independent later step must still run after a failure")
	}
	if summary.Status != StatusPartial {
		t.Errorf("status = %s, want PARTIAL", summary.Status)
	}
	if summary.Steps[0].Status != StepFailed || summary.Steps[0].Error == "" {
		t.Errorf("first step = %+v, want FAILED with error text", summary.Steps[0])
	}
}

func TestRunSkipsStepWithFailedDependency(t *testing.T) {
	ran := false
	steps := []Step{
		failStep("fetch", errors.New("boom")),
		{Name: "dependent", Deps: []string{"fetch"}, Run: func(ctx context.Context) error { ran = true; return nil }},
		okStep("independent"),
	}
	summary := (&Runner{Steps: steps}).Run(context.Background())

	if ran {
		t.Error("dependent step must not run when its dependency failed")
	}
	if summary.Steps[1].Status != StepSkipped {
		t.Errorf("dependent status = %s, want SKIPPED", summary.Steps[1].Status)
	}
	if summary.Steps[2].Status != StepOK {
		t.Errorf("independent status = %s, want OK", summary.Steps[2].Status)
	}
	if summary.Status != StatusPartial {
		t.Errorf("status = %s, want PARTIAL", summary.Status)
	}
}

func TestRunAllStepsFail(t *testing.T) {
	steps := []Step{failStep("a", errors.New("x")), failStep("b", errors.New("y"))}
	summary := (&Runner{Steps: steps}).Run(context.Background())
	if summary.Status != StatusFail {
		t.Errorf("status = %s, want FAIL", summary.Status)
	}
}

func TestRunRetriesTransientStepFailure(t *testing.T) {
	calls := 0
	step := Step{Name: "flaky", Run: func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &warehouse.StorageError{Op: "upsert", Entity: "channel_daily", Err: errors.New("conn reset")}
		}
		return nil
	}}
	summary := (&Runner{Steps: []Step{step}, Policy: fastPolicy(3)}).Run(context.Background())

	if summary.Steps[0].Status != StepOK {
		t.Fatalf("step = %+v, want OK after retry", summary.Steps[0])
	}
	if summary.Steps[0].Attempts != 2 {
		t.Errorf("attempts = %d, want 2", summary.Steps[0].Attempts)
	}
}

func TestRunFatalStepFailureDoesNotRetry(t *testing.T) {
	calls := 0
	step := Step{Name: "auth", Run: func(ctx context.Context) error {
		calls++
		return youtube.ErrAuthRevoked
	}}
	summary := (&Runner{Steps: []Step{step}, Policy: fastPolicy(5)}).Run(context.Background())

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (revoked credential cannot recover)", calls)
	}
	if summary.Steps[0].Status != StepFailed {
		t.Errorf("status = %s, want FAILED", summary.Steps[0].Status)
	}
}

func TestWriteArtifacts(t *testing.T) {
	summary := &Summary{
		RunID:      "run-1",
		StartedAt:  time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 3, 1, 6, 31, 0, 0, time.UTC),
		Status:     StatusPartial,
		Steps: []StepResult{
			{Name: "ensure_channel", Status: StepOK, Attempts: 1, Duration: time.Second},
			{Name: "fetch_videos", Status: StepFailed, Attempts: 2, Duration: 3 * time.Second, Error: "boom"},
			{Name: "top_videos", Status: StepSkipped, Error: "dependency fetch_videos did not succeed"},
		},
	}

	dir := t.TempDir()
	jsonPath, logPath, err := summary.WriteArtifacts(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("WriteArtifacts failed: %v", err)
	}

	wantBase := "pipeline_20240301_063000_PARTIAL"
	if filepath.Base(jsonPath) != wantBase+".json" {
		t.Errorf("json artifact = %s, want %s.json", filepath.Base(jsonPath), wantBase)
	}
	if filepath.Base(logPath) != wantBase+".log" {
		t.Errorf("log artifact = %s, want %s.log", filepath.Base(logPath), wantBase)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json artifact does not parse: %v", err)
	}
	if decoded["run_id"] != "run-1" || decoded["status"] != "PARTIAL" {
		t.Errorf("decoded artifact = %v", decoded)
	}

	digest, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log artifact: %v", err)
	}
	text := string(digest)
	for _, want := range []string{"PARTIAL", "ensure_channel", "SKIPPED", "boom"} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
}

func TestDigestListsEveryStep(t *testing.T) {
	summary := &Summary{
		RunID:     "run-2",
		StartedAt: time.Now(), FinishedAt: time.Now().Add(time.Minute),
		Status: StatusOK,
		Steps: []StepResult{
			{Name: "a", Status: StepOK, Attempts: 1},
			{Name: "b", Status: StepOK, Attempts: 1},
		},
	}
	text := summary.Digest()
	if !strings.Contains(text, "run-2") {
		t.Error("digest should name the run")
	}
	if strings.Count(text, "[OK") != 2 {
		t.Errorf("digest should list both steps:\n%s", text)
	}
}
