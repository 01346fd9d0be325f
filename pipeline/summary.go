package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Status is the terminal status of a whole run.
type Status string

const (
	// StatusOK means every step succeeded.
	StatusOK Status = "OK"
	// StatusPartial means some steps succeeded and at least one failed.
	StatusPartial Status = "PARTIAL"
	// StatusFail means no step succeeded.
	StatusFail Status = "FAIL"
)

// StepStatus is the outcome of a single step.
type StepStatus string

const (
	StepOK      StepStatus = "OK"
	StepFailed  StepStatus = "FAILED"
	StepSkipped StepStatus = "SKIPPED"
)

// StepResult records one step's outcome for the run summary.
type StepResult struct {
	Name     string
	Status   StepStatus
	Attempts int
	Duration time.Duration
	Error    string
}

// MarshalJSON renders the duration as a human-readable string; the rest of
// the artifact consumers only compare statuses.
func (s StepResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string     `json:"name"`
		Status   StepStatus `json:"status"`
		Attempts int        `json:"attempts"`
		Duration string     `json:"duration"`
		Error    string     `json:"error,omitempty"`
	}{s.Name, s.Status, s.Attempts, s.Duration.String(), s.Error})
}

// Summary is the complete record of one run.
type Summary struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Status     Status       `json:"status"`
	Steps      []StepResult `json:"steps"`
}

// Elapsed is the total wall-clock duration of the run.
func (s *Summary) Elapsed() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Digest renders the summary as the human-readable report used for log
// artifacts and notifications.
func (s *Summary) Digest() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline run %s finished: %s\n", s.RunID, s.Status)
	fmt.Fprintf(&b, "Started: %s\n", s.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Elapsed: %s\n\n", s.Elapsed().Round(time.Millisecond))

	width := 0
	for _, st := range s.Steps {
		if len(st.Name) > width {
			width = len(st.Name)
		}
	}
	for _, st := range s.Steps {
		fmt.Fprintf(&b, "  [%-7s] %-*s", st.Status, width, st.Name)
		switch st.Status {
		case StepSkipped:
			fmt.Fprintf(&b, "  %s", st.Error)
		case StepFailed:
			fmt.Fprintf(&b, "  %d attempt(s), %s: %s",
				st.Attempts, st.Duration.Round(time.Millisecond), st.Error)
		default:
			fmt.Fprintf(&b, "  %d attempt(s), %s",
				st.Attempts, st.Duration.Round(time.Millisecond))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteArtifacts persists the machine-readable summary and the digest to
// dir, named pipeline_<timestamp>_<STATUS>.{json,log}. The directory is
// created when missing.
func (s *Summary) WriteArtifacts(dir string) (jsonPath, logPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create log dir: %w", err)
	}
	base := fmt.Sprintf("pipeline_%s_%s", s.StartedAt.UTC().Format("20060102_150405"), s.Status)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal summary: %w", err)
	}
	jsonPath = filepath.Join(dir, base+".json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write summary artifact: %w", err)
	}
	logPath = filepath.Join(dir, base+".log")
	if err := os.WriteFile(logPath, []byte(s.Digest()), 0o644); err != nil {
		return jsonPath, "", fmt.Errorf("write digest artifact: %w", err)
	}
	return jsonPath, logPath, nil
}
