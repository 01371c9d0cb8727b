package verify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mpaulsen/farthing/internal/analysis"
)

type fakeAnalyzer struct {
	calls    int
	failures int
	result   analysis.Result
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, photoURL, taskType string) (*analysis.Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("analysis unavailable")
	}
	r := f.result
	return &r, nil
}

func testPolicy(attempts int) Policy {
	return Policy{
		RequireValidation: true,
		Threshold:         0.7,
		Retry:             RetryPolicy{MaxAttempts: attempts, Backoff: time.Millisecond},
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		confidence float64
		threshold  float64
		want       Decision
	}{
		{0.9, 0.7, DecisionAccept},
		{0.7, 0.7, DecisionAccept}, // at the threshold counts as accept
		{0.69, 0.7, DecisionReview},
		{0.35, 0.7, DecisionReview}, // exactly half goes to review
		{0.34, 0.7, DecisionRetake},
		{0.0, 0.7, DecisionRetake},
		{0.5, 0.5, DecisionAccept},
	}
	for _, tt := range tests {
		if got := Decide(tt.confidence, tt.threshold); got != tt.want {
			t.Errorf("Decide(%v, %v) = %v, want %v", tt.confidence, tt.threshold, got, tt.want)
		}
	}
}

func TestProcessSkipsAnalysisWhenValidationOff(t *testing.T) {
	fake := &fakeAnalyzer{}
	o := NewOrchestrator(fake, slog.Default())

	p := testPolicy(2)
	p.RequireValidation = false

	outcome, err := o.Process(context.Background(), "https://cdn.example.com/p.jpg", "Clean room", p)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if fake.calls != 0 {
		t.Errorf("analyzer called %d times, want 0", fake.calls)
	}
	if outcome.Decision != DecisionAccept {
		t.Errorf("decision = %v, want accept", outcome.Decision)
	}
}

func TestProcessRetriesOnceThenSucceeds(t *testing.T) {
	fake := &fakeAnalyzer{
		failures: 1,
		result:   analysis.Result{IsValid: true, Confidence: 0.95},
	}
	o := NewOrchestrator(fake, slog.Default())

	outcome, err := o.Process(context.Background(), "https://cdn.example.com/p.jpg", "Clean room", testPolicy(2))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if fake.calls != 2 {
		t.Errorf("analyzer called %d times, want exactly 2", fake.calls)
	}
	if outcome.Decision != DecisionAccept {
		t.Errorf("decision = %v, want accept", outcome.Decision)
	}
	if !outcome.Validated || outcome.Confidence != 0.95 {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestProcessExhaustsRetryBudget(t *testing.T) {
	fake := &fakeAnalyzer{failures: 10}
	o := NewOrchestrator(fake, slog.Default())

	_, err := o.Process(context.Background(), "https://cdn.example.com/p.jpg", "Clean room", testPolicy(2))
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if fake.calls != 2 {
		t.Errorf("analyzer called %d times, want exactly 2", fake.calls)
	}
}

func TestProcessSingleAttemptDoesNotRetry(t *testing.T) {
	fake := &fakeAnalyzer{failures: 10}
	o := NewOrchestrator(fake, slog.Default())

	_, err := o.Process(context.Background(), "https://cdn.example.com/p.jpg", "Clean room", testPolicy(1))
	if err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 1 {
		t.Errorf("analyzer called %d times, want 1", fake.calls)
	}
}

func TestProcessInvalidPhotoForcesRetake(t *testing.T) {
	// High confidence that the photo does NOT show the task done still
	// means a retake, not an accept.
	fake := &fakeAnalyzer{
		result: analysis.Result{IsValid: false, Confidence: 0.9, Feedback: "no bed in frame"},
	}
	o := NewOrchestrator(fake, slog.Default())

	outcome, err := o.Process(context.Background(), "https://cdn.example.com/p.jpg", "Make bed", testPolicy(1))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Decision != DecisionRetake {
		t.Errorf("decision = %v, want retake", outcome.Decision)
	}
	if outcome.Feedback != "no bed in frame" {
		t.Errorf("feedback = %q", outcome.Feedback)
	}
}

func TestProcessMidConfidenceGoesToReview(t *testing.T) {
	fake := &fakeAnalyzer{
		result: analysis.Result{IsValid: true, Confidence: 0.5},
	}
	o := NewOrchestrator(fake, slog.Default())

	outcome, err := o.Process(context.Background(), "https://cdn.example.com/p.jpg", "Clean room", testPolicy(1))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Decision != DecisionReview {
		t.Errorf("decision = %v, want review", outcome.Decision)
	}
}
