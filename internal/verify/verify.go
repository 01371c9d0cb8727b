// Package verify decides what happens to a task photo after upload: accept
// it outright, ask the child to retake it, or hand it to a parent for
// manual review. The confidence policy lives here and nowhere else.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mpaulsen/farthing/internal/analysis"
)

// Decision is the orchestrator's verdict on a submission.
type Decision string

const (
	// DecisionAccept submits the photo as valid proof.
	DecisionAccept Decision = "accept"
	// DecisionRetake asks the child for a better photo.
	DecisionRetake Decision = "retake"
	// DecisionReview escalates to the parent review queue.
	DecisionReview Decision = "review"
)

// RetryPolicy controls how analysis failures are retried. MaxAttempts is
// the total number of calls, so 2 means one retry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Policy is the per-submission verification policy, usually built from
// household settings.
type Policy struct {
	RequireValidation bool
	Threshold         float64
	Retry             RetryPolicy
}

// Outcome reports the result of processing a submission.
type Outcome struct {
	URL        string   `json:"url"`
	Validated  bool     `json:"validated"`
	Confidence float64  `json:"confidence"`
	Feedback   string   `json:"feedback,omitempty"`
	Decision   Decision `json:"decision"`
}

// Decide maps an analysis confidence to a decision against the household
// threshold: at or above the threshold the photo is accepted, below half
// the threshold a retake is requested, anything in between goes to manual
// review.
func Decide(confidence, threshold float64) Decision {
	switch {
	case confidence >= threshold:
		return DecisionAccept
	case confidence < threshold/2:
		return DecisionRetake
	default:
		return DecisionReview
	}
}

// Analyzer is the image-analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, photoURL, taskType string) (*analysis.Result, error)
}

type Orchestrator struct {
	analyzer Analyzer
	logger   *slog.Logger
}

func NewOrchestrator(analyzer Analyzer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{analyzer: analyzer, logger: logger}
}

// Process runs the post-upload pipeline for one photo. With validation not
// required the upload result is accepted as-is and the analyzer is never
// called. Otherwise the analyzer runs under the policy's retry budget; when
// every attempt fails the error propagates to the caller, who may still
// route the photo to manual review.
func (o *Orchestrator) Process(ctx context.Context, photoURL, taskType string, p Policy) (*Outcome, error) {
	if !p.RequireValidation {
		return &Outcome{URL: photoURL, Decision: DecisionAccept}, nil
	}

	attempts := p.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Retry.Backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var result *analysis.Result
	err := retry.Do(ctx, retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(backoff)), func(ctx context.Context) error {
		r, err := o.analyzer.Analyze(ctx, photoURL, taskType)
		if err != nil {
			o.logger.Warn("analysis attempt failed", "task_type", taskType, "error", err)
			return retry.RetryableError(err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analyze photo: %w", err)
	}

	decision := Decide(result.Confidence, p.Threshold)
	if !result.IsValid {
		decision = DecisionRetake
	}

	return &Outcome{
		URL:        photoURL,
		Validated:  result.IsValid,
		Confidence: result.Confidence,
		Feedback:   result.Feedback,
		Decision:   decision,
	}, nil
}
