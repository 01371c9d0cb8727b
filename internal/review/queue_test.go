package review

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mpaulsen/farthing/internal/model"
	"github.com/mpaulsen/farthing/internal/store"
)

type fakeDecider struct {
	approved []int64
	rejected []int64
	failWith error
}

func (f *fakeDecider) Approve(id, reviewerID int64, at time.Time) (*model.Task, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.approved = append(f.approved, id)
	return &model.Task{ID: id, ValidationStatus: model.ValidationApproved}, nil
}

func (f *fakeDecider) Reject(id, reviewerID int64, reason string, at time.Time) (*model.Task, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, store.ErrEmptyReason
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.rejected = append(f.rejected, id)
	return &model.Task{ID: id, ValidationStatus: model.ValidationRejected}, nil
}

func threeItems() []Item {
	return []Item{
		{TaskID: 101, Title: "Clean room"},
		{TaskID: 102, Title: "Feed dog"},
		{TaskID: 103, Title: "Rake leaves"},
	}
}

func TestQueueAdvancesThroughVerdicts(t *testing.T) {
	d := &fakeDecider{}
	q := NewQueue(threeItems(), d, 1)

	if q.Len() != 3 || q.Done() {
		t.Fatalf("fresh queue: len=%d done=%v", q.Len(), q.Done())
	}

	// Approve the first, reject the second, approve the third.
	if _, err := q.Approve(time.Now()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if q.Index() != 1 {
		t.Errorf("index = %d, want 1", q.Index())
	}

	if _, err := q.Reject("blurry", time.Now()); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if q.Index() != 2 {
		t.Errorf("index = %d, want 2", q.Index())
	}

	if _, err := q.Approve(time.Now()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !q.Done() {
		t.Error("queue should be done")
	}

	if len(d.approved) != 2 || d.approved[0] != 101 || d.approved[1] != 103 {
		t.Errorf("approved = %v", d.approved)
	}
	if len(d.rejected) != 1 || d.rejected[0] != 102 {
		t.Errorf("rejected = %v", d.rejected)
	}
}

func TestQueueEmptyReasonDoesNotAdvance(t *testing.T) {
	d := &fakeDecider{}
	q := NewQueue(threeItems(), d, 1)

	_, err := q.Reject("   ", time.Now())
	if !errors.Is(err, store.ErrEmptyReason) {
		t.Fatalf("expected ErrEmptyReason, got %v", err)
	}

	// Still on the first item, still able to decide.
	if q.Index() != 0 {
		t.Errorf("index = %d, want 0", q.Index())
	}
	if q.State() != StateViewing {
		t.Errorf("state = %v, want viewing", q.State())
	}
	if _, err := q.Approve(time.Now()); err != nil {
		t.Fatalf("approve after failed reject: %v", err)
	}
	if q.Index() != 1 {
		t.Errorf("index = %d, want 1", q.Index())
	}
}

func TestQueueFailedVerdictStaysOnItem(t *testing.T) {
	d := &fakeDecider{failWith: store.ErrAlreadyDecided}
	q := NewQueue(threeItems(), d, 1)

	_, err := q.Approve(time.Now())
	if !errors.Is(err, store.ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
	if q.Index() != 0 {
		t.Errorf("index = %d, want 0 after failed verdict", q.Index())
	}

	// Clearing the failure lets the retry land.
	d.failWith = nil
	if _, err := q.Approve(time.Now()); err != nil {
		t.Fatalf("retry approve: %v", err)
	}
	if q.Index() != 1 {
		t.Errorf("index = %d, want 1", q.Index())
	}
}

func TestQueueExhausted(t *testing.T) {
	d := &fakeDecider{}
	q := NewQueue([]Item{{TaskID: 101}}, d, 1)

	if _, err := q.Approve(time.Now()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err := q.Approve(time.Now())
	if !errors.Is(err, ErrDone) {
		t.Fatalf("expected ErrDone, got %v", err)
	}
}

func TestQueueAdvanceIsObservable(t *testing.T) {
	d := &fakeDecider{}
	q := NewQueue(threeItems(), d, 1)

	if q.State() != StateViewing {
		t.Fatalf("state = %v, want viewing", q.State())
	}

	if _, err := q.Approve(time.Now()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if q.State() != StateAdvancing {
		t.Errorf("state after verdict = %v, want advancing", q.State())
	}

	// Fetching the next card completes the advance.
	if _, ok := q.Current(); !ok {
		t.Fatal("expected a current item")
	}
	if q.State() != StateViewing {
		t.Errorf("state after fetch = %v, want viewing", q.State())
	}

	// A verdict arriving before the fetch still lands.
	if _, err := q.Approve(time.Now()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := q.Approve(time.Now()); err != nil {
		t.Fatalf("approve while advancing: %v", err)
	}
	if !q.Done() {
		t.Error("queue should be done")
	}
}

func TestQueueCurrent(t *testing.T) {
	d := &fakeDecider{}
	q := NewQueue(threeItems(), d, 1)

	item, ok := q.Current()
	if !ok || item.TaskID != 101 {
		t.Fatalf("current = %+v, ok=%v", item, ok)
	}

	q.Approve(time.Now())
	item, ok = q.Current()
	if !ok || item.TaskID != 102 {
		t.Fatalf("current after approve = %+v, ok=%v", item, ok)
	}

	q.Approve(time.Now())
	q.Approve(time.Now())
	if _, ok := q.Current(); ok {
		t.Error("expected no current item on exhausted queue")
	}
}
