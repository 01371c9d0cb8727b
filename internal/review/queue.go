// Package review drives the parent's swipe-through queue of pending photo
// submissions. The queue is an explicit state machine so only one decision
// can ever be in flight, instead of an ad hoc boolean guard.
package review

import (
	"errors"
	"sync"
	"time"

	"github.com/mpaulsen/farthing/internal/model"
)

// State of the queue's decision cycle.
type State string

const (
	// StateViewing means the current card is shown and a decision may be taken.
	StateViewing State = "viewing"
	// StateDeciding means a verdict is being written; further gestures are ignored.
	StateDeciding State = "deciding"
	// StateAdvancing means the verdict landed and the queue is moving to the next card.
	StateAdvancing State = "advancing"
)

var (
	// ErrBusy is returned when a decision arrives while another is in flight.
	ErrBusy = errors.New("decision already in flight")
	// ErrDone is returned when the queue has no items left.
	ErrDone = errors.New("review queue exhausted")
)

// Item is one pending submission in the queue.
type Item struct {
	TaskID       int64      `json:"task_id"`
	Title        string     `json:"title"`
	PhotoURL     string     `json:"photo_url"`
	AssigneeName string     `json:"assignee_name"`
	Points       int        `json:"points"`
	SubmittedAt  *time.Time `json:"submitted_at"`
}

// Decider applies verdicts to task records. *store.TaskStore satisfies it.
type Decider interface {
	Approve(id, reviewerID int64, at time.Time) (*model.Task, error)
	Reject(id, reviewerID int64, reason string, at time.Time) (*model.Task, error)
}

// Queue walks a parent through pending items one at a time.
type Queue struct {
	mu         sync.Mutex
	items      []Item
	index      int
	state      State
	decider    Decider
	reviewerID int64
}

func NewQueue(items []Item, decider Decider, reviewerID int64) *Queue {
	return &Queue{
		items:      items,
		state:      StateViewing,
		decider:    decider,
		reviewerID: reviewerID,
	}
}

// Current returns the item under review, or false when the queue is done.
// Fetching the next card completes a pending advance, so a queue left in
// Advancing by a verdict returns to Viewing here.
func (q *Queue) Current() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == StateAdvancing {
		q.state = StateViewing
	}
	if q.index >= len(q.items) {
		return Item{}, false
	}
	return q.items[q.index], true
}

// Index returns the position of the current item.
func (q *Queue) Index() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index
}

// Len returns the total number of items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Done reports whether every item has a verdict.
func (q *Queue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index >= len(q.items)
}

// State returns the current decision-cycle state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Approve records an approval for the current item and advances.
func (q *Queue) Approve(at time.Time) (*model.Task, error) {
	item, err := q.begin()
	if err != nil {
		return nil, err
	}

	t, err := q.decider.Approve(item.TaskID, q.reviewerID, at)
	q.finish(err == nil)
	return t, err
}

// Reject records a rejection for the current item and advances. An empty
// reason fails without a write and without advancing.
func (q *Queue) Reject(reason string, at time.Time) (*model.Task, error) {
	item, err := q.begin()
	if err != nil {
		return nil, err
	}

	t, err := q.decider.Reject(item.TaskID, q.reviewerID, reason, at)
	q.finish(err == nil)
	return t, err
}

// begin moves to Deciding and hands back the current item. A verdict
// arriving while the queue is still Advancing implicitly completes the
// advance; only an in-flight decision blocks.
func (q *Queue) begin() (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == StateDeciding {
		return Item{}, ErrBusy
	}
	if q.index >= len(q.items) {
		q.state = StateViewing
		return Item{}, ErrDone
	}
	q.state = StateDeciding
	return q.items[q.index], nil
}

// finish leaves the queue in Advancing on the next item when the verdict
// landed; the advance completes when the next card is fetched. A failed
// verdict returns to Viewing on the same item so the parent can retry or
// fix the input.
func (q *Queue) finish(advance bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if advance {
		q.index++
		q.state = StateAdvancing
		return
	}
	q.state = StateViewing
}
