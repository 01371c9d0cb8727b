package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mpaulsen/farthing/internal/store"
)

const reviewNudgeInterval = time.Hour

// Scheduler periodically reminds guardians about pending reviews and sends
// a daily overdue summary at each user's preferred hour.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	tasks    *store.TaskStore
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}

	lastReviewNudge map[int64]time.Time
	lastOverdueDay  map[int64]string
}

// NewScheduler creates a notification scheduler.
func NewScheduler(svc *Service, pushStore *store.PushStore, taskStore *store.TaskStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:         svc,
		push:            pushStore,
		tasks:           taskStore,
		interval:        60 * time.Second,
		logger:          logger,
		lastReviewNudge: make(map[int64]time.Time),
		lastOverdueDay:  make(map[int64]string),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	householdIDs, err := s.push.ListHouseholdIDs()
	if err != nil {
		s.logger.Error("list households", "error", err)
		return
	}

	for _, hid := range householdIDs {
		s.checkPendingReviews(hid, now)
		s.checkOverdue(hid, now)
	}
}

func (s *Scheduler) checkPendingReviews(householdID int64, now time.Time) {
	s.mu.RLock()
	last := s.lastReviewNudge[householdID]
	s.mu.RUnlock()
	if now.Sub(last) < reviewNudgeInterval {
		return
	}

	pending, err := s.tasks.ListPendingReview(householdID)
	if err != nil {
		s.logger.Error("list pending reviews", "household_id", householdID, "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	payload := Payload{
		Title: "Reviews waiting",
		Body:  fmt.Sprintf("%d photo submission(s) need a verdict", len(pending)),
		URL:   "/review",
		Tag:   "review-reminder",
	}
	s.sendToHousehold(householdID, payload, func(prefs prefsView) bool { return prefs.reviewReminders })

	s.mu.Lock()
	s.lastReviewNudge[householdID] = now
	s.mu.Unlock()
}

func (s *Scheduler) checkOverdue(householdID int64, now time.Time) {
	tasks, err := s.tasks.List(householdID)
	if err != nil {
		s.logger.Error("list tasks", "household_id", householdID, "error", err)
		return
	}

	overdue := 0
	for _, t := range tasks {
		if t.Overdue(now) {
			overdue++
		}
	}
	if overdue == 0 {
		return
	}

	subs, err := s.push.ListForHousehold(householdID)
	if err != nil {
		s.logger.Error("list subscriptions", "household_id", householdID, "error", err)
		return
	}

	today := now.Format("2006-01-02")
	for i := range subs {
		sub := subs[i]
		prefs, err := s.push.GetPreferences(sub.UserID)
		if err != nil || !prefs.OverdueSummaries || now.Hour() != prefs.ReminderHour {
			continue
		}

		s.mu.RLock()
		sent := s.lastOverdueDay[sub.UserID] == today
		s.mu.RUnlock()
		if sent {
			continue
		}

		err = s.service.Send(&sub, Payload{
			Title: "Overdue tasks",
			Body:  fmt.Sprintf("%d task(s) are past due", overdue),
			Tag:   "overdue-summary",
		})
		if err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				s.logger.Warn("send overdue summary", "endpoint", sub.Endpoint, "error", err)
			}
			continue
		}

		s.mu.Lock()
		s.lastOverdueDay[sub.UserID] = today
		s.mu.Unlock()
	}
}

type prefsView struct {
	reviewReminders bool
}

func (s *Scheduler) sendToHousehold(householdID int64, payload Payload, want func(prefsView) bool) {
	subs, err := s.push.ListForHousehold(householdID)
	if err != nil {
		s.logger.Error("list subscriptions", "household_id", householdID, "error", err)
		return
	}

	for i := range subs {
		sub := subs[i]
		prefs, err := s.push.GetPreferences(sub.UserID)
		if err != nil {
			continue
		}
		if !want(prefsView{reviewReminders: prefs.ReviewReminders}) {
			continue
		}
		if err := s.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
				continue
			}
			s.logger.Warn("send review reminder", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
