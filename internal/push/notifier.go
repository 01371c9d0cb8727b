package push

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mpaulsen/farthing/internal/model"
	"github.com/mpaulsen/farthing/internal/store"
)

// Notifier sends event-driven pushes: a child submitted photo proof, or a
// verdict came back. Sends are best-effort; expired subscriptions are
// pruned as they surface.
type Notifier struct {
	service *Service
	push    *store.PushStore
	logger  *slog.Logger
}

func NewNotifier(service *Service, pushStore *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{service: service, push: pushStore, logger: logger}
}

// SubmissionReceived tells the household's guardians that a photo awaits
// review.
func (n *Notifier) SubmissionReceived(task *model.Task, memberName string) {
	n.fanOut(task.HouseholdID, Payload{
		Title: "Photo proof submitted",
		Body:  fmt.Sprintf("%s finished %q — swipe to review", memberName, task.Title),
		URL:   "/review",
		Tag:   fmt.Sprintf("review-%d", task.ID),
	})
}

// VerdictRecorded tells the household that a review landed.
func (n *Notifier) VerdictRecorded(task *model.Task) {
	verb := "approved"
	if task.ValidationStatus == model.ValidationRejected {
		verb = "sent back"
	}
	n.fanOut(task.HouseholdID, Payload{
		Title: "Task reviewed",
		Body:  fmt.Sprintf("%q was %s", task.Title, verb),
		Tag:   fmt.Sprintf("verdict-%d", task.ID),
	})
}

func (n *Notifier) fanOut(householdID int64, payload Payload) {
	if n.service == nil {
		return
	}

	subs, err := n.push.ListForHousehold(householdID)
	if err != nil {
		n.logger.Error("list subscriptions", "household_id", householdID, "error", err)
		return
	}

	for i := range subs {
		sub := subs[i]
		if err := n.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				n.push.DeleteByEndpoint(sub.Endpoint)
				continue
			}
			n.logger.Warn("send push", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
