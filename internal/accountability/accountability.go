// Package accountability computes dashboard metrics from the task list.
// Everything here is a pure function of the tasks passed in: callers load
// the household's tasks and recompute on every read. A full rescan is
// deliberate; family-sized task lists never justify incremental indexes.
package accountability

import (
	"time"

	"github.com/mpaulsen/farthing/internal/model"
)

// ChildSummary holds the per-child dashboard metrics.
type ChildSummary struct {
	MemberID       int64      `json:"member_id"`
	MemberName     string     `json:"member_name"`
	TodayTotal     int        `json:"today_total"`
	TodayCompleted int        `json:"today_completed"`
	PendingReview  int        `json:"pending_review"`
	Streak         int        `json:"streak"`
	ActiveToday    bool       `json:"active_today"`
	CompletionRate int        `json:"completion_rate"`
	OverdueCount   int        `json:"overdue_count"`
	LastActivity   *time.Time `json:"last_activity"`
}

// FamilySummary aggregates the household.
type FamilySummary struct {
	Children       []ChildSummary `json:"children"`
	TodayTotal     int            `json:"today_total"`
	TodayCompleted int            `json:"today_completed"`
	PendingReview  int            `json:"pending_review"`
	Score          int            `json:"score"`
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// completedBy reports whether the task counts as completed activity for the
// member: attributed to whoever completed it, falling back to the assignee.
func completedBy(t model.Task, memberID int64) bool {
	if t.CompletedAt == nil {
		return false
	}
	if t.CompletedBy != nil {
		return *t.CompletedBy == memberID
	}
	return t.AssignedTo != nil && *t.AssignedTo == memberID
}

func assignedTo(t model.Task, memberID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == memberID
}

// Streak returns the member's consecutive-day completion streak and whether
// the member has completed anything today. A day counts when at least one
// task was completed on that local calendar date. A missing "today" does
// not break the streak: the walk then starts at yesterday, so a streak
// survives the morning before the first task is done. With no completions
// at all the streak is 0.
func Streak(tasks []model.Task, memberID int64, now time.Time) (int, bool) {
	loc := now.Location()
	days := make(map[string]struct{})
	for _, t := range tasks {
		if completedBy(t, memberID) {
			days[dayKey(*t.CompletedAt, loc)] = struct{}{}
		}
	}

	_, activeToday := days[dayKey(now, loc)]

	start := now
	if !activeToday {
		start = now.AddDate(0, 0, -1)
	}

	streak := 0
	for d := start; ; d = d.AddDate(0, 0, -1) {
		if _, ok := days[dayKey(d, loc)]; !ok {
			break
		}
		streak++
	}
	return streak, activeToday
}

// CompletionRate returns the member's completion percentage over the seven
// days ending yesterday: of the tasks assigned to the member and due in
// that window, how many are completed, rounded to the nearest whole
// percent. Today is excluded so an unfinished morning does not drag the
// rate down. Returns 0 when nothing was due in the window.
func CompletionRate(tasks []model.Task, memberID int64, now time.Time) int {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	windowStart := today.AddDate(0, 0, -7)

	var due, completed int
	for _, t := range tasks {
		if !assignedTo(t, memberID) || t.DueAt == nil {
			continue
		}
		d := t.DueAt.In(loc)
		dueDay := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		if dueDay.Before(windowStart) || !dueDay.Before(today) {
			continue
		}
		due++
		if t.Status == model.TaskStatusCompleted {
			completed++
		}
	}

	if due == 0 {
		return 0
	}
	return int(float64(completed)/float64(due)*100 + 0.5)
}

// Summarize computes one child's metrics.
func Summarize(member model.FamilyMember, tasks []model.Task, now time.Time) ChildSummary {
	loc := now.Location()
	todayKey := dayKey(now, loc)

	s := ChildSummary{
		MemberID:   member.ID,
		MemberName: member.Name,
	}

	var lastActivity *time.Time
	for _, t := range tasks {
		if assignedTo(t, member.ID) {
			if t.DueAt != nil && dayKey(*t.DueAt, loc) == todayKey {
				s.TodayTotal++
				if t.Status == model.TaskStatusCompleted {
					s.TodayCompleted++
				}
			}
			if t.AwaitingReview() {
				s.PendingReview++
			}
			if t.Overdue(now) {
				s.OverdueCount++
			}
		}
		if completedBy(t, member.ID) {
			if lastActivity == nil || t.CompletedAt.After(*lastActivity) {
				at := *t.CompletedAt
				lastActivity = &at
			}
		}
	}
	s.LastActivity = lastActivity

	s.Streak, s.ActiveToday = Streak(tasks, member.ID, now)
	s.CompletionRate = CompletionRate(tasks, member.ID, now)
	return s
}

// SummarizeFamily computes the household dashboard: per-child summaries for
// members with the child role plus family-wide totals over today's tasks.
func SummarizeFamily(members []model.FamilyMember, tasks []model.Task, now time.Time) FamilySummary {
	loc := now.Location()
	todayKey := dayKey(now, loc)

	var f FamilySummary
	for _, m := range members {
		if m.Role != model.RoleChild {
			continue
		}
		f.Children = append(f.Children, Summarize(m, tasks, now))
	}

	for _, t := range tasks {
		if t.DueAt != nil && dayKey(*t.DueAt, loc) == todayKey {
			f.TodayTotal++
			if t.Status == model.TaskStatusCompleted {
				f.TodayCompleted++
			}
		}
		if t.AwaitingReview() {
			f.PendingReview++
		}
	}

	if f.TodayTotal > 0 {
		f.Score = int(float64(f.TodayCompleted)/float64(f.TodayTotal)*100 + 0.5)
	}
	return f
}
