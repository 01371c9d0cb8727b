package store

import (
	"database/sql"
	"fmt"

	"github.com/mpaulsen/farthing/internal/model"
)

type PointsStore struct {
	db *sql.DB
}

func NewPointsStore(db *sql.DB) *PointsStore {
	return &PointsStore{db: db}
}

func scanPointAward(scanner interface{ Scan(...any) error }) (*model.PointAward, error) {
	var a model.PointAward
	var taskID, awardedBy sql.NullInt64

	err := scanner.Scan(&a.ID, &a.HouseholdID, &taskID, &a.MemberID, &a.Points, &a.Reason, &awardedBy, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		a.TaskID = &taskID.Int64
	}
	if awardedBy.Valid {
		a.AwardedBy = &awardedBy.Int64
	}
	return &a, nil
}

const pointAwardCols = `id, household_id, task_id, member_id, points, reason, awarded_by, created_at`

// Award inserts a manual point award (bonuses, adjustments). Task approvals
// award their points inside the approval transaction in TaskStore.
func (s *PointsStore) Award(householdID int64, taskID *int64, memberID int64, points int, reason string, awardedBy *int64) (*model.PointAward, error) {
	var tID sql.NullInt64
	if taskID != nil {
		tID = sql.NullInt64{Int64: *taskID, Valid: true}
	}
	var aBy sql.NullInt64
	if awardedBy != nil {
		aBy = sql.NullInt64{Int64: *awardedBy, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO point_awards (household_id, task_id, member_id, points, reason, awarded_by) VALUES (?, ?, ?, ?, ?, ?)`,
		householdID, tID, memberID, points, reason, aBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert point award: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+pointAwardCols+` FROM point_awards WHERE id = ?`, id)
	return scanPointAward(row)
}

func (s *PointsStore) ListByMember(memberID int64) ([]model.PointAward, error) {
	rows, err := s.db.Query(
		`SELECT `+pointAwardCols+` FROM point_awards WHERE member_id = ? ORDER BY created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list point awards: %w", err)
	}
	defer rows.Close()

	var awards []model.PointAward
	for rows.Next() {
		a, err := scanPointAward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan point award: %w", err)
		}
		awards = append(awards, *a)
	}
	return awards, rows.Err()
}

func (s *PointsStore) ListByTask(taskID int64) ([]model.PointAward, error) {
	rows, err := s.db.Query(
		`SELECT `+pointAwardCols+` FROM point_awards WHERE task_id = ? ORDER BY created_at DESC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list point awards by task: %w", err)
	}
	defer rows.Close()

	var awards []model.PointAward
	for rows.Next() {
		a, err := scanPointAward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan point award: %w", err)
		}
		awards = append(awards, *a)
	}
	return awards, rows.Err()
}

func (s *PointsStore) Balance(memberID int64) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(points) FROM point_awards WHERE member_id = ?`, memberID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("point balance: %w", err)
	}
	return int(total.Int64), nil
}

// Leaderboard returns point totals per family member, highest first.
func (s *PointsStore) Leaderboard(householdID int64) ([]model.PointBalance, error) {
	rows, err := s.db.Query(
		`SELECT fm.id, fm.name, COALESCE(SUM(pa.points), 0) AS total
		 FROM family_members fm
		 LEFT JOIN point_awards pa ON pa.member_id = fm.id
		 WHERE fm.household_id = ?
		 GROUP BY fm.id, fm.name
		 ORDER BY total DESC, fm.name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var balances []model.PointBalance
	for rows.Next() {
		var b model.PointBalance
		if err := rows.Scan(&b.MemberID, &b.MemberName, &b.Total); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
