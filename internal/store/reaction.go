package store

import (
	"database/sql"
	"fmt"

	"github.com/mpaulsen/farthing/internal/model"
)

type ReactionStore struct {
	db *sql.DB
}

func NewReactionStore(db *sql.DB) *ReactionStore {
	return &ReactionStore{db: db}
}

func scanReaction(scanner interface{ Scan(...any) error }) (*model.Reaction, error) {
	var r model.Reaction
	err := scanner.Scan(&r.ID, &r.ContentType, &r.ContentID, &r.MemberID, &r.Kind, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const reactionCols = `id, content_type, content_id, member_id, kind, created_at, updated_at`

// Set records a member's reaction to a content item. A member has at most
// one reaction per item; a new kind overwrites the previous one.
func (s *ReactionStore) Set(contentType string, contentID, memberID int64, kind string) (*model.Reaction, error) {
	_, err := s.db.Exec(
		`INSERT INTO reactions (content_type, content_id, member_id, kind) VALUES (?, ?, ?, ?)
		 ON CONFLICT (content_type, content_id, member_id)
		 DO UPDATE SET kind = excluded.kind, updated_at = CURRENT_TIMESTAMP`,
		contentType, contentID, memberID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("set reaction: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT `+reactionCols+` FROM reactions WHERE content_type = ? AND content_id = ? AND member_id = ?`,
		contentType, contentID, memberID,
	)
	return scanReaction(row)
}

func (s *ReactionStore) Remove(contentType string, contentID, memberID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM reactions WHERE content_type = ? AND content_id = ? AND member_id = ?`,
		contentType, contentID, memberID,
	)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}

func (s *ReactionStore) ListByContent(contentType string, contentID int64) ([]model.Reaction, error) {
	rows, err := s.db.Query(
		`SELECT `+reactionCols+` FROM reactions WHERE content_type = ? AND content_id = ? ORDER BY created_at ASC`,
		contentType, contentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	var reactions []model.Reaction
	for rows.Next() {
		r, err := scanReaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, *r)
	}
	return reactions, rows.Err()
}
