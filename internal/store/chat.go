package store

import (
	"database/sql"
	"fmt"

	"github.com/mpaulsen/farthing/internal/model"
)

type ChatStore struct {
	db *sql.DB
}

func NewChatStore(db *sql.DB) *ChatStore {
	return &ChatStore{db: db}
}

func scanChatMessage(scanner interface{ Scan(...any) error }) (*model.ChatMessage, error) {
	var m model.ChatMessage
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.AuthorID, &m.Body, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const chatMessageCols = `id, household_id, author_id, body, created_at`

func (s *ChatStore) Create(householdID, authorID int64, body string) (*model.ChatMessage, error) {
	result, err := s.db.Exec(
		`INSERT INTO chat_messages (household_id, author_id, body) VALUES (?, ?, ?)`,
		householdID, authorID, body,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+chatMessageCols+` FROM chat_messages WHERE id = ?`, id)
	return scanChatMessage(row)
}

func (s *ChatStore) GetByID(id int64) (*model.ChatMessage, error) {
	row := s.db.QueryRow(`SELECT `+chatMessageCols+` FROM chat_messages WHERE id = ?`, id)
	m, err := scanChatMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat message: %w", err)
	}
	return m, nil
}

// ListRecent returns up to limit messages, newest last.
func (s *ChatStore) ListRecent(householdID int64, limit int) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT * FROM (
			SELECT `+chatMessageCols+` FROM chat_messages WHERE household_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		 ) ORDER BY created_at ASC, id ASC`,
		householdID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []model.ChatMessage
	for rows.Next() {
		m, err := scanChatMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func (s *ChatStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM chat_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat message: %w", err)
	}
	return nil
}
