package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/speechvault/speechvault/internal/model"
)

// EventStore is the append-only marketplace history. Dashboards read it
// through the events API; rows are never updated or deleted.
type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(eventType string, datasetID int64, payload any) (*model.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return s.append(s.db, eventType, datasetID, data)
}

// AppendTx records an event inside the same transaction as the state change
// it describes, so the history never disagrees with the tables.
func (s *EventStore) AppendTx(tx *sql.Tx, eventType string, datasetID int64, payload any) (*model.Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return s.append(tx, eventType, datasetID, data)
}

type eventExecer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (s *EventStore) append(e eventExecer, eventType string, datasetID int64, data []byte) (*model.Event, error) {
	result, err := e.Exec(
		`INSERT INTO events (type, dataset_id, payload) VALUES (?, ?, ?)`,
		eventType, datasetID, string(data),
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var ev model.Event
	var payload string
	row := e.QueryRow(`SELECT id, type, dataset_id, payload, created_at FROM events WHERE id = ?`, id)
	if err := row.Scan(&ev.ID, &ev.Type, &ev.DatasetID, &payload, &ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	ev.Payload = json.RawMessage(payload)
	return &ev, nil
}

// ListByType returns events of one type, newest first.
func (s *EventStore) ListByType(eventType string, limit int) ([]*model.Event, error) {
	return s.list(
		`SELECT id, type, dataset_id, payload, created_at FROM events WHERE type = ? ORDER BY id DESC LIMIT ?`,
		eventType, limit,
	)
}

func (s *EventStore) ListByDataset(datasetID int64, limit int) ([]*model.Event, error) {
	return s.list(
		`SELECT id, type, dataset_id, payload, created_at FROM events WHERE dataset_id = ? ORDER BY id DESC LIMIT ?`,
		datasetID, limit,
	)
}

func (s *EventStore) List(limit int) ([]*model.Event, error) {
	return s.list(
		`SELECT id, type, dataset_id, payload, created_at FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
}

func (s *EventStore) list(query string, args ...any) ([]*model.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		var ev model.Event
		var payload string
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.DatasetID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		out = append(out, &ev)
	}
	return out, rows.Err()
}
