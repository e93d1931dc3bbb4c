// Package store persists results and insights to a local sqlite database
// by tapping the bus storage topic.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/serigela/lifeloop/internal/bus"
)

type Service struct {
	db  *sql.DB
	sub *bus.Subscription
	b   *bus.Bus
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// DB returns the underlying *sql.DB for shared access.
func (s *Service) DB() *sql.DB { return s.db }

func (s *Service) Close() error {
	if s.sub != nil && s.b != nil {
		s.b.Unsubscribe(s.sub)
		s.sub = nil
	}
	return s.db.Close()
}

// Attach subscribes the store to the storage topic so every published
// result and insight lands in sqlite. Persist errors are reported as
// consumer faults; they never block publishers.
func (s *Service) Attach(b *bus.Bus) {
	s.b = b
	s.sub = b.Subscribe("store", func(msg bus.Message) error {
		switch {
		case msg.Result != nil:
			return s.InsertResult(msg.Result)
		case msg.Insight != nil:
			return s.InsertInsight(msg.Insight)
		}
		return nil
	}, bus.TopicStorage)
	slog.Info("Store attached to bus", "topic", bus.TopicStorage)
}

// InsertResult persists one agent result.
func (s *Service) InsertResult(r *bus.Result) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		payload = []byte("{}")
	}
	_, err = s.db.Exec(`
		INSERT INTO results (agent_id, topic, window_at, status, payload, error_text, attempt, produced_at, trace_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.AgentID, r.Topic, r.Window, string(r.Status), string(payload),
		r.Error, r.Attempt, r.ProducedAt, r.TraceID)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// InsertInsight persists one composite insight. Re-inserting the same
// insight ID is a no-op.
func (s *Service) InsertInsight(in *bus.Insight) error {
	recs, _ := json.Marshal(in.Recommendations)
	contributing, _ := json.Marshal(in.Contributing)
	missing, _ := json.Marshal(in.Missing)
	_, err := s.db.Exec(`
		INSERT INTO insights (insight_id, window_at, summary, recommendations, contributing, missing, partial, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(insight_id) DO NOTHING`,
		in.ID, in.Window, in.Summary, string(recs), string(contributing),
		string(missing), in.Partial, in.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

// ResultFilter narrows RecentResults. Zero values mean no filter.
type ResultFilter struct {
	Topic string
	Since time.Time
	Limit int
}

// RecentResults returns stored results, newest first.
func (s *Service) RecentResults(filter ResultFilter) ([]bus.Result, error) {
	query := `SELECT agent_id, topic, window_at, status, payload, error_text, attempt, produced_at, trace_id
		FROM results WHERE 1=1`
	args := []any{}

	if filter.Topic != "" {
		query += " AND topic = ?"
		args = append(args, filter.Topic)
	}
	if !filter.Since.IsZero() {
		query += " AND produced_at >= ?"
		args = append(args, filter.Since)
	}
	query += " ORDER BY produced_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bus.Result
	for rows.Next() {
		var r bus.Result
		var status, payload string
		if err := rows.Scan(&r.AgentID, &r.Topic, &r.Window, &status, &payload,
			&r.Error, &r.Attempt, &r.ProducedAt, &r.TraceID); err != nil {
			return nil, err
		}
		r.Status = bus.Status(status)
		if payload != "" {
			_ = json.Unmarshal([]byte(payload), &r.Payload)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentInsights returns stored insights, newest first.
func (s *Service) RecentInsights(limit int) ([]bus.Insight, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`SELECT insight_id, window_at, summary,
		COALESCE(recommendations,'[]'), COALESCE(contributing,'[]'), COALESCE(missing,'[]'),
		partial, generated_at
		FROM insights ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bus.Insight
	for rows.Next() {
		var in bus.Insight
		var recs, contributing, missing string
		if err := rows.Scan(&in.ID, &in.Window, &in.Summary,
			&recs, &contributing, &missing, &in.Partial, &in.GeneratedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(recs), &in.Recommendations)
		_ = json.Unmarshal([]byte(contributing), &in.Contributing)
		_ = json.Unmarshal([]byte(missing), &in.Missing)
		out = append(out, in)
	}
	return out, rows.Err()
}

// Counts returns total stored results and insights for the status surface.
func (s *Service) Counts() (results int64, insights int64, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&results); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM insights`).Scan(&insights); err != nil {
		return 0, 0, err
	}
	return results, insights, nil
}
