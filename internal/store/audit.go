package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEntry records an administrative action on the development backend.
type AuditEntry struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`  // "login", "signup", "update_user", "delete_user", "send_template", ...
	Actor     string                 `json:"actor"`   // username or "anonymous"
	Subject   string                 `json:"subject"` // affected user id, phone number, etc.
	Details   map[string]interface{} `json:"details"`
	Timestamp time.Time              `json:"timestamp"`
}

// OutboundMessage is a template message accepted for delivery.
type OutboundMessage struct {
	ID          string            `json:"id"`
	To          string            `json:"to"`
	TemplateSID string            `json:"templateSid"`
	Variables   map[string]string `json:"variables"`
	Actor       string            `json:"actor"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// AddAuditEntry appends an entry, filling the id and timestamp when missing.
func (s *Store) AddAuditEntry(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Details == nil {
		entry.Details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO audit_entries (id, action, actor, subject, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.Actor, nullString(entry.Subject), string(detailsJSON), entry.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to add audit entry: %w", err)
	}
	return nil
}

// LogAction is the short form of AddAuditEntry used by handlers.
func (s *Store) LogAction(ctx context.Context, action, actor, subject string, details map[string]interface{}) error {
	return s.AddAuditEntry(ctx, AuditEntry{Action: action, Actor: actor, Subject: subject, Details: details})
}

// GetAuditEntries returns the newest entries first, optionally filtered by action.
func (s *Store) GetAuditEntries(ctx context.Context, action string, limit int) ([]AuditEntry, error) {
	query := `SELECT id, action, actor, subject, details, timestamp FROM audit_entries`
	args := []interface{}{}
	if action != "" {
		query += ` WHERE action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var subject *string
		var detailsJSON string
		var timestamp int64
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Actor, &subject, &detailsJSON, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Timestamp = time.Unix(0, timestamp)
		if subject != nil {
			entry.Subject = *subject
		}
		if err := json.Unmarshal([]byte(detailsJSON), &entry.Details); err != nil {
			entry.Details = map[string]interface{}{"raw": detailsJSON}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveOutboundMessage records an accepted template send.
func (s *Store) SaveOutboundMessage(ctx context.Context, msg OutboundMessage) (string, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	vars, err := json.Marshal(msg.Variables)
	if err != nil {
		return "", fmt.Errorf("failed to marshal variables: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO outbound_messages (id, to_number, template_sid, variables, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, msg.ID, msg.To, msg.TemplateSID, string(vars), msg.Actor, msg.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to save outbound message: %w", err)
	}
	return msg.ID, nil
}

// ListOutboundMessages returns the most recent sends first.
func (s *Store) ListOutboundMessages(ctx context.Context, limit int) ([]OutboundMessage, error) {
	query := `SELECT id, to_number, template_sid, variables, actor, created_at FROM outbound_messages ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbound messages: %w", err)
	}
	defer rows.Close()

	var out []OutboundMessage
	for rows.Next() {
		var msg OutboundMessage
		var vars string
		var created int64
		if err := rows.Scan(&msg.ID, &msg.To, &msg.TemplateSID, &vars, &msg.Actor, &created); err != nil {
			return nil, fmt.Errorf("failed to scan outbound message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, created)
		_ = json.Unmarshal([]byte(vars), &msg.Variables)
		out = append(out, msg)
	}
	return out, rows.Err()
}
