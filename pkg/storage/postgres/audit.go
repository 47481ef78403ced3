package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/integrationhub/pkg/audit"
)

// AuditStore implements audit.Store on PostgreSQL. Rows are only ever inserted.
type AuditStore struct {
	cm *ConnectionManager
}

// NewAuditStore creates an audit store
func NewAuditStore(cm *ConnectionManager) *AuditStore {
	return &AuditStore{cm: cm}
}

var _ audit.Store = (*AuditStore)(nil)

const auditColumns = `id, actor_user_id, actor_role, action, target_type, target_id, company_id, request_id, metadata, created_at`

// Append inserts an event
func (s *AuditStore) Append(ctx context.Context, e *audit.Event) error {
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}
	_, err = s.cm.Primary().ExecContext(ctx, `INSERT INTO audit_events (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.ActorUserID, e.ActorRole, string(e.Action), string(e.TargetType), e.TargetID, e.CompanyID,
		e.RequestID, encoded, e.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to append audit event: %w", err), "audit event", e.ID)
	}
	return nil
}

// Search returns matching events, newest first
func (s *AuditStore) Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error) {
	var w where
	if filter.CompanyID != "" {
		w.add("company_id = ?", filter.CompanyID)
	}
	if filter.ActorUserID != "" {
		w.add("actor_user_id = ?", filter.ActorUserID)
	}
	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		w.add("action = ANY(?)", pq.Array(actions))
	}
	if filter.TargetType != "" {
		w.add("target_type = ?", string(filter.TargetType))
	}
	if filter.TargetID != "" {
		w.add("target_id = ?", filter.TargetID)
	}
	if filter.Since != nil {
		w.add("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		w.add("created_at < ?", *filter.Until)
	}
	query := "SELECT " + auditColumns + " FROM audit_events" + w.String() +
		" ORDER BY created_at DESC, id DESC" + w.page(filter.Limit, filter.Offset)

	rows, err := s.cm.Replica().QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.ActorRole, &e.Action, &e.TargetType, &e.TargetID,
			&e.CompanyID, &e.RequestID, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		if len(e.Metadata) == 0 {
			e.Metadata = nil
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
