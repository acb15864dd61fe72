package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImport      AuditAction = "import"
	ActionCreate      AuditAction = "create"
	ActionUpdate      AuditAction = "update"
	ActionDelete      AuditAction = "delete"
	ActionLinkReplace AuditAction = "link_replace"
	ActionImageUpload AuditAction = "image_upload"
	ActionLogin       AuditAction = "login"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditLogParams contains parameters for creating an audit log entry.
type AuditLogParams struct {
	Action       AuditAction
	TableKey     string
	RowID        int64
	RowsAffected int
	Details      map[string]any
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction, rowsAffected int) AuditSeverity {
	switch action {
	case ActionImport:
		return SeverityHigh
	case ActionDelete:
		if rowsAffected > 1 {
			return SeverityCritical
		}
		return SeverityHigh
	case ActionImageUpload, ActionLogin:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit writes an audit log entry. Caller metadata is taken from ctx.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) (*catalog.AuditRecord, error) {
	rec := &catalog.AuditRecord{
		ID:           uuid.NewString(),
		Action:       string(params.Action),
		Severity:     string(determineSeverity(params.Action, params.RowsAffected)),
		TableKey:     params.TableKey,
		RowID:        params.RowID,
		RowsAffected: params.RowsAffected,
		Actor:        GetActorFromContext(ctx),
		IPAddress:    GetIPAddressFromContext(ctx),
		UserAgent:    GetUserAgentFromContext(ctx),
		Details:      params.Details,
		CreatedAt:    s.now().UTC(),
	}

	row := store.Row{
		"entry_id":      rec.ID,
		"action":        rec.Action,
		"severity":      rec.Severity,
		"table_key":     rec.TableKey,
		"row_id":        rec.RowID,
		"rows_affected": rec.RowsAffected,
		"actor":         rec.Actor,
		"ip_address":    rec.IPAddress,
		"user_agent":    rec.UserAgent,
		"created_at":    rec.CreatedAt,
	}
	if rec.Details != nil {
		b, err := json.Marshal(rec.Details)
		if err == nil {
			row["details"] = string(b)
		}
	}

	if _, err := s.store.Insert(ctx, catalog.TableAuditLog, row); err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return rec, nil
}

// audit records an entry and logs instead of failing the caller. The
// mutation it describes has already been applied.
func (s *Service) audit(ctx context.Context, params AuditLogParams) {
	if _, err := s.LogAudit(ctx, params); err != nil {
		logging.FromContext(ctx).Error("audit log write failed",
			"action", params.Action,
			"table", params.TableKey,
			"error", err,
		)
	}
}

// ListAudit returns the newest audit entries first.
func (s *Service) ListAudit(ctx context.Context, limit int) ([]catalog.AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.store.Select(ctx, catalog.TableAuditLog, store.Query{OrderBy: "id", Desc: true, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}

	out := make([]catalog.AuditRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, decodeAudit(r))
	}
	return out, nil
}

func decodeAudit(r store.Row) catalog.AuditRecord {
	rec := catalog.AuditRecord{
		ID:           r.String("entry_id"),
		Action:       r.String("action"),
		Severity:     r.String("severity"),
		TableKey:     r.String("table_key"),
		RowID:        r.Int64("row_id"),
		RowsAffected: int(r.Int64("rows_affected")),
		Actor:        r.String("actor"),
		IPAddress:    r.String("ip_address"),
		UserAgent:    r.String("user_agent"),
		CreatedAt:    r.Time("created_at"),
	}
	switch d := r["details"].(type) {
	case map[string]any:
		rec.Details = d
	case string:
		_ = json.Unmarshal([]byte(d), &rec.Details)
	case []byte:
		_ = json.Unmarshal(d, &rec.Details)
	}
	return rec
}
