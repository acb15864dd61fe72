// Package admin provides destructive maintenance operations on the catalog.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/opticfit/internal/catalog"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Resetter empties catalog tables.
type Resetter struct {
	DB Execer
}

// ResetCatalog truncates every catalog table and restarts their ids. The
// audit log is kept unless includeAudit is set.
func (r *Resetter) ResetCatalog(ctx context.Context, includeAudit bool) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	tables := append([]string(nil), catalog.CatalogTables...)
	if includeAudit {
		tables = append(tables, catalog.TableAuditLog)
	}

	stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := r.DB.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("reset catalog: %w", err)
	}
	return nil
}
