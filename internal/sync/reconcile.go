package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/lib/pq"

	"github.com/nucleus/sync-core/internal/database"
	"github.com/nucleus/sync-core/internal/source"
)

// Reconciler flips sink rows to inactive when the authoritative source no
// longer reports their keys. Deactivation never deletes; history stays.
type Reconciler struct {
	db    *sql.DB
	retry database.RetryPolicy
}

// NewReconciler builds a reconciler over the sink.
func NewReconciler(db *sql.DB, retry database.RetryPolicy) *Reconciler {
	return &Reconciler{db: db, retry: retry}
}

// DeactivateMissing marks every active row whose key is absent from
// currentValid as inactive and returns how many rows flipped. Rows
// already inactive are untouched and not counted.
//
// An empty key set deactivates all active rows: "source reports nothing
// valid" is taken at face value. A transient empty response from the
// source would wrongly deactivate everything; callers are expected to
// fail the run on source errors before reaching this point. The loud log
// line below exists for exactly that situation.
func (r *Reconciler) DeactivateMissing(ctx context.Context, target Target, currentValid []source.Key) (int, error) {
	if !target.HasActiveFlag {
		return 0, fmt.Errorf("target %s has no active flag to reconcile", target.Table)
	}
	if len(currentValid) == 0 {
		log.Printf("[reconcile] WARNING: %s: source reports zero valid keys; deactivating every active row", target.Table)
	}

	stmt, args := buildDeactivate(target, currentValid)

	var deactivated int
	err := database.WithRetry(ctx, r.retry, fmt.Sprintf("reconcile %s", target.Table), func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("deactivate missing in %s: %w", target.Table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("count deactivated rows: %w", err)
		}
		deactivated = int(affected)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if deactivated > 0 {
		log.Printf("[reconcile] %s: deactivated %d rows missing from source", target.Table, deactivated)
	}
	return deactivated, nil
}

func buildDeactivate(target Target, keys []source.Key) (string, []any) {
	base := fmt.Sprintf("UPDATE %s SET is_active = false, last_changed_at = now() WHERE is_active", pq.QuoteIdentifier(target.Table))
	if len(keys) == 0 {
		return base, nil
	}

	if len(target.KeyColumns) == 2 {
		first := make([]string, len(keys))
		second := make([]string, len(keys))
		for i, k := range keys {
			// Upserted keys were trimmed on the way in; the comparison set
			// must match them, not the source's raw padding.
			first[i] = coerceText(k.InvoiceID)
			second[i] = coerceText(k.SKU)
		}
		stmt := fmt.Sprintf("%s AND (%s, %s) NOT IN (SELECT unnest($1::text[]), unnest($2::text[]))",
			base, pq.QuoteIdentifier(target.KeyColumns[0]), pq.QuoteIdentifier(target.KeyColumns[1]))
		return stmt, []any{pq.Array(first), pq.Array(second)}
	}

	skus := make([]string, len(keys))
	for i, k := range keys {
		skus[i] = coerceText(k.SKU)
	}
	stmt := fmt.Sprintf("%s AND NOT (%s = ANY($1::text[]))", base, pq.QuoteIdentifier(target.KeyColumns[0]))
	return stmt, []any{pq.Array(skus)}
}
