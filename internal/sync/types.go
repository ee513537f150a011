// Package sync implements the incremental replication core: checkpoint
// window resolution, batch normalization and dedup, conflict-aware bulk
// upsert, and reconciliation of vanished source rows.
package sync

import (
	"time"

	"github.com/nucleus/sync-core/internal/source"
)

// Target describes one replicated table: where rows land, which columns
// form the natural key, and whether the table carries an active flag for
// reconciliation.
type Target struct {
	Kind          source.Kind
	Table         string
	KeyColumns    []string
	DataColumns   []string
	HasActiveFlag bool
}

// SalesTarget replicates invoice line items, keyed by (invoice_id, sku).
// Sales rows have implicit "exists" semantics; no active flag.
var SalesTarget = Target{
	Kind:        source.KindSalesLine,
	Table:       "sales_line_items",
	KeyColumns:  []string{"invoice_id", "sku"},
	DataColumns: []string{"quantity", "unit_price", "line_total", "currency", "sold_at"},
}

// CatalogTarget replicates catalog products, keyed by SKU, with an
// is_active flag maintained by reconciliation.
var CatalogTarget = Target{
	Kind:          source.KindCatalogProduct,
	Table:         "catalog_products",
	KeyColumns:    []string{"sku"},
	DataColumns:   []string{"name", "category", "tags", "unit_price"},
	HasActiveFlag: true,
}

// KeyValues orders a natural key's fields to match the target's key columns.
func (t Target) KeyValues(k source.Key) []any {
	if len(t.KeyColumns) == 2 {
		return []any{k.InvoiceID, k.SKU}
	}
	return []any{k.SKU}
}

// Row is one canonical sink row: natural key plus data values aligned,
// one to one, with the target's DataColumns.
type Row struct {
	Key  source.Key
	Data []any
}

// Batch is the ephemeral per-run collection of candidate rows between
// extraction and merge. It never outlives a run.
type Batch struct {
	Target Target
	Rows   []Row
}

// State names the orchestrator's position in a run.
type State string

const (
	StateIdle            State = "idle"
	StateResolvingWindow State = "resolving_window"
	StateExtracting      State = "extracting"
	StateNormalizing     State = "normalizing"
	StateUpserting       State = "upserting"
	StateReconciling     State = "reconciling"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Result is the immutable record of one completed run. It is the only
// artifact callers consume; failed runs are reported here, never raised.
type Result struct {
	RunID       string
	Target      source.Kind
	State       State
	WindowStart time.Time
	WindowEnd   time.Time
	Seen        int
	Duplicates  int
	Inserted    int
	Updated     int
	Deactivated int
	Duration    time.Duration
	Errors      []string
}

// Upserted is the total number of rows the merge touched.
func (r Result) Upserted() int {
	return r.Inserted + r.Updated
}

// Failed reports whether the run ended in the failed state.
func (r Result) Failed() bool {
	return r.State == StateFailed
}
