package sync

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nucleus/sync-core/internal/database"
)

func TestBuildMergeStatement_ConflictTargetIsExactKey(t *testing.T) {
	stmt := BuildMergeStatement(SalesTarget, 1)
	if !strings.Contains(stmt, `ON CONFLICT ("invoice_id", "sku") DO UPDATE SET`) {
		t.Errorf("conflict target must be the composite natural key:\n%s", stmt)
	}

	stmt = BuildMergeStatement(CatalogTarget, 1)
	if !strings.Contains(stmt, `ON CONFLICT ("sku") DO UPDATE SET`) {
		t.Errorf("conflict target must be the sku:\n%s", stmt)
	}
}

func TestBuildMergeStatement_EveryNonKeyColumnOverwritten(t *testing.T) {
	stmt := BuildMergeStatement(SalesTarget, 1)
	for _, col := range SalesTarget.DataColumns {
		want := fmt.Sprintf(`"%s" = EXCLUDED."%s"`, col, col)
		if !strings.Contains(stmt, want) {
			t.Errorf("missing overwrite for %s:\n%s", col, stmt)
		}
	}
	if !strings.Contains(stmt, "last_changed_at = now()") {
		t.Errorf("update must refresh last_changed_at:\n%s", stmt)
	}
}

func TestBuildMergeStatement_PlaceholderCount(t *testing.T) {
	const rows = 3
	stmt := BuildMergeStatement(SalesTarget, rows)

	cols := len(SalesTarget.KeyColumns) + len(SalesTarget.DataColumns)
	last := fmt.Sprintf("$%d", rows*cols)
	if !strings.Contains(stmt, last) {
		t.Errorf("expected final placeholder %s:\n%s", last, stmt)
	}
	if strings.Contains(stmt, fmt.Sprintf("$%d", rows*cols+1)) {
		t.Errorf("too many placeholders:\n%s", stmt)
	}
	if got := strings.Count(stmt, "("); got < rows {
		t.Errorf("expected %d value tuples", rows)
	}
}

func TestBuildMergeStatement_ActiveFlagHandling(t *testing.T) {
	catalog := BuildMergeStatement(CatalogTarget, 1)
	if !strings.Contains(catalog, "is_active = true") {
		t.Errorf("catalog upsert must reactivate conflicting rows:\n%s", catalog)
	}

	sales := BuildMergeStatement(SalesTarget, 1)
	if strings.Contains(sales, "is_active") {
		t.Errorf("sales table has no active flag:\n%s", sales)
	}
}

func TestBuildMergeStatement_ReportsInsertVsUpdate(t *testing.T) {
	stmt := BuildMergeStatement(CatalogTarget, 2)
	if !strings.Contains(stmt, "RETURNING (xmax = 0) AS inserted") {
		t.Errorf("merge must report per-row insert-vs-update outcome:\n%s", stmt)
	}
}

func TestUpsertEngine_ChunkSizeDefault(t *testing.T) {
	e := NewUpsertEngine(nil, 0, database.DefaultRetryPolicy())
	if e.chunkSize != DefaultChunkSize {
		t.Errorf("got chunk size %d, want %d", e.chunkSize, DefaultChunkSize)
	}
	e = NewUpsertEngine(nil, 250, database.DefaultRetryPolicy())
	if e.chunkSize != 250 {
		t.Errorf("got chunk size %d, want 250", e.chunkSize)
	}
}
