package sync

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/nucleus/sync-core/internal/database"
)

// DefaultChunkSize bounds how many rows go into one merge statement.
// Chunking is a staging-efficiency concern only; each chunk is its own
// atomic merge, and a crash mid-batch leaves an applied prefix that the
// next run's window re-covers.
const DefaultChunkSize = 1000

// UpsertStats aggregates per-row merge outcomes.
type UpsertStats struct {
	Inserted int
	Updated  int
}

// Total is the number of rows the merge affected.
func (s UpsertStats) Total() int { return s.Inserted + s.Updated }

// UpsertEngine merges batches into the sink with the natural key as the
// conflict target. On conflict every non-key column is overwritten with
// the incoming value; the merge is idempotent with respect to content.
type UpsertEngine struct {
	db        *sql.DB
	chunkSize int
	retry     database.RetryPolicy
}

// NewUpsertEngine builds an engine over the sink.
func NewUpsertEngine(db *sql.DB, chunkSize int, retry database.RetryPolicy) *UpsertEngine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &UpsertEngine{db: db, chunkSize: chunkSize, retry: retry}
}

// Upsert stages and merges the batch chunk by chunk. Each chunk runs in
// one transaction; retries on transient failures are safe because a
// replayed chunk is a content no-op. Any constraint violation other than
// the natural-key conflict aborts the chunk's transaction.
func (e *UpsertEngine) Upsert(ctx context.Context, batch Batch) (UpsertStats, error) {
	var stats UpsertStats
	rows := batch.Rows

	for offset := 0; offset < len(rows); offset += e.chunkSize {
		chunkEnd := offset + e.chunkSize
		if chunkEnd > len(rows) {
			chunkEnd = len(rows)
		}
		chunk := rows[offset:chunkEnd]

		var chunkStats UpsertStats
		err := database.WithRetry(ctx, e.retry, fmt.Sprintf("upsert %s", batch.Target.Table), func(ctx context.Context) error {
			var err error
			chunkStats, err = e.mergeChunk(ctx, batch.Target, chunk)
			return err
		})
		if err != nil {
			return stats, err
		}
		stats.Inserted += chunkStats.Inserted
		stats.Updated += chunkStats.Updated
	}

	return stats, nil
}

func (e *UpsertEngine) mergeChunk(ctx context.Context, target Target, chunk []Row) (UpsertStats, error) {
	stmt := BuildMergeStatement(target, len(chunk))

	args := make([]any, 0, len(chunk)*(len(target.KeyColumns)+len(target.DataColumns)))
	for _, row := range chunk {
		args = append(args, target.KeyValues(row.Key)...)
		args = append(args, row.Data...)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertStats{}, fmt.Errorf("begin merge tx: %w", err)
	}
	defer tx.Rollback()

	dbRows, err := tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return UpsertStats{}, fmt.Errorf("merge into %s: %w", target.Table, err)
	}

	var stats UpsertStats
	for dbRows.Next() {
		var inserted bool
		if err := dbRows.Scan(&inserted); err != nil {
			dbRows.Close()
			return UpsertStats{}, fmt.Errorf("scan merge outcome: %w", err)
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
	}
	if err := dbRows.Err(); err != nil {
		dbRows.Close()
		return UpsertStats{}, fmt.Errorf("read merge outcomes: %w", err)
	}
	dbRows.Close()

	if err := tx.Commit(); err != nil {
		return UpsertStats{}, fmt.Errorf("commit merge: %w", err)
	}
	return stats, nil
}

// BuildMergeStatement renders the multi-row merge for rowCount rows. The
// conflict target is exactly the natural key; xmax = 0 marks rows the
// merge inserted rather than updated.
func BuildMergeStatement(target Target, rowCount int) string {
	insertCols := append(append([]string{}, target.KeyColumns...), target.DataColumns...)

	quoted := make([]string, len(insertCols))
	for i, col := range insertCols {
		quoted[i] = pq.QuoteIdentifier(col)
	}

	valueRows := make([]string, rowCount)
	arg := 1
	for i := 0; i < rowCount; i++ {
		placeholders := make([]string, len(insertCols))
		for j := range insertCols {
			placeholders[j] = fmt.Sprintf("$%d", arg)
			arg++
		}
		valueRows[i] = "(" + strings.Join(placeholders, ",") + ")"
	}

	sets := make([]string, 0, len(target.DataColumns)+2)
	for _, col := range target.DataColumns {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", pq.QuoteIdentifier(col), pq.QuoteIdentifier(col)))
	}
	if target.HasActiveFlag {
		// A row present in the source batch is by definition valid again.
		sets = append(sets, "is_active = true")
	}
	sets = append(sets, "last_changed_at = now()")

	keyCols := make([]string, len(target.KeyColumns))
	for i, col := range target.KeyColumns {
		keyCols[i] = pq.QuoteIdentifier(col)
	}

	return fmt.Sprintf(`INSERT INTO %s (%s)
VALUES %s
ON CONFLICT (%s) DO UPDATE SET %s
RETURNING (xmax = 0) AS inserted`,
		pq.QuoteIdentifier(target.Table),
		strings.Join(quoted, ", "),
		strings.Join(valueRows, ",\n       "),
		strings.Join(keyCols, ", "),
		strings.Join(sets, ", "))
}
