package source

import (
	"context"
	"time"
)

// Fetcher extracts records for one sync target from the remote system.
//
// FetchWindow returns the finite, fully materialized batch of records
// changed inside the half-open window [start, end); limit <= 0 means no
// cap. An empty batch is a legitimate "nothing changed" outcome.
//
// FetchActiveKeys returns the complete set of currently valid natural
// keys for the target, never a delta. Reconciliation depends on the set
// being authoritative.
//
// Implementations own their retry behavior; the sync core treats any
// returned error as fatal for the run.
type Fetcher interface {
	FetchWindow(ctx context.Context, start, end time.Time, limit int) ([]Record, error)
	FetchActiveKeys(ctx context.Context) ([]Key, error)
}
