package sync

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/nucleus/sync-core/internal/source"
)

// Normalizer maps extraction records into canonical sink rows and
// collapses duplicate natural keys within a batch.
type Normalizer struct {
	target Target
}

// NewNormalizer builds a normalizer for one target.
func NewNormalizer(target Target) *Normalizer {
	return &Normalizer{target: target}
}

// Normalize decodes the extracted records into a merge-ready batch:
// per-field type coercion first, then dedup keeping the last occurrence
// per key in batch order. A record of the wrong kind is a decoding bug at
// the adapter boundary and fails the batch.
func (n *Normalizer) Normalize(records []source.Record) (Batch, error) {
	batch := Batch{Target: n.target, Rows: make([]Row, 0, len(records))}

	for i, rec := range records {
		if rec.Kind != n.target.Kind {
			return Batch{}, fmt.Errorf("record %d: kind %q does not match target %q", i, rec.Kind, n.target.Kind)
		}
		row, err := n.toRow(rec)
		if err != nil {
			return Batch{}, fmt.Errorf("record %d: %w", i, err)
		}
		batch.Rows = append(batch.Rows, row)
	}

	removed := batch.dedupe()
	if removed > 0 {
		log.Printf("[normalize] %s: removed %d duplicate rows from batch of %d", n.target.Table, removed, len(records))
	}
	return batch, nil
}

func (n *Normalizer) toRow(rec source.Record) (Row, error) {
	switch rec.Kind {
	case source.KindSalesLine:
		s := rec.Sales
		if s == nil {
			return Row{}, fmt.Errorf("sales payload missing")
		}
		invoice, sku := coerceText(s.InvoiceID), coerceText(s.SKU)
		if invoice == "" || sku == "" {
			return Row{}, fmt.Errorf("sales line missing natural key (invoice=%q sku=%q)", s.InvoiceID, s.SKU)
		}
		return Row{
			Key: source.Key{InvoiceID: invoice, SKU: sku},
			Data: []any{
				coerceNumeric(s.Quantity),
				coerceNumeric(s.UnitPrice),
				coerceNumeric(s.LineTotal),
				coerceText(s.Currency),
				coerceTime(s.SoldAt),
			},
		}, nil

	case source.KindCatalogProduct:
		p := rec.Product
		if p == nil {
			return Row{}, fmt.Errorf("product payload missing")
		}
		sku := coerceText(p.SKU)
		if sku == "" {
			return Row{}, fmt.Errorf("catalog product missing sku")
		}
		return Row{
			Key: source.Key{SKU: sku},
			Data: []any{
				coerceText(p.Name),
				coerceText(p.Category),
				coerceTags(p.Tags),
				coerceNumeric(p.UnitPrice),
			},
		}, nil
	}
	return Row{}, fmt.Errorf("unknown record kind %q", rec.Kind)
}

// dedupe collapses rows sharing a natural key, keeping the last occurrence
// in batch order. Required before the merge: a single statement's VALUES
// list cannot contain the same conflict key twice.
func (b *Batch) dedupe() int {
	lastIdx := make(map[source.Key]int, len(b.Rows))
	for i, row := range b.Rows {
		lastIdx[row.Key] = i
	}
	if len(lastIdx) == len(b.Rows) {
		return 0
	}

	removed := len(b.Rows) - len(lastIdx)
	deduped := make([]Row, 0, len(lastIdx))
	for i, row := range b.Rows {
		if lastIdx[row.Key] == i {
			deduped = append(deduped, row)
		}
	}
	b.Rows = deduped
	return removed
}

// coerceNumeric maps a source number to a sink-safe value. NaN and the
// infinities cannot be stored in a numeric column; they become NULL
// rather than being silently dropped with the row.
func coerceNumeric(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// coerceText trims surrounding whitespace; empty stays empty, not NULL.
func coerceText(v string) string {
	return strings.TrimSpace(v)
}

// coerceTime maps the zero time to NULL.
func coerceTime(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v.UTC()
}

// coerceTags maps a nil slice to an empty array so the sink never sees a
// NULL tags column.
func coerceTags(tags []string) any {
	if tags == nil {
		tags = []string{}
	}
	return pq.Array(tags)
}
