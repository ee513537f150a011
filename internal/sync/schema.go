package sync

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the replica tables if they don't exist. The sink
// maintains last_changed_at on every write; it doubles as the checkpoint
// source and the change-audit trail.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS catalog_products (
	sku             text PRIMARY KEY,
	name            text NOT NULL,
	category        text,
	tags            text[] DEFAULT '{}',
	unit_price      numeric(14,4),
	is_active       boolean NOT NULL DEFAULT true,
	last_changed_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sales_line_items (
	invoice_id      text NOT NULL,
	sku             text NOT NULL,
	quantity        numeric(14,4),
	unit_price      numeric(14,4),
	line_total      numeric(14,4),
	currency        text,
	sold_at         timestamptz,
	last_changed_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (invoice_id, sku)
);

CREATE INDEX IF NOT EXISTS idx_catalog_products_changed ON catalog_products (last_changed_at);
CREATE INDEX IF NOT EXISTS idx_catalog_products_active ON catalog_products (is_active);
CREATE INDEX IF NOT EXISTS idx_sales_line_items_changed ON sales_line_items (last_changed_at);
CREATE INDEX IF NOT EXISTS idx_sales_line_items_sold ON sales_line_items (sold_at);
`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
