// Package source defines the extraction boundary: typed records pulled
// from the remote source-of-truth system, and the fetcher contract the
// sync core consumes. The core owns nothing below this boundary; source
// failures are the run's failure and are not retried by the core.
package source

import "time"

// Kind tags a record with its sync target variant.
type Kind string

const (
	KindSalesLine      Kind = "sales_line"
	KindCatalogProduct Kind = "catalog_product"
)

// Key is the natural key of a sink row. Catalog products are keyed by SKU
// alone (InvoiceID empty); sales line items by (invoice, SKU), since one
// invoice carries many lines.
type Key struct {
	InvoiceID string
	SKU       string
}

// SalesLine is one invoice line as reported by the source.
type SalesLine struct {
	InvoiceID string
	SKU       string
	Quantity  float64
	UnitPrice float64
	LineTotal float64
	Currency  string
	SoldAt    time.Time
}

// CatalogProduct is one catalog row as reported by the source.
type CatalogProduct struct {
	SKU       string
	Name      string
	Category  string
	Tags      []string
	UnitPrice float64
	UpdatedAt time.Time
}

// Record is the tagged union crossing the extraction boundary. Exactly one
// payload pointer is set, matching Kind.
type Record struct {
	Kind    Kind
	Sales   *SalesLine
	Product *CatalogProduct
}

// Key returns the record's natural key.
func (r Record) Key() Key {
	switch r.Kind {
	case KindSalesLine:
		if r.Sales != nil {
			return Key{InvoiceID: r.Sales.InvoiceID, SKU: r.Sales.SKU}
		}
	case KindCatalogProduct:
		if r.Product != nil {
			return Key{SKU: r.Product.SKU}
		}
	}
	return Key{}
}
