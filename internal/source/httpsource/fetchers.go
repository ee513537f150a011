package httpsource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nucleus/sync-core/internal/source"
)

// Wire shapes of the export API. Decoding into these happens here, at the
// adapter boundary; nothing duck-typed crosses into the sync core.

type salesLineDTO struct {
	InvoiceID string  `json:"invoice_id"`
	SKU       string  `json:"sku"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	Currency  string  `json:"currency"`
	SoldAt    string  `json:"sold_at"`
}

type productDTO struct {
	SKU       string   `json:"sku"`
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	UnitPrice float64  `json:"unit_price"`
	UpdatedAt string   `json:"updated_at"`
}

type keyDTO struct {
	InvoiceID string `json:"invoice_id,omitempty"`
	SKU       string `json:"sku"`
}

func windowQuery(start, end time.Time, limit int) url.Values {
	q := url.Values{}
	q.Set("since", start.UTC().Format(time.RFC3339))
	q.Set("until", end.UTC().Format(time.RFC3339))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

func parseStamp(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return ts, nil
}

// SalesFetcher extracts sales line items from the export API.
type SalesFetcher struct {
	client *Client
}

// NewSalesFetcher wraps the client for the sales export endpoints.
func NewSalesFetcher(client *Client) *SalesFetcher {
	return &SalesFetcher{client: client}
}

func (f *SalesFetcher) FetchWindow(ctx context.Context, start, end time.Time, limit int) ([]source.Record, error) {
	var payload struct {
		Lines []salesLineDTO `json:"lines"`
	}
	if err := f.client.getJSON(ctx, "/export/sales/lines", windowQuery(start, end, limit), &payload); err != nil {
		return nil, err
	}

	records := make([]source.Record, 0, len(payload.Lines))
	for _, dto := range payload.Lines {
		soldAt, err := parseStamp("sold_at", dto.SoldAt)
		if err != nil {
			return nil, err
		}
		records = append(records, source.Record{
			Kind: source.KindSalesLine,
			Sales: &source.SalesLine{
				InvoiceID: dto.InvoiceID,
				SKU:       dto.SKU,
				Quantity:  dto.Quantity,
				UnitPrice: dto.UnitPrice,
				LineTotal: dto.LineTotal,
				Currency:  dto.Currency,
				SoldAt:    soldAt,
			},
		})
	}
	return records, nil
}

func (f *SalesFetcher) FetchActiveKeys(ctx context.Context) ([]source.Key, error) {
	var payload struct {
		Keys []keyDTO `json:"keys"`
	}
	if err := f.client.getJSON(ctx, "/export/sales/keys", nil, &payload); err != nil {
		return nil, err
	}
	keys := make([]source.Key, 0, len(payload.Keys))
	for _, k := range payload.Keys {
		keys = append(keys, source.Key{InvoiceID: k.InvoiceID, SKU: k.SKU})
	}
	return keys, nil
}

// CatalogFetcher extracts catalog products from the export API.
type CatalogFetcher struct {
	client *Client
}

// NewCatalogFetcher wraps the client for the catalog export endpoints.
func NewCatalogFetcher(client *Client) *CatalogFetcher {
	return &CatalogFetcher{client: client}
}

func (f *CatalogFetcher) FetchWindow(ctx context.Context, start, end time.Time, limit int) ([]source.Record, error) {
	var payload struct {
		Products []productDTO `json:"products"`
	}
	if err := f.client.getJSON(ctx, "/export/catalog/products", windowQuery(start, end, limit), &payload); err != nil {
		return nil, err
	}

	records := make([]source.Record, 0, len(payload.Products))
	for _, dto := range payload.Products {
		updatedAt, err := parseStamp("updated_at", dto.UpdatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, source.Record{
			Kind: source.KindCatalogProduct,
			Product: &source.CatalogProduct{
				SKU:       dto.SKU,
				Name:      dto.Name,
				Category:  dto.Category,
				Tags:      dto.Tags,
				UnitPrice: dto.UnitPrice,
				UpdatedAt: updatedAt,
			},
		})
	}
	return records, nil
}

func (f *CatalogFetcher) FetchActiveKeys(ctx context.Context) ([]source.Key, error) {
	var payload struct {
		Keys []keyDTO `json:"keys"`
	}
	if err := f.client.getJSON(ctx, "/export/catalog/keys", nil, &payload); err != nil {
		return nil, err
	}
	keys := make([]source.Key, 0, len(payload.Keys))
	for _, k := range payload.Keys {
		keys = append(keys, source.Key{SKU: k.SKU})
	}
	return keys, nil
}

// Ensure interface compliance
var _ source.Fetcher = (*SalesFetcher)(nil)
var _ source.Fetcher = (*CatalogFetcher)(nil)
