package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ledgerline/backoffice/pkg/observability"
	"github.com/ledgerline/backoffice/pkg/orders"
	"github.com/ledgerline/backoffice/pkg/pools"
)

// ObjectStore is the subset of the S3 client the exporter needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, content io.Reader, contentType string) error
}

// Exporter renders operation data as CSV and delivers it to object
// storage. Keys are returned to the caller so handlers can hand out
// download locations.
type Exporter struct {
	store  ObjectStore
	orders *orders.Service
	pools  *pools.Service
	logger *observability.Logger
}

// NewExporter creates an Exporter.
func NewExporter(store ObjectStore, orderSvc *orders.Service, poolSvc *pools.Service, logger *observability.Logger) *Exporter {
	return &Exporter{
		store:  store,
		orders: orderSvc,
		pools:  poolSvc,
		logger: logger,
	}
}

// ExportOrders writes all orders of an operation to CSV and uploads it.
// Returns the object key.
func (e *Exporter) ExportOrders(ctx context.Context, operationID int64) (string, error) {
	list, err := e.orders.ListOrders(ctx, operationID, orders.ListOrdersFilter{Limit: exportBatchLimit})
	if err != nil {
		return "", fmt.Errorf("failed to load orders for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "reference", "customer_name", "customer_email", "status", "total_cents", "currency", "created_at"})
	for _, o := range list {
		_ = w.Write([]string{
			strconv.FormatInt(o.ID, 10),
			o.Reference,
			o.CustomerName,
			o.CustomerEmail,
			string(o.Status),
			strconv.FormatInt(o.TotalCents, 10),
			o.Currency,
			o.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to render orders csv: %w", err)
	}

	key := objectKey(operationID, "orders")
	if err := e.store.PutObject(ctx, key, &buf, "text/csv"); err != nil {
		return "", fmt.Errorf("failed to upload orders export: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"operation_id": operationID,
		"key":          key,
		"rows":         len(list),
	}).Info("orders export uploaded")
	return key, nil
}

// ExportPools writes all investment pools of an operation to CSV and
// uploads it. Returns the object key.
func (e *Exporter) ExportPools(ctx context.Context, operationID int64) (string, error) {
	list, err := e.pools.ListPools(ctx, operationID)
	if err != nil {
		return "", fmt.Errorf("failed to load pools for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "name", "strategy", "status", "target_cents", "raised_cents", "currency", "created_at"})
	for _, p := range list {
		_ = w.Write([]string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.Strategy,
			string(p.Status),
			strconv.FormatInt(p.TargetCents, 10),
			strconv.FormatInt(p.RaisedCents, 10),
			p.Currency,
			p.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to render pools csv: %w", err)
	}

	key := objectKey(operationID, "pools")
	if err := e.store.PutObject(ctx, key, &buf, "text/csv"); err != nil {
		return "", fmt.Errorf("failed to upload pools export: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"operation_id": operationID,
		"key":          key,
		"rows":         len(list),
	}).Info("pools export uploaded")
	return key, nil
}

const exportBatchLimit = 10000

func objectKey(operationID int64, kind string) string {
	return fmt.Sprintf("exports/%d/%s-%s.csv", operationID, kind, time.Now().UTC().Format("20060102T150405Z"))
}
