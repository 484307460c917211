package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-stock/internal/jobs"
)

const (
	// TaskInventoryLowStockScan triggers the daily low-stock sweep.
	TaskInventoryLowStockScan = "inventory:low_stock_scan"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockScanPayload carries scheduling metadata. An empty Kinds list scans
// every kind.
type LowStockScanPayload struct {
	Kinds []inventory.Kind `json:"kinds,omitempty"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock sweep.
func NewLowStockScanTask(kinds ...inventory.Kind) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Kinds: kinds})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockLister returns the active low-stock records of a kind.
type LowStockLister interface {
	LowStock(ctx context.Context, kind inventory.Kind) ([]inventory.StockRecord, error)
}

// EmailEnqueuer queues outbound mail.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// LowStockScanJob classifies every active record, publishes the per-kind
// gauge and mails a digest when anything is below threshold.
type LowStockScanJob struct {
	Inventory LowStockLister
	Mail      EmailEnqueuer
	Recipient string
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewLowStockScanJob wires dependencies for the sweep handler.
func NewLowStockScanJob(lister LowStockLister, mail EmailEnqueuer, recipient string, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Inventory: lister,
		Mail:      mail,
		Recipient: recipient,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes low-stock sweep tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	kinds := payload.Kinds
	if len(kinds) == 0 {
		kinds = inventory.Kinds
	}

	tracker := j.metrics().Track(TaskInventoryLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	found := make(map[inventory.Kind][]inventory.StockRecord, len(kinds))
	total := 0
	for _, kind := range kinds {
		if !kind.Valid() {
			logger.Warn("skipping unknown kind", slog.String("kind", string(kind)))
			continue
		}
		records, err := j.Inventory.LowStock(ctx, kind)
		if err != nil {
			resultErr = fmt.Errorf("low stock scan %s: %w", kind, err)
			logger.Error("scan kind", slog.String("kind", string(kind)), slog.Any("error", err))
			return resultErr
		}
		j.metrics().SetLowStock(string(kind), len(records))
		found[kind] = records
		total += len(records)
	}

	if total > 0 && j.Mail != nil && j.Recipient != "" {
		if _, err := j.Mail.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.Recipient,
			Subject: fmt.Sprintf("Low stock digest %s: %d items", start.Format("2006-01-02"), total),
			Body:    renderDigest(kinds, found),
		}); err != nil {
			resultErr = err
			logger.Error("enqueue digest", slog.Any("error", err))
			return resultErr
		}
	}

	logger.Info("completed low stock scan", slog.Int("items", total), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func renderDigest(kinds []inventory.Kind, found map[inventory.Kind][]inventory.StockRecord) string {
	var b strings.Builder
	for _, kind := range kinds {
		records := found[kind]
		if len(records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s (%d)\n", kind.Slug(), len(records))
		for _, rec := range records {
			fmt.Fprintf(&b, "  %s  %s  closing=%g max=%d\n", rec.SKUCode, rec.ItemName, rec.ClosingStock, rec.MaxLevel)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInventoryLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskInventoryLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
