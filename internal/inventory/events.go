package inventory

import (
	"context"
	"time"
)

// LowStockEvent is raised when a write moves a record into low stock.
type LowStockEvent struct {
	Kind         Kind      `json:"kind"`
	RecordID     int64     `json:"recordId"`
	SKUCode      string    `json:"skuCode"`
	ItemName     string    `json:"itemName"`
	ClosingStock float64   `json:"closingStock"`
	MaxLevel     int64     `json:"maxLevel"`
	DetectedAt   time.Time `json:"detectedAt"`
}

// AlertHandler receives low-stock events for notification.
type AlertHandler interface {
	HandleLowStock(ctx context.Context, evt LowStockEvent) error
}
