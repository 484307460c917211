package jobs

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
)

// AlertMailer turns low-stock events into queued emails.
type AlertMailer struct {
	Mail      EmailEnqueuer
	Recipient string
}

// HandleLowStock implements inventory.AlertHandler.
func (a *AlertMailer) HandleLowStock(ctx context.Context, evt inventory.LowStockEvent) error {
	if a == nil || a.Mail == nil || a.Recipient == "" {
		return nil
	}
	_, err := a.Mail.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      a.Recipient,
		Subject: fmt.Sprintf("Low stock: %s %s", evt.SKUCode, evt.ItemName),
		Body: fmt.Sprintf("%s record %d dropped below its reorder threshold at %s.\nClosing stock: %g\nMax level: %d\n",
			evt.Kind.Slug(), evt.RecordID, evt.DetectedAt.Format("2006-01-02 15:04 MST"), evt.ClosingStock, evt.MaxLevel),
	})
	return err
}
