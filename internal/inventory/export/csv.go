// Package export renders inventory listings as downloadable files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
)

var header = []string{
	"SKU Code", "Item Name", "Category", "Unit", "Item Type",
	"Average Daily Consumption", "Lead Time", "Safety Factor", "MOQ",
	"Material In Transit", "Max Level Increased By (%)", "Max Level",
	"Closing Stock", "Stock Class", "Status", "Edit Request Status", "Deleted",
}

func row(rec inventory.StockRecord) []string {
	return []string{
		rec.SKUCode,
		rec.ItemName,
		rec.Category,
		rec.Unit,
		rec.ItemType,
		formatFloat(rec.AverageDailyConsumption),
		formatFloat(rec.LeadTimeFromIndentToReceipt),
		formatFloat(rec.SafetyFactor),
		formatFloat(rec.MOQ),
		formatFloat(rec.MaterialInTransit),
		formatFloat(rec.MaxLevelIncreasedBy),
		strconv.FormatInt(rec.MaxLevel, 10),
		formatFloat(rec.ClosingStock),
		string(rec.StockClass),
		string(rec.Status),
		string(rec.EditRequestStatus),
		strconv.FormatBool(rec.IsDeleted),
	}
}

// WriteRecordsCSV serialises stock records to CSV with a header row.
func WriteRecordsCSV(w io.Writer, records []inventory.StockRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(row(rec)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
