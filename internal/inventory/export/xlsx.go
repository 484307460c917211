package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
)

// WriteRecordsXLSX writes stock records into a single-sheet workbook named
// after sheet. Numeric columns are stored as numbers.
func WriteRecordsXLSX(w io.Writer, sheet string, records []inventory.StockRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			rec.SKUCode,
			rec.ItemName,
			rec.Category,
			rec.Unit,
			rec.ItemType,
			rec.AverageDailyConsumption,
			rec.LeadTimeFromIndentToReceipt,
			rec.SafetyFactor,
			rec.MOQ,
			rec.MaterialInTransit,
			rec.MaxLevelIncreasedBy,
			rec.MaxLevel,
			rec.ClosingStock,
			string(rec.StockClass),
			string(rec.Status),
			string(rec.EditRequestStatus),
			rec.IsDeleted,
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.Write(w)
}
