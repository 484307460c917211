package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
)

func sampleRecords() []inventory.StockRecord {
	return []inventory.StockRecord{
		inventory.StockRecord{SKUCode: "RM-001", ItemName: "Steel rod", Category: "Metals", SafetyFactor: 1.5, AverageDailyConsumption: 10, LeadTimeFromIndentToReceipt: 4, ClosingStock: 10}.Derive(),
		inventory.StockRecord{SKUCode: "RM-002", ItemName: "Copper wire", ClosingStock: 0.1, IsDeleted: true}.Derive(),
	}
}

func TestWriteRecordsCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteRecordsCSV(buf, sampleRecords()))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, header, rows[0])
	require.Equal(t, "RM-001", rows[1][0])
	require.Equal(t, "60", rows[1][11])
	require.Equal(t, "lowStock", rows[1][13])
	require.Equal(t, "true", rows[2][16])
}

func TestWriteRecordsXLSX(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteRecordsXLSX(buf, "raw-materials", sampleRecords()))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("raw-materials")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "SKU Code", rows[0][0])
	require.Equal(t, "Copper wire", rows[2][1])

	level, err := f.GetCellValue("raw-materials", "L2")
	require.NoError(t, err)
	require.Equal(t, "60", level)
}
