package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeMaxLevel(t *testing.T) {
	cases := []struct {
		name             string
		sf, adc, lt, pct float64
		want             int64
	}{
		{name: "plain product", sf: 2, adc: 10, lt: 5, want: 100},
		{name: "inflated", sf: 2, adc: 10, lt: 5, pct: 10, want: 110},
		{name: "half rounds up", sf: 0.1, adc: 3, lt: 5, want: 2},
		{name: "inflation applied before rounding", sf: 1, adc: 1.4, lt: 1, pct: 10, want: 2},
		{name: "negative input degrades to zero", sf: -1, adc: 10, lt: 5, pct: 50, want: 0},
		{name: "zero lead time", sf: 2, adc: 10, want: 0},
		{name: "negative percentage ignored", sf: 2, adc: 10, lt: 5, pct: -20, want: 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ComputeMaxLevel(tc.sf, tc.adc, tc.lt, tc.pct))
		})
	}
}

func TestClassify(t *testing.T) {
	require.Equal(t, StockLow, Classify(0.2, 0))
	require.Equal(t, StockNormal, Classify(0.3, 0))
	require.Equal(t, StockNormal, Classify(1000, 0), "no threshold never reports high stock")
	require.Equal(t, StockLow, Classify(29, 100))
	require.Equal(t, StockNormal, Classify(30, 100))
	require.Equal(t, StockNormal, Classify(100, 100))
	require.Equal(t, StockHigh, Classify(101, 100))
	require.Equal(t, StockLow, Classify(-5, 100))
}

func TestDeriveKeepsThresholdConsistent(t *testing.T) {
	rec := StockRecord{SafetyFactor: 1.5, AverageDailyConsumption: 4, LeadTimeFromIndentToReceipt: 10, MaxLevelIncreasedBy: 20, MaxLevel: 9999, ClosingStock: 80}
	rec = rec.Derive()
	require.Equal(t, int64(72), rec.MaxLevel)
	require.Equal(t, StockHigh, rec.StockClass)
}
