package inventory

import "github.com/shopspring/decimal"

var (
	lowStockRatio = decimal.RequireFromString("0.3")
	hundred       = decimal.NewFromInt(100)
)

// ComputeMaxLevel derives the reorder threshold. Negative inputs degrade the
// base to zero. The inflation percentage is applied to the unrounded base and
// the result is rounded once.
func ComputeMaxLevel(safetyFactor, averageDailyConsumption, leadTime, increasedByPercent float64) int64 {
	base := decimal.Zero
	if safetyFactor >= 0 && averageDailyConsumption >= 0 && leadTime >= 0 {
		base = decimal.NewFromFloat(safetyFactor).
			Mul(decimal.NewFromFloat(averageDailyConsumption)).
			Mul(decimal.NewFromFloat(leadTime))
	}
	if increasedByPercent > 0 {
		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(increasedByPercent).Div(hundred))
		base = base.Mul(factor)
	}
	return base.Round(0).IntPart()
}

// Classify buckets a closing stock against its threshold. With no threshold the
// 0.3 cut-off is an absolute quantity; otherwise it is a ratio of maxLevel.
func Classify(closingStock float64, maxLevel int64) StockClass {
	stock := decimal.NewFromFloat(closingStock)
	if maxLevel <= 0 {
		if stock.LessThan(lowStockRatio) {
			return StockLow
		}
		return StockNormal
	}
	level := decimal.NewFromInt(maxLevel)
	if stock.Div(level).LessThan(lowStockRatio) {
		return StockLow
	}
	if stock.GreaterThan(level) {
		return StockHigh
	}
	return StockNormal
}
