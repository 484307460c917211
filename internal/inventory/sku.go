package inventory

import (
	"regexp"
	"strconv"
)

var skuSuffix = regexp.MustCompile(`(\d+)$`)

// ValidateNextSKU checks that proposed continues the numeric sequence of last,
// the SKU of the most recently created record of the same kind. An empty last
// accepts any numerically suffixed SKU.
func ValidateNextSKU(last, proposed string) error {
	next, ok := TrailingNumber(proposed)
	if !ok {
		return &SequenceError{Reason: "SKU must end with a numeric sequence"}
	}
	if last == "" {
		return nil
	}
	prev, ok := TrailingNumber(last)
	if !ok {
		return &SequenceError{Reason: "SKU must end with a numeric sequence", LastSKU: last}
	}
	if next != prev+1 {
		return &SequenceError{Reason: "Invalid SKU sequence", LastSKU: last, Expected: prev + 1}
	}
	return nil
}

// TrailingNumber parses the numeric suffix of sku.
func TrailingNumber(sku string) (int64, bool) {
	m := skuSuffix.FindStringSubmatch(sku)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
