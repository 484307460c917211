package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Field names accepted in a Patch. They match the JSON names of StockRecord.
const (
	FieldItemName                    = "itemName"
	FieldCategory                    = "category"
	FieldUnit                        = "unit"
	FieldItemType                    = "itemType"
	FieldAverageDailyConsumption     = "averageDailyConsumption"
	FieldLeadTimeFromIndentToReceipt = "leadTimeFromIndentToReceipt"
	FieldSafetyFactor                = "safetyFactor"
	FieldMOQ                         = "moq"
	FieldMaxLevelIncreasedBy         = "maxLevelIncreasedBy"
	FieldClosingStock                = "closingStock"
	FieldMaterialInTransit           = "materialInTransit"
	FieldMaxLevel                    = "maxLevel"
)

type fieldKind int

const (
	textField fieldKind = iota
	quantityField
	signedQuantityField
)

type fieldSpec struct {
	kind  fieldKind
	gated bool
}

// Gated fields only change through an approved edit request; the rest only
// through the stock update pathway.
var patchFields = map[string]fieldSpec{
	FieldItemName:                    {kind: textField, gated: true},
	FieldCategory:                    {kind: textField, gated: true},
	FieldUnit:                        {kind: textField, gated: true},
	FieldItemType:                    {kind: textField, gated: true},
	FieldAverageDailyConsumption:     {kind: quantityField, gated: true},
	FieldLeadTimeFromIndentToReceipt: {kind: quantityField, gated: true},
	FieldSafetyFactor:                {kind: quantityField, gated: true},
	FieldMOQ:                         {kind: quantityField, gated: true},
	FieldMaxLevelIncreasedBy:         {kind: quantityField, gated: true},
	FieldClosingStock:                {kind: signedQuantityField},
	FieldMaterialInTransit:           {kind: quantityField},
}

// Patch is a typed set of field edits. Nil members are left untouched.
type Patch struct {
	ItemName                    *string  `json:"itemName,omitempty"`
	Category                    *string  `json:"category,omitempty"`
	Unit                        *string  `json:"unit,omitempty"`
	ItemType                    *string  `json:"itemType,omitempty"`
	AverageDailyConsumption     *float64 `json:"averageDailyConsumption,omitempty"`
	LeadTimeFromIndentToReceipt *float64 `json:"leadTimeFromIndentToReceipt,omitempty"`
	SafetyFactor                *float64 `json:"safetyFactor,omitempty"`
	MOQ                         *float64 `json:"moq,omitempty"`
	MaxLevelIncreasedBy         *float64 `json:"maxLevelIncreasedBy,omitempty"`
	ClosingStock                *float64 `json:"closingStock,omitempty"`
	MaterialInTransit           *float64 `json:"materialInTransit,omitempty"`
}

// UnmarshalJSON decodes a field bag, rejecting unknown keys, nulls and mistyped
// values. Numeric fields accept JSON numbers or numeric strings, never NaN or Inf.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var out Patch
	for name, value := range raw {
		spec, ok := patchFields[name]
		if !ok {
			return fmt.Errorf("%w: field %q cannot be edited", ErrValidation, name)
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return fmt.Errorf("%w: field %q must not be null", ErrValidation, name)
		}
		switch spec.kind {
		case textField:
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("%w: field %q must be text", ErrValidation, name)
			}
			s = strings.TrimSpace(s)
			if name == FieldItemName && s == "" {
				return fmt.Errorf("%w: field %q must not be empty", ErrValidation, name)
			}
			out.setText(name, s)
		default:
			f, err := parseNumber(value)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%w: field %q must be numeric", ErrValidation, name)
			}
			if spec.kind == quantityField && f < 0 {
				return fmt.Errorf("%w: field %q must not be negative", ErrValidation, name)
			}
			out.setNumber(name, f)
		}
	}
	*p = out
	return nil
}

func parseNumber(value json.RawMessage) (float64, error) {
	value = bytes.TrimSpace(value)
	if len(value) > 0 && value[0] == '"' {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	var f float64
	err := json.Unmarshal(value, &f)
	return f, err
}

func (p *Patch) setText(name, v string) {
	switch name {
	case FieldItemName:
		p.ItemName = &v
	case FieldCategory:
		p.Category = &v
	case FieldUnit:
		p.Unit = &v
	case FieldItemType:
		p.ItemType = &v
	}
}

func (p *Patch) setNumber(name string, v float64) {
	switch name {
	case FieldAverageDailyConsumption:
		p.AverageDailyConsumption = &v
	case FieldLeadTimeFromIndentToReceipt:
		p.LeadTimeFromIndentToReceipt = &v
	case FieldSafetyFactor:
		p.SafetyFactor = &v
	case FieldMOQ:
		p.MOQ = &v
	case FieldMaxLevelIncreasedBy:
		p.MaxLevelIncreasedBy = &v
	case FieldClosingStock:
		p.ClosingStock = &v
	case FieldMaterialInTransit:
		p.MaterialInTransit = &v
	}
}

// Fields lists the names set in the patch, sorted.
func (p Patch) Fields() []string {
	var names []string
	add := func(name string, set bool) {
		if set {
			names = append(names, name)
		}
	}
	add(FieldItemName, p.ItemName != nil)
	add(FieldCategory, p.Category != nil)
	add(FieldUnit, p.Unit != nil)
	add(FieldItemType, p.ItemType != nil)
	add(FieldAverageDailyConsumption, p.AverageDailyConsumption != nil)
	add(FieldLeadTimeFromIndentToReceipt, p.LeadTimeFromIndentToReceipt != nil)
	add(FieldSafetyFactor, p.SafetyFactor != nil)
	add(FieldMOQ, p.MOQ != nil)
	add(FieldMaxLevelIncreasedBy, p.MaxLevelIncreasedBy != nil)
	add(FieldClosingStock, p.ClosingStock != nil)
	add(FieldMaterialInTransit, p.MaterialInTransit != nil)
	sort.Strings(names)
	return names
}

// IsEmpty reports whether no field is set.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// requireGated fails when the patch touches a field outside the edit request pathway.
func (p Patch) requireGated() error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: edit request has no fields", ErrValidation)
	}
	for _, name := range p.Fields() {
		if !patchFields[name].gated {
			return fmt.Errorf("%w: field %q is updated through the stock pathway", ErrValidation, name)
		}
	}
	return nil
}

// requireDirect fails when the patch touches a field that needs approval.
func (p Patch) requireDirect() error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: stock update has no fields", ErrValidation)
	}
	for _, name := range p.Fields() {
		if patchFields[name].gated {
			return fmt.Errorf("%w: field %q requires an approved edit request", ErrValidation, name)
		}
	}
	return nil
}

// Apply merges the patch over rec and re-derives computed columns.
func (p Patch) Apply(rec StockRecord) StockRecord {
	if p.ItemName != nil {
		rec.ItemName = *p.ItemName
	}
	if p.Category != nil {
		rec.Category = *p.Category
	}
	if p.Unit != nil {
		rec.Unit = *p.Unit
	}
	if p.ItemType != nil {
		rec.ItemType = *p.ItemType
	}
	if p.AverageDailyConsumption != nil {
		rec.AverageDailyConsumption = *p.AverageDailyConsumption
	}
	if p.LeadTimeFromIndentToReceipt != nil {
		rec.LeadTimeFromIndentToReceipt = *p.LeadTimeFromIndentToReceipt
	}
	if p.SafetyFactor != nil {
		rec.SafetyFactor = *p.SafetyFactor
	}
	if p.MOQ != nil {
		rec.MOQ = *p.MOQ
	}
	if p.MaxLevelIncreasedBy != nil {
		rec.MaxLevelIncreasedBy = *p.MaxLevelIncreasedBy
	}
	if p.ClosingStock != nil {
		rec.ClosingStock = *p.ClosingStock
	}
	if p.MaterialInTransit != nil {
		rec.MaterialInTransit = *p.MaterialInTransit
	}
	return rec.Derive()
}

var trackedFields = []struct {
	name string
	get  func(StockRecord) any
}{
	{FieldItemName, func(r StockRecord) any { return r.ItemName }},
	{FieldCategory, func(r StockRecord) any { return r.Category }},
	{FieldUnit, func(r StockRecord) any { return r.Unit }},
	{FieldItemType, func(r StockRecord) any { return r.ItemType }},
	{FieldAverageDailyConsumption, func(r StockRecord) any { return r.AverageDailyConsumption }},
	{FieldLeadTimeFromIndentToReceipt, func(r StockRecord) any { return r.LeadTimeFromIndentToReceipt }},
	{FieldSafetyFactor, func(r StockRecord) any { return r.SafetyFactor }},
	{FieldMOQ, func(r StockRecord) any { return r.MOQ }},
	{FieldMaxLevelIncreasedBy, func(r StockRecord) any { return r.MaxLevelIncreasedBy }},
	{FieldMaxLevel, func(r StockRecord) any { return r.MaxLevel }},
	{FieldClosingStock, func(r StockRecord) any { return r.ClosingStock }},
	{FieldMaterialInTransit, func(r StockRecord) any { return r.MaterialInTransit }},
}

// Diff returns the fields whose values differ between before and after.
func Diff(before, after StockRecord) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	for _, f := range trackedFields {
		prev, cur := f.get(before), f.get(after)
		if prev != cur {
			changes[f.name] = FieldChange{Previous: prev, Current: cur}
		}
	}
	return changes
}
