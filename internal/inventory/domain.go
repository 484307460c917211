package inventory

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies one of the inventory families sharing the stock record shape.
type Kind string

const (
	// KindRawMaterial covers purchased raw materials.
	KindRawMaterial Kind = "raw_material"
	// KindFinishedGood covers produced goods ready for dispatch.
	KindFinishedGood Kind = "finished_good"
	// KindTool covers shop-floor tools.
	KindTool Kind = "tool"
	// KindInsert covers cutting inserts.
	KindInsert Kind = "insert"
)

// Kinds lists every supported inventory kind in display order.
var Kinds = []Kind{KindRawMaterial, KindFinishedGood, KindTool, KindInsert}

var kindSlugs = map[string]Kind{
	"raw-materials":  KindRawMaterial,
	"finished-goods": KindFinishedGood,
	"tools":          KindTool,
	"inserts":        KindInsert,
}

// ParseKind resolves both the URL slug ("raw-materials") and the stored value ("raw_material").
func ParseKind(s string) (Kind, error) {
	if k, ok := kindSlugs[s]; ok {
		return k, nil
	}
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown inventory kind %q", ErrValidation, s)
}

// Slug returns the URL form of the kind.
func (k Kind) Slug() string {
	for slug, kind := range kindSlugs {
		if kind == k {
			return slug
		}
	}
	return string(k)
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// Status enumerates approval states used by records and change requests.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// StockClass is the derived stock health of a record.
type StockClass string

const (
	StockNormal StockClass = "normal"
	StockLow    StockClass = "lowStock"
	StockHigh   StockClass = "highStock"
)

// StockRecord is one inventory SKU of any kind.
type StockRecord struct {
	ID                          int64     `json:"id"`
	Kind                        Kind      `json:"kind"`
	SKUCode                     string    `json:"skuCode"`
	ItemName                    string    `json:"itemName"`
	Category                    string    `json:"category"`
	Unit                        string    `json:"unit"`
	ItemType                    string    `json:"itemType"`
	AverageDailyConsumption     float64   `json:"averageDailyConsumption"`
	LeadTimeFromIndentToReceipt float64   `json:"leadTimeFromIndentToReceipt"`
	SafetyFactor                float64   `json:"safetyFactor"`
	MOQ                         float64   `json:"moq"`
	MaterialInTransit           float64   `json:"materialInTransit"`
	MaxLevelIncreasedBy         float64   `json:"maxLevelIncreasedBy"`
	MaxLevel                    int64     `json:"maxLevel"`
	ClosingStock                float64   `json:"closingStock"`
	Status                      Status    `json:"status"`
	EditRequestStatus           Status    `json:"editRequestStatus,omitempty"`
	IsDeleted                   bool      `json:"isDeleted"`
	CreatedBy                   int64     `json:"createdBy"`
	UpdatedBy                   int64     `json:"updatedBy"`
	ModifiedAt                  time.Time `json:"modifiedAt"`
	CreatedAt                   time.Time `json:"createdAt"`
	UpdatedAt                   time.Time `json:"updatedAt"`

	// Computed on read, never persisted.
	StockClass StockClass `json:"stockClass"`
}

// Derive recomputes every derived column from the stored inputs. Every read and
// write path goes through it so maxLevel can never drift from its inputs.
func (r StockRecord) Derive() StockRecord {
	r.MaxLevel = ComputeMaxLevel(r.SafetyFactor, r.AverageDailyConsumption, r.LeadTimeFromIndentToReceipt, r.MaxLevelIncreasedBy)
	r.StockClass = Classify(r.ClosingStock, r.MaxLevel)
	return r
}

// ChangeRequest is a proposed, not yet applied edit to a stock record.
type ChangeRequest struct {
	ID             int64      `json:"id"`
	Kind           Kind       `json:"kind"`
	TargetRecordID int64      `json:"targetRecordId"`
	UpdatedFields  Patch      `json:"updatedFields"`
	Status         Status     `json:"status"`
	RequestedBy    int64      `json:"requestedBy"`
	ReviewedBy     int64      `json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// FieldChange holds the before and after value of one field.
type FieldChange struct {
	Previous any `json:"previous"`
	Current  any `json:"current"`
}

// HistorySource tells which pathway produced a history entry.
type HistorySource string

const (
	HistoryStockUpdate  HistorySource = "stock_update"
	HistoryEditApproval HistorySource = "edit_approval"
)

// HistoryEntry is one applied mutation of a stock record.
type HistoryEntry struct {
	ID             int64                  `json:"id"`
	Kind           Kind                   `json:"kind"`
	TargetRecordID int64                  `json:"targetRecordId"`
	ChangedFields  map[string]FieldChange `json:"changedFields"`
	Source         HistorySource          `json:"source"`
	ChangedBy      int64                  `json:"changedBy"`
	ChangedAt      time.Time              `json:"changedAt"`
}

// DeletedScope controls how soft-deleted rows take part in listings.
type DeletedScope string

const (
	DeletedExclude DeletedScope = ""
	DeletedInclude DeletedScope = "include"
	DeletedOnly    DeletedScope = "only"
)

// ListFilter narrows record listings.
type ListFilter struct {
	Category          string
	ItemType          string
	Search            string
	StockClass        StockClass
	Status            Status
	EditRequestStatus Status
	Deleted           DeletedScope
	Page              int
	PerPage           int
	SortBy            string
	SortDir           string
}

// CreateInput carries the fields accepted when a record is created.
type CreateInput struct {
	SKUCode                     string  `json:"skuCode" validate:"required,max=64"`
	ItemName                    string  `json:"itemName" validate:"required,max=255"`
	Category                    string  `json:"category" validate:"max=128"`
	Unit                        string  `json:"unit" validate:"max=32"`
	ItemType                    string  `json:"itemType" validate:"max=128"`
	AverageDailyConsumption     float64 `json:"averageDailyConsumption" validate:"gte=0"`
	LeadTimeFromIndentToReceipt float64 `json:"leadTimeFromIndentToReceipt" validate:"gte=0"`
	SafetyFactor                float64 `json:"safetyFactor" validate:"gte=0"`
	MOQ                         float64 `json:"moq" validate:"gte=0"`
	MaterialInTransit           float64 `json:"materialInTransit" validate:"gte=0"`
	ClosingStock                float64 `json:"closingStock"`
}

// Summary holds the dashboard counters for one kind.
type Summary struct {
	All             int `json:"all"`
	Categorized     int `json:"categorized"`
	LowStock        int `json:"lowStock"`
	HighStock       int `json:"highStock"`
	RecentlyUpdated int `json:"recentlyUpdated"`
	NewlyAdded      int `json:"newlyAdded"`
	Deleted         int `json:"deleted"`
	PendingEdits    int `json:"pendingEdits"`
}

var (
	// ErrNotFound indicates a missing record or change request.
	ErrNotFound = errors.New("inventory: not found")
	// ErrDuplicateSKU indicates the SKU already exists within the kind.
	ErrDuplicateSKU = errors.New("inventory: SKU code already exists for another item")
	// ErrInvalidState indicates a decision that cannot be applied in the current state.
	ErrInvalidState = errors.New("inventory: invalid state")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("inventory: validation failed")
	// ErrBusy indicates the record lock is held by another writer.
	ErrBusy = errors.New("inventory: record is locked by another operation")
	// ErrDuplicateRequest indicates an idempotency key was already used.
	ErrDuplicateRequest = errors.New("inventory: edit request already submitted")
)

// SequenceError reports a SKU that breaks the per-kind numeric sequence.
type SequenceError struct {
	Reason   string
	LastSKU  string
	Expected int64
}

func (e *SequenceError) Error() string {
	if e.LastSKU != "" && e.Expected > 0 {
		return fmt.Sprintf("%s: last SKU was %s, next must end with %d", e.Reason, e.LastSKU, e.Expected)
	}
	return e.Reason
}
