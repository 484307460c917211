// Package inventorytest provides an in-memory inventory repository for tests.
package inventorytest

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
)

type store struct {
	records  map[int64]inventory.StockRecord
	requests map[int64]inventory.ChangeRequest
	history  map[int64]inventory.HistoryEntry
}

func (s store) clone() store {
	out := store{
		records:  make(map[int64]inventory.StockRecord, len(s.records)),
		requests: make(map[int64]inventory.ChangeRequest, len(s.requests)),
		history:  make(map[int64]inventory.HistoryEntry, len(s.history)),
	}
	for k, v := range s.records {
		out.records[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.history {
		out.history[k] = v
	}
	return out
}

// MemoryRepository implements inventory.RepositoryPort in memory. Transactions
// are serialised and roll back on error.
type MemoryRepository struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	kinds  map[inventory.Kind]store
	nextID int64
	seq    int64
	now    func() time.Time
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{kinds: make(map[inventory.Kind]store), now: time.Now}
}

// WithClock overrides the clock used for created and updated stamps.
func (r *MemoryRepository) WithClock(fn func() time.Time) *MemoryRepository {
	r.now = fn
	return r
}

func (r *MemoryRepository) kind(k inventory.Kind) store {
	s, ok := r.kinds[k]
	if !ok {
		s = store{
			records:  make(map[int64]inventory.StockRecord),
			requests: make(map[int64]inventory.ChangeRequest),
			history:  make(map[int64]inventory.HistoryEntry),
		}
		r.kinds[k] = s
	}
	return s
}

func (r *MemoryRepository) id() int64 {
	r.nextID++
	return r.nextID
}

// Put stores rec as-is, bypassing the service. Zero ids are assigned.
func (r *MemoryRepository) Put(rec inventory.StockRecord) inventory.StockRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = r.id()
	}
	r.seq++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().Add(time.Duration(r.seq))
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	r.kind(rec.Kind).records[rec.ID] = rec
	return rec.Derive()
}

// WithTx runs fn in a serialised transaction.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := make(map[inventory.Kind]store, len(r.kinds))
	for k, s := range r.kinds {
		snapshot[k] = s.clone()
	}
	nextID := r.nextID
	r.mu.Unlock()

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.mu.Lock()
		r.kinds = snapshot
		r.nextID = nextID
		r.mu.Unlock()
		return err
	}
	return nil
}

// GetRecord implements inventory.RepositoryPort.
func (r *MemoryRepository) GetRecord(ctx context.Context, kind inventory.Kind, id int64) (inventory.StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.kind(kind).records[id]
	if !ok {
		return inventory.StockRecord{}, inventory.ErrNotFound
	}
	return rec.Derive(), nil
}

// LastRecord implements inventory.RepositoryPort.
func (r *MemoryRepository) LastRecord(ctx context.Context, kind inventory.Kind) (inventory.StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last(kind)
}

func (r *MemoryRepository) last(kind inventory.Kind) (inventory.StockRecord, error) {
	var last inventory.StockRecord
	found := false
	for _, rec := range r.kind(kind).records {
		if !found || rec.CreatedAt.After(last.CreatedAt) || (rec.CreatedAt.Equal(last.CreatedAt) && rec.ID > last.ID) {
			last, found = rec, true
		}
	}
	if !found {
		return inventory.StockRecord{}, inventory.ErrNotFound
	}
	return last.Derive(), nil
}

// ListRecords implements inventory.RepositoryPort.
func (r *MemoryRepository) ListRecords(ctx context.Context, kind inventory.Kind, filter inventory.ListFilter) ([]inventory.StockRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []inventory.StockRecord{}
	for _, rec := range r.kind(kind).records {
		rec = rec.Derive()
		if matches(rec, filter) {
			matched = append(matched, rec)
		}
	}
	sortRecords(matched, filter.SortBy, strings.EqualFold(filter.SortDir, "desc"))
	total := len(matched)
	if filter.PerPage > 0 {
		start := (filter.Page - 1) * filter.PerPage
		if start < 0 {
			start = 0
		}
		if start > total {
			start = total
		}
		end := start + filter.PerPage
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

// AllRecords implements inventory.RepositoryPort.
func (r *MemoryRepository) AllRecords(ctx context.Context, kind inventory.Kind, scope inventory.DeletedScope) ([]inventory.StockRecord, error) {
	records, _, err := r.ListRecords(ctx, kind, inventory.ListFilter{Deleted: scope})
	return records, err
}

func matches(rec inventory.StockRecord, f inventory.ListFilter) bool {
	switch f.Deleted {
	case inventory.DeletedOnly:
		if !rec.IsDeleted {
			return false
		}
	case inventory.DeletedInclude:
	default:
		if rec.IsDeleted {
			return false
		}
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.ItemType != "" && rec.ItemType != f.ItemType {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.EditRequestStatus != "" && rec.EditRequestStatus != f.EditRequestStatus {
		return false
	}
	if f.StockClass != "" && rec.StockClass != f.StockClass {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hit := false
		for _, v := range []string{rec.ItemName, rec.Category, rec.SKUCode, rec.ItemType} {
			if strings.Contains(strings.ToLower(v), q) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func sortRecords(records []inventory.StockRecord, by string, desc bool) {
	less := func(a, b inventory.StockRecord) bool { return a.ID < b.ID }
	switch by {
	case "skuCode":
		less = func(a, b inventory.StockRecord) bool { return a.SKUCode < b.SKUCode }
	case "itemName":
		less = func(a, b inventory.StockRecord) bool { return a.ItemName < b.ItemName }
	case "category":
		less = func(a, b inventory.StockRecord) bool { return a.Category < b.Category }
	case "closingStock":
		less = func(a, b inventory.StockRecord) bool { return a.ClosingStock < b.ClosingStock }
	case "maxLevel":
		less = func(a, b inventory.StockRecord) bool { return a.MaxLevel < b.MaxLevel }
	case "createdAt":
		less = func(a, b inventory.StockRecord) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "modifiedAt":
		less = func(a, b inventory.StockRecord) bool { return a.ModifiedAt.Before(b.ModifiedAt) }
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ID < b.ID
	})
}

// GetRequest implements inventory.RepositoryPort.
func (r *MemoryRepository) GetRequest(ctx context.Context, kind inventory.Kind, id int64) (inventory.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.kind(kind).requests[id]
	if !ok {
		return inventory.ChangeRequest{}, inventory.ErrNotFound
	}
	return req, nil
}

// ListRequests implements inventory.RepositoryPort.
func (r *MemoryRepository) ListRequests(ctx context.Context, kind inventory.Kind, status inventory.Status) ([]inventory.ChangeRequest, error) {
	return r.requests(kind, func(req inventory.ChangeRequest) bool {
		return status == "" || req.Status == status
	}), nil
}

// RequestsForRecord implements inventory.RepositoryPort.
func (r *MemoryRepository) RequestsForRecord(ctx context.Context, kind inventory.Kind, recordID int64) ([]inventory.ChangeRequest, error) {
	return r.requests(kind, func(req inventory.ChangeRequest) bool {
		return req.TargetRecordID == recordID
	}), nil
}

func (r *MemoryRepository) requests(kind inventory.Kind, keep func(inventory.ChangeRequest) bool) []inventory.ChangeRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []inventory.ChangeRequest{}
	for _, req := range r.kind(kind).requests {
		if keep(req) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// History implements inventory.RepositoryPort.
func (r *MemoryRepository) History(ctx context.Context, kind inventory.Kind, recordID int64) ([]inventory.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []inventory.HistoryEntry{}
	for _, entry := range r.kind(kind).history {
		if entry.TargetRecordID == recordID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memoryTx struct {
	repo *MemoryRepository
}

func (tx *memoryTx) LockKind(ctx context.Context, kind inventory.Kind) error {
	return nil
}

func (tx *memoryTx) SKUExists(ctx context.Context, kind inventory.Kind, sku string) (bool, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	for _, rec := range tx.repo.kind(kind).records {
		if rec.SKUCode == sku {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) LastRecord(ctx context.Context, kind inventory.Kind) (inventory.StockRecord, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	return tx.repo.last(kind)
}

func (tx *memoryTx) InsertRecord(ctx context.Context, rec inventory.StockRecord) (inventory.StockRecord, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	for _, existing := range tx.repo.kind(rec.Kind).records {
		if existing.SKUCode == rec.SKUCode {
			return inventory.StockRecord{}, inventory.ErrDuplicateSKU
		}
	}
	rec.ID = tx.repo.id()
	tx.repo.seq++
	rec.CreatedAt = tx.repo.now().Add(time.Duration(tx.repo.seq))
	rec.UpdatedAt = rec.CreatedAt
	tx.repo.kind(rec.Kind).records[rec.ID] = rec
	return rec.Derive(), nil
}

func (tx *memoryTx) GetRecordForUpdate(ctx context.Context, kind inventory.Kind, id int64) (inventory.StockRecord, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	rec, ok := tx.repo.kind(kind).records[id]
	if !ok {
		return inventory.StockRecord{}, inventory.ErrNotFound
	}
	return rec.Derive(), nil
}

func (tx *memoryTx) RecordsForUpdate(ctx context.Context, kind inventory.Kind, ids []int64) ([]inventory.StockRecord, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := []inventory.StockRecord{}
	for _, rec := range tx.repo.kind(kind).records {
		if len(ids) == 0 || want[rec.ID] {
			out = append(out, rec.Derive())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) UpdateRecord(ctx context.Context, rec inventory.StockRecord) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	records := tx.repo.kind(rec.Kind).records
	if _, ok := records[rec.ID]; !ok {
		return inventory.ErrNotFound
	}
	rec.UpdatedAt = tx.repo.now()
	records[rec.ID] = rec
	return nil
}

func (tx *memoryTx) SetDeleted(ctx context.Context, kind inventory.Kind, id int64, deleted bool) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	records := tx.repo.kind(kind).records
	rec, ok := records[id]
	if !ok {
		return inventory.ErrNotFound
	}
	rec.IsDeleted = deleted
	records[id] = rec
	return nil
}

func (tx *memoryTx) DeleteRecord(ctx context.Context, kind inventory.Kind, id int64) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	s := tx.repo.kind(kind)
	if _, ok := s.records[id]; !ok {
		return inventory.ErrNotFound
	}
	delete(s.records, id)
	for reqID, req := range s.requests {
		if req.TargetRecordID == id {
			delete(s.requests, reqID)
		}
	}
	for entryID, entry := range s.history {
		if entry.TargetRecordID == id {
			delete(s.history, entryID)
		}
	}
	return nil
}

func (tx *memoryTx) InsertRequest(ctx context.Context, req inventory.ChangeRequest) (inventory.ChangeRequest, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	s := tx.repo.kind(req.Kind)
	if _, ok := s.records[req.TargetRecordID]; !ok {
		return inventory.ChangeRequest{}, inventory.ErrNotFound
	}
	// Round-trip the patch the way the JSONB column does.
	raw, err := json.Marshal(req.UpdatedFields)
	if err != nil {
		return inventory.ChangeRequest{}, err
	}
	var patch inventory.Patch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return inventory.ChangeRequest{}, err
	}
	req.UpdatedFields = patch
	req.ID = tx.repo.id()
	s.requests[req.ID] = req
	return req, nil
}

func (tx *memoryTx) GetRequestForUpdate(ctx context.Context, kind inventory.Kind, id int64) (inventory.ChangeRequest, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	req, ok := tx.repo.kind(kind).requests[id]
	if !ok {
		return inventory.ChangeRequest{}, inventory.ErrNotFound
	}
	return req, nil
}

func (tx *memoryTx) MarkRequest(ctx context.Context, req inventory.ChangeRequest) (bool, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	requests := tx.repo.kind(req.Kind).requests
	current, ok := requests[req.ID]
	if !ok || current.Status != inventory.StatusPending {
		return false, nil
	}
	current.Status = req.Status
	current.ReviewedBy = req.ReviewedBy
	current.ReviewedAt = req.ReviewedAt
	requests[req.ID] = current
	return true, nil
}

func (tx *memoryTx) CountPendingRequests(ctx context.Context, kind inventory.Kind, recordID int64) (int, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	n := 0
	for _, req := range tx.repo.kind(kind).requests {
		if req.TargetRecordID == recordID && req.Status == inventory.StatusPending {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertHistory(ctx context.Context, entry inventory.HistoryEntry) (inventory.HistoryEntry, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	s := tx.repo.kind(entry.Kind)
	if _, ok := s.records[entry.TargetRecordID]; !ok {
		return inventory.HistoryEntry{}, inventory.ErrNotFound
	}
	entry.ID = tx.repo.id()
	s.history[entry.ID] = entry
	return entry, nil
}
