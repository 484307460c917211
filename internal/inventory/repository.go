package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-stock/internal/platform/db"
)

// Repository persists stock records, edit requests and history in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockKind(ctx context.Context, kind Kind) error
	SKUExists(ctx context.Context, kind Kind, sku string) (bool, error)
	LastRecord(ctx context.Context, kind Kind) (StockRecord, error)
	InsertRecord(ctx context.Context, rec StockRecord) (StockRecord, error)
	GetRecordForUpdate(ctx context.Context, kind Kind, id int64) (StockRecord, error)
	RecordsForUpdate(ctx context.Context, kind Kind, ids []int64) ([]StockRecord, error)
	UpdateRecord(ctx context.Context, rec StockRecord) error
	SetDeleted(ctx context.Context, kind Kind, id int64, deleted bool) error
	DeleteRecord(ctx context.Context, kind Kind, id int64) error
	InsertRequest(ctx context.Context, req ChangeRequest) (ChangeRequest, error)
	GetRequestForUpdate(ctx context.Context, kind Kind, id int64) (ChangeRequest, error)
	MarkRequest(ctx context.Context, req ChangeRequest) (bool, error)
	CountPendingRequests(ctx context.Context, kind Kind, recordID int64) (int, error)
	InsertHistory(ctx context.Context, entry HistoryEntry) (HistoryEntry, error)
}

type tables struct {
	records  string
	requests string
	history  string
}

var kindTables = map[Kind]tables{
	KindRawMaterial:  {records: "raw_materials", requests: "raw_material_edit_requests", history: "raw_material_history"},
	KindFinishedGood: {records: "finished_goods", requests: "finished_good_edit_requests", history: "finished_good_history"},
	KindTool:         {records: "tools", requests: "tool_edit_requests", history: "tool_history"},
	KindInsert:       {records: "inserts", requests: "insert_edit_requests", history: "insert_history"},
}

func tablesFor(kind Kind) (tables, error) {
	t, ok := kindTables[kind]
	if !ok {
		return tables{}, fmt.Errorf("%w: unknown inventory kind %q", ErrValidation, kind)
	}
	return t, nil
}

const recordColumns = `id, sku_code, item_name, category, unit, item_type, average_daily_consumption,
lead_time_from_indent_to_receipt, safety_factor, moq, material_in_transit, max_level_increased_by, max_level,
closing_stock, status, COALESCE(edit_request_status, ''), is_deleted, created_by, updated_by, modified_at,
created_at, updated_at`

const requestColumns = `id, record_id, updated_fields, status, requested_by, COALESCE(reviewed_by, 0), reviewed_at, created_at`

const historyColumns = `id, record_id, changed_fields, source, changed_by, changed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, kind Kind) (StockRecord, error) {
	var rec StockRecord
	var status, editStatus string
	err := row.Scan(&rec.ID, &rec.SKUCode, &rec.ItemName, &rec.Category, &rec.Unit, &rec.ItemType,
		&rec.AverageDailyConsumption, &rec.LeadTimeFromIndentToReceipt, &rec.SafetyFactor, &rec.MOQ,
		&rec.MaterialInTransit, &rec.MaxLevelIncreasedBy, &rec.MaxLevel, &rec.ClosingStock, &status, &editStatus,
		&rec.IsDeleted, &rec.CreatedBy, &rec.UpdatedBy, &rec.ModifiedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRecord{}, ErrNotFound
		}
		return StockRecord{}, err
	}
	rec.Kind = kind
	rec.Status = Status(status)
	rec.EditRequestStatus = Status(editStatus)
	return rec.Derive(), nil
}

func scanRequest(row rowScanner, kind Kind) (ChangeRequest, error) {
	var req ChangeRequest
	var fields []byte
	var status string
	err := row.Scan(&req.ID, &req.TargetRecordID, &fields, &status, &req.RequestedBy, &req.ReviewedBy, &req.ReviewedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChangeRequest{}, ErrNotFound
		}
		return ChangeRequest{}, err
	}
	if err := json.Unmarshal(fields, &req.UpdatedFields); err != nil {
		return ChangeRequest{}, fmt.Errorf("inventory: decode edit request %d: %w", req.ID, err)
	}
	req.Kind = kind
	req.Status = Status(status)
	return req, nil
}

func scanHistory(row rowScanner, kind Kind) (HistoryEntry, error) {
	var entry HistoryEntry
	var fields []byte
	var source string
	if err := row.Scan(&entry.ID, &entry.TargetRecordID, &fields, &source, &entry.ChangedBy, &entry.ChangedAt); err != nil {
		return HistoryEntry{}, err
	}
	if err := json.Unmarshal(fields, &entry.ChangedFields); err != nil {
		return HistoryEntry{}, fmt.Errorf("inventory: decode history %d: %w", entry.ID, err)
	}
	entry.Kind = kind
	entry.Source = HistorySource(source)
	return entry, nil
}

// WithTx executes the callback inside a read-committed transaction. Writers
// serialise on row locks taken by the *ForUpdate reads and the kind advisory lock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetRecord loads a record by id, deleted or not.
func (r *Repository) GetRecord(ctx context.Context, kind Kind, id int64) (StockRecord, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return StockRecord{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+t.records+` WHERE id=$1`, id)
	return scanRecord(row, kind)
}

// LastRecord returns the most recently created record of the kind.
func (r *Repository) LastRecord(ctx context.Context, kind Kind) (StockRecord, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return StockRecord{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+t.records+` ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanRecord(row, kind)
}

// ListRecords returns one page of records plus the total matching count.
func (r *Repository) ListRecords(ctx context.Context, kind Kind, filter ListFilter) ([]StockRecord, int, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, 0, err
	}
	where, args := buildWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+t.records+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM ` + t.records + where + ` ORDER BY ` + sortOrder(filter.SortBy, filter.SortDir)
	if filter.PerPage > 0 {
		args = append(args, filter.PerPage)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		offset := (filter.Page - 1) * filter.PerPage
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}
	records, err := r.queryRecords(ctx, kind, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// AllRecords returns every record of the kind within the deleted scope.
func (r *Repository) AllRecords(ctx context.Context, kind Kind, scope DeletedScope) ([]StockRecord, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	where, args := buildWhere(ListFilter{Deleted: scope})
	return r.queryRecords(ctx, kind, `SELECT `+recordColumns+` FROM `+t.records+where+` ORDER BY id ASC`, args...)
}

func (r *Repository) queryRecords(ctx context.Context, kind Kind, query string, args ...any) ([]StockRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []StockRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows, kind)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRequest loads an edit request by id.
func (r *Repository) GetRequest(ctx context.Context, kind Kind, id int64) (ChangeRequest, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return ChangeRequest{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM `+t.requests+` WHERE id=$1`, id)
	return scanRequest(row, kind)
}

// ListRequests returns edit requests of the kind, optionally by status, newest first.
func (r *Repository) ListRequests(ctx context.Context, kind Kind, status Status) ([]ChangeRequest, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + requestColumns + ` FROM ` + t.requests
	var args []any
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return r.queryRequests(ctx, kind, query, args...)
}

// RequestsForRecord returns every edit request raised against a record, newest first.
func (r *Repository) RequestsForRecord(ctx context.Context, kind Kind, recordID int64) ([]ChangeRequest, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	return r.queryRequests(ctx, kind, `SELECT `+requestColumns+` FROM `+t.requests+` WHERE record_id=$1 ORDER BY created_at DESC, id DESC`, recordID)
}

func (r *Repository) queryRequests(ctx context.Context, kind Kind, query string, args ...any) ([]ChangeRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	requests := []ChangeRequest{}
	for rows.Next() {
		req, err := scanRequest(rows, kind)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// History returns applied changes of a record, newest first.
func (r *Repository) History(ctx context.Context, kind Kind, recordID int64) ([]HistoryEntry, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+historyColumns+` FROM `+t.history+` WHERE record_id=$1 ORDER BY changed_at DESC, id DESC`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows, kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// likeEscaper makes search text match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildWhere renders the filter as a WHERE clause with positional args.
func buildWhere(filter ListFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	switch filter.Deleted {
	case DeletedOnly:
		conds = append(conds, "is_deleted = true")
	case DeletedInclude:
	default:
		conds = append(conds, "is_deleted = false")
	}
	if filter.Category != "" {
		conds = append(conds, "category = "+arg(filter.Category))
	}
	if filter.ItemType != "" {
		conds = append(conds, "item_type = "+arg(filter.ItemType))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.EditRequestStatus != "" {
		conds = append(conds, "edit_request_status = "+arg(string(filter.EditRequestStatus)))
	}
	if filter.Search != "" {
		p := arg("%"+likeEscaper.Replace(filter.Search)+"%") + ` ESCAPE '\'`
		conds = append(conds, "(item_name ILIKE "+p+" OR category ILIKE "+p+" OR sku_code ILIKE "+p+" OR item_type ILIKE "+p+")")
	}
	switch filter.StockClass {
	case StockLow:
		conds = append(conds, "(((max_level IS NULL OR max_level = 0) AND closing_stock < 0.3) OR (closing_stock / NULLIF(max_level, 0)) < 0.3)")
	case StockHigh:
		conds = append(conds, "(max_level > 0 AND closing_stock > max_level)")
	case StockNormal:
		conds = append(conds, "NOT (((max_level IS NULL OR max_level = 0) AND closing_stock < 0.3) OR COALESCE((closing_stock / NULLIF(max_level, 0)) < 0.3, false) OR (max_level > 0 AND closing_stock > max_level))")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if strings.EqualFold(sortDir, "desc") {
		dir = "DESC"
	}
	switch sortBy {
	case "skuCode":
		return "sku_code " + dir + ", id " + dir
	case "itemName":
		return "item_name " + dir + ", id " + dir
	case "category":
		return "category " + dir + ", id " + dir
	case "closingStock":
		return "closing_stock " + dir + ", id " + dir
	case "maxLevel":
		return "max_level " + dir + ", id " + dir
	case "createdAt":
		return "created_at " + dir + ", id " + dir
	case "modifiedAt":
		return "modified_at " + dir + ", id " + dir
	default:
		return "id " + dir
	}
}
