package inventory

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txRepository struct {
	tx pgx.Tx
}

// LockKind serialises creations within one kind so the SKU sequence check and
// the insert see the same "last" record.
func (r *txRepository) LockKind(ctx context.Context, kind Kind) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "inventory:"+string(kind))
	return err
}

func (r *txRepository) SKUExists(ctx context.Context, kind Kind, sku string) (bool, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+t.records+` WHERE sku_code=$1)`, sku).Scan(&exists)
	return exists, err
}

func (r *txRepository) LastRecord(ctx context.Context, kind Kind) (StockRecord, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return StockRecord{}, err
	}
	row := r.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+t.records+` ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanRecord(row, kind)
}

func (r *txRepository) InsertRecord(ctx context.Context, rec StockRecord) (StockRecord, error) {
	t, err := tablesFor(rec.Kind)
	if err != nil {
		return StockRecord{}, err
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO `+t.records+` (sku_code, item_name, category, unit, item_type,
average_daily_consumption, lead_time_from_indent_to_receipt, safety_factor, moq, material_in_transit,
max_level_increased_by, max_level, closing_stock, status, edit_request_status, is_deleted, created_by, updated_by,
modified_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NULL,false,$15,$15,$16,$16,$16)
RETURNING `+recordColumns,
		rec.SKUCode, rec.ItemName, rec.Category, rec.Unit, rec.ItemType, rec.AverageDailyConsumption,
		rec.LeadTimeFromIndentToReceipt, rec.SafetyFactor, rec.MOQ, rec.MaterialInTransit, rec.MaxLevelIncreasedBy,
		rec.MaxLevel, rec.ClosingStock, string(rec.Status), rec.CreatedBy, rec.ModifiedAt)
	created, err := scanRecord(row, rec.Kind)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return StockRecord{}, ErrDuplicateSKU
		}
		return StockRecord{}, err
	}
	return created, nil
}

func (r *txRepository) GetRecordForUpdate(ctx context.Context, kind Kind, id int64) (StockRecord, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return StockRecord{}, err
	}
	row := r.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+t.records+` WHERE id=$1 FOR UPDATE`, id)
	return scanRecord(row, kind)
}

// RecordsForUpdate locks the given ids, or every record of the kind when ids is empty.
func (r *txRepository) RecordsForUpdate(ctx context.Context, kind Kind, ids []int64) ([]StockRecord, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + recordColumns + ` FROM ` + t.records
	var args []any
	if len(ids) > 0 {
		query += ` WHERE id = ANY($1)`
		args = append(args, ids)
	}
	query += ` ORDER BY id ASC FOR UPDATE`
	rows, err := r.tx.Query(ctx, query, args...)
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

func (r *txRepository) UpdateRecord(ctx context.Context, rec StockRecord) error {
	t, err := tablesFor(rec.Kind)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE `+t.records+` SET item_name=$1, category=$2, unit=$3, item_type=$4,
average_daily_consumption=$5, lead_time_from_indent_to_receipt=$6, safety_factor=$7, moq=$8, material_in_transit=$9,
max_level_increased_by=$10, max_level=$11, closing_stock=$12, status=$13, edit_request_status=NULLIF($14, ''),
is_deleted=$15, updated_by=$16, modified_at=$17, updated_at=NOW()
WHERE id=$18`,
		rec.ItemName, rec.Category, rec.Unit, rec.ItemType, rec.AverageDailyConsumption, rec.LeadTimeFromIndentToReceipt,
		rec.SafetyFactor, rec.MOQ, rec.MaterialInTransit, rec.MaxLevelIncreasedBy, rec.MaxLevel, rec.ClosingStock,
		string(rec.Status), string(rec.EditRequestStatus), rec.IsDeleted, rec.UpdatedBy, rec.ModifiedAt, rec.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDeleted flips only the soft-delete flag; audit stamps stay as they were.
func (r *txRepository) SetDeleted(ctx context.Context, kind Kind, id int64, deleted bool) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE `+t.records+` SET is_deleted=$1 WHERE id=$2`, deleted, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecord removes the record; edit requests and history go with it through
// ON DELETE CASCADE, the explicit deletes keep it true without the constraint.
func (r *txRepository) DeleteRecord(ctx context.Context, kind Kind, id int64) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM `+t.history+` WHERE record_id=$1`, id); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM `+t.requests+` WHERE record_id=$1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM `+t.records+` WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertRequest(ctx context.Context, req ChangeRequest) (ChangeRequest, error) {
	t, err := tablesFor(req.Kind)
	if err != nil {
		return ChangeRequest{}, err
	}
	fields, err := json.Marshal(req.UpdatedFields)
	if err != nil {
		return ChangeRequest{}, err
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO `+t.requests+` (record_id, updated_fields, status, requested_by, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING `+requestColumns, req.TargetRecordID, fields, string(req.Status), req.RequestedBy, req.CreatedAt)
	return scanRequest(row, req.Kind)
}

func (r *txRepository) GetRequestForUpdate(ctx context.Context, kind Kind, id int64) (ChangeRequest, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return ChangeRequest{}, err
	}
	row := r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM `+t.requests+` WHERE id=$1 FOR UPDATE`, id)
	return scanRequest(row, kind)
}

// MarkRequest stamps the decision only while the request is still pending and
// reports whether this call won.
func (r *txRepository) MarkRequest(ctx context.Context, req ChangeRequest) (bool, error) {
	t, err := tablesFor(req.Kind)
	if err != nil {
		return false, err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE `+t.requests+` SET status=$1, reviewed_by=$2, reviewed_at=$3
WHERE id=$4 AND status='Pending'`, string(req.Status), req.ReviewedBy, req.ReviewedAt, req.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepository) CountPendingRequests(ctx context.Context, kind Kind, recordID int64) (int, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+t.requests+` WHERE record_id=$1 AND status='Pending'`, recordID).Scan(&n)
	return n, err
}

func (r *txRepository) InsertHistory(ctx context.Context, entry HistoryEntry) (HistoryEntry, error) {
	t, err := tablesFor(entry.Kind)
	if err != nil {
		return HistoryEntry{}, err
	}
	fields, err := json.Marshal(entry.ChangedFields)
	if err != nil {
		return HistoryEntry{}, err
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO `+t.history+` (record_id, changed_fields, source, changed_by, changed_at)
VALUES ($1,$2,$3,$4,$5) RETURNING `+historyColumns, entry.TargetRecordID, fields, string(entry.Source), entry.ChangedBy, entry.ChangedAt)
	return scanHistory(row, entry.Kind)
}
