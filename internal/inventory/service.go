package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRecord(ctx context.Context, kind Kind, id int64) (StockRecord, error)
	LastRecord(ctx context.Context, kind Kind) (StockRecord, error)
	ListRecords(ctx context.Context, kind Kind, filter ListFilter) ([]StockRecord, int, error)
	AllRecords(ctx context.Context, kind Kind, scope DeletedScope) ([]StockRecord, error)
	GetRequest(ctx context.Context, kind Kind, id int64) (ChangeRequest, error)
	ListRequests(ctx context.Context, kind Kind, status Status) ([]ChangeRequest, error)
	RequestsForRecord(ctx context.Context, kind Kind, recordID int64) ([]ChangeRequest, error)
	History(ctx context.Context, kind Kind, recordID int64) ([]HistoryEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records submit and review actions on edit requests.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// IdempotencyPort guards edit proposals against client retries.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Locker serialises writers of the same record across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context), error)
}

// MetricsPort receives domain counters.
type MetricsPort interface {
	EditResolved(kind, decision string)
	HistoryAppended(kind, source string)
}

// ServiceConfig groups optional collaborators. Nil members are skipped.
type ServiceConfig struct {
	Locker      Locker
	Idempotency IdempotencyPort
	Alerts      AlertHandler
	Metrics     MetricsPort
	Cache       SummaryCache
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	approvals   ApprovalPort
	locker      Locker
	idempotency IdempotencyPort
	alerts      AlertHandler
	metrics     MetricsPort
	cache       SummaryCache
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
	summaries   singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, approvals ApprovalPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		approvals:   approvals,
		locker:      cfg.Locker,
		idempotency: cfg.Idempotency,
		alerts:      cfg.Alerts,
		metrics:     cfg.Metrics,
		cache:       cfg.Cache,
		logger:      logger,
		validate:    validator.New(),
		now:         now,
	}
}

const maxPerPage = 500

// CreateRecord validates and inserts a new record. The SKU must continue the
// numeric sequence of the last record created for the kind.
func (s *Service) CreateRecord(ctx context.Context, kind Kind, input CreateInput, actorID int64) (StockRecord, error) {
	if !kind.Valid() {
		return StockRecord{}, fmt.Errorf("%w: unknown inventory kind %q", ErrValidation, kind)
	}
	input.SKUCode = strings.TrimSpace(input.SKUCode)
	input.ItemName = strings.TrimSpace(input.ItemName)
	if err := s.validate.Struct(input); err != nil {
		return StockRecord{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	now := s.now()
	var created StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockKind(ctx, kind); err != nil {
			return err
		}
		exists, err := tx.SKUExists(ctx, kind, input.SKUCode)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateSKU
		}
		var lastSKU string
		last, err := tx.LastRecord(ctx, kind)
		switch {
		case err == nil:
			lastSKU = last.SKUCode
		case !errors.Is(err, ErrNotFound):
			return err
		}
		if err := ValidateNextSKU(lastSKU, input.SKUCode); err != nil {
			return err
		}
		rec := StockRecord{
			Kind:                        kind,
			SKUCode:                     input.SKUCode,
			ItemName:                    input.ItemName,
			Category:                    strings.TrimSpace(input.Category),
			Unit:                        strings.TrimSpace(input.Unit),
			ItemType:                    strings.TrimSpace(input.ItemType),
			AverageDailyConsumption:     input.AverageDailyConsumption,
			LeadTimeFromIndentToReceipt: input.LeadTimeFromIndentToReceipt,
			SafetyFactor:                input.SafetyFactor,
			MOQ:                         input.MOQ,
			MaterialInTransit:           input.MaterialInTransit,
			ClosingStock:                input.ClosingStock,
			Status:                      StatusPending,
			CreatedBy:                   actorID,
			UpdatedBy:                   actorID,
			ModifiedAt:                  now,
		}
		created, err = tx.InsertRecord(ctx, rec.Derive())
		return err
	})
	if err != nil {
		return StockRecord{}, err
	}
	s.invalidate(ctx, kind)
	s.recordAudit(ctx, actorID, "inventory:create", created, map[string]any{"sku_code": created.SKUCode})
	return created, nil
}

// GetRecord returns a record by id, including soft-deleted ones.
func (s *Service) GetRecord(ctx context.Context, kind Kind, id int64) (StockRecord, error) {
	return s.repo.GetRecord(ctx, kind, id)
}

// LastRecord returns the most recently created record of the kind.
func (s *Service) LastRecord(ctx context.Context, kind Kind) (StockRecord, error) {
	return s.repo.LastRecord(ctx, kind)
}

// ListRecords returns a filtered, paginated listing.
func (s *Service) ListRecords(ctx context.Context, kind Kind, filter ListFilter) ([]StockRecord, shared.Pagination, error) {
	if err := validateFilter(filter); err != nil {
		return nil, shared.Pagination{}, err
	}
	if filter.PerPage > maxPerPage {
		filter.PerPage = maxPerPage
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page, filter.PerPage = page.Page, page.PerPage
	records, total, err := s.repo.ListRecords(ctx, kind, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return records, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ExportRecords returns every record matching filter, unpaginated.
func (s *Service) ExportRecords(ctx context.Context, kind Kind, filter ListFilter) ([]StockRecord, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	filter.Page, filter.PerPage = 0, 0
	records, _, err := s.repo.ListRecords(ctx, kind, filter)
	return records, err
}

func validateFilter(filter ListFilter) error {
	switch filter.StockClass {
	case "", StockLow, StockHigh, StockNormal:
	default:
		return fmt.Errorf("%w: unknown stock class %q", ErrValidation, filter.StockClass)
	}
	switch filter.Deleted {
	case DeletedExclude, DeletedInclude, DeletedOnly:
	default:
		return fmt.Errorf("%w: unknown deleted scope %q", ErrValidation, filter.Deleted)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	if filter.EditRequestStatus != "" && !filter.EditRequestStatus.Valid() {
		return fmt.Errorf("%w: unknown edit request status %q", ErrValidation, filter.EditRequestStatus)
	}
	return nil
}

// UpdateStock applies a direct patch of stock quantities and appends one
// history entry. A patch that changes nothing writes nothing.
func (s *Service) UpdateStock(ctx context.Context, kind Kind, id int64, patch Patch, actorID int64) (StockRecord, error) {
	if err := patch.requireDirect(); err != nil {
		return StockRecord{}, err
	}
	release, err := s.lock(ctx, kind, id)
	if err != nil {
		return StockRecord{}, err
	}
	defer release(ctx)

	var before, after StockRecord
	var appended bool
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		before = rec
		after = patch.Apply(rec)
		changes := Diff(before, after)
		if len(changes) == 0 {
			after = before
			return nil
		}
		now := s.now()
		after.UpdatedBy = actorID
		after.ModifiedAt = now
		if err := tx.UpdateRecord(ctx, after); err != nil {
			return err
		}
		_, err = tx.InsertHistory(ctx, HistoryEntry{
			Kind:           kind,
			TargetRecordID: id,
			ChangedFields:  changes,
			Source:         HistoryStockUpdate,
			ChangedBy:      actorID,
			ChangedAt:      now,
		})
		appended = err == nil
		return err
	})
	if err != nil {
		return StockRecord{}, err
	}
	s.invalidate(ctx, kind)
	if appended {
		s.historyAppended(kind, HistoryStockUpdate)
		s.notifyLowStock(ctx, before, after)
	}
	return after, nil
}

// ProposeInput carries an edit proposal.
type ProposeInput struct {
	RecordID       int64
	Fields         Patch
	ActorID        int64
	IdempotencyKey string
}

// ProposeEdit records intent to change gated fields. Nothing on the record
// changes except its cached edit request status.
func (s *Service) ProposeEdit(ctx context.Context, kind Kind, input ProposeInput) (ChangeRequest, error) {
	if err := input.Fields.requireGated(); err != nil {
		return ChangeRequest{}, err
	}
	key := ""
	if s.idempotency != nil && input.IdempotencyKey != "" {
		key = fmt.Sprintf("%s:edit:%s", kind, input.IdempotencyKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory_edit"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ChangeRequest{}, ErrDuplicateRequest
			}
			return ChangeRequest{}, err
		}
	}
	var created ChangeRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, kind, input.RecordID)
		if err != nil {
			return err
		}
		created, err = tx.InsertRequest(ctx, ChangeRequest{
			Kind:           kind,
			TargetRecordID: rec.ID,
			UpdatedFields:  input.Fields,
			Status:         StatusPending,
			RequestedBy:    input.ActorID,
			CreatedAt:      s.now(),
		})
		if err != nil {
			return err
		}
		rec.EditRequestStatus = StatusPending
		return tx.UpdateRecord(ctx, rec)
	})
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return ChangeRequest{}, err
	}
	s.invalidate(ctx, kind)
	s.recordApproval(ctx, kind, created.ID, input.ActorID, shared.ApprovalSubmit, strings.Join(input.Fields.Fields(), ","))
	return created, nil
}

// ResolveEdit approves or rejects a pending request. The request lock, the
// record write, the request stamp and the history entry commit together.
func (s *Service) ResolveEdit(ctx context.Context, kind Kind, requestID int64, decision Status, reviewerID int64) (StockRecord, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return StockRecord{}, fmt.Errorf("%w: decision must be Approved or Rejected", ErrInvalidState)
	}
	pending, err := s.repo.GetRequest(ctx, kind, requestID)
	if err != nil {
		return StockRecord{}, err
	}
	release, err := s.lock(ctx, kind, pending.TargetRecordID)
	if err != nil {
		return StockRecord{}, err
	}
	defer release(ctx)

	var before, after StockRecord
	var appended bool
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, kind, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return fmt.Errorf("%w: request %d is already %s", ErrInvalidState, req.ID, req.Status)
		}
		rec, err := tx.GetRecordForUpdate(ctx, kind, req.TargetRecordID)
		if err != nil {
			return err
		}
		now := s.now()
		before, after = rec, rec
		if decision == StatusApproved {
			after = req.UpdatedFields.Apply(rec)
		}

		req.Status = decision
		req.ReviewedBy = reviewerID
		req.ReviewedAt = &now
		won, err := tx.MarkRequest(ctx, req)
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("%w: request %d was resolved concurrently", ErrInvalidState, req.ID)
		}

		remaining, err := tx.CountPendingRequests(ctx, kind, rec.ID)
		if err != nil {
			return err
		}
		after.EditRequestStatus = decision
		if remaining > 0 {
			after.EditRequestStatus = StatusPending
		}

		changes := Diff(before, after)
		if len(changes) > 0 {
			after.UpdatedBy = reviewerID
			after.ModifiedAt = now
		}
		if err := tx.UpdateRecord(ctx, after); err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		_, err = tx.InsertHistory(ctx, HistoryEntry{
			Kind:           kind,
			TargetRecordID: rec.ID,
			ChangedFields:  changes,
			Source:         HistoryEditApproval,
			ChangedBy:      reviewerID,
			ChangedAt:      now,
		})
		appended = err == nil
		return err
	})
	if err != nil {
		return StockRecord{}, err
	}

	s.invalidate(ctx, kind)
	action := shared.ApprovalReject
	if decision == StatusApproved {
		action = shared.ApprovalApprove
	}
	s.recordApproval(ctx, kind, requestID, reviewerID, action, "")
	if s.metrics != nil {
		s.metrics.EditResolved(string(kind), string(decision))
	}
	if appended {
		s.historyAppended(kind, HistoryEditApproval)
		s.notifyLowStock(ctx, before, after)
	}
	return after, nil
}

// ListRequests returns edit requests of the kind, optionally narrowed by status.
func (s *Service) ListRequests(ctx context.Context, kind Kind, status Status) ([]ChangeRequest, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.ListRequests(ctx, kind, status)
}

// RequestsForRecord returns the edit requests raised against one record.
func (s *Service) RequestsForRecord(ctx context.Context, kind Kind, recordID int64) ([]ChangeRequest, error) {
	if _, err := s.repo.GetRecord(ctx, kind, recordID); err != nil {
		return nil, err
	}
	return s.repo.RequestsForRecord(ctx, kind, recordID)
}

// History returns the applied changes of a record, newest first.
func (s *Service) History(ctx context.Context, kind Kind, recordID int64) ([]HistoryEntry, error) {
	if _, err := s.repo.GetRecord(ctx, kind, recordID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, kind, recordID)
}

// UpdateStatus sets the approval status of the record itself.
func (s *Service) UpdateStatus(ctx context.Context, kind Kind, id int64, status Status, actorID int64) (StockRecord, error) {
	if !status.Valid() {
		return StockRecord{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	release, err := s.lock(ctx, kind, id)
	if err != nil {
		return StockRecord{}, err
	}
	defer release(ctx)

	var updated StockRecord
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetRecordForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		rec.Status = status
		rec.UpdatedBy = actorID
		rec.ModifiedAt = s.now()
		updated = rec
		return tx.UpdateRecord(ctx, rec)
	})
	if err != nil {
		return StockRecord{}, err
	}
	s.invalidate(ctx, kind)
	s.recordAudit(ctx, actorID, "inventory:status", updated, map[string]any{"status": string(status)})
	return updated, nil
}

// inflationTarget reports whether a record holding current must be moved to pct.
func inflationTarget(current, pct float64) bool {
	if pct > 0 {
		return current == 0 || current < pct
	}
	return current != 0
}

// BulkSetInflation sets maxLevelIncreasedBy on every record below pct (or on
// every non-zero record when pct is zero) and re-derives their maxLevel. The
// working set is read once; records created meanwhile are not touched.
func (s *Service) BulkSetInflation(ctx context.Context, kind Kind, pct float64, actorID int64) (int, error) {
	if pct < 0 {
		return 0, fmt.Errorf("%w: percentage must not be negative", ErrValidation)
	}
	var affected int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		records, err := tx.RecordsForUpdate(ctx, kind, nil)
		if err != nil {
			return err
		}
		now := s.now()
		for _, rec := range records {
			if !inflationTarget(rec.MaxLevelIncreasedBy, pct) {
				continue
			}
			rec.MaxLevelIncreasedBy = pct
			rec = rec.Derive()
			rec.UpdatedBy = actorID
			rec.ModifiedAt = now
			if err := tx.UpdateRecord(ctx, rec); err != nil {
				return err
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, kind)
	s.writeAudit(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "inventory:inflation",
		Entity:   string(kind),
		EntityID: "*",
		Meta:     map[string]any{"percentage": pct, "affected": affected},
	})
	s.logger.Info("inventory inflation applied", slog.String("kind", string(kind)), slog.Float64("percentage", pct), slog.Int("affected", affected))
	return affected, nil
}

// SoftDelete hides a record from default listings.
func (s *Service) SoftDelete(ctx context.Context, kind Kind, id int64, actorID int64) error {
	_, err := s.setDeleted(ctx, kind, []int64{id}, true, actorID)
	return err
}

// Restore brings a soft-deleted record back.
func (s *Service) Restore(ctx context.Context, kind Kind, id int64, actorID int64) error {
	_, err := s.setDeleted(ctx, kind, []int64{id}, false, actorID)
	return err
}

// SoftDeleteMany soft-deletes the given ids and returns how many were found.
func (s *Service) SoftDeleteMany(ctx context.Context, kind Kind, ids []int64, actorID int64) (int, error) {
	return s.setDeleted(ctx, kind, ids, true, actorID)
}

// RestoreMany restores the given ids and returns how many were found.
func (s *Service) RestoreMany(ctx context.Context, kind Kind, ids []int64, actorID int64) (int, error) {
	return s.setDeleted(ctx, kind, ids, false, actorID)
}

func (s *Service) setDeleted(ctx context.Context, kind Kind, ids []int64, deleted bool, actorID int64) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", ErrValidation)
	}
	var touched []StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		records, err := tx.RecordsForUpdate(ctx, kind, ids)
		if err != nil {
			return err
		}
		if len(ids) == 1 && len(records) == 0 {
			return ErrNotFound
		}
		for _, rec := range records {
			if err := tx.SetDeleted(ctx, kind, rec.ID, deleted); err != nil {
				return err
			}
			rec.IsDeleted = deleted
			touched = append(touched, rec)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, kind)
	action := "inventory:restore"
	if deleted {
		action = "inventory:delete"
	}
	for _, rec := range touched {
		s.recordAudit(ctx, actorID, action, rec, nil)
	}
	return len(touched), nil
}

// HardDelete permanently removes a record with its edit requests and history.
func (s *Service) HardDelete(ctx context.Context, kind Kind, id int64, actorID int64) error {
	_, err := s.purge(ctx, kind, []int64{id}, actorID)
	return err
}

// HardDeleteMany purges the given ids and returns how many were found.
func (s *Service) HardDeleteMany(ctx context.Context, kind Kind, ids []int64, actorID int64) (int, error) {
	return s.purge(ctx, kind, ids, actorID)
}

func (s *Service) purge(ctx context.Context, kind Kind, ids []int64, actorID int64) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no ids given", ErrValidation)
	}
	var purged []StockRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		records, err := tx.RecordsForUpdate(ctx, kind, ids)
		if err != nil {
			return err
		}
		if len(ids) == 1 && len(records) == 0 {
			return ErrNotFound
		}
		for _, rec := range records {
			if err := tx.DeleteRecord(ctx, kind, rec.ID); err != nil {
				return err
			}
			purged = append(purged, rec)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, kind)
	for _, rec := range purged {
		s.recordAudit(ctx, actorID, "inventory:purge", rec, map[string]any{"sku_code": rec.SKUCode})
	}
	return len(purged), nil
}

func (s *Service) lock(ctx context.Context, kind Kind, id int64) (func(context.Context), error) {
	if s.locker == nil {
		return func(context.Context) {}, nil
	}
	release, err := s.locker.Acquire(ctx, shared.InventoryLockKey(string(kind), id))
	if err != nil {
		if errors.Is(err, shared.ErrLockNotObtained) {
			return nil, ErrBusy
		}
		return nil, err
	}
	return release, nil
}

func (s *Service) invalidate(ctx context.Context, kind Kind) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, kind); err != nil {
		s.logger.Warn("invalidate summary cache", slog.String("kind", string(kind)), slog.Any("error", err))
	}
}

func (s *Service) historyAppended(kind Kind, source HistorySource) {
	if s.metrics != nil {
		s.metrics.HistoryAppended(string(kind), string(source))
	}
}

func (s *Service) notifyLowStock(ctx context.Context, before, after StockRecord) {
	if s.alerts == nil || before.StockClass == StockLow || after.StockClass != StockLow {
		return
	}
	evt := LowStockEvent{
		Kind:         after.Kind,
		RecordID:     after.ID,
		SKUCode:      after.SKUCode,
		ItemName:     after.ItemName,
		ClosingStock: after.ClosingStock,
		MaxLevel:     after.MaxLevel,
		DetectedAt:   s.now(),
	}
	if err := s.alerts.HandleLowStock(ctx, evt); err != nil {
		s.logger.Warn("low stock alert", slog.String("kind", string(after.Kind)), slog.Int64("record_id", after.ID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, rec StockRecord, meta map[string]any) {
	s.writeAudit(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   string(rec.Kind),
		EntityID: fmt.Sprintf("%d", rec.ID),
		Meta:     meta,
	})
}

// writeAudit never fails the caller; the mutation has already committed.
func (s *Service) writeAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("action", log.Action), slog.Any("error", err))
	}
}

// ApprovalModule names the approval trail of edit requests of kind.
func ApprovalModule(kind Kind) string {
	return strings.ToUpper(string(kind)) + "_EDIT"
}

func (s *Service) recordApproval(ctx context.Context, kind Kind, requestID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil || actorID == 0 {
		return
	}
	module := ApprovalModule(kind)
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  module,
		RefID:   shared.ApprovalRef(module, requestID),
		ActorID: actorID,
		Action:  action,
		Note:    note,
		At:      s.now(),
	}); err != nil {
		s.logger.Warn("approval record", slog.String("module", module), slog.Any("error", err))
	}
}
