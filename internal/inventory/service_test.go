package inventory_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
	"github.com/odyssey-erp/odyssey-stock/internal/inventory/inventorytest"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

var fixedNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type auditSpy struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *auditSpy) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type approvalSpy struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (a *approvalSpy) Record(ctx context.Context, log shared.ApprovalLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type alertSpy struct {
	events []inventory.LowStockEvent
}

func (a *alertSpy) HandleLowStock(ctx context.Context, evt inventory.LowStockEvent) error {
	a.events = append(a.events, evt)
	return nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type busyLocker struct{}

func (busyLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	return nil, shared.ErrLockNotObtained
}

type fixture struct {
	repo      *inventorytest.MemoryRepository
	svc       *inventory.Service
	audit     *auditSpy
	approvals *approvalSpy
	alerts    *alertSpy
}

func newFixture(t *testing.T, cfg inventory.ServiceConfig) fixture {
	t.Helper()
	f := fixture{
		repo:      inventorytest.NewMemoryRepository().WithClock(func() time.Time { return fixedNow }),
		audit:     &auditSpy{},
		approvals: &approvalSpy{},
		alerts:    &alertSpy{},
	}
	if cfg.Alerts == nil {
		cfg.Alerts = f.alerts
	}
	cfg.Now = func() time.Time { return fixedNow }
	f.svc = inventory.NewService(f.repo, f.audit, f.approvals, cfg)
	return f
}

func (f fixture) seed(t *testing.T, sku string, stock float64) inventory.StockRecord {
	t.Helper()
	rec, err := f.svc.CreateRecord(context.Background(), inventory.KindRawMaterial, inventory.CreateInput{
		SKUCode:                     sku,
		ItemName:                    "Steel rod " + sku,
		Category:                    "Metals",
		Unit:                        "kg",
		SafetyFactor:                2,
		AverageDailyConsumption:     10,
		LeadTimeFromIndentToReceipt: 5,
		ClosingStock:                stock,
	}, 7)
	require.NoError(t, err)
	return rec
}

func ptr[T any](v T) *T { return &v }

func TestCreateRecordSequence(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()

	first := f.seed(t, "RM-001", 50)
	require.Equal(t, int64(100), first.MaxLevel)
	require.Equal(t, inventory.StatusPending, first.Status)
	require.Equal(t, inventory.StockNormal, first.StockClass)

	_, err := f.svc.CreateRecord(ctx, inventory.KindRawMaterial, inventory.CreateInput{SKUCode: "RM-003", ItemName: "Gap"}, 7)
	var seqErr *inventory.SequenceError
	require.True(t, errors.As(err, &seqErr))
	require.Equal(t, int64(2), seqErr.Expected)

	_, err = f.svc.CreateRecord(ctx, inventory.KindRawMaterial, inventory.CreateInput{SKUCode: "RM-001", ItemName: "Again"}, 7)
	require.ErrorIs(t, err, inventory.ErrDuplicateSKU)

	_, err = f.svc.CreateRecord(ctx, inventory.KindRawMaterial, inventory.CreateInput{SKUCode: "RM-002"}, 7)
	require.ErrorIs(t, err, inventory.ErrValidation)

	_, err = f.svc.CreateRecord(ctx, inventory.KindRawMaterial, inventory.CreateInput{SKUCode: "RM-002", ItemName: "Neg", MOQ: -1}, 7)
	require.ErrorIs(t, err, inventory.ErrValidation)

	second := f.seed(t, "RM-002", 10)
	require.Equal(t, inventory.StockLow, second.StockClass)

	other, err := f.svc.CreateRecord(ctx, inventory.KindTool, inventory.CreateInput{SKUCode: "TL-500", ItemName: "Drill"}, 7)
	require.NoError(t, err, "sequences are kept per kind")
	require.Equal(t, inventory.KindTool, other.Kind)

	last, err := f.svc.LastRecord(ctx, inventory.KindRawMaterial)
	require.NoError(t, err)
	require.Equal(t, "RM-002", last.SKUCode)
}

func TestLastRecordIncludesSoftDeleted(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	f.seed(t, "RM-001", 50)
	rec := f.seed(t, "RM-002", 50)
	require.NoError(t, f.svc.SoftDelete(ctx, inventory.KindRawMaterial, rec.ID, 7))

	_, err := f.svc.CreateRecord(ctx, inventory.KindRawMaterial, inventory.CreateInput{SKUCode: "RM-002", ItemName: "Reuse"}, 7)
	require.ErrorIs(t, err, inventory.ErrDuplicateSKU)
	f.seed(t, "RM-003", 50)
}

func TestProposeEditRecordsIntentOnly(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)

	_, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{ClosingStock: ptr(1.0)}, ActorID: 9})
	require.ErrorIs(t, err, inventory.ErrValidation)
	_, err = f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, ActorID: 9})
	require.ErrorIs(t, err, inventory.ErrValidation)
	_, err = f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: 999, Fields: inventory.Patch{SafetyFactor: ptr(3.0)}, ActorID: 9})
	require.ErrorIs(t, err, inventory.ErrNotFound)

	req, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{SafetyFactor: ptr(3.0)}, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, inventory.StatusPending, req.Status)
	require.Equal(t, int64(9), req.RequestedBy)

	got, err := f.svc.GetRecord(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Equal(t, 2.0, got.SafetyFactor)
	require.Equal(t, int64(100), got.MaxLevel)
	require.Equal(t, inventory.StatusPending, got.EditRequestStatus)

	history, err := f.svc.History(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Empty(t, history)

	require.Len(t, f.approvals.logs, 1)
	require.Equal(t, shared.ApprovalSubmit, f.approvals.logs[0].Action)
	require.Equal(t, "RAW_MATERIAL_EDIT", f.approvals.logs[0].Module)
}

func TestResolveEditApprovalRecomputesThreshold(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)

	_, err := f.svc.BulkSetInflation(ctx, inventory.KindRawMaterial, 10, 7)
	require.NoError(t, err)

	req, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{SafetyFactor: ptr(3.0), Category: ptr("Alloys")}, ActorID: 9})
	require.NoError(t, err)

	updated, err := f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, req.ID, inventory.StatusApproved, 11)
	require.NoError(t, err)
	require.Equal(t, 3.0, updated.SafetyFactor)
	require.Equal(t, "Alloys", updated.Category)
	require.Equal(t, int64(165), updated.MaxLevel)
	require.Equal(t, inventory.StatusApproved, updated.EditRequestStatus)
	require.Equal(t, int64(11), updated.UpdatedBy)

	requests, err := f.svc.RequestsForRecord(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, inventory.StatusApproved, requests[0].Status)
	require.Equal(t, int64(11), requests[0].ReviewedBy)
	require.NotNil(t, requests[0].ReviewedAt)

	history, err := f.svc.History(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, inventory.HistoryEditApproval, history[0].Source)
	require.Equal(t, int64(11), history[0].ChangedBy)
	require.Equal(t, inventory.FieldChange{Previous: int64(110), Current: int64(165)}, history[0].ChangedFields[inventory.FieldMaxLevel])
	require.Equal(t, inventory.FieldChange{Previous: "Metals", Current: "Alloys"}, history[0].ChangedFields[inventory.FieldCategory])

	_, err = f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, req.ID, inventory.StatusRejected, 11)
	require.ErrorIs(t, err, inventory.ErrInvalidState)
}

func TestApprovedSafetyFactorRaisesThresholdWithoutInflation(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)
	require.Equal(t, int64(100), rec.MaxLevel)
	require.Zero(t, rec.MaxLevelIncreasedBy)

	rec, err := f.svc.UpdateStock(ctx, inventory.KindRawMaterial, rec.ID, inventory.Patch{ClosingStock: ptr(25.0)}, 7)
	require.NoError(t, err)
	require.Equal(t, inventory.StockLow, rec.StockClass)

	req, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{SafetyFactor: ptr(3.0)}, ActorID: 9})
	require.NoError(t, err)
	updated, err := f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, req.ID, inventory.StatusApproved, 11)
	require.NoError(t, err)
	require.Equal(t, int64(150), updated.MaxLevel)
	require.Equal(t, 25.0, updated.ClosingStock)
	require.Equal(t, inventory.StockLow, updated.StockClass)
}

func TestResolveEditRejectLeavesRecord(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)

	req, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{ItemName: ptr("Renamed")}, ActorID: 9})
	require.NoError(t, err)

	_, err = f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, req.ID, inventory.StatusPending, 11)
	require.ErrorIs(t, err, inventory.ErrInvalidState)
	_, err = f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, 999, inventory.StatusApproved, 11)
	require.ErrorIs(t, err, inventory.ErrNotFound)

	got, err := f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, req.ID, inventory.StatusRejected, 11)
	require.NoError(t, err)
	require.Equal(t, rec.ItemName, got.ItemName)
	require.Equal(t, inventory.StatusRejected, got.EditRequestStatus)

	history, err := f.svc.History(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Empty(t, history)
	require.Equal(t, shared.ApprovalReject, f.approvals.logs[len(f.approvals.logs)-1].Action)
}

func TestEditRequestStatusTracksRemainingPending(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)

	first, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{Unit: ptr("t")}, ActorID: 9})
	require.NoError(t, err)
	second, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{MOQ: ptr(25.0)}, ActorID: 9})
	require.NoError(t, err)

	got, err := f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, first.ID, inventory.StatusApproved, 11)
	require.NoError(t, err)
	require.Equal(t, inventory.StatusPending, got.EditRequestStatus)

	got, err = f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, second.ID, inventory.StatusRejected, 11)
	require.NoError(t, err)
	require.Equal(t, inventory.StatusRejected, got.EditRequestStatus)
	require.Equal(t, "t", got.Unit)
	require.Equal(t, 0.0, got.MOQ)

	pending, err := f.svc.ListRequests(ctx, inventory.KindRawMaterial, inventory.StatusPending)
	require.NoError(t, err)
	require.Empty(t, pending)
	all, err := f.svc.ListRequests(ctx, inventory.KindRawMaterial, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestConcurrentResolveAppliesOnce(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)
	req, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{SafetyFactor: ptr(4.0)}, ActorID: 9})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ResolveEdit(ctx, inventory.KindRawMaterial, req.ID, inventory.StatusApproved, int64(20+i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, inventory.ErrInvalidState)
	}
	require.Equal(t, 1, succeeded)

	history, err := f.svc.History(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestUpdateStockAppendsHistory(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)

	_, err := f.svc.UpdateStock(ctx, inventory.KindRawMaterial, rec.ID, inventory.Patch{ItemName: ptr("x")}, 7)
	require.ErrorIs(t, err, inventory.ErrValidation)

	updated, err := f.svc.UpdateStock(ctx, inventory.KindRawMaterial, rec.ID, inventory.Patch{ClosingStock: ptr(20.0), MaterialInTransit: ptr(0.0)}, 8)
	require.NoError(t, err)
	require.Equal(t, 20.0, updated.ClosingStock)
	require.Equal(t, inventory.StockLow, updated.StockClass)

	history, err := f.svc.History(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, inventory.HistoryStockUpdate, history[0].Source)
	require.Equal(t, map[string]inventory.FieldChange{
		inventory.FieldClosingStock: {Previous: 50.0, Current: 20.0},
	}, history[0].ChangedFields)

	_, err = f.svc.UpdateStock(ctx, inventory.KindRawMaterial, rec.ID, inventory.Patch{ClosingStock: ptr(20.0)}, 8)
	require.NoError(t, err)
	history, err = f.svc.History(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1, "unchanged stock writes nothing")

	_, err = f.svc.UpdateStock(ctx, inventory.KindRawMaterial, rec.ID, inventory.Patch{ClosingStock: ptr(-4.0)}, 8)
	require.NoError(t, err)
	history, err = f.svc.History(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, -4.0, history[0].ChangedFields[inventory.FieldClosingStock].Current)

	require.Len(t, f.alerts.events, 1, "only the transition into low stock alerts")
	require.Equal(t, "RM-001", f.alerts.events[0].SKUCode)
}

func TestBulkSetInflation(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	a := f.repo.Put(inventory.StockRecord{Kind: inventory.KindInsert, SKUCode: "IN-1", SafetyFactor: 1, AverageDailyConsumption: 10, LeadTimeFromIndentToReceipt: 10})
	b := f.repo.Put(inventory.StockRecord{Kind: inventory.KindInsert, SKUCode: "IN-2", SafetyFactor: 1, AverageDailyConsumption: 10, LeadTimeFromIndentToReceipt: 10, MaxLevelIncreasedBy: 5})
	c := f.repo.Put(inventory.StockRecord{Kind: inventory.KindInsert, SKUCode: "IN-3", SafetyFactor: 1, AverageDailyConsumption: 10, LeadTimeFromIndentToReceipt: 10, MaxLevelIncreasedBy: 20, IsDeleted: true})

	_, err := f.svc.BulkSetInflation(ctx, inventory.KindInsert, -1, 7)
	require.ErrorIs(t, err, inventory.ErrValidation)

	n, err := f.svc.BulkSetInflation(ctx, inventory.KindInsert, 10, 7)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	for id, want := range map[int64]int64{a.ID: 110, b.ID: 110, c.ID: 120} {
		got, err := f.svc.GetRecord(ctx, inventory.KindInsert, id)
		require.NoError(t, err)
		require.Equal(t, want, got.MaxLevel)
	}

	n, err = f.svc.BulkSetInflation(ctx, inventory.KindInsert, 0, 7)
	require.NoError(t, err)
	require.Equal(t, 3, n, "soft-deleted rows are part of the working set")
	got, err := f.svc.GetRecord(ctx, inventory.KindInsert, c.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.MaxLevel)
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, shared.AuditLog) error {
	return errors.New("audit_logs unavailable")
}

func TestAuditFailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	repo := inventorytest.NewMemoryRepository().WithClock(func() time.Time { return fixedNow })
	svc := inventory.NewService(repo, failingAudit{}, nil, inventory.ServiceConfig{
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
		Now:    func() time.Time { return fixedNow },
	})
	repo.Put(inventory.StockRecord{Kind: inventory.KindInsert, SKUCode: "IN-1", SafetyFactor: 1, AverageDailyConsumption: 10, LeadTimeFromIndentToReceipt: 10})

	n, err := svc.BulkSetInflation(context.Background(), inventory.KindInsert, 10, 7)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Contains(t, buf.String(), "inventory:inflation")
	require.Contains(t, buf.String(), "audit_logs unavailable")
}

func TestSoftDeleteRoundTripKeepsRecord(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	old := fixedNow.AddDate(0, -1, 0)
	rec := f.repo.Put(inventory.StockRecord{
		Kind: inventory.KindTool, SKUCode: "TL-001", ItemName: "Reamer", Category: "Cutting",
		SafetyFactor: 2, AverageDailyConsumption: 10, LeadTimeFromIndentToReceipt: 5, ClosingStock: 60,
		UpdatedBy: 7, CreatedBy: 7, ModifiedAt: old, CreatedAt: old,
	})
	before, err := f.svc.GetRecord(ctx, inventory.KindTool, rec.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.SoftDelete(ctx, inventory.KindTool, rec.ID, 99))
	deleted, err := f.svc.GetRecord(ctx, inventory.KindTool, rec.ID)
	require.NoError(t, err)
	require.True(t, deleted.IsDeleted)
	require.Equal(t, int64(7), deleted.UpdatedBy)
	require.Equal(t, old, deleted.ModifiedAt)

	require.NoError(t, f.svc.Restore(ctx, inventory.KindTool, rec.ID, 99))
	after, err := f.svc.GetRecord(ctx, inventory.KindTool, rec.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)

	summary, err := f.svc.Summary(ctx, inventory.KindTool)
	require.NoError(t, err)
	require.Zero(t, summary.RecentlyUpdated)

	f.audit.mu.Lock()
	defer f.audit.mu.Unlock()
	require.Len(t, f.audit.logs, 2)
	require.Equal(t, "inventory:delete", f.audit.logs[0].Action)
	require.Equal(t, "inventory:restore", f.audit.logs[1].Action)
	require.Equal(t, int64(99), f.audit.logs[1].ActorID)
}

func TestDeleteRestorePurge(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)
	other := f.seed(t, "RM-002", 50)
	_, err := f.svc.UpdateStock(ctx, inventory.KindRawMaterial, rec.ID, inventory.Patch{ClosingStock: ptr(40.0)}, 7)
	require.NoError(t, err)
	_, err = f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{Unit: ptr("t")}, ActorID: 9})
	require.NoError(t, err)

	require.NoError(t, f.svc.SoftDelete(ctx, inventory.KindRawMaterial, rec.ID, 7))
	list, page, err := f.svc.ListRecords(ctx, inventory.KindRawMaterial, inventory.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, page.Total)

	deleted, _, err := f.svc.ListRecords(ctx, inventory.KindRawMaterial, inventory.ListFilter{Deleted: inventory.DeletedOnly})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, rec.ID, deleted[0].ID)

	got, err := f.svc.GetRecord(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.True(t, got.IsDeleted)

	require.NoError(t, f.svc.Restore(ctx, inventory.KindRawMaterial, rec.ID, 7))
	list, _, err = f.svc.ListRecords(ctx, inventory.KindRawMaterial, inventory.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, f.svc.HardDelete(ctx, inventory.KindRawMaterial, rec.ID, 7))
	_, err = f.svc.GetRecord(ctx, inventory.KindRawMaterial, rec.ID)
	require.ErrorIs(t, err, inventory.ErrNotFound)
	history, err := f.repo.History(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Empty(t, history)
	requests, err := f.repo.RequestsForRecord(ctx, inventory.KindRawMaterial, rec.ID)
	require.NoError(t, err)
	require.Empty(t, requests)

	require.ErrorIs(t, f.svc.HardDelete(ctx, inventory.KindRawMaterial, rec.ID, 7), inventory.ErrNotFound)
	n, err := f.svc.SoftDeleteMany(ctx, inventory.KindRawMaterial, []int64{other.ID, 999}, 7)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = f.svc.RestoreMany(ctx, inventory.KindRawMaterial, []int64{other.ID}, 7)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = f.svc.HardDeleteMany(ctx, inventory.KindRawMaterial, nil, 7)
	require.ErrorIs(t, err, inventory.ErrValidation)

	actions := map[string]int{}
	for _, log := range f.audit.logs {
		actions[log.Action]++
	}
	require.Equal(t, 2, actions["inventory:delete"])
	require.Equal(t, 2, actions["inventory:restore"])
	require.Equal(t, 1, actions["inventory:purge"])
}

func TestListRecordsFilters(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{})
	ctx := context.Background()
	f.seed(t, "RM-001", 10)
	f.seed(t, "RM-002", 50)
	f.seed(t, "RM-003", 150)
	f.repo.Put(inventory.StockRecord{Kind: inventory.KindRawMaterial, SKUCode: "RM-004", ItemName: "Loose washers", ClosingStock: 0.2})

	low, _, err := f.svc.ListRecords(ctx, inventory.KindRawMaterial, inventory.ListFilter{StockClass: inventory.StockLow})
	require.NoError(t, err)
	require.Len(t, low, 2)

	high, _, err := f.svc.ListRecords(ctx, inventory.KindRawMaterial, inventory.ListFilter{StockClass: inventory.StockHigh})
	require.NoError(t, err)
	require.Len(t, high, 1)
	require.Equal(t, "RM-003", high[0].SKUCode)

	found, _, err := f.svc.ListRecords(ctx, inventory.KindRawMaterial, inventory.ListFilter{Search: "washer"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	paged, page, err := f.svc.ListRecords(ctx, inventory.KindRawMaterial, inventory.ListFilter{Page: 2, PerPage: 3, SortBy: "closingStock", SortDir: "desc"})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, "RM-004", paged[0].SKUCode)
	require.Equal(t, 4, page.Total)
	require.Equal(t, 2, page.TotalPages)

	_, _, err = f.svc.ListRecords(ctx, inventory.KindRawMaterial, inventory.ListFilter{StockClass: "empty"})
	require.ErrorIs(t, err, inventory.ErrValidation)
}

func TestSummaryAndGroups(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, inventory.ServiceConfig{Cache: inventory.NewCache(client, time.Minute)})
	ctx := context.Background()
	f.seed(t, "RM-001", 10)
	f.seed(t, "RM-002", 150)
	f.repo.Put(inventory.StockRecord{Kind: inventory.KindRawMaterial, SKUCode: "RM-003", ItemName: "Old stock", ClosingStock: 5, CreatedAt: fixedNow.AddDate(0, -2, 0), ModifiedAt: fixedNow.AddDate(0, -2, 0)})
	gone := f.repo.Put(inventory.StockRecord{Kind: inventory.KindRawMaterial, SKUCode: "RM-004", ItemName: "Gone", Category: "Plastics", IsDeleted: true})
	_, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: gone.ID, Fields: inventory.Patch{Unit: ptr("pcs")}, ActorID: 9})
	require.NoError(t, err)

	summary, err := f.svc.Summary(ctx, inventory.KindRawMaterial)
	require.NoError(t, err)
	// Two active records share "Metals"; the deleted "Plastics" one does not count.
	require.Equal(t, inventory.Summary{All: 3, Categorized: 1, LowStock: 1, HighStock: 1, RecentlyUpdated: 2, NewlyAdded: 2, Deleted: 1, PendingEdits: 1}, summary)

	// Served from cache until a write bumps the version.
	f.repo.Put(inventory.StockRecord{Kind: inventory.KindRawMaterial, SKUCode: "RM-005", ItemName: "Direct insert"})
	summary, err = f.svc.Summary(ctx, inventory.KindRawMaterial)
	require.NoError(t, err)
	require.Equal(t, 3, summary.All)

	require.NoError(t, f.svc.Restore(ctx, inventory.KindRawMaterial, gone.ID, 7))
	summary, err = f.svc.Summary(ctx, inventory.KindRawMaterial)
	require.NoError(t, err)
	require.Equal(t, 5, summary.All)
	require.Equal(t, 0, summary.Deleted)
	require.Equal(t, 2, summary.Categorized)

	groups, err := f.svc.Group(ctx, inventory.KindRawMaterial, inventory.GroupByCategory, inventory.ListFilter{})
	require.NoError(t, err)
	require.Len(t, groups, 3)
	require.Equal(t, "Metals", groups[0].Key)
	require.Equal(t, 2, groups[0].Count)
	require.Equal(t, "Plastics", groups[1].Key)
	require.Equal(t, "Uncategorized", groups[2].Key)
	require.Equal(t, 2, groups[2].Count)

	groups, err = f.svc.Group(ctx, inventory.KindRawMaterial, inventory.GroupByCreatedAt, inventory.ListFilter{})
	require.NoError(t, err)
	require.Equal(t, "2025-03-10", groups[0].Key)
	require.Equal(t, "2025-01-10", groups[1].Key)

	_, err = f.svc.Group(ctx, inventory.KindRawMaterial, "colour", inventory.ListFilter{})
	require.ErrorIs(t, err, inventory.ErrValidation)
}

func TestProposeEditIdempotencyKey(t *testing.T) {
	idem := &memoryIdempotency{keys: map[string]bool{}}
	f := newFixture(t, inventory.ServiceConfig{Idempotency: idem})
	ctx := context.Background()
	rec := f.seed(t, "RM-001", 50)

	input := inventory.ProposeInput{RecordID: rec.ID, Fields: inventory.Patch{MOQ: ptr(10.0)}, ActorID: 9, IdempotencyKey: "abc"}
	_, err := f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, input)
	require.NoError(t, err)
	_, err = f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, input)
	require.ErrorIs(t, err, inventory.ErrDuplicateRequest)

	_, err = f.svc.ProposeEdit(ctx, inventory.KindRawMaterial, inventory.ProposeInput{RecordID: 999, Fields: inventory.Patch{MOQ: ptr(1.0)}, ActorID: 9, IdempotencyKey: "missing"})
	require.ErrorIs(t, err, inventory.ErrNotFound)
	require.False(t, idem.keys["raw_material:edit:missing"], "failed proposals release their key")
}

func TestLockedRecordReportsBusy(t *testing.T) {
	f := newFixture(t, inventory.ServiceConfig{Locker: busyLocker{}})
	rec := f.repo.Put(inventory.StockRecord{Kind: inventory.KindTool, SKUCode: "TL-1", ItemName: "Drill"})
	_, err := f.svc.UpdateStock(context.Background(), inventory.KindTool, rec.ID, inventory.Patch{ClosingStock: ptr(3.0)}, 7)
	require.ErrorIs(t, err, inventory.ErrBusy)
}

func TestRedisLockSerialisesWriters(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := shared.NewRecordLocker(client, time.Minute, 0)

	f := newFixture(t, inventory.ServiceConfig{Locker: locker})
	ctx := context.Background()
	rec := f.repo.Put(inventory.StockRecord{Kind: inventory.KindTool, SKUCode: "TL-1", ItemName: "Drill"})

	release, err := locker.Acquire(ctx, shared.InventoryLockKey(string(inventory.KindTool), rec.ID))
	require.NoError(t, err)
	_, err = f.svc.UpdateStock(ctx, inventory.KindTool, rec.ID, inventory.Patch{ClosingStock: ptr(3.0)}, 7)
	require.ErrorIs(t, err, inventory.ErrBusy)

	release(ctx)
	updated, err := f.svc.UpdateStock(ctx, inventory.KindTool, rec.ID, inventory.Patch{ClosingStock: ptr(3.0)}, 7)
	require.NoError(t, err)
	require.Equal(t, 3.0, updated.ClosingStock)
}
