package inventoryhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
	"github.com/odyssey-erp/odyssey-stock/internal/inventory/export"
	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

// InventoryService is the contract the handler drives.
type InventoryService interface {
	CreateRecord(ctx context.Context, kind inventory.Kind, input inventory.CreateInput, actorID int64) (inventory.StockRecord, error)
	GetRecord(ctx context.Context, kind inventory.Kind, id int64) (inventory.StockRecord, error)
	LastRecord(ctx context.Context, kind inventory.Kind) (inventory.StockRecord, error)
	ListRecords(ctx context.Context, kind inventory.Kind, filter inventory.ListFilter) ([]inventory.StockRecord, shared.Pagination, error)
	ExportRecords(ctx context.Context, kind inventory.Kind, filter inventory.ListFilter) ([]inventory.StockRecord, error)
	Summary(ctx context.Context, kind inventory.Kind) (inventory.Summary, error)
	Group(ctx context.Context, kind inventory.Kind, by inventory.GroupBy, filter inventory.ListFilter) ([]inventory.Group, error)
	UpdateStock(ctx context.Context, kind inventory.Kind, id int64, patch inventory.Patch, actorID int64) (inventory.StockRecord, error)
	UpdateStatus(ctx context.Context, kind inventory.Kind, id int64, status inventory.Status, actorID int64) (inventory.StockRecord, error)
	ProposeEdit(ctx context.Context, kind inventory.Kind, input inventory.ProposeInput) (inventory.ChangeRequest, error)
	ResolveEdit(ctx context.Context, kind inventory.Kind, requestID int64, decision inventory.Status, reviewerID int64) (inventory.StockRecord, error)
	ListRequests(ctx context.Context, kind inventory.Kind, status inventory.Status) ([]inventory.ChangeRequest, error)
	RequestsForRecord(ctx context.Context, kind inventory.Kind, recordID int64) ([]inventory.ChangeRequest, error)
	History(ctx context.Context, kind inventory.Kind, recordID int64) ([]inventory.HistoryEntry, error)
	BulkSetInflation(ctx context.Context, kind inventory.Kind, pct float64, actorID int64) (int, error)
	SoftDelete(ctx context.Context, kind inventory.Kind, id int64, actorID int64) error
	Restore(ctx context.Context, kind inventory.Kind, id int64, actorID int64) error
	HardDelete(ctx context.Context, kind inventory.Kind, id int64, actorID int64) error
	SoftDeleteMany(ctx context.Context, kind inventory.Kind, ids []int64, actorID int64) (int, error)
	RestoreMany(ctx context.Context, kind inventory.Kind, ids []int64, actorID int64) (int, error)
	HardDeleteMany(ctx context.Context, kind inventory.Kind, ids []int64, actorID int64) (int, error)
}

// ApprovalLister reads the approval trail of an edit request.
type ApprovalLister interface {
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// Handler serves the inventory JSON API.
type Handler struct {
	logger    *slog.Logger
	service   InventoryService
	approvals ApprovalLister
	now       func() time.Time
}

// NewHandler constructs the inventory HTTP handler. approvals may be nil.
func NewHandler(logger *slog.Logger, service InventoryService, approvals ApprovalLister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, approvals: approvals, now: time.Now}
}

type listResponse struct {
	Data       any                `json:"data"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, page, err := h.service.ListRecords(r.Context(), kindFrom(r), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: records, Pagination: &page})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var input inventory.CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.service.CreateRecord(r.Context(), kindFrom(r), input, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), kindFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleGroup(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	groups, err := h.service.Group(r.Context(), kindFrom(r), inventory.GroupBy(chi.URLParam(r, "by")), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: groups})
}

func (h *Handler) handleLast(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.LastRecord(r.Context(), kindFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv", func(buf *bytes.Buffer, kind inventory.Kind, records []inventory.StockRecord) error {
		return export.WriteRecordsCSV(buf, records)
	})
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", func(buf *bytes.Buffer, kind inventory.Kind, records []inventory.StockRecord) error {
		return export.WriteRecordsXLSX(buf, kind.Slug(), records)
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(*bytes.Buffer, inventory.Kind, []inventory.StockRecord) error) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	kind := kindFrom(r)
	records, err := h.service.ExportRecords(r.Context(), kind, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	buf := &bytes.Buffer{}
	if err := write(buf, kind, records); err != nil {
		h.writeError(w, r, fmt.Errorf("export %s: %w", ext, err))
		return
	}
	filename := fmt.Sprintf("%s-%s.%s", kind.Slug(), h.now().Format("20060102"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type inflationRequest struct {
	Percentage *float64 `json:"percentage"`
}

func (h *Handler) handleInflation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req inflationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Percentage == nil {
		h.writeError(w, r, fmt.Errorf("%w: percentage required", inventory.ErrValidation))
		return
	}
	n, err := h.service.BulkSetInflation(r.Context(), kindFrom(r), *req.Percentage, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"affected": n})
}

type bulkRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var op func(context.Context, inventory.Kind, []int64, int64) (int, error)
	switch chi.URLParam(r, "action") {
	case "delete":
		op = h.service.SoftDeleteMany
	case "restore":
		op = h.service.RestoreMany
	case "purge":
		op = h.service.HardDeleteMany
	default:
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown bulk action")
		return
	}
	var req bulkRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := op(r.Context(), kindFrom(r), req.IDs, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"affected": n})
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	status := inventory.Status(r.URL.Query().Get("status"))
	requests, err := h.service.ListRequests(r.Context(), kindFrom(r), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: requests})
}

type resolveRequest struct {
	Decision inventory.Status `json:"decision"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	requestID, ok := h.pathID(w, r, "requestID")
	if !ok {
		return
	}
	var req resolveRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.service.ResolveEdit(r.Context(), kindFrom(r), requestID, req.Decision, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleApprovals(w http.ResponseWriter, r *http.Request) {
	requestID, ok := h.pathID(w, r, "requestID")
	if !ok {
		return
	}
	if h.approvals == nil {
		httpx.JSON(w, http.StatusOK, listResponse{Data: []shared.ApprovalLog{}})
		return
	}
	module := inventory.ApprovalModule(kindFrom(r))
	logs, err := h.approvals.List(r.Context(), module, shared.ApprovalRef(module, requestID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: logs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.service.GetRecord(r.Context(), kindFrom(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var patch inventory.Patch
	if err := httpx.DecodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.service.UpdateStock(r.Context(), kindFrom(r), id, patch, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

type statusRequest struct {
	Status inventory.Status `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.service.UpdateStatus(r.Context(), kindFrom(r), id, req.Status, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

type proposeRequest struct {
	UpdatedFields inventory.Patch `json:"updatedFields"`
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req proposeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.service.ProposeEdit(r.Context(), kindFrom(r), inventory.ProposeInput{
		RecordID:       id,
		Fields:         req.UpdatedFields,
		ActorID:        actor,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleRecordRequests(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	requests, err := h.service.RequestsForRecord(r.Context(), kindFrom(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: requests})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), kindFrom(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: entries})
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, h.service.SoftDelete)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, h.service.Restore)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, h.service.HardDelete)
}

func (h *Handler) single(w http.ResponseWriter, r *http.Request, op func(context.Context, inventory.Kind, int64, int64) error) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := op(r.Context(), kindFrom(r), id, actor); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrActorRequired.Error())
		return 0, false
	}
	return actor, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func parseFilter(r *http.Request) (inventory.ListFilter, error) {
	q := r.URL.Query()
	filter := inventory.ListFilter{
		Category:          strings.TrimSpace(q.Get("category")),
		ItemType:          strings.TrimSpace(q.Get("itemType")),
		Search:            strings.TrimSpace(q.Get("search")),
		StockClass:        inventory.StockClass(q.Get("stockClass")),
		Status:            inventory.Status(q.Get("status")),
		EditRequestStatus: inventory.Status(q.Get("editRequestStatus")),
		Deleted:           inventory.DeletedScope(q.Get("deleted")),
		SortBy:            q.Get("sortBy"),
		SortDir:           q.Get("sortDir"),
	}
	if filter.Deleted == "exclude" {
		filter.Deleted = inventory.DeletedExclude
	}
	for name, dst := range map[string]*int{"page": &filter.Page, "perPage": &filter.PerPage} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return inventory.ListFilter{}, fmt.Errorf("%w: invalid %s", inventory.ErrValidation, name)
		}
		*dst = n
	}
	return filter, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var seqErr *inventory.SequenceError
	switch {
	case errors.As(err, &seqErr):
		httpx.Problem(w, http.StatusBadRequest, "Invalid SKU", seqErr.Error())
	case errors.Is(err, inventory.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, inventory.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, inventory.ErrDuplicateSKU), errors.Is(err, inventory.ErrDuplicateRequest):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, inventory.ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, inventory.ErrBusy):
		httpx.Problem(w, http.StatusLocked, "Locked", err.Error())
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("inventory request failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", string(kindFrom(r))),
			slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
