package inventoryhttp

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
	"github.com/odyssey-erp/odyssey-stock/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-stock/internal/shared"
)

type kindContextKey struct{}

// MountRoutes registers the inventory API under /{kind}.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	exportLimiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached")
		}),
	)

	r.Route("/{kind}", func(r chi.Router) {
		r.Use(kindCtx)

		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/summary", h.handleSummary)
		r.Get("/groups/{by}", h.handleGroup)
		r.Get("/last", h.handleLast)
		r.Group(func(r chi.Router) {
			r.Use(exportLimiter)
			r.Get("/export.csv", h.handleExportCSV)
			r.Get("/export.xlsx", h.handleExportXLSX)
		})
		r.Post("/inflation", h.handleInflation)
		r.Post("/bulk/{action}", h.handleBulk)

		r.Get("/edit-requests", h.handleListRequests)
		r.Post("/edit-requests/{requestID}/resolve", h.handleResolve)
		r.Get("/edit-requests/{requestID}/approvals", h.handleApprovals)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/stock", h.handleUpdateStock)
			r.Patch("/status", h.handleUpdateStatus)
			r.Post("/edit-requests", h.handlePropose)
			r.Get("/edit-requests", h.handleRecordRequests)
			r.Get("/history", h.handleHistory)
			r.Delete("/", h.handleSoftDelete)
			r.Post("/restore", h.handleRestore)
			r.Delete("/purge", h.handlePurge)
		})
	})
}

func kindCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, err := inventory.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), kindContextKey{}, kind)))
	})
}

func kindFrom(r *http.Request) inventory.Kind {
	kind, _ := r.Context().Value(kindContextKey{}).(inventory.Kind)
	return kind
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor := shared.ActorFromContext(r.Context()); actor != 0 {
		return "actor:" + strconv.FormatInt(actor, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
