package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-stock/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-stock/internal/jobs"
)

type stubLister struct {
	byKind map[inventory.Kind][]inventory.StockRecord
	err    error
	calls  []inventory.Kind
}

func (s *stubLister) LowStock(ctx context.Context, kind inventory.Kind) ([]inventory.StockRecord, error) {
	s.calls = append(s.calls, kind)
	if s.err != nil {
		return nil, s.err
	}
	return s.byKind[kind], nil
}

type stubMail struct {
	sent []SendEmailPayload
	err  error
}

func (s *stubMail) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, payload)
	return &asynq.TaskInfo{ID: "1"}, nil
}

func (s *stubMail) Send(ctx context.Context, msg SendEmailPayload) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestLowStockScanEnqueuesDigest(t *testing.T) {
	lister := &stubLister{byKind: map[inventory.Kind][]inventory.StockRecord{
		inventory.KindTool: {{SKUCode: "T-004", ItemName: "Drill", ClosingStock: 1, MaxLevel: 40}},
	}}
	mail := &stubMail{}
	job := NewLowStockScanJob(lister, mail, "stores@example.com", nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC) }

	task, err := NewLowStockScanTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, inventory.Kinds, lister.calls)
	require.Len(t, mail.sent, 1)
	require.Equal(t, "stores@example.com", mail.sent[0].To)
	require.Equal(t, "Low stock digest 2025-03-10: 1 items", mail.sent[0].Subject)
	require.Contains(t, mail.sent[0].Body, "tools (1)")
	require.Contains(t, mail.sent[0].Body, "T-004")
}

func TestLowStockScanQuietWhenNothingLow(t *testing.T) {
	lister := &stubLister{}
	mail := &stubMail{}
	job := NewLowStockScanJob(lister, mail, "stores@example.com", nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewLowStockScanTask(inventory.KindInsert)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []inventory.Kind{inventory.KindInsert}, lister.calls)
	require.Empty(t, mail.sent)
}

func TestLowStockScanErrors(t *testing.T) {
	job := NewLowStockScanJob(&stubLister{err: errors.New("db down")}, nil, "", nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewLowStockScanTask()
	require.NoError(t, err)
	require.ErrorContains(t, job.Handle(context.Background(), task), "db down")

	bad := asynq.NewTask(TaskInventoryLowStockScan, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func TestEmailJob(t *testing.T) {
	sender := &stubMail{}
	job := &EmailJob{Sender: sender}

	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com", Subject: "hi", Body: "body"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sender.sent, 1)

	task, err = NewSendEmailTask(SendEmailPayload{Subject: "nobody"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	sender.err = errors.New("relay refused")
	task, err = NewSendEmailTask(SendEmailPayload{To: "a@example.com"})
	require.NoError(t, err)
	require.ErrorContains(t, job.Handle(context.Background(), task), "relay refused")
}

func TestSMTPSenderFormatsMessage(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	sender := NewSMTPSender("mail.local", 1025, "no-reply@example.com")
	sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		require.Equal(t, []string{"a@example.com"}, to)
		return nil
	}
	require.NoError(t, sender.Send(context.Background(), SendEmailPayload{To: "a@example.com", Subject: "Low stock", Body: "T-004"}))
	require.Equal(t, "mail.local:1025", gotAddr)
	require.True(t, strings.HasPrefix(string(gotMsg), "From: no-reply@example.com\r\n"))
	require.Contains(t, string(gotMsg), "Subject: Low stock\r\n")
	require.True(t, strings.HasSuffix(string(gotMsg), "\r\n\r\nT-004"))
}

func TestAlertMailer(t *testing.T) {
	mail := &stubMail{}
	alerts := &AlertMailer{Mail: mail, Recipient: "stores@example.com"}
	err := alerts.HandleLowStock(context.Background(), inventory.LowStockEvent{
		Kind:         inventory.KindRawMaterial,
		RecordID:     3,
		SKUCode:      "RM-003",
		ItemName:     "Copper",
		ClosingStock: 2,
		MaxLevel:     100,
		DetectedAt:   time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, mail.sent, 1)
	require.Equal(t, "Low stock: RM-003 Copper", mail.sent[0].Subject)
	require.Contains(t, mail.sent[0].Body, "raw-materials record 3")

	require.NoError(t, (&AlertMailer{}).HandleLowStock(context.Background(), inventory.LowStockEvent{}))
}

type stubPruner struct {
	retain time.Duration
}

func (s *stubPruner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.retain = olderThan
	return nil
}

func TestIdempotencyCleanupUsesDefault(t *testing.T) {
	store := &stubPruner{}
	job := &IdempotencyCleanupJob{Store: store, Default: 48 * time.Hour}

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, store.retain)

	body, err := json.Marshal(IdempotencyCleanupPayload{Retain: time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, body)))
	require.Equal(t, time.Hour, store.retain)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}
