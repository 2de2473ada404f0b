// Package worker runs document analyses asynchronously from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harpia/internal/analyzer"
	"github.com/opensource-finance/harpia/internal/domain"
)

// SharedQueue is the bus tenant used when the worker serves every tenant.
// The real tenant travels inside the submission.
const SharedQueue = "_global"

// ErrTenantNotServed is returned by Submit for tenants the worker does not serve.
var ErrTenantNotServed = errors.New("tenant not served by async worker")

// DocumentAnalyzer runs one analysis.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, tenantID string, doc domain.Document) (*domain.Report, error)
}

// Worker consumes submissions and publishes reports.
type Worker struct {
	bus      domain.EventBus
	analyzer DocumentAnalyzer

	mu            sync.RWMutex
	tenants       map[string]bool
	subscriptions []domain.Subscription
	processed     int64
	failed        int64

	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via the shared queue)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, a DocumentAnalyzer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		analyzer: a,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing submissions for the given tenants.
func (w *Worker) Start(cfg Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(cfg.TenantIDs) == 0 {
		sub, err := w.bus.Subscribe(w.ctx, SharedQueue, domain.TopicDocumentSubmitted, w.handleMessage)
		if err != nil {
			return fmt.Errorf("failed to subscribe shared queue: %w", err)
		}
		w.subscriptions = append(w.subscriptions, sub)
		w.tenants = nil
		slog.Info("shared worker started", "topic", domain.TopicDocumentSubmitted)
		return nil
	}

	w.tenants = make(map[string]bool, len(cfg.TenantIDs))
	for _, tenantID := range cfg.TenantIDs {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicDocumentSubmitted, w.handleMessage)
		if err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.subscriptions = append(w.subscriptions, sub)
		w.tenants[tenantID] = true
	}

	if len(w.tenants) == 0 {
		return fmt.Errorf("no tenant subscription could be started")
	}

	slog.Info("workers started", "tenant_count", len(w.tenants))
	return nil
}

// Submit publishes a submission on the queue that serves its tenant.
// A missing SubmissionID is generated.
func (w *Worker) Submit(ctx context.Context, s *domain.Submission) error {
	if s.TenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	if s.SubmissionID == "" {
		s.SubmissionID = uuid.New().String()
	}

	w.mu.RLock()
	queue := SharedQueue
	if w.tenants != nil {
		if !w.tenants[s.TenantID] {
			w.mu.RUnlock()
			return ErrTenantNotServed
		}
		queue = s.TenantID
	}
	w.mu.RUnlock()

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}
	return w.bus.Publish(ctx, queue, domain.TopicDocumentSubmitted, payload)
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var s domain.Submission
	if err := json.Unmarshal(msg.Payload, &s); err != nil {
		slog.Error("failed to parse submission",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if s.TenantID == "" {
		if msg.TenantID == SharedQueue {
			return fmt.Errorf("submission %s has no tenant", s.SubmissionID)
		}
		s.TenantID = msg.TenantID
	}
	if s.TraceID == "" {
		s.TraceID = msg.ID
	}

	return w.process(ctx, &s)
}

// process analyzes one submission and publishes the outcome.
func (w *Worker) process(ctx context.Context, s *domain.Submission) error {
	start := time.Now()

	slog.Debug("processing submission",
		"submission_id", s.SubmissionID,
		"tenant_id", s.TenantID,
		"trace_id", s.TraceID,
	)

	report, err := w.analyzer.Analyze(ctx, s.TenantID, s.Document())
	if err != nil {
		w.mu.Lock()
		w.failed++
		w.mu.Unlock()
		w.publishFailure(ctx, s, err)
		return err
	}

	payload, err := json.Marshal(domain.ReportEvent{
		SubmissionID: s.SubmissionID,
		TenantID:     s.TenantID,
		TraceID:      s.TraceID,
		Report:       report,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := w.bus.Publish(ctx, s.TenantID, domain.TopicReportReady, payload); err != nil {
		slog.Error("failed to publish report",
			"submission_id", s.SubmissionID,
			"error", err,
		)
	}

	if report.RiskLevel.IsAlert() {
		if err := w.bus.Publish(ctx, s.TenantID, domain.TopicReportAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"submission_id", s.SubmissionID,
				"error", err,
			)
		}
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()

	slog.Info("submission processed",
		"submission_id", s.SubmissionID,
		"tenant_id", s.TenantID,
		"risk_score", report.RiskScore,
		"risk_level", report.RiskLevel,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) publishFailure(ctx context.Context, s *domain.Submission, cause error) {
	event := domain.FailureEvent{
		SubmissionID: s.SubmissionID,
		TenantID:     s.TenantID,
		TraceID:      s.TraceID,
		DocumentName: s.DocumentName,
		Error:        cause.Error(),
	}

	var stageErr *analyzer.StageError
	if errors.As(cause, &stageErr) {
		event.Stage = stageErr.Stage
	}
	if category, ok := domain.FailureCategoryOf(cause); ok {
		event.Category = string(category)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal failure event", "error", err)
		return
	}

	if err := w.bus.Publish(ctx, s.TenantID, domain.TopicAnalysisFailed, payload); err != nil {
		slog.Error("failed to publish analysis failure",
			"submission_id", s.SubmissionID,
			"error", err,
		)
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	w.tenants = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed,
		Failed:            w.failed,
	}
}
