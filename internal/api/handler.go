package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/harpia/internal/analyzer"
	"github.com/opensource-finance/harpia/internal/bus"
	"github.com/opensource-finance/harpia/internal/classify"
	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/metrics"
	"github.com/opensource-finance/harpia/internal/repository"
	"github.com/opensource-finance/harpia/internal/risk"
	"github.com/opensource-finance/harpia/internal/worker"
)

// DocumentNameHeader names a document sent as a raw request body.
const DocumentNameHeader = "X-Document-Name"

// documentField is the multipart form field holding the upload.
const documentField = "document"

// allowedExtensions are the scanned document formats accepted for upload.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
}

// DocumentAnalyzer runs one analysis.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, tenantID string, doc domain.Document) (*domain.Report, error)
}

// Submitter queues a document for asynchronous analysis.
type Submitter interface {
	Submit(ctx context.Context, s *domain.Submission) error
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	bus        domain.EventBus
	analyzer   DocumentAnalyzer
	classifier *classify.Classifier
	compiler   *classify.Compiler
	submitter  Submitter
	metrics    *metrics.Metrics
	maxUpload  int64
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(cfg domain.ServerConfig, deps Dependencies) *Handler {
	classifier := deps.Classifier
	if classifier == nil {
		classifier = classify.NewClassifier(nil)
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &Handler{
		repo:       deps.Repo,
		bus:        deps.Bus,
		analyzer:   deps.Analyzer,
		classifier: classifier,
		compiler:   deps.Compiler,
		submitter:  deps.Submitter,
		metrics:    deps.Metrics,
		maxUpload:  maxUpload,
		version:    deps.Version,
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Stage    string `json:"stage,omitempty"`
	Category string `json:"category,omitempty"`
}

// Analyze handles POST /analyze requests and returns the full report.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	doc, status, err := h.readDocument(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	report, err := h.analyzer.Analyze(ctx, tenantID, doc)
	if err != nil {
		slog.Error("analysis failed",
			"tenant_id", tenantID,
			"document", doc.Name,
			"trace_id", GetTraceID(ctx),
			"error", err,
		)
		writeJSON(w, analysisStatus(err), analysisError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := domain.EncodeReport(w, report); err != nil {
		slog.Error("failed to write report", "error", err)
	}
}

// AnalyzeAsyncResponse is the response for POST /analyze/async.
type AnalyzeAsyncResponse struct {
	SubmissionID string `json:"submissionId"`
	Status       string `json:"status"`
	ReportTopic  string `json:"reportTopic"`
	TraceID      string `json:"traceId"`
}

// AnalyzeAsync handles POST /analyze/async. The report is published on the
// event bus by the worker.
func (h *Handler) AnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.submitter == nil {
		writeError(w, http.StatusServiceUnavailable, "async analysis is not enabled")
		return
	}

	doc, status, err := h.readDocument(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	submission := &domain.Submission{
		SubmissionID: uuid.New().String(),
		TenantID:     GetTenantID(ctx),
		TraceID:      GetTraceID(ctx),
		DocumentName: doc.Name,
		ContentType:  doc.ContentType,
		Content:      doc.Content,
	}

	if err := h.submitter.Submit(ctx, submission); err != nil {
		switch {
		case errors.Is(err, worker.ErrTenantNotServed):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, bus.ErrBacklogFull), errors.Is(err, bus.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, "analysis queue unavailable, retry later")
		case errors.Is(err, bus.ErrPayloadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			slog.Error("failed to submit document", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to submit document")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, AnalyzeAsyncResponse{
		SubmissionID: submission.SubmissionID,
		Status:       "accepted",
		ReportTopic:  domain.TopicReportReady,
		TraceID:      submission.TraceID,
	})
}

// ValidateRequest is the request body for POST /validate.
type ValidateRequest struct {
	KeyValuePairs domain.Fields `json:"key_value_pairs"`
}

// ValidateResponse is the response for POST /validate.
type ValidateResponse struct {
	Validation domain.ValidationResult `json:"validation"`
	RiskScore  int                     `json:"risk_score"`
	RiskLevel  domain.RiskLevel        `json:"risk_level"`
	Breakdown  risk.Breakdown          `json:"breakdown"`
}

// Validate classifies already extracted fields without calling any
// collaborator. The score carries no narrative flags.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	validation := h.classifier.Validate(tenantID, domain.ExtractedData{KeyValuePairs: req.KeyValuePairs})
	breakdown := risk.Assess(validation, domain.FraudAnalysis{Flags: []string{}})

	writeJSON(w, http.StatusOK, ValidateResponse{
		Validation: validation,
		RiskScore:  breakdown.Score,
		RiskLevel:  breakdown.Level,
		Breakdown:  breakdown,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}

	if h.repo != nil {
		checks["repository"] = "ok"
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
			checks["repository"] = err.Error()
		}
	}

	if h.bus != nil {
		checks["eventbus"] = "ok"
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
			checks["eventbus"] = err.Error()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ready": "true"})
}

// FieldRuleRequest is the request body for POST /field-rules.
type FieldRuleRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Expression  string          `json:"expression"`
	Validator   string          `json:"validator"`
	ValidLabel  string          `json:"validLabel,omitempty"`
	FailLabel   string          `json:"failLabel,omitempty"`
	Severity    domain.Severity `json:"severity,omitempty"`
	Priority    int             `json:"priority"`
	Enabled     *bool           `json:"enabled,omitempty"`

	// Global stores the rule for every tenant
	Global bool `json:"global,omitempty"`
}

// ListFieldRules returns the stored field rules that apply to the tenant.
func (h *Handler) ListFieldRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	rules, err := h.repo.ListFieldRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list field rules", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list field rules")
		return
	}
	if rules == nil {
		rules = []*domain.FieldRule{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":      rules,
		"count":      len(rules),
		"loaded":     h.classifier.CustomCount(tenantID),
		"validators": classify.Validators(),
	})
}

// CreateFieldRule validates and stores a field rule.
// Stored rules take effect after POST /field-rules/reload.
func (h *Handler) CreateFieldRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil || h.compiler == nil {
		writeError(w, http.StatusServiceUnavailable, "field rules are not available")
		return
	}

	var req FieldRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Validator == "" {
		writeError(w, http.StatusBadRequest, "id, name, expression and validator are required")
		return
	}

	tenantID := GetTenantID(ctx)
	if req.Global {
		tenantID = domain.GlobalTenantID
	}

	rule := &domain.FieldRule{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Validator:   req.Validator,
		ValidLabel:  req.ValidLabel,
		FailLabel:   req.FailLabel,
		Severity:    req.Severity,
		Priority:    req.Priority,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if rule.Severity == "" {
		rule.Severity = domain.SeverityInvalid
	}

	if err := h.compiler.Validate(rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid field rule: "+err.Error())
		return
	}

	if err := h.repo.SaveFieldRule(ctx, tenantID, rule); err != nil {
		slog.Error("failed to save field rule", "id", rule.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save field rule")
		return
	}

	slog.Info("field rule saved", "id", rule.ID, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Field rule saved. Call POST /field-rules/reload to apply changes.",
	})
}

// DeleteFieldRule disables a field rule. ?scope=global targets the global rule.
func (h *Handler) DeleteFieldRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	tenantID := GetTenantID(ctx)
	if r.URL.Query().Get("scope") == "global" {
		tenantID = domain.GlobalTenantID
	}

	err := h.repo.DeleteFieldRule(ctx, tenantID, ruleID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "field rule not found")
		return
	}
	if err != nil {
		slog.Error("failed to delete field rule", "id", ruleID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete field rule")
		return
	}

	slog.Info("field rule deleted", "id", ruleID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"deleted": ruleID,
		"message": "Field rule deleted. Call POST /field-rules/reload to apply changes.",
	})
}

// ReloadFieldRules recompiles the tenant's field rules into the classifier.
// On a compile error the rules already loaded stay active.
func (h *Handler) ReloadFieldRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil || h.compiler == nil {
		writeError(w, http.StatusServiceUnavailable, "field rules are not available")
		return
	}

	count, err := h.classifier.Reload(ctx, h.compiler, h.repo, tenantID)
	if err != nil {
		slog.Error("failed to reload field rules", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "failed to reload field rules: "+err.Error())
		return
	}
	h.metrics.SetFieldRulesLoaded(tenantID, count)

	slog.Info("field rules reloaded", "tenant_id", tenantID, "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "field rules reloaded successfully",
		"count":   count,
	})
}

// readDocument reads an upload from a multipart form or a raw body.
// On failure it returns the HTTP status to answer with.
func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) (domain.Document, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var doc domain.Document
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile(documentField)
		if err != nil {
			return doc, uploadStatus(err), fmt.Errorf("multipart field %q is required: %w", documentField, err)
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return doc, uploadStatus(err), fmt.Errorf("failed to read upload: %w", err)
		}
		doc = domain.Document{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     content,
		}
	} else {
		name := r.Header.Get(DocumentNameHeader)
		if name == "" {
			return doc, http.StatusBadRequest, fmt.Errorf("%s header is required for raw uploads", DocumentNameHeader)
		}
		content, err := io.ReadAll(r.Body)
		if err != nil {
			return doc, uploadStatus(err), fmt.Errorf("failed to read upload: %w", err)
		}
		doc = domain.Document{Name: name, ContentType: mediaType, Content: content}
	}

	ext := strings.ToLower(filepath.Ext(doc.Name))
	if !allowedExtensions[ext] {
		return doc, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported document type %q, expected pdf, png, jpg, jpeg or tiff", ext)
	}
	if len(doc.Content) == 0 {
		return doc, http.StatusBadRequest, fmt.Errorf("document is empty")
	}

	return doc, http.StatusOK, nil
}

func uploadStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// analysisStatus is 502 for collaborator failures and 500 for anything else.
func analysisStatus(err error) int {
	if _, ok := domain.FailureCategoryOf(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func analysisError(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}

	var stageErr *analyzer.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = stageErr.Stage
	}
	if category, ok := domain.FailureCategoryOf(err); ok {
		resp.Category = string(category)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
