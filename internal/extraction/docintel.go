package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opensource-finance/harpia/internal/azclient"
	"github.com/opensource-finance/harpia/internal/domain"
)

// DocumentIntelligence runs an Azure Document Intelligence model on a document.
// Analysis is asynchronous: the document is submitted, then the operation is
// polled until it succeeds or fails.
type DocumentIntelligence struct {
	client       *azclient.Client
	endpoint     string
	model        string
	apiVersion   string
	timeout      time.Duration
	pollInterval time.Duration
}

var _ Extractor = (*DocumentIntelligence)(nil)

// NewDocumentIntelligence creates a Document Intelligence extractor.
func NewDocumentIntelligence(cfg domain.ExtractionConfig) (*DocumentIntelligence, error) {
	client, err := azclient.New(domain.CollaboratorExtraction, azclient.Options{
		Endpoint:   cfg.Endpoint,
		KeyHeader:  "Ocp-Apim-Subscription-Key",
		Key:        cfg.Key,
		UseEntraID: cfg.UseEntraID,
	})
	if err != nil {
		return nil, err
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}

	return &DocumentIntelligence{
		client:       client,
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		model:        cfg.Model,
		apiVersion:   cfg.APIVersion,
		timeout:      cfg.Timeout,
		pollInterval: poll,
	}, nil
}

type analyzeOperation struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type analyzeResult struct {
	KeyValuePairs []struct {
		Key   *documentElement `json:"key"`
		Value *documentElement `json:"value"`
	} `json:"keyValuePairs"`
	Tables []struct {
		Cells []struct {
			RowIndex    int    `json:"rowIndex"`
			ColumnIndex int    `json:"columnIndex"`
			Content     string `json:"content"`
		} `json:"cells"`
	} `json:"tables"`
}

type documentElement struct {
	Content string `json:"content"`
}

// Extract submits the document and waits for the analysis result.
func (d *DocumentIntelligence) Extract(ctx context.Context, doc domain.Document) (*domain.ExtractedData, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	operation, err := d.submit(ctx, doc)
	if err != nil {
		return nil, err
	}

	slog.Debug("document submitted for extraction",
		"document", doc.Name,
		"model", d.model,
	)

	result, err := d.poll(ctx, operation)
	if err != nil {
		return nil, err
	}

	return convert(result), nil
}

func (d *DocumentIntelligence) submit(ctx context.Context, doc domain.Document) (string, error) {
	endpoint := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		d.endpoint, url.PathEscape(d.model), url.QueryEscape(d.apiVersion))

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := d.client.Do(ctx, http.MethodPost, endpoint, doc.Content, contentType, http.StatusAccepted)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	operation := resp.Header.Get("Operation-Location")
	if operation == "" {
		return "", domain.NewCollaboratorError(domain.CollaboratorExtraction, domain.FailureBadData,
			"response has no Operation-Location header", nil)
	}
	return operation, nil
}

func (d *DocumentIntelligence) poll(ctx context.Context, operation string) (*analyzeResult, error) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := d.client.Do(ctx, http.MethodGet, operation, nil, "", http.StatusOK)
		if err != nil {
			return nil, err
		}

		var op analyzeOperation
		if err := d.client.DecodeJSON(resp, &op); err != nil {
			return nil, err
		}

		switch strings.ToLower(op.Status) {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return &analyzeResult{}, nil
			}
			return op.AnalyzeResult, nil
		case "failed", "canceled":
			msg := "analysis " + strings.ToLower(op.Status)
			if op.Error != nil {
				msg = fmt.Sprintf("%s: %s %s", msg, op.Error.Code, op.Error.Message)
			}
			return nil, domain.NewCollaboratorError(domain.CollaboratorExtraction, domain.FailureBadData, msg, nil)
		}

		select {
		case <-ctx.Done():
			return nil, domain.TransportError(domain.CollaboratorExtraction, ctx.Err())
		case <-ticker.C:
		}
	}
}

// convert keeps the service's pair order. A pair without a key is stored
// under "unknown" and a pair without a value gets an empty string.
func convert(result *analyzeResult) *domain.ExtractedData {
	data := &domain.ExtractedData{
		KeyValuePairs: domain.Fields{},
		Tables:        [][]domain.TableCell{},
	}

	for _, pair := range result.KeyValuePairs {
		key := "unknown"
		if pair.Key != nil {
			key = pair.Key.Content
		}
		value := ""
		if pair.Value != nil {
			value = pair.Value.Content
		}
		data.KeyValuePairs.Set(key, value)
	}

	for _, table := range result.Tables {
		cells := make([]domain.TableCell, 0, len(table.Cells))
		for _, cell := range table.Cells {
			cells = append(cells, domain.TableCell{
				Row:     cell.RowIndex,
				Col:     cell.ColumnIndex,
				Content: cell.Content,
			})
		}
		data.Tables = append(data.Tables, cells)
	}

	return data
}
