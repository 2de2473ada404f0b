package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/harpia/internal/domain"
)

// Sample is one labelled set of extracted fields.
type Sample struct {
	ID      string
	Fields  domain.Fields
	IsFraud bool
}

type validateRequest struct {
	KeyValuePairs domain.Fields `json:"key_value_pairs"`
}

type validateResponse struct {
	RiskScore int              `json:"risk_score"`
	RiskLevel domain.RiskLevel `json:"risk_level"`
}

// Metrics tracks benchmark results. Counters are updated atomically.
type Metrics struct {
	TruePositives  int64
	FalsePositives int64
	TrueNegatives  int64
	FalseNegatives int64

	TotalProcessed  int64
	TotalFraud      int64
	TotalLegitimate int64
	TotalErrors     int64

	ProcessingTimeMs int64
}

// Summary holds the derived detection rates.
type Summary struct {
	Precision float64
	Recall    float64
	F1        float64
	Accuracy  float64
}

// Summary computes detection rates; undefined ratios are zero.
func (m *Metrics) Summary() Summary {
	var s Summary
	if m.TruePositives+m.FalsePositives > 0 {
		s.Precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	if m.TruePositives+m.FalseNegatives > 0 {
		s.Recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * (s.Precision * s.Recall) / (s.Precision + s.Recall)
	}
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		s.Accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}
	return s
}

func (m *Metrics) record(predicted, actual bool) {
	switch {
	case predicted && actual:
		atomic.AddInt64(&m.TruePositives, 1)
	case predicted && !actual:
		atomic.AddInt64(&m.FalsePositives, 1)
	case !predicted && !actual:
		atomic.AddInt64(&m.TrueNegatives, 1)
	default:
		atomic.AddInt64(&m.FalseNegatives, 1)
	}
}

func checkHealth(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func parseLabel(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "sim":
		return true
	}
	return false
}

func readSamples(path string, limit int, fraudOnly bool, sampleRate float64) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	labelCol, idCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "is_fraud", "isfraud":
			labelCol = i
		case "id":
			idCol = i
		}
	}
	if labelCol < 0 {
		return nil, fmt.Errorf("missing is_fraud column")
	}

	var samples []Sample
	sampleCounter := 0
	row := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		row++
		if labelCol >= len(record) {
			continue
		}

		isFraud := parseLabel(record[labelCol])
		if fraudOnly && !isFraud {
			continue
		}
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		s := Sample{ID: fmt.Sprintf("row-%d", row), IsFraud: isFraud}
		for i, value := range record {
			if i == labelCol {
				continue
			}
			if i == idCol {
				if value != "" {
					s.ID = value
				}
				continue
			}
			if i >= len(header) || value == "" {
				continue
			}
			s.Fields.Set(header[i], value)
		}
		samples = append(samples, s)

		if limit > 0 && len(samples) >= limit {
			break
		}
	}

	return samples, nil
}

func runBenchmark(samples []Sample, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}
	if numWorkers < 1 {
		numWorkers = 1
	}

	work := make(chan Sample, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for s := range work {
				start := time.Now()
				result, err := validateSample(client, baseURL, tenantID, s)
				atomic.AddInt64(&metrics.ProcessingTimeMs, time.Since(start).Milliseconds())
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", s.ID, err)
					}
					continue
				}

				if s.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalLegitimate, 1)
				}

				predicted := result.RiskLevel.IsAlert()
				metrics.record(predicted, s.IsFraud)

				if verbose {
					mark := "ok"
					if predicted != s.IsFraud {
						mark = "XX"
					}
					fmt.Printf("%s %-16s | Fraud: %-5v | Harpia: %-7s (%3d)\n",
						mark, s.ID, s.IsFraud, result.RiskLevel, result.RiskScore)
				}
			}
		}()
	}

	for _, s := range samples {
		work <- s
	}
	close(work)
	wg.Wait()

	return metrics
}

func validateSample(client *http.Client, baseURL, tenantID string, s Sample) (*validateResponse, error) {
	body, err := json.Marshal(validateRequest{KeyValuePairs: s.Fields})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
