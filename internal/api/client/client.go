package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dbsentry/internal/models"
)

// Client talks to a running dbsentry server. Used by the CLI.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() *Client {
	baseURL := os.Getenv("DBSENTRY_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) HealthStatus() (*models.HealthStatus, error) {
	var hs models.HealthStatus
	if err := c.get("/api/v1/health", &hs); err != nil {
		return nil, err
	}
	return &hs, nil
}

func (c *Client) LatestMetrics() (*models.MetricSnapshot, error) {
	var snap models.MetricSnapshot
	if err := c.get("/api/v1/metrics/latest", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) MetricsHistory(hours int) ([]models.MetricSnapshot, error) {
	var snaps []models.MetricSnapshot
	if err := c.get("/api/v1/metrics/history?hours="+strconv.Itoa(hours), &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (c *Client) ListAlerts(all bool) ([]models.Alert, error) {
	endpoint := "/api/v1/alerts"
	if all {
		endpoint += "?all=true"
	}
	var alerts []models.Alert
	if err := c.get(endpoint, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *Client) ResolveAlert(id string) (bool, error) {
	var result struct {
		Resolved bool `json:"resolved"`
	}
	err := c.do(http.MethodPut, fmt.Sprintf("/api/v1/alerts/%s/resolve", id), nil, &result)
	if err != nil {
		return false, err
	}
	return result.Resolved, nil
}

func (c *Client) SlowQueries() (*models.SlowQueryReport, error) {
	var report models.SlowQueryReport
	if err := c.get("/api/v1/analysis/slow-queries", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) TableHealth() (*models.TableHealthReport, error) {
	var report models.TableHealthReport
	if err := c.get("/api/v1/analysis/table-health", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) RunAnalysis() error {
	return c.do(http.MethodPost, "/api/v1/analysis/run", nil, nil)
}

func (c *Client) get(endpoint string, result interface{}) error {
	return c.do(http.MethodGet, endpoint, nil, result)
}

func (c *Client) do(method, endpoint string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return fmt.Errorf("no report available yet, try 'analysis run' first")
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}
