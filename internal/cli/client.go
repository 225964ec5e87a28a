package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/livyflow/observer/internal/alert"
	"github.com/livyflow/observer/internal/logagg"
	"github.com/livyflow/observer/internal/synthetic"
)

// Client talks to a running observerd over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL retargets the client, used after flag parsing.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request %s: %v", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *Client) send(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %v", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %v", err)
	}
	return nil
}

func (c *Client) Health() (map[string]interface{}, error) {
	var health map[string]interface{}
	err := c.get("/health", &health)
	return health, err
}

func (c *Client) ActiveAlerts() ([]alert.Alert, error) {
	var alerts []alert.Alert
	err := c.get("/api/v1/alerts", &alerts)
	return alerts, err
}

func (c *Client) AlertHistory(limit int) ([]alert.Alert, error) {
	var alerts []alert.Alert
	err := c.get(fmt.Sprintf("/api/v1/alerts?history=true&limit=%d", limit), &alerts)
	return alerts, err
}

func (c *Client) Acknowledge(id, userID string) error {
	return c.send(http.MethodPost, "/api/v1/alerts/"+id+"/acknowledge",
		map[string]string{"user_id": userID}, nil)
}

func (c *Client) Resolve(id, userID string) error {
	return c.send(http.MethodPost, "/api/v1/alerts/"+id+"/resolve",
		map[string]string{"user_id": userID}, nil)
}

func (c *Client) Rules() ([]alert.Rule, error) {
	var rules []alert.Rule
	err := c.get("/api/v1/alerts/rules", &rules)
	return rules, err
}

func (c *Client) CreateRule(rule *alert.Rule) error {
	return c.send(http.MethodPost, "/api/v1/alerts/rules", rule, nil)
}

func (c *Client) DeleteRule(id string) error {
	return c.send(http.MethodDelete, "/api/v1/alerts/rules/"+id, nil, nil)
}

type checksStatus struct {
	Overall synthetic.OverallStatus           `json:"overall"`
	Checks  map[string]synthetic.CheckSummary `json:"checks"`
}

func (c *Client) ChecksStatus() (synthetic.OverallStatus, map[string]synthetic.CheckSummary, error) {
	var status checksStatus
	err := c.get("/api/v1/checks/status", &status)
	return status.Overall, status.Checks, err
}

func (c *Client) SearchLogs(query, level string, limit int) ([]logagg.Entry, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if level != "" {
		params.Set("level", level)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var result struct {
		Logs []logagg.Entry `json:"logs"`
	}
	err := c.get("/api/v1/logs?"+params.Encode(), &result)
	return result.Logs, err
}
