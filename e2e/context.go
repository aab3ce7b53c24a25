package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultReviewerEmail  = "maya.iyer@example.com"
	defaultReviewerAPIKey = "e2e-api-key"

	requestTimeout = 10 * time.Second
)

// TestContext drives HTTP requests against a running server and keeps the
// last response around for subsequent assertion steps. One instance is
// shared across the suite; Reset is called before each scenario.
type TestContext struct {
	baseURL string
	client  *http.Client

	token      string
	lastStatus int
	lastBody   []byte
	lastHeader http.Header

	// nonce suffixes property IDs so scenarios never collide with earlier
	// runs against the same server. Regenerated per scenario.
	nonce string
}

// NewTestContext builds a context pointed at baseURL, e.g.
// "http://localhost:8080".
func NewTestContext(baseURL string) *TestContext {
	tc := &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
	tc.Reset()
	return tc
}

// Reset clears per-scenario state and mints a fresh property ID nonce.
func (tc *TestContext) Reset() {
	tc.token = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeader = nil
	tc.nonce = strconv.FormatInt(time.Now().UnixNano(), 36)
}

// PropertyID maps a human-readable name from a feature file to an ID unique
// to this scenario, so reruns and parallel features never see each other's
// records.
func (tc *TestContext) PropertyID(name string) string {
	return name + "-" + tc.nonce
}

// SetBearerToken attaches token to every subsequent request.
func (tc *TestContext) SetBearerToken(token string) {
	tc.token = token
}

// ReviewerEmail returns the login email for the seeded test reviewer.
func (tc *TestContext) ReviewerEmail() string {
	if v := os.Getenv("E2E_REVIEWER_EMAIL"); v != "" {
		return v
	}
	return defaultReviewerEmail
}

// ReviewerAPIKey returns the API key for the seeded test reviewer.
func (tc *TestContext) ReviewerAPIKey() string {
	if v := os.Getenv("E2E_REVIEWER_API_KEY"); v != "" {
		return v
	}
	return defaultReviewerAPIKey
}

// POST sends a JSON body to path and records the response.
func (tc *TestContext) POST(path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

// GET sends a request to path with optional extra headers and records the
// response.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

// DELETE sends a DELETE to path and records the response.
func (tc *TestContext) DELETE(path string) error {
	req, err := http.NewRequest(http.MethodDelete, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	if tc.token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	tc.lastStatus = resp.StatusCode
	tc.lastBody = body
	tc.lastHeader = resp.Header
	return nil
}

// GetLastResponseStatus returns the status code of the last response.
func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

// GetLastResponseBody returns the raw body of the last response.
func (tc *TestContext) GetLastResponseBody() string {
	return string(tc.lastBody)
}

// GetLastResponseHeader returns a header from the last response, or "" when
// absent.
func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.lastHeader == nil {
		return ""
	}
	return tc.lastHeader.Get(name)
}

// GetResponseField walks a dot-separated path into the last JSON response
// body, e.g. "reviewer_queue.priority".
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	if len(tc.lastBody) == 0 {
		return nil, fmt.Errorf("no response body recorded")
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	parts := strings.Split(field, ".")
	var current interface{} = doc
	for i, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q is not an object", strings.Join(parts[:i], "."))
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response", strings.Join(parts[:i+1], "."))
		}
	}
	return current, nil
}
