// Package integration provides a reusable test harness for end-to-end
// testing of the Pulse progress tracking server. It starts a full HTTP
// server with the complete middleware chain, an in-memory or miniredis
// backed progress store, and a test token issuer.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/grantthrive/pulse/internal/config"
	"github.com/grantthrive/pulse/internal/observability"
	"github.com/grantthrive/pulse/internal/template"
	"github.com/grantthrive/pulse/internal/tracker"
	"github.com/grantthrive/pulse/internal/transport"
)

const harnessSecret = "integration-test-secret"

// TestHarness encapsulates a fully wired Pulse instance for integration
// testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	Registry *template.Registry
	Store    tracker.ProgressStore
	Tracker  *tracker.Tracker
	Metrics  *observability.Metrics

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	templateDirs   []string
	redisStore     bool
	authDisabled   bool
	handlerTimeout time.Duration
}

// WithTemplateDirs loads operator-supplied template YAML files from the
// given directories in addition to the built-ins.
func WithTemplateDirs(dirs ...string) HarnessOption {
	return func(c *harnessConfig) {
		c.templateDirs = dirs
	}
}

// WithRedisStore backs the progress store with an in-process miniredis
// instead of the default in-memory store.
func WithRedisStore() HarnessOption {
	return func(c *harnessConfig) {
		c.redisStore = true
	}
}

// WithAuthDisabled leaves the auth secret unset so requests need no token.
func WithAuthDisabled() HarnessOption {
	return func(c *harnessConfig) {
		c.authDisabled = true
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// NewTestHarness creates and starts a full Pulse test instance. The server
// is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{
		t:      t,
		issuer: newTokenIssuer(harnessSecret),
	}

	// The auth middleware reads the secret from the environment when the
	// router is built, so it must be set first.
	if hc.authDisabled {
		t.Setenv("PULSE_AUTH_SECRET", "")
	} else {
		t.Setenv("PULSE_AUTH_SECRET", harnessSecret)
	}

	// Templates: built-ins plus any operator-supplied directories.
	loader := template.NewLoader()
	loaded, err := loader.LoadAll(hc.templateDirs)
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	if verrs := template.NewValidator().Validate(loaded); len(verrs) > 0 {
		t.Fatalf("template validation: %v", verrs)
	}
	h.Registry = template.NewRegistry(loaded...)

	// Progress store.
	if hc.redisStore {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		h.Store = tracker.NewRedisProgressStore(client)
	} else {
		h.Store = tracker.NewMemoryProgressStore()
	}

	// A private registry keeps repeated harness construction from tripping
	// duplicate metric registration.
	h.Metrics = observability.InitMetrics(prometheus.NewRegistry())
	h.Metrics.SetTemplatesLoaded(float64(h.Registry.Len()))

	h.Tracker = tracker.NewTracker(h.Registry, h.Store, nil, nil)
	h.Tracker.SetMetrics(h.Metrics)

	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity = config.IdentityConfig{
		SecretEnv: "PULSE_AUTH_SECRET",
		Issuer:    h.issuer.Issuer(),
		Audience:  h.issuer.Audience(),
	}

	readinessChecks := observability.ReadinessChecks{
		TemplatesLoaded: func() bool { return h.Registry.Len() > 0 },
	}
	if hck, ok := h.Store.(observability.HealthChecker); ok {
		readinessChecks.ProgressStore = hck
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:    h.cfg,
		Tracker:   h.Tracker,
		Templates: h.Registry,
		Metrics:   h.Metrics,
		Ready:     readinessChecks,
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid bearer token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a bearer token that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// PUT performs an authenticated PUT request with a JSON body.
func (h *TestHarness) PUT(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("PUT", path, body, token, nil)
}

// RequestWithHeaders performs a request with additional headers.
func (h *TestHarness) RequestWithHeaders(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest(method, path, body, token, headers)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	url := h.server.URL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// ErrorCode parses an error response body and returns the error code.
func (h *TestHarness) ErrorCode(resp *http.Response) string {
	h.t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	h.ParseJSON(resp, &body)
	return body.Error.Code
}

// --- Default test claims ---

// ApplicantClaims returns TestClaims for a grant applicant.
func ApplicantClaims() TestClaims {
	return TestClaims{SubjectID: "applicant-1"}
}

// OfficerClaims returns TestClaims for a council grants officer.
func OfficerClaims() TestClaims {
	return TestClaims{SubjectID: "officer-1"}
}
