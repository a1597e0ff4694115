package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func TestSendCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/updates": `{"replies":[{"text":"Hi! Use /habits to log your day."}]}`,
	})

	old := newAPIClient
	defer func() { newAPIClient = old }()
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }

	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs([]string{"send", "--user", "7", "/start"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Path != "/v1/updates" {
		t.Errorf("path = %q, want /v1/updates", r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["user_id"] != float64(7) {
		t.Errorf("body.user_id = %v, want 7", body["user_id"])
	}
	if body["text"] != "/start" {
		t.Errorf("body.text = %v, want /start", body["text"])
	}
}

func TestStatusCommand(t *testing.T) {
	t.Setenv("HABITD_SERVER_TOKEN", "test-token")

	ts := newTestServer(t, map[string]string{
		"GET /healthz": `{"status":"ok"}`,
	})

	old := newAPIClient
	defer func() { newAPIClient = old }()
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }

	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs([]string{"status"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != http.MethodGet || r.Path != "/healthz" {
		t.Errorf("request = %s %s, want GET /healthz", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
}

func TestSendCommand_MissingUser(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	// Flag values persist across Execute calls; clear any value a prior
	// test set.
	sendCmd.Flags().Set("user", "0")
	rootCmd.SetArgs([]string{"send", "hello"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing --user")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "ok"); strings.Contains(got, "\033") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "ok"); !strings.Contains(got, "\033") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}
