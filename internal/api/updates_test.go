package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/habitd/internal/engine"
	"github.com/kalambet/habitd/internal/extract"
	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/session"
	"github.com/kalambet/habitd/internal/storage"
	"github.com/kalambet/habitd/internal/tabular"
)

const testToken = "test-token-12345"

func setupAppHandler(t *testing.T, token string) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := engine.New(
		session.NewFallbackStore(store.Sessions()),
		profile.NewFallbackStore(store.Profiles()),
		extract.New(nil),
		nil,
		tabular.NewWriter(store.Tables()),
		engine.Config{SessionTTL: 30 * time.Minute, OperationTimeout: 5 * time.Second},
	)

	handler := NewAppHandler(AppDeps{
		Engine: eng,
		Token:  token,
	})
	return handler, store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestUpdates_NoAuth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	body := `{"user_id":1,"text":"/start"}`
	rr := httptest.NewRecorder()
	req := authReq(http.MethodPost, "/v1/updates", body, "")
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestUpdates_WrongToken(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	body := `{"user_id":1,"text":"/start"}`
	rr := httptest.NewRecorder()
	req := authReq(http.MethodPost, "/v1/updates", body, "wrong-token")
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestUpdates_MissingUserID(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	body := `{"text":"/start"}`
	rr := httptest.NewRecorder()
	req := authReq(http.MethodPost, "/v1/updates", body, testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdates_BadJSON(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	req := authReq(http.MethodPost, "/v1/updates", "{not json", testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdates_BadVoicePayload(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	body := `{"user_id":1,"voice":{"data":"not---base64!!","format":"ogg"}}`
	rr := httptest.NewRecorder()
	req := authReq(http.MethodPost, "/v1/updates", body, testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestUpdates_StartCommand(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	body := `{"user_id":42,"username":"dreamer","text":"/start"}`
	rr := httptest.NewRecorder()
	req := authReq(http.MethodPost, "/v1/updates", body, testToken)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp UpdateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Replies) == 0 {
		t.Fatal("expected at least one reply")
	}

	// The turn must have produced a durable profile.
	prof, err := store.Profiles().Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("profile not persisted: %v", err)
	}
	if prof.Username != "dreamer" {
		t.Errorf("Username = %q, want %q", prof.Username, "dreamer")
	}
}

func TestUpdates_ConversationSurvivesRequests(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	send := func(text string) UpdateResponse {
		body := `{"user_id":7,"text":"` + text + `"}`
		rr := httptest.NewRecorder()
		req := authReq(http.MethodPost, "/v1/updates", body, testToken)
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d for %q; body = %s", rr.Code, text, rr.Body.String())
		}
		var resp UpdateResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	send("/start")
	send("/habits")
	// A fresh request carries no state of its own; the date prompt reply
	// proves the flow position survived in the session store.
	resp := send("not a date")
	if len(resp.Replies) == 0 {
		t.Fatal("expected a reply to the invalid date")
	}
	joined := ""
	for _, r := range resp.Replies {
		joined += r.Text + "\n"
	}
	if !strings.Contains(joined, "date") && !strings.Contains(joined, "YYYY") {
		t.Errorf("expected a date re-prompt, got %q", joined)
	}
}

func TestHealthz_Open(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}
