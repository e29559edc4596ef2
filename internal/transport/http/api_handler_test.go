package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quiz-leaderboard-service/internal/app"
	"quiz-leaderboard-service/internal/domain"
	"quiz-leaderboard-service/internal/infra/memory"
	"quiz-leaderboard-service/internal/metrics"
)

func TestGetLeaderboard(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), discardLogger(), nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var lb domain.Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" || lb.Entries[1].UserID != "u1" {
		t.Fatalf("expected [u2 u1], got %+v", lb.Entries)
	}
}

func TestGetUserRank(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), discardLogger(), nil))
	defer server.Close()

	var ranked rankResponse
	getJSON(t, server.URL+"/api/leaderboard/rank/u1", http.StatusOK, &ranked)
	if ranked.Rank == nil || *ranked.Rank != 2 {
		t.Fatalf("expected rank 2, got %+v", ranked.Rank)
	}

	var unranked rankResponse
	getJSON(t, server.URL+"/api/leaderboard/rank/nobody", http.StatusOK, &unranked)
	if unranked.Rank != nil {
		t.Fatalf("expected null rank, got %d", *unranked.Rank)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), discardLogger(), nil))
	defer server.Close()

	body := `{"id":"att-1","testName":"Algebra","scorePercentage":70,"totalQuestions":15,"userId":"u2"}`
	resp, err := http.Post(server.URL+"/api/users/u1/history", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var saved domain.AttemptRecord
	_ = json.NewDecoder(resp.Body).Decode(&saved)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if saved.UserID != "u1" {
		t.Fatalf("expected path user to win, got %q", saved.UserID)
	}

	var history historyResponse
	getJSON(t, server.URL+"/api/users/u1/history", http.StatusOK, &history)
	if len(history.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(history.Attempts))
	}

	if status := doRequest(t, http.MethodDelete, server.URL+"/api/users/u1/history/"+saved.ID, nil); status != http.StatusNoContent {
		t.Fatalf("expected 204 deleting attempt, got %d", status)
	}
	if status := doRequest(t, http.MethodDelete, server.URL+"/api/users/u1/history/"+saved.ID, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", status)
	}
	if status := doRequest(t, http.MethodDelete, server.URL+"/api/users/u1/history", nil); status != http.StatusNoContent {
		t.Fatalf("expected 204 clearing history, got %d", status)
	}

	getJSON(t, server.URL+"/api/users/u1/history", http.StatusOK, &history)
	if len(history.Attempts) != 0 {
		t.Fatalf("expected empty history, got %+v", history.Attempts)
	}
}

func TestPostAttemptWithForeignIDConflicts(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), discardLogger(), nil))
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/users/mallory/history", "application/json", strings.NewReader(`{"id":"a1","scorePercentage":10}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	var history historyResponse
	getJSON(t, server.URL+"/api/users/u1/history", http.StatusOK, &history)
	if len(history.Attempts) != 2 {
		t.Fatalf("expected u1 to keep both attempts, got %d", len(history.Attempts))
	}
	getJSON(t, server.URL+"/api/users/mallory/history", http.StatusOK, &history)
	if len(history.Attempts) != 0 {
		t.Fatalf("expected mallory to have no attempts, got %+v", history.Attempts)
	}
}

func TestPostAttemptRejectsBadPayload(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), discardLogger(), nil))
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/users/u1/history", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPutProfile(t *testing.T) {
	server := httptest.NewServer(NewRouter(newTestService(), discardLogger(), nil))
	defer server.Close()

	payload := []byte(`{"displayName":"","email":"carol@example.com"}`)
	if status := doRequest(t, http.MethodPut, server.URL+"/api/users/u3/profile", payload); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	var lb domain.Leaderboard
	getJSON(t, server.URL+"/api/leaderboard", http.StatusOK, &lb)
	if len(lb.Entries) != 3 {
		t.Fatalf("expected u3 to join leaderboard, got %d entries", len(lb.Entries))
	}
}

func TestDataUnavailableIsRetryable(t *testing.T) {
	service := app.NewLeaderboardService(
		memory.NewAttemptStore(),
		failingProfiles{err: errors.New("timeout")},
	)
	server := httptest.NewServer(NewRouter(service, discardLogger(), nil))
	defer server.Close()

	var errResp errorResponse
	getJSON(t, server.URL+"/api/leaderboard", http.StatusServiceUnavailable, &errResp)
	if !errResp.Retryable {
		t.Fatalf("expected retryable error, got %+v", errResp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	service := app.NewLeaderboardService(
		memory.NewAttemptStore(sampleAttempts()...),
		memory.NewProfileStore(sampleProfiles()...),
		app.WithObserver(m),
	)
	server := httptest.NewServer(NewRouter(service, discardLogger(), reg))
	defer server.Close()

	var lb domain.Leaderboard
	getJSON(t, server.URL+"/api/leaderboard", http.StatusOK, &lb)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), metrics.MetricComputationsTotal+" 1") {
		t.Fatalf("expected computation counter in metrics output:\n%s", raw)
	}
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("get %s: expected %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func doRequest(t *testing.T, method, url string, body []byte) int {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func newTestService() *app.LeaderboardService {
	return app.NewLeaderboardService(
		memory.NewAttemptStore(sampleAttempts()...),
		memory.NewProfileStore(sampleProfiles()...),
	)
}

func sampleAttempts() []domain.AttemptRecord {
	completed := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	return []domain.AttemptRecord{
		{ID: "a1", UserID: "u1", ScorePercentage: 80, TotalQuestions: 10, CompletedAt: completed},
		{ID: "a2", UserID: "u1", ScorePercentage: 90, TotalQuestions: 20, CompletedAt: completed},
		{ID: "b1", UserID: "u2", ScorePercentage: 100, TotalQuestions: 50, CompletedAt: completed},
		{ID: "c1", UserID: "u3", ScorePercentage: 60, TotalQuestions: 5, CompletedAt: completed},
	}
}

func sampleProfiles() []domain.Profile {
	return []domain.Profile{
		{UserID: "u1", DisplayName: "Alice", Email: "alice@example.com"},
		{UserID: "u2", DisplayName: "Bob", Email: "bob@example.com"},
	}
}

type failingProfiles struct {
	err error
}

func (f failingProfiles) Profiles(context.Context) (map[string]domain.Profile, error) {
	return nil, f.err
}

func (f failingProfiles) PutProfile(context.Context, domain.Profile) error {
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
