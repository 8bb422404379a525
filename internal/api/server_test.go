package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/worldnet/internal/country"
	"github.com/p-n-ai/worldnet/internal/offline"
	"github.com/p-n-ai/worldnet/internal/quiz"
)

type staticCatalog []country.Country

func (c staticCatalog) Countries(context.Context) ([]country.Country, error) {
	return c, nil
}

func testCatalog() staticCatalog {
	return staticCatalog{
		{Name: "Brazil", Code: "BR", Capital: "Brasília", Population: 216400000, Region: "South America", Currency: "BRL", GDP: 2.1e12, Area: 8515767, GrowthRate: 0.5},
		{Name: "France", Code: "FR", Capital: "Paris", Population: 68170000, Region: "Europe", Currency: "EUR", GDP: 3.0e12, Area: 551695, GrowthRate: 0.3},
		{Name: "Germany", Code: "DE", Capital: "Berlin", Population: 84480000, Region: "Europe", Currency: "EUR", GDP: 4.4e12, Area: 357022, GrowthRate: 0.1},
		{Name: "Japan", Code: "JP", Capital: "Tokyo", Population: 124500000, Region: "Asia", Currency: "JPY", GDP: 4.2e12, Area: 377975, GrowthRate: -0.5},
	}
}

type fixture struct {
	server  *Server
	handler http.Handler
	store   *quiz.MemoryStore
	cache   *offline.Cache
}

func newFixture(t *testing.T, checks map[string]HealthCheck) *fixture {
	t.Helper()
	cache, err := offline.New(offline.NewMemoryBackend(nil), offline.Options{})
	if err != nil {
		t.Fatalf("offline.New() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	catalog := testCatalog()
	store := quiz.NewMemoryStore()
	svc := quiz.NewService(quiz.ServiceConfig{
		Engine:    quiz.NewEngine(quiz.EngineConfig{Rand: rand.New(rand.NewPCG(1, 2))}),
		Countries: offline.NewReadThrough(cache, catalog),
		Store:     store,
	})

	s, err := New(Config{
		Catalog:      catalog,
		Cache:        cache,
		Quiz:         svc,
		HealthChecks: checks,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{server: s, handler: s.Handler(), store: store, cache: cache}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNew_RequiresCatalogAndCache(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without catalog and cache should fail")
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, map[string]HealthCheck{"ok": func(context.Context) error { return nil }})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz returns 200", "/healthz", http.StatusOK, `{"status":"ok"}`},
		{"readyz returns 200", "/readyz", http.StatusOK, `{"status":"ready"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	f := newFixture(t, map[string]HealthCheck{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := f.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	checks, _ := body["checks"].(map[string]any)
	if checks["database"] != "connection refused" {
		t.Errorf("checks = %v, want database failure", body["checks"])
	}
}

func TestCountries(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name  string
		path  string
		codes []string
	}{
		{"all", "/api/countries", []string{"BR", "FR", "DE", "JP"}},
		{"search capital", "/api/countries?q=PAR", []string{"FR"}},
		{"region", "/api/countries?region=europe", []string{"FR", "DE"}},
		{"search and region", "/api/countries?q=tok&region=asia", []string{"JP"}},
		{"no match", "/api/countries?q=atlantis", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			got := decode[[]country.Country](t, rec)
			codes := []string{}
			for _, c := range got {
				codes = append(codes, c.Code)
			}
			if strings.Join(codes, ",") != strings.Join(tt.codes, ",") {
				t.Errorf("codes = %v, want %v", codes, tt.codes)
			}
		})
	}

	rec := f.do(t, http.MethodGet, "/api/countries/fr", "")
	if rec.Code != http.StatusOK || decode[country.Country](t, rec).Capital != "Paris" {
		t.Errorf("GET /api/countries/fr = %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/api/countries/ZZ", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown country status = %d, want 404", rec.Code)
	}
}

func TestQuizFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec := f.do(t, http.MethodPost, "/api/quizzes", `{"player":"ana","count":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "correct_answer") {
		t.Fatal("session view must not expose answers")
	}
	view := decode[sessionView](t, rec)
	if view.Total != 3 || len(view.Questions) != 3 || view.State != quiz.StateInProgress {
		t.Fatalf("session view = %+v", view)
	}

	full, err := f.store.Get(ctx, view.ID)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	first := full.Questions[0]

	body := `{"question_id":"` + first.ID + `","answer":"` + first.CorrectAnswer + `"}`
	rec = f.do(t, http.MethodPost, "/api/quizzes/"+view.ID+"/answers", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d, body %s", rec.Code, rec.Body.String())
	}
	outcome := decode[quiz.Outcome](t, rec)
	if !outcome.Correct || outcome.Score != first.Points {
		t.Errorf("outcome = %+v, want correct with %d points", outcome, first.Points)
	}

	rec = f.do(t, http.MethodPost, "/api/quizzes/"+view.ID+"/answers", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("resubmission status = %d, want 409", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/quizzes/"+view.ID, "")
	if got := decode[sessionView](t, rec); got.CurrentIndex != 1 || got.Answers[first.ID] != first.CorrectAnswer {
		t.Errorf("session after answer = %+v", got)
	}

	rec = f.do(t, http.MethodGet, "/api/quizzes/"+view.ID+"/results", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("results status = %d", rec.Code)
	}
	if got := decode[quiz.Result](t, rec); got.Correct != 1 || got.Unanswered != 2 {
		t.Errorf("results = %+v, want 1 correct 2 unanswered", got)
	}
}

func TestQuizErrors(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown session", http.MethodGet, "/api/quizzes/nope", "", http.StatusNotFound},
		{"unknown session results", http.MethodGet, "/api/quizzes/nope/results", "", http.StatusNotFound},
		{"answer unknown session", http.MethodPost, "/api/quizzes/nope/answers", `{"question_id":"q","answer":"a"}`, http.StatusNotFound},
		{"malformed answer", http.MethodPost, "/api/quizzes/nope/answers", `{"question_id":`, http.StatusBadRequest},
		{"missing question id", http.MethodPost, "/api/quizzes/nope/answers", `{"answer":"a"}`, http.StatusBadRequest},
		{"too many questions", http.MethodPost, "/api/quizzes", `{"count":500}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/quizzes", `{"players":"x"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if _, ok := decode[map[string]string](t, rec)["error"]; !ok {
				t.Error("error response should carry an error field")
			}
		})
	}
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/leaderboard?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	entries := decode[[]quiz.LeaderboardEntry](t, rec)
	if len(entries) != 2 || entries[0].Score < entries[1].Score {
		t.Errorf("leaderboard = %+v, want top 2 by score", entries)
	}

	for _, limit := range []string{"abc", "0", "-1"} {
		if rec := f.do(t, http.MethodGet, "/api/leaderboard?limit="+limit, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", limit, rec.Code)
		}
	}
}

func TestCompareEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/compare?codes=fr,de", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("compare status = %d, body %s", rec.Code, rec.Body.String())
	}
	cmpResp := decode[compareResponse](t, rec)
	if len(cmpResp.Countries) != 2 || cmpResp.Results["DE"]["gdp"].Rank != 1 {
		t.Errorf("compare = %+v", cmpResp)
	}
	if lines := strings.Split(cmpResp.Summary, "\n"); len(lines) != 6 {
		t.Errorf("summary has %d lines, want 6", len(lines))
	}

	rec = f.do(t, http.MethodGet, "/api/compare?codes=FR,fr,DE", "")
	dup := decode[compareResponse](t, rec)
	if len(dup.Countries) != 2 || len(dup.Results) != 2 {
		t.Errorf("compare with repeated code = %d countries, %d results; want 2, 2", len(dup.Countries), len(dup.Results))
	}
	if dup.Results["FR"]["gdp"].Rank+dup.Results["DE"]["gdp"].Rank != 3 {
		t.Errorf("gdp ranks = %+v, want 1 and 2", dup.Results)
	}

	rec = f.do(t, http.MethodGet, "/api/compare/winner?codes=FR,DE,JP&metric=gdp", "")
	winner := decode[map[string]any](t, rec)
	if w, _ := winner["winner"].(map[string]any); w["code"] != "DE" {
		t.Errorf("winner = %v, want DE", winner)
	}

	rec = f.do(t, http.MethodGet, "/api/compare/difference?a=DE&b=FR&metric=gdp", "")
	diff := decode[map[string]any](t, rec)
	if p, _ := diff["percentage"].(float64); p < 46 || p > 47 {
		t.Errorf("difference = %v, want about 46.7", diff["percentage"])
	}

	rec = f.do(t, http.MethodGet, "/api/compare/chart?codes=FR,JP&metric=population", "")
	if points := decode[[]map[string]any](t, rec); len(points) != 2 || points[0]["country"] != "France" {
		t.Errorf("chart = %v", points)
	}

	rec = f.do(t, http.MethodGet, "/api/compare/similar/FR", "")
	similar := decode[map[string]any](t, rec)
	if best, _ := similar["most_similar"].(map[string]any); best["code"] == "FR" || best["code"] == nil {
		t.Errorf("similar = %v, want another country", similar)
	}

	rec = f.do(t, http.MethodGet, "/api/compare/metrics", "")
	if metrics := decode[[]map[string]any](t, rec); len(metrics) != 6 {
		t.Errorf("metrics = %d, want 6", len(metrics))
	}

	rec = f.do(t, http.MethodGet, "/api/compare/export.xlsx?codes=FR,DE", "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Errorf("export status = %d, want a zip payload", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("export content type = %q", ct)
	}

	errorCases := []struct {
		path       string
		wantStatus int
	}{
		{"/api/compare", http.StatusBadRequest},
		{"/api/compare?codes=FR,ZZ", http.StatusNotFound},
		{"/api/compare/winner?codes=FR&metric=bogus", http.StatusNotFound},
		{"/api/compare/winner?codes=FR", http.StatusBadRequest},
		{"/api/compare/difference?a=FR&metric=gdp", http.StatusBadRequest},
		{"/api/compare/similar/ZZ", http.StatusNotFound},
	}
	for _, tc := range errorCases {
		if rec := f.do(t, http.MethodGet, tc.path, ""); rec.Code != tc.wantStatus {
			t.Errorf("GET %s status = %d, want %d", tc.path, rec.Code, tc.wantStatus)
		}
	}
}

func TestCacheAdmin(t *testing.T) {
	f := newFixture(t, nil)

	if rec := f.do(t, http.MethodGet, "/api/cache", ""); decode[cacheStatus](t, rec).Valid {
		t.Fatal("cache should start empty")
	}

	rec := f.do(t, http.MethodPost, "/api/cache/preload", "")
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["written"] != true {
		t.Fatalf("preload = %d %s", rec.Code, rec.Body.String())
	}

	status := decode[cacheStatus](t, f.do(t, http.MethodGet, "/api/cache", ""))
	if !status.Valid || status.Metadata == nil || status.Size == "0 B" {
		t.Errorf("status after preload = %+v", status)
	}

	rec = f.do(t, http.MethodPatch, "/api/cache", `[{"code":"fr","capital":"Lyon"}]`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[country.Country](t, f.do(t, http.MethodGet, "/api/countries/FR", "")); got.Capital != "Lyon" {
		t.Errorf("capital after patch = %q, want Lyon", got.Capital)
	}

	if rec := f.do(t, http.MethodDelete, "/api/cache", ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if f.cache.IsValid(context.Background()) {
		t.Error("cache should be empty after DELETE")
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/countries", nil)
	req.Header.Set("Origin", "https://globe.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestQuizWebSocket(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx := t.Context()
	session, err := f.server.quiz.Start(ctx, "ws-player", 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/quizzes/" + session.ID + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	for i := range session.Questions {
		var msg wsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read question %d: %v", i, err)
		}
		if msg.Type != msgQuestion || msg.Question == nil || msg.Index != i {
			t.Fatalf("message %d = %+v, want question", i, msg)
		}

		q, _ := session.Question(msg.Question.ID)
		if err := wsjson.Write(ctx, conn, wsMessage{Type: msgAnswer, QuestionID: q.ID, Answer: q.CorrectAnswer}); err != nil {
			t.Fatalf("write answer: %v", err)
		}

		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read outcome %d: %v", i, err)
		}
		if msg.Type != msgOutcome || msg.Outcome == nil || !msg.Outcome.Correct {
			t.Fatalf("outcome %d = %+v, want correct", i, msg)
		}
	}

	var final wsMessage
	if err := wsjson.Read(ctx, conn, &final); err != nil {
		t.Fatalf("read results: %v", err)
	}
	if final.Type != msgResults || final.Results == nil || final.Results.Percentage != 100 {
		t.Errorf("final = %+v, want 100%% results", final)
	}
}

func TestQuizWebSocket_AfterOutOfOrderAnswer(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx := t.Context()
	session, err := f.server.quiz.Start(ctx, "ws-player", 3)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	skipped := session.Questions[1]
	body := fmt.Sprintf(`{"question_id":%q,"answer":%q}`, skipped.ID, skipped.CorrectAnswer)
	if rec := f.do(t, http.MethodPost, "/api/quizzes/"+session.ID+"/answers", body); rec.Code != http.StatusOK {
		t.Fatalf("REST answer status = %d, body %s", rec.Code, rec.Body.String())
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/quizzes/" + session.ID + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	for _, wantIndex := range []int{0, 2} {
		var msg wsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read question %d: %v", wantIndex, err)
		}
		if msg.Type != msgQuestion || msg.Question == nil || msg.Index != wantIndex {
			t.Fatalf("message = %+v, want question %d", msg, wantIndex)
		}

		q, _ := session.Question(msg.Question.ID)
		if err := wsjson.Write(ctx, conn, wsMessage{Type: msgAnswer, QuestionID: q.ID, Answer: q.CorrectAnswer}); err != nil {
			t.Fatalf("write answer: %v", err)
		}
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read outcome %d: %v", wantIndex, err)
		}
		if msg.Type != msgOutcome {
			t.Fatalf("reply to question %d = %+v, want outcome", wantIndex, msg)
		}
	}

	var final wsMessage
	if err := wsjson.Read(ctx, conn, &final); err != nil {
		t.Fatalf("read results: %v", err)
	}
	if final.Type != msgResults || final.Results == nil || final.Results.Percentage != 100 {
		t.Errorf("final = %+v, want 100%% results", final)
	}
}

func TestQuizWebSocket_UnknownSession(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/quizzes/missing/ws", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{quiz.ErrSessionNotFound, http.StatusNotFound},
		{quiz.ErrAlreadyAnswered, http.StatusConflict},
		{quiz.ErrSessionCompleted, http.StatusConflict},
		{quiz.ErrSessionConflict, http.StatusConflict},
		{fmt.Errorf("%w: limit must be a positive integer", errBadRequest), http.StatusBadRequest},
		{quiz.ErrNoCountries, http.StatusBadRequest},
		{errUnknownMetric, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
