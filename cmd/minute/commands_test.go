package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/minute/internal/session"
	"github.com/kalambet/minute/internal/storage"
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
		w.Write([]byte(`{"status":"error","message":"Decision not found"}`))
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

func stubAPIClient(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

var ctx = context.Background()

func TestListDecisions_DecodesEnvelope(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /decisions": `{"status":"success","count":2,"data":[
			{"id":"d2","question":"Go remote?","finalDecision":"yes","isCompleted":true},
			{"id":"d1","question":"Buy the bike?","finalDecision":"no","isCompleted":false}
		]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/decisions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decisions, err := decodeDecisions(resp)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].ID != "d2" {
		t.Errorf("first id = %q, want d2", decisions[0].ID)
	}
	if decisions[1].FinalDecision != "no" {
		t.Errorf("second decision = %q, want no", decisions[1].FinalDecision)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestDecodeEnvelope_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"status":"error","message":"Not authorized to access this decision"}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "t", httpClient: ts.Client()}

	resp, err := client.get(ctx, "/decisions/d1")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	_, err = decodeEnvelope(resp)
	if err == nil {
		t.Fatal("expected error for error envelope")
	}
	if err.Error() != "Not authorized to access this decision" {
		t.Errorf("error = %q, want server message", err.Error())
	}
}

func TestClientUnreachable(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/decisions")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestRemoteCreator_PostsPayload(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /decisions": `{"status":"success","data":{"id":"d-new","question":"Switch jobs?","finalDecision":"undecided","isCompleted":true,"timeSpent":0}}`,
	})

	creator := &remoteCreator{client: ts.client()}
	d, err := creator.CreateDecision(ctx, session.Payload{
		Question:      "Switch jobs?",
		Pros:          []storage.ListItem{{Text: "growth"}},
		Cons:          []storage.ListItem{{Text: "risk"}},
		FinalDecision: "undecided",
		Notes:         "revisit next month",
		TimeSpent:     0,
		IsCompleted:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != "d-new" {
		t.Errorf("id = %q, want d-new", d.ID)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["question"] != "Switch jobs?" {
		t.Errorf("body.question = %v", body["question"])
	}
	if body["finalDecision"] != "undecided" {
		t.Errorf("body.finalDecision = %v", body["finalDecision"])
	}
	if body["timeSpent"] != float64(0) {
		t.Errorf("body.timeSpent = %v, want 0", body["timeSpent"])
	}
	if body["isCompleted"] != true {
		t.Errorf("body.isCompleted = %v, want true", body["isCompleted"])
	}
}

type fakeSessionCreator struct {
	payload session.Payload
	calls   int
}

func (f *fakeSessionCreator) CreateDecision(_ context.Context, p session.Payload) (storage.Decision, error) {
	f.calls++
	f.payload = p
	return storage.Decision{ID: "d-1", Question: p.Question}, nil
}

func TestRunDecide_FullSession(t *testing.T) {
	creator := &fakeSessionCreator{}
	input := strings.Join([]string{
		"p cheaper in the long run",
		"c big upfront cost",
		"p quieter",
		"rp 2",
		"done",
		"yes",
		"worth it",
	}, "\n") + "\n"

	err := runDecide(ctx, creator, strings.NewReader(input), "Buy the heat pump?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if creator.calls != 1 {
		t.Fatalf("creator called %d times, want 1", creator.calls)
	}
	p := creator.payload
	if p.Question != "Buy the heat pump?" {
		t.Errorf("question = %q", p.Question)
	}
	if len(p.Pros) != 1 || p.Pros[0].Text != "cheaper in the long run" {
		t.Errorf("pros = %+v, want the surviving pro", p.Pros)
	}
	if len(p.Cons) != 1 || p.Cons[0].Text != "big upfront cost" {
		t.Errorf("cons = %+v", p.Cons)
	}
	if p.FinalDecision != "yes" {
		t.Errorf("finalDecision = %q, want yes", p.FinalDecision)
	}
	if p.Notes != "worth it" {
		t.Errorf("notes = %q", p.Notes)
	}
	if p.TimeSpent != session.BrainstormSeconds {
		t.Errorf("timeSpent = %d, want %d for an early finish", p.TimeSpent, session.BrainstormSeconds)
	}
	if !p.IsCompleted {
		t.Error("expected a completed record")
	}
}

func TestRunDecide_RepromptsOnBadDecision(t *testing.T) {
	creator := &fakeSessionCreator{}
	input := strings.Join([]string{
		"done",
		"maybe",
		"",
		"no",
		"not now",
	}, "\n") + "\n"

	err := runDecide(ctx, creator, strings.NewReader(input), "Adopt a dog?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creator.payload.FinalDecision != "no" {
		t.Errorf("finalDecision = %q, want no after reprompt", creator.payload.FinalDecision)
	}
}

func TestRunDecide_QuestionFromPrompt(t *testing.T) {
	creator := &fakeSessionCreator{}
	input := strings.Join([]string{
		"Move cities?",
		"done",
		"undecided",
		"",
	}, "\n") + "\n"

	if err := runDecide(ctx, creator, strings.NewReader(input), "  "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creator.payload.Question != "Move cities?" {
		t.Errorf("question = %q, want the prompted one", creator.payload.Question)
	}
}

func TestRunDecide_ResetDiscards(t *testing.T) {
	creator := &fakeSessionCreator{}
	input := "p something\nreset\n"

	if err := runDecide(ctx, creator, strings.NewReader(input), "Quit?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creator.calls != 0 {
		t.Errorf("creator called %d times, want 0 after reset", creator.calls)
	}
}

func TestApplySessionLine_UnknownVerb(t *testing.T) {
	ctrl := session.New(&fakeSessionCreator{}, 0)
	if err := ctrl.Start("Question?"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.Reset()

	if err := applySessionLine(ctrl, "nope something"); err == nil {
		t.Fatal("expected error for unknown verb")
	}
	if err := applySessionLine(ctrl, "rp one"); err == nil {
		t.Fatal("expected error for non-numeric index")
	}
}

func TestAmendSendsOnlyChangedFields(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /decisions/abc": `{"status":"success","data":{"id":"abc"}}`,
	})
	stubAPIClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"amend", "abc", "--decision", "yes", "--notes", ""})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["finalDecision"] != "yes" {
		t.Errorf("body.finalDecision = %v, want yes", body["finalDecision"])
	}
	notes, ok := body["notes"]
	if !ok || notes != "" {
		t.Errorf("body.notes = %v, want explicit empty string", notes)
	}
	if _, ok := body["question"]; ok {
		t.Error("body.question sent although the flag was not passed")
	}
	if _, ok := body["timeSpent"]; ok {
		t.Error("body.timeSpent sent although the flag was not passed")
	}
}

func TestDeleteCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /decisions/abc": `{"status":"success","message":"Decision removed"}`,
	})
	stubAPIClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"delete", "abc"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Method != "DELETE" {
		t.Errorf("method = %q, want DELETE", ts.requests[0].Method)
	}
	if ts.requests[0].Path != "/decisions/abc" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
}

func TestFormatDecisionLine(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	d := storage.Decision{
		ID:            "4f8a1c22-0000-0000-0000-000000000000",
		Question:      "Should we migrate the billing service to the new platform this quarter or wait?",
		FinalDecision: "yes",
		IsCompleted:   true,
	}
	line := formatDecisionLine(d)

	if !strings.HasPrefix(line, "4f8a1c22 ✓") {
		t.Errorf("line = %q, want short id and completed mark prefix", line)
	}
	if !strings.Contains(line, "...") {
		t.Errorf("line = %q, want truncated question", line)
	}
	if strings.Contains(line, "wait?") {
		t.Errorf("line = %q, question not truncated", line)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 3); got != "hél..." {
		t.Errorf("truncate = %q, want rune-aware cut", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q, want unchanged", got)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
