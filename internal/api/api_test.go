package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/synermind/synermind/internal/dispatch"
	"github.com/synermind/synermind/internal/genai"
	"github.com/synermind/synermind/internal/models"
	"github.com/synermind/synermind/internal/store"
)

// stubGenAIClient answers every deterministic call with detReply and every
// dialogue call with dialogueReply.
type stubGenAIClient struct {
	detReply      string
	dialogueReply string
}

func (c *stubGenAIClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.dialogueReply, nil
}

func (c *stubGenAIClient) GenerateDeterministic(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.detReply, nil
}

func (c *stubGenAIClient) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	return &genai.ToolCallResponse{Content: c.dialogueReply}, nil
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	client := &stubGenAIClient{detReply: "mood", dialogueReply: "hello there"}
	sessions := dispatch.NewSessionManager(client, st)
	dispatcher := dispatch.NewDispatcher(st, client, nil, sessions,
		dispatch.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	return NewServer(st, dispatcher), st
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func signupAndSignin(t *testing.T, handler http.Handler, username string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/signup", "", signupRequest{
		Username: username,
		Password: "hunter2!",
		Email:    username + "@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/signin", "", signinRequest{Username: username, Password: "hunter2!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin failed: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Result signinResponse `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode signin response: %v", err)
	}
	if resp.Result.Token == "" {
		t.Fatal("signin returned empty token")
	}
	return resp.Result.Token
}

func TestSignupDuplicateUsername(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := signupRequest{Username: "casey", Password: "pw", Email: "c@example.com"}
	if rec := doJSON(t, handler, http.MethodPost, "/signup", "", req); rec.Code != http.StatusCreated {
		t.Fatalf("first signup: status %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/signup", "", req); rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup: status %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSignupValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	cases := []signupRequest{
		{Username: "", Password: "pw"},
		{Username: "casey", Password: ""},
	}
	for i, req := range cases {
		if rec := doJSON(t, handler, http.MethodPost, "/signup", "", req); rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: status %d, want %d", i, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestSigninWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	signupAndSignin(t, handler, "casey")

	rec := doJSON(t, handler, http.MethodPost, "/signin", "", signinRequest{Username: "casey", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	// Unknown usernames get the same answer
	rec = doJSON(t, handler, http.MethodPost, "/signin", "", signinRequest{Username: "nobody", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown username: status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSigninLockoutAfterRepeatedFailures(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	signupAndSignin(t, handler, "casey")

	for i := 0; i < models.MaxLoginFailures; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/signin", "", signinRequest{Username: "casey", Password: "wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("failure %d: status %d, want %d", i+1, rec.Code, http.StatusUnauthorized)
		}
	}

	// Locked now, even with the right password
	rec := doJSON(t, handler, http.MethodPost, "/signin", "", signinRequest{Username: "casey", Password: "hunter2!"})
	if rec.Code != http.StatusLocked {
		t.Fatalf("locked account: status %d, want %d", rec.Code, http.StatusLocked)
	}

	// After the lockout window passes the account works again
	srv.now = func() time.Time { return time.Now().Add(models.LoginLockoutDuration + time.Minute) }
	rec = doJSON(t, handler, http.MethodPost, "/signin", "", signinRequest{Username: "casey", Password: "hunter2!"})
	if rec.Code != http.StatusOK {
		t.Errorf("after lockout window: status %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestChatRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	if rec := doJSON(t, handler, http.MethodPost, "/chat", "", chatRequest{Message: "hi"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/chat", "bogus", chatRequest{Message: "hi"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus token: status %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestChatTurn(t *testing.T) {
	srv, st := newTestServer(t)
	handler := srv.Handler()
	token := signupAndSignin(t, handler, "casey")

	rec := doJSON(t, handler, http.MethodPost, "/chat", token, chatRequest{Message: "hi there"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Result models.TurnResult `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode chat response: %v", err)
	}
	if resp.Result.Agent != models.AgentMood || resp.Result.Reply != "hello there" {
		t.Errorf("unexpected turn result: %+v", resp.Result)
	}

	user, err := st.GetUserByUsername("casey")
	if err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	turns, _ := st.ListRecentTurns(user.ID, 0)
	if len(turns) != 1 {
		t.Errorf("expected one persisted turn, got %d", len(turns))
	}
}

func TestChatEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	token := signupAndSignin(t, handler, "casey")

	if rec := doJSON(t, handler, http.MethodPost, "/chat", token, chatRequest{Message: ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty message: status %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMoodLogRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	token := signupAndSignin(t, handler, "casey")

	rec := doJSON(t, handler, http.MethodPost, "/moods", token, moodRequest{Mood: models.MoodContent, Intensity: 4, Note: "quiet day"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("log mood: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/moods", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list moods: status %d", rec.Code)
	}
	var resp struct {
		Result []models.MoodLog `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode mood list: %v", err)
	}
	if len(resp.Result) != 1 || resp.Result[0].Mood != models.MoodContent || resp.Result[0].Note != "quiet day" {
		t.Errorf("unexpected mood list: %+v", resp.Result)
	}
}

func TestMoodLogValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	token := signupAndSignin(t, handler, "casey")

	if rec := doJSON(t, handler, http.MethodPost, "/moods", token, moodRequest{Mood: "ecstatic", Intensity: 4}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mood: status %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/moods", token, moodRequest{Mood: models.MoodHappy, Intensity: 11}); rec.Code != http.StatusBadRequest {
		t.Errorf("intensity out of range: status %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFeedbackValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	token := signupAndSignin(t, handler, "casey")

	if rec := doJSON(t, handler, http.MethodPost, "/feedback", token, feedbackRequest{Rating: 0}); rec.Code != http.StatusBadRequest {
		t.Errorf("rating 0: status %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/feedback", token, feedbackRequest{Rating: 5, Comment: "helpful"}); rec.Code != http.StatusCreated {
		t.Errorf("valid feedback: status %d, want %d", rec.Code, http.StatusCreated)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()
	token := signupAndSignin(t, handler, "casey")

	for i := 0; i < 3; i++ {
		if rec := doJSON(t, handler, http.MethodPost, "/chat", token, chatRequest{Message: fmt.Sprintf("message %d", i)}); rec.Code != http.StatusOK {
			t.Fatalf("chat %d: status %d", i, rec.Code)
		}
	}
	doJSON(t, handler, http.MethodPost, "/feedback", token, feedbackRequest{Rating: 4})

	rec := doJSON(t, handler, http.MethodGet, "/metrics", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", rec.Code)
	}
	var resp struct {
		Result models.UserMetrics `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode metrics: %v", err)
	}
	if resp.Result.TotalTurns != 3 {
		t.Errorf("total turns = %d, want 3", resp.Result.TotalTurns)
	}
	if resp.Result.AgentUsage[models.AgentMood] != 3 {
		t.Errorf("mood agent usage = %d, want 3", resp.Result.AgentUsage[models.AgentMood])
	}
	if resp.Result.AvgFeedback != 4 {
		t.Errorf("avg feedback = %v, want 4", resp.Result.AvgFeedback)
	}
	// The signin during setup is today's only login and a one-day streak
	if resp.Result.DailyLogins != 1 || resp.Result.LoginStreakDays != 1 {
		t.Errorf("login metrics = %d/%d, want 1/1", resp.Result.DailyLogins, resp.Result.LoginStreakDays)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health: status %d, want %d", rec.Code, http.StatusOK)
	}
}
