package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wedding-quiz-service/internal/app"
	"wedding-quiz-service/internal/domain"
	"wedding-quiz-service/internal/infra/memory"
)

const testToken = "s3cret"

type testEnv struct {
	server  *httptest.Server
	service *app.QuizService
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithLedger(t, memory.NewAnswerLedger())
}

func newTestEnvWithLedger(t *testing.T, ledger app.AnswerLedger) testEnv {
	t.Helper()
	quiz := domain.Quiz{ID: "wedding", Questions: []domain.Question{
		{Number: 1, CorrectAnswer: 0},
		{Number: 2, CorrectAnswer: 1},
	}}
	service := app.NewQuizService(
		memory.NewSessionStore(),
		ledger,
		memory.NewGuestRegistry(),
		memory.NewQuizRepository(memory.NewStaticQuizLoader(quiz), time.Minute),
		app.Settings{QuizID: "wedding", TotalQuestions: 2, RankingDisplayCount: 3, ChoiceCount: 4, MaxNicknameLength: 20},
	)
	api := NewAPI(service, Options{BasePath: "/api", OperatorToken: testToken})
	server := httptest.NewServer(api.Router())
	t.Cleanup(server.Close)
	return testEnv{server: server, service: service}
}

// newClient returns an HTTP client with its own cookie jar, one per simulated browser.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func (e testEnv) do(t *testing.T, client *http.Client, method, path string, body any, operator bool) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if operator {
		req.Header.Set(operatorTokenHeader, testToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes()
}

func (e testEnv) createSession(t *testing.T) domain.Session {
	t.Helper()
	status, body := e.do(t, http.DefaultClient, http.MethodPost, "/api/sessions", nil, true)
	if status != http.StatusCreated {
		t.Fatalf("create session: status %d body %s", status, body)
	}
	var session domain.Session
	mustDecode(t, body, &session)
	return session
}

func (e testEnv) dial(t *testing.T, client *http.Client, path string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if client != nil && client.Jar != nil {
		u, _ := url.Parse(e.server.URL + path)
		for _, c := range client.Jar.Cookies(u) {
			header.Add("Cookie", c.String())
		}
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+e.server.URL[len("http"):]+path, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// flakyLedger fails whole-ledger reads while failReads is set.
type flakyLedger struct {
	*memory.AnswerLedger
	failReads atomic.Bool
}

func (l *flakyLedger) Answers(ctx context.Context, ledgerID string, questionNumber int) ([]domain.GuestAnswer, error) {
	if l.failReads.Load() && questionNumber == domain.AllQuestions {
		return nil, errors.New("ledger unavailable")
	}
	return l.AnswerLedger.Answers(ctx, ledgerID, questionNumber)
}

func mustDecode(t *testing.T, data []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil reads messages until one of type expect satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, expect string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", expect, err)
		}
		if msg.Type == expect && (match == nil || match(msg.Payload)) {
			return msg.Payload
		}
	}
}
