package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gambitchess/gambit/internal/api"
	"github.com/gambitchess/gambit/internal/api/response"
	"github.com/gambitchess/gambit/internal/factory"
	"github.com/gambitchess/gambit/internal/relay"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// API tests are integration tests - use production factory with real random/clock
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:            logger,
		AuthService:       app.AuthService,
		SessionController: app.SessionController,
		Hub:               app.Hub,
	})

	return &testServer{handler: router}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// guestToken creates a guest account and returns its token and user ID
func (ts *testServer) guestToken(t *testing.T) (string, string) {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/auth/guest", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Token, resp.User.ID
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestCreateGuest(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/auth/guest", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	require.NoError(t, err)

	assert.True(t, resp.User.IsGuest)
	assert.True(t, strings.HasPrefix(resp.User.Username, "guest_"))
	assert.Equal(t, 1000, resp.User.Rating)
	assert.NotEmpty(t, resp.Token)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	// Register
	registerBody := map[string]string{
		"username": "alice",
		"password": "secret123",
	}
	rr := ts.request(http.MethodPost, "/api/v1/auth/register", registerBody, "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	var registerResp response.AuthResponse
	err := json.Unmarshal(rr.Body.Bytes(), &registerResp)
	require.NoError(t, err)
	assert.False(t, registerResp.User.IsGuest)

	// Login
	loginBody := map[string]string{
		"username": "alice",
		"password": "secret123",
	}
	rr = ts.request(http.MethodPost, "/api/v1/auth/login", loginBody, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var loginResp response.AuthResponse
	err = json.Unmarshal(rr.Body.Bytes(), &loginResp)
	require.NoError(t, err)
	assert.Equal(t, registerResp.User.ID, loginResp.User.ID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"username": "alice", "password": "secret123"}
	rr := ts.request(http.MethodPost, "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/auth/register", body, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "USERNAME_EXISTS")
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"username": "alice", "password": "secret123"}
	rr := ts.request(http.MethodPost, "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	body["password"] = "wrong"
	rr = ts.request(http.MethodPost, "/api/v1/auth/login", body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSessionRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions", nil, "garbage-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)
	token, userID := ts.guestToken(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, token)
	assert.Equal(t, http.StatusCreated, rr.Code)

	var sess response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sess))
	assert.Equal(t, userID, sess.WhitePlayer)
	assert.Nil(t, sess.BlackPlayer)
	assert.Equal(t, "waiting", sess.Status)
	assert.Empty(t, sess.Moves)
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.guestToken(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = ts.request(http.MethodGet, "/api/v1/sessions/"+created.ID, nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	var sess response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sess))
	assert.Equal(t, created.ID, sess.ID)
}

func TestGetSessionNotFound(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.guestToken(t)

	rr := ts.request(http.MethodGet, "/api/v1/sessions/nonexistent", nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "SESSION_NOT_FOUND")
}

func TestJoinSession(t *testing.T) {
	ts := newTestServer(t)
	whiteToken, _ := ts.guestToken(t)
	blackToken, blackID := ts.guestToken(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, whiteToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/join", nil, blackToken)
	assert.Equal(t, http.StatusOK, rr.Code)

	var sess response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sess))
	assert.Equal(t, "in_progress", sess.Status)
	require.NotNil(t, sess.BlackPlayer)
	assert.Equal(t, blackID, *sess.BlackPlayer)
}

func TestJoinFullSession(t *testing.T) {
	ts := newTestServer(t)
	whiteToken, _ := ts.guestToken(t)
	blackToken, _ := ts.guestToken(t)
	thirdToken, _ := ts.guestToken(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, whiteToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/join", nil, blackToken)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/join", nil, thirdToken)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "SESSION_FULL")
}

func TestJoinOwnSession(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.guestToken(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/join", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "SELF_JOIN")
}

func TestCompleteSession(t *testing.T) {
	ts := newTestServer(t)
	whiteToken, whiteID := ts.guestToken(t)
	blackToken, _ := ts.guestToken(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, whiteToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/join", nil, blackToken)
	require.Equal(t, http.StatusOK, rr.Code)

	body := map[string]string{"winner": whiteID, "reason": "checkmate"}
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/complete", body, whiteToken)
	assert.Equal(t, http.StatusOK, rr.Code)

	var sess response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sess))
	assert.Equal(t, "completed", sess.Status)
	require.NotNil(t, sess.Verdict)
	require.NotNil(t, sess.Verdict.Winner)
	assert.Equal(t, whiteID, *sess.Verdict.Winner)
	assert.Equal(t, "checkmate", sess.Verdict.Reason)
}

func TestCompleteSessionByOutsider(t *testing.T) {
	ts := newTestServer(t)
	whiteToken, whiteID := ts.guestToken(t)
	blackToken, _ := ts.guestToken(t)
	outsiderToken, _ := ts.guestToken(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, whiteToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/join", nil, blackToken)
	require.Equal(t, http.StatusOK, rr.Code)

	body := map[string]string{"winner": whiteID, "reason": "checkmate"}
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/complete", body, outsiderToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "NOT_PARTICIPANT")
}

func TestCompleteWaitingSession(t *testing.T) {
	ts := newTestServer(t)
	token, userID := ts.guestToken(t)

	rr := ts.request(http.MethodPost, "/api/v1/sessions", nil, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	body := map[string]string{"winner": userID, "reason": "timeout"}
	rr = ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/complete", body, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "SESSION_NOT_ACTIVE")
}

// Websocket tests run against a live server

type wsTestEnv struct {
	ts     *testServer
	server *httptest.Server
}

func newWSTestEnv(t *testing.T) *wsTestEnv {
	t.Helper()
	ts := newTestServer(t)
	server := httptest.NewServer(ts.handler)
	t.Cleanup(server.Close)
	return &wsTestEnv{ts: ts, server: server}
}

func (e *wsTestEnv) dial(t *testing.T, sessionID, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/v1/sessions/" + sessionID + "/ws"
	header := http.Header{"Authorization": {"Bearer " + token}}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) relay.Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame relay.Frame
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, frameType string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	frame := relay.Frame{Type: frameType, Payload: raw}
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func (e *wsTestEnv) startedSession(t *testing.T) (sessionID, whiteToken, blackToken string) {
	t.Helper()

	whiteToken, _ = e.ts.guestToken(t)
	blackToken, _ = e.ts.guestToken(t)

	rr := e.ts.request(http.MethodPost, "/api/v1/sessions", nil, whiteToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = e.ts.request(http.MethodPost, "/api/v1/sessions/"+created.ID+"/join", nil, blackToken)
	require.Equal(t, http.StatusOK, rr.Code)

	return created.ID, whiteToken, blackToken
}

func TestWebsocketStateOnConnect(t *testing.T) {
	env := newWSTestEnv(t)
	sessionID, whiteToken, _ := env.startedSession(t)

	conn := env.dial(t, sessionID, whiteToken)

	frame := readFrame(t, conn)
	assert.Equal(t, relay.FrameState, frame.Type)

	var state relay.SessionState
	require.NoError(t, json.Unmarshal(frame.Payload, &state))
	assert.Equal(t, sessionID, state.ID)
	assert.Equal(t, "in_progress", state.Status)
}

func TestWebsocketRejectsNonParticipant(t *testing.T) {
	env := newWSTestEnv(t)
	sessionID, _, _ := env.startedSession(t)
	outsiderToken, _ := env.ts.guestToken(t)

	conn := env.dial(t, sessionID, outsiderToken)

	frame := readFrame(t, conn)
	assert.Equal(t, relay.FrameError, frame.Type)
	assert.Contains(t, string(frame.Payload), "not a participant")
}

func TestWebsocketMoveRelay(t *testing.T) {
	env := newWSTestEnv(t)
	sessionID, whiteToken, blackToken := env.startedSession(t)

	white := env.dial(t, sessionID, whiteToken)
	black := env.dial(t, sessionID, blackToken)

	// Drain the connect snapshots
	require.Equal(t, relay.FrameState, readFrame(t, white).Type)
	require.Equal(t, relay.FrameState, readFrame(t, black).Type)

	writeFrame(t, white, relay.FrameMove, relay.MovePayload{From: "e2", To: "e4", Piece: "P"})

	frame := readFrame(t, black)
	assert.Equal(t, relay.FrameMove, frame.Type)

	var move relay.MovePayload
	require.NoError(t, json.Unmarshal(frame.Payload, &move))
	assert.Equal(t, "e2", move.From)
	assert.Equal(t, "e4", move.To)

	// The move landed in the durable log
	rr := env.ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, whiteToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var sess response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sess))
	require.Len(t, sess.Moves, 1)
	assert.Equal(t, "e2", sess.Moves[0].From)
}

func TestWebsocketResign(t *testing.T) {
	env := newWSTestEnv(t)
	sessionID, whiteToken, blackToken := env.startedSession(t)

	white := env.dial(t, sessionID, whiteToken)
	black := env.dial(t, sessionID, blackToken)
	require.Equal(t, relay.FrameState, readFrame(t, white).Type)
	require.Equal(t, relay.FrameState, readFrame(t, black).Type)

	writeFrame(t, black, relay.FrameResign, nil)

	// Peer sees the resign, then the completed snapshot
	require.Equal(t, relay.FrameResign, readFrame(t, white).Type)

	frame := readFrame(t, white)
	require.Equal(t, relay.FrameState, frame.Type)
	var state relay.SessionState
	require.NoError(t, json.Unmarshal(frame.Payload, &state))
	assert.Equal(t, "completed", state.Status)
	require.NotNil(t, state.Verdict)
	assert.Equal(t, "resignation", state.Verdict.Reason)
}

func TestWebsocketReplayOnReconnect(t *testing.T) {
	env := newWSTestEnv(t)
	sessionID, whiteToken, blackToken := env.startedSession(t)

	white := env.dial(t, sessionID, whiteToken)
	require.Equal(t, relay.FrameState, readFrame(t, white).Type)

	writeFrame(t, white, relay.FrameMove, relay.MovePayload{From: "e2", To: "e4"})
	writeFrame(t, white, relay.FrameMove, relay.MovePayload{From: "d2", To: "d4"})

	// Wait until both moves are in the log before connecting the peer
	require.Eventually(t, func() bool {
		rr := env.ts.request(http.MethodGet, "/api/v1/sessions/"+sessionID, nil, whiteToken)
		var sess response.Session
		if err := json.Unmarshal(rr.Body.Bytes(), &sess); err != nil {
			return false
		}
		return len(sess.Moves) == 2
	}, 5*time.Second, 10*time.Millisecond)

	black := env.dial(t, sessionID, blackToken)

	require.Equal(t, relay.FrameState, readFrame(t, black).Type)

	var move relay.MovePayload
	frame := readFrame(t, black)
	require.Equal(t, relay.FrameMove, frame.Type)
	require.NoError(t, json.Unmarshal(frame.Payload, &move))
	assert.Equal(t, "e2", move.From)

	frame = readFrame(t, black)
	require.Equal(t, relay.FrameMove, frame.Type)
	require.NoError(t, json.Unmarshal(frame.Payload, &move))
	assert.Equal(t, "d2", move.From)
}

func TestWebsocketPing(t *testing.T) {
	env := newWSTestEnv(t)
	sessionID, whiteToken, _ := env.startedSession(t)

	conn := env.dial(t, sessionID, whiteToken)
	require.Equal(t, relay.FrameState, readFrame(t, conn).Type)

	writeFrame(t, conn, relay.FramePing, nil)
	assert.Equal(t, relay.FramePong, readFrame(t, conn).Type)
}

func TestWebsocketTokenQueryParam(t *testing.T) {
	env := newWSTestEnv(t)
	sessionID, whiteToken, _ := env.startedSession(t)

	// Browsers cannot set headers on websocket dials; the token query
	// parameter is the fallback
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") +
		"/api/v1/sessions/" + sessionID + "/ws?token=" + whiteToken

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	assert.Equal(t, relay.FrameState, readFrame(t, conn).Type)
}
