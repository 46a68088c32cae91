package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	courier "github.com/inboxkit/courier"
	"github.com/inboxkit/courier/connection"
	"github.com/inboxkit/courier/driver"
	"github.com/inboxkit/courier/driver/dummy"
	"github.com/inboxkit/courier/events"
	"github.com/inboxkit/courier/limits"
	"github.com/inboxkit/courier/provider"
	"github.com/inboxkit/courier/version"
)

var testKeys = map[string]string{
	"alice-key": "alice",
	"bob-key":   "bob",
	"carol-key": "carol",
}

func newTestServer(t *testing.T, withOpt ...courier.Option) (*Server, *dummy.Dummy) {
	t.Helper()

	return newTestServerWithConfig(t, ServerConfig{APIKeys: testKeys}, withOpt...)
}

func newTestServerWithConfig(t *testing.T, cfg ServerConfig, withOpt ...courier.Option) (*Server, *dummy.Dummy) {
	t.Helper()

	conn := dummy.NewDummy()

	conns := connection.NewInMemoryStore(
		connection.Connection{UserID: "alice", ProviderID: string(provider.Dummy), AccessToken: "access", RefreshToken: "refresh"},
		connection.Connection{UserID: "carol", ProviderID: string(provider.Dummy)},
	)

	opts := []courier.Option{
		courier.WithConnectionStore(conns),
		courier.WithFactory(provider.NewFactory(provider.WithDummy(conn))),
		courier.WithGraceWindow(courier.Move, 0),
	}

	coordinator, err := courier.New(append(opts, withOpt...)...)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, coordinator.Close(context.Background())) })

	server, err := NewServer(coordinator, cfg)
	require.NoError(t, err)

	return server, conn
}

type request struct {
	method string
	path   string
	key    string
	body   any
}

func doRequest(t *testing.T, server http.Handler, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer

	if req.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(req.body))
	}

	httpReq := httptest.NewRequest(req.method, req.path, &body)

	if req.key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.key)
	}

	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, httpReq)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var res T

	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))

	return res
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, request{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, rec.Code)

	var res healthResponse

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "ok", res.Status)
	require.Equal(t, version.Current.Version.String(), res.Version)
	require.Empty(t, res.Pending)
}

func TestAuthRequired(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, request{method: http.MethodGet, path: "/mail/count"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, server, request{method: http.MethodGet, path: "/mail/count", key: "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, request{method: http.MethodPut, path: "/mail/count", key: "alice-key"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectionErrors(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doRequest(t, server, request{method: http.MethodGet, path: "/mail/count", key: "bob-key"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, decode[errorResponse](t, rec).Reconnect)

	rec = doRequest(t, server, request{method: http.MethodGet, path: "/mail/count", key: "carol-key"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.True(t, decode[errorResponse](t, rec).Reconnect)
}

func TestThreadAndRead(t *testing.T) {
	server, conn := newTestServer(t)

	threadID := conn.CreateThread("hello", driver.LabelInbox, driver.LabelUnread)

	rec := doRequest(t, server, request{method: http.MethodGet, path: "/mail/" + string(threadID), key: "alice-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	thread := decode[threadResponse](t, rec)
	require.Equal(t, threadID, thread.ID)
	require.ElementsMatch(t, []driver.LabelID{driver.LabelInbox, driver.LabelUnread}, thread.Labels)
	require.Empty(t, thread.Pending)

	rec = doRequest(t, server, request{method: http.MethodPost, path: "/mail/" + string(threadID) + "/read", key: "alice-key"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	remote, ok := conn.Thread(threadID)
	require.True(t, ok)
	require.NotContains(t, remote.Labels, driver.LabelUnread)

	rec = doRequest(t, server, request{method: http.MethodGet, path: "/mail/missing", key: "alice-key"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadConflictsWithPendingRead(t *testing.T) {
	server, conn := newTestServer(t, courier.WithGraceWindow(courier.Read, time.Hour))

	threadID := conn.CreateThread("a", driver.LabelInbox, driver.LabelUnread)

	rec := doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions", key: "alice-key", body: map[string]any{
		"type":      "READ",
		"threadIds": []string{string(threadID)},
		"read":      true,
	}})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = doRequest(t, server, request{method: http.MethodPost, path: "/mail/" + string(threadID) + "/read", key: "alice-key"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, server, request{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[courier.ActionType]int{courier.Read: 1}, decode[healthResponse](t, rec).Pending)
}

func TestCount(t *testing.T) {
	server, conn := newTestServer(t)

	conn.CreateThread("a", driver.LabelInbox, driver.LabelUnread)
	conn.CreateThread("b", driver.LabelInbox)

	rec := doRequest(t, server, request{method: http.MethodGet, path: "/mail/count", key: "alice-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[struct {
		Counts driver.Counts `json:"counts"`
	}](t, rec)

	require.Equal(t, driver.Count{Total: 2, Unread: 1}, res.Counts[driver.LabelInbox])

	conn.FailNext(dummy.OpCount, driver.ErrPermanent)

	rec = doRequest(t, server, request{method: http.MethodGet, path: "/mail/count", key: "alice-key"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSubmitValidation(t *testing.T) {
	server, conn := newTestServer(t)

	threadID := conn.CreateThread("a", driver.LabelInbox)

	for name, body := range map[string]any{
		"missing destination": map[string]any{"type": "MOVE", "threadIds": []string{string(threadID)}},
		"unknown type":        map[string]any{"type": "SNOOZE", "threadIds": []string{string(threadID)}},
		"no threads":          map[string]any{"type": "STAR", "threadIds": []string{}, "starred": true},
		"bad destination":     map[string]any{"type": "MOVE", "threadIds": []string{string(threadID)}, "destination": "STARRED"},
		"label without add":   map[string]any{"type": "LABEL", "threadIds": []string{string(threadID)}, "labelId": "work"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions", key: "alice-key", body: body})
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	require.Zero(t, conn.MutationCount())
}

func TestSubmitAndUndo(t *testing.T) {
	server, conn := newTestServer(t, courier.WithGraceWindow(courier.Move, time.Hour))

	threadID := conn.CreateThread("a", driver.LabelInbox)

	rec := doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions", key: "alice-key", body: map[string]any{
		"type":        "MOVE",
		"threadIds":   []string{string(threadID)},
		"destination": "TRASH",
	}})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	id := decode[map[string]string](t, rec)["actionId"]
	require.NotEmpty(t, id)

	rec = doRequest(t, server, request{method: http.MethodGet, path: "/mail/" + string(threadID), key: "alice-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	thread := decode[threadResponse](t, rec)
	require.Equal(t, []driver.LabelID{driver.LabelTrash}, thread.Labels)
	require.Equal(t, []courier.ActionType{courier.Move}, thread.Pending)

	// Another user cannot undo it.
	rec = doRequest(t, server, request{method: http.MethodDelete, path: "/mail/actions/" + id, key: "bob-key"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, server, request{method: http.MethodDelete, path: "/mail/actions/" + id, key: "alice-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, request{method: http.MethodDelete, path: "/mail/actions/" + id, key: "alice-key"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions/undo", key: "alice-key"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Zero(t, conn.MutationCount())
}

func TestSubmitLimits(t *testing.T) {
	server, conn := newTestServer(t,
		courier.WithGraceWindow(courier.Move, time.Hour),
		courier.WithLimits(limits.NewActionLimits(1, 1)),
	)

	a := conn.CreateThread("a", driver.LabelInbox)
	b := conn.CreateThread("b", driver.LabelInbox)

	move := func(threadIDs ...driver.ThreadID) map[string]any {
		return map[string]any{"type": "MOVE", "threadIds": threadIDs, "destination": "TRASH"}
	}

	rec := doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions", key: "alice-key", body: move(a, b)})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions", key: "alice-key", body: move(a)})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions", key: "alice-key", body: move(b)})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "limit_exceeded", decode[errorResponse](t, rec).Code)
}

func TestBusy(t *testing.T) {
	server, conn := newTestServer(t)

	threadID := conn.CreateThread("a", driver.LabelInbox)

	release := conn.Hold()
	defer release()

	rec := doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions", key: "alice-key", body: map[string]any{
		"type":      "STAR",
		"threadIds": []string{string(threadID)},
		"starred":   true,
	}})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	busy := func() []driver.ThreadID {
		rec := doRequest(t, server, request{method: http.MethodGet, path: "/mail/busy", key: "alice-key"})
		require.Equal(t, http.StatusOK, rec.Code)

		return decode[map[string][]driver.ThreadID](t, rec)["threadIds"]
	}

	require.Eventually(t, func() bool { return len(busy()) == 1 }, 5*time.Second, 10*time.Millisecond)

	release()

	require.Eventually(t, func() bool { return len(busy()) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestEventStream(t *testing.T) {
	server, conn := newTestServer(t)

	threadID := conn.CreateThread("a", driver.LabelInbox)

	httpServer := httptest.NewServer(server)
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(httpServer.URL, "http")+"/mail/events", &websocket.DialOptions{
		HTTPHeader: http.Header{"X-Api-Key": []string{"alice-key"}},
	})
	require.NoError(t, err)

	defer ws.CloseNow() //nolint:errcheck

	rec := doRequest(t, server, request{method: http.MethodPost, path: "/mail/actions", key: "alice-key", body: map[string]any{
		"type":      "STAR",
		"threadIds": []string{string(threadID)},
		"starred":   true,
	}})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	id := decode[map[string]string](t, rec)["actionId"]

	var kinds []string

	for {
		var msg eventMessage

		require.NoError(t, wsjson.Read(ctx, ws, &msg))

		kinds = append(kinds, msg.Kind)

		if msg.Kind == "succeeded" {
			require.Equal(t, id, msg.ActionID)
			require.Equal(t, "STAR", msg.Type)
			break
		}
	}

	require.Contains(t, kinds, "loading")
	require.Contains(t, kinds, "busy")
}

func TestEventStream_Counts(t *testing.T) {
	server, conn := newTestServerWithConfig(t, ServerConfig{APIKeys: testKeys, CountsInterval: 10 * time.Millisecond})

	conn.CreateThread("a", driver.LabelInbox)
	conn.CreateThread("b", driver.LabelInbox)

	httpServer := httptest.NewServer(server)
	defer httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(httpServer.URL, "http")+"/mail/events", &websocket.DialOptions{
		HTTPHeader: http.Header{"X-Api-Key": []string{"alice-key"}},
	})
	require.NoError(t, err)

	defer ws.CloseNow() //nolint:errcheck

	var msg eventMessage

	require.NoError(t, wsjson.Read(ctx, ws, &msg))
	require.Equal(t, "counts", msg.Kind)
	require.Equal(t, 2, msg.Counts[driver.LabelInbox].Total)

	require.NoError(t, ws.Close(websocket.StatusNormalClosure, ""))
}

func TestToMessageFiltersOtherUsers(t *testing.T) {
	_, ok := toMessage("alice", events.ThreadsBusy{UserID: "bob", ThreadIDs: []driver.ThreadID{"a"}})
	require.False(t, ok)

	_, ok = toMessage("alice", events.ActionSucceeded{Action: events.Action{UserID: "bob"}})
	require.False(t, ok)

	msg, ok := toMessage("alice", events.ThreadsBusy{UserID: "alice", ThreadIDs: []driver.ThreadID{"a"}})
	require.True(t, ok)
	require.Equal(t, "busy", msg.Kind)
}
