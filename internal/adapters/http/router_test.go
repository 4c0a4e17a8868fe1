package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

type testServer struct {
	*httptest.Server
	reg *app.Registry
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>meet</html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Mode:           "test",
		StaticPath:     static,
		Secret:         "test-secret",
		AllowedOrigins: []string{"*"},
		ReadLimit:      4096,
		PingPeriod:     time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		SendBuffer:     16,
		ICEServers:     []config.ICEServer{
			{URLs: []string{"stun:stun.example:3478"}},
			{URLs: []string{"turn:turn.example:3478"}, Username: "u", Credential: "p"},
		},
	}
	for _, f := range mutate {
		f(cfg)
	}

	m := metrics.New(prometheus.NewRegistry())
	orch := &app.Orchestrator{Registry: app.NewRegistry(m), Metrics: m}
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, orch, m))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{Server: srv, reg: orch.Registry}
}

func (s *testServer) dial(t *testing.T, room string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/" + room
	before := s.reg.MemberCount(domain.RoomID(room))
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	s.waitMembers(t, room, before+1)
	return c
}

func (s *testServer) waitMembers(t *testing.T, room string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.reg.MemberCount(domain.RoomID(room)) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s: want %d members, have %d", room, n, s.reg.MemberCount(domain.RoomID(room)))
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("message type = %d", mt)
	}
	return string(data)
}

func expectSilence(t *testing.T, c *websocket.Conn) {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, data, err := c.ReadMessage(); err == nil {
		t.Fatalf("unexpected message: %s", data)
	}
}

func TestSignal_JoinAndChatRelay(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "abcd12")
	b := s.dial(t, "abcd12")

	if err := b.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","name":"B"}`)); err != nil {
		t.Fatal(err)
	}
	if got := readText(t, a); got != `{"type":"join","id":"B"}` {
		t.Fatalf("A got %s", got)
	}

	chat := `{"type":"chat","from":"A","msg":"hi"}`
	if err := a.WriteMessage(websocket.TextMessage, []byte(chat)); err != nil {
		t.Fatal(err)
	}
	if got := readText(t, b); got != chat {
		t.Fatalf("B got %s", got)
	}
	expectSilence(t, a)
}

func TestSignal_UnicastIsClientSideFiltering(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "r")
	b := s.dial(t, "r")
	c := s.dial(t, "r")

	offer := `{"type":"offer","to":"B","from":"A","sdp":{"type":"offer","sdp":"v=0"}}`
	if err := a.WriteMessage(websocket.TextMessage, []byte(offer)); err != nil {
		t.Fatal(err)
	}
	// The server does not route on "to": every other member gets it verbatim.
	if got := readText(t, b); got != offer {
		t.Fatalf("B got %s", got)
	}
	if got := readText(t, c); got != offer {
		t.Fatalf("C got %s", got)
	}
}

func TestSignal_DisconnectDeletesRoom(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "zz9")
	if !s.reg.Has("zz9") {
		t.Fatal("room zz9 not created")
	}
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.Close()
	s.waitMembers(t, "zz9", 0)
	if s.reg.Has("zz9") {
		t.Fatal("room zz9 still registered")
	}
}

func TestSignal_MalformedClosesOnlySender(t *testing.T) {
	s := newTestServer(t)
	bad := s.dial(t, "r")
	good := s.dial(t, "r")

	if err := bad.WriteMessage(websocket.TextMessage, []byte(`{oops`)); err != nil {
		t.Fatal(err)
	}
	_ = bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := bad.ReadMessage(); err == nil {
		t.Fatal("malformed sender kept its connection")
	}
	s.waitMembers(t, "r", 1)
	expectSilence(t, good)
}

func TestSignal_SeveredPeer(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "r")
	b := s.dial(t, "r")

	// Abrupt close without a close frame.
	_ = b.UnderlyingConn().Close()

	_ = a.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","from":"A","msg":"still here?"}`))
	s.waitMembers(t, "r", 1)
	expectSilence(t, a)
}

func TestSignal_RejectsOversizedRoomID(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/ws/" + strings.Repeat("x", domain.MaxRoomIDLen+1))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(s.reg.Rooms()) != 0 {
		t.Fatal("failed upgrade touched room state")
	}
}

func TestSignal_OriginAllowList(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.AllowedOrigins = []string{"https://meet.example"}
	})
	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/r"

	h := http.Header{"Origin": []string{"https://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, h); err == nil {
		t.Fatal("foreign origin accepted")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	h = http.Header{"Origin": []string{"https://meet.example"}}
	c, _, err := websocket.DefaultDialer.Dial(wsURL, h)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	c.Close()
}

func TestRouter_RootRedirectsToRandomRoom(t *testing.T) {
	s := newTestServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(s.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/room/") || len(strings.TrimPrefix(loc, "/room/")) != 6 {
		t.Fatalf("Location = %q", loc)
	}
}

func TestRouter_RoomPage(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/room/abcd12")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var ct bool
	for _, c := range resp.Cookies() {
		if c.Name == "MeetSessions" {
			ct = true
		}
	}
	if !ct {
		t.Fatal("client token cookie not set")
	}
}

func TestRouter_API(t *testing.T) {
	s := newTestServer(t)
	s.dial(t, "abcd12")
	s.dial(t, "abcd12")

	var rooms struct {
		Rooms []struct {
			ID          string `json:"id"`
			ClientCount int    `json:"client_count"`
		} `json:"rooms"`
	}
	getJSON(t, s.URL+"/api/rooms", http.StatusOK, &rooms)
	if len(rooms.Rooms) != 1 || rooms.Rooms[0].ID != "abcd12" || rooms.Rooms[0].ClientCount != 2 {
		t.Fatalf("rooms = %+v", rooms)
	}

	var room struct {
		Count   int               `json:"count"`
		Members []json.RawMessage `json:"members"`
	}
	getJSON(t, s.URL+"/api/rooms/abcd12", http.StatusOK, &room)
	if room.Count != 2 || len(room.Members) != 2 {
		t.Fatalf("room = %+v", room)
	}
	getJSON(t, s.URL+"/api/rooms/nope", http.StatusNotFound, nil)

	var ice struct {
		ICEServers []struct {
			URLs       []string `json:"urls"`
			Username   string   `json:"username"`
			Credential string   `json:"credential"`
		} `json:"iceServers"`
	}
	getJSON(t, s.URL+"/api/ice", http.StatusOK, &ice)
	if len(ice.ICEServers) != 2 || ice.ICEServers[0].URLs[0] != "stun:stun.example:3478" {
		t.Fatalf("ice = %+v", ice)
	}
	if turn := ice.ICEServers[1]; turn.Username != "u" || turn.Credential != "p" {
		t.Fatalf("turn = %+v", turn)
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.dial(t, "r")
	getJSON(t, s.URL+"/healthz", http.StatusOK, nil)

	resp, err := http.Get(s.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "meet_members 1") {
		t.Fatalf("metrics missing member gauge:\n%s", buf.String())
	}
}

func getJSON(t *testing.T, url string, status int, into any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != status {
		t.Fatalf("GET %s: status = %d, want %d", url, resp.StatusCode, status)
	}
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}
