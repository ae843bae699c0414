package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func dialWatch(t *testing.T, ctx context.Context, base string, c *http.Client, screen string) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(base)
	if err != nil {
		t.Fatal(err)
	}
	header := http.Header{}
	for _, ck := range c.Jar.Cookies(u) {
		header.Add("Cookie", ck.String())
	}

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(base, "http")+"/ui/"+screen+"/ws", &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestWatch_PushesTransitions(t *testing.T) {
	gen := &fakeGenerator{gate: make(chan struct{})}
	srv := newTestServer(t, gen)
	ts, c := browser(t, srv)

	post(t, c, ts.URL+"/ui/schedule/generate", nil)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	conn := dialWatch(t, ctx, ts.URL, c, "schedule")

	var first Status
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if first.Screen != "schedule" || first.Phase != "loading" || first.View != "loading" {
		t.Fatalf("first status = %+v", first)
	}

	close(gen.gate)

	var next Status
	if err := wsjson.Read(ctx, conn, &next); err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if next.Phase != "success" || next.View != "content" {
		t.Errorf("next status = %+v", next)
	}
	if next.Version <= first.Version {
		t.Errorf("version did not advance: %d -> %d", first.Version, next.Version)
	}

	conn.Close(websocket.StatusNormalClosure, "")
	srv.Wait()
}

func TestWatch_RequiresSession(t *testing.T) {
	ts, _ := browser(t, newTestServer(t, &fakeGenerator{}))

	resp, err := http.Get(ts.URL + "/ui/lesson/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestWatch_UnknownScreen(t *testing.T) {
	ts, c := browser(t, newTestServer(t, &fakeGenerator{}))
	get(t, c, ts.URL+"/")

	u, _ := url.Parse(ts.URL)
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/ui/notification/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, ck := range c.Jar.Cookies(u) {
		req.AddCookie(ck)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
