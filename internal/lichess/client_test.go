package lichess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL,
		WithHeaderProvider(BearerHeaders("secret-token")),
		WithTimeout(5*time.Second),
		WithRetry(3))
}

func TestAccountSendsBearerToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"id":"alice","username":"Alice"}`)
	}))

	info, err := client.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if info.Username != "Alice" {
		t.Fatalf("username: %q", info.Username)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("authorization header: %q", gotAuth)
	}
}

func TestActiveGameIDs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/account/playing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"nowPlaying":[{"gameId":"abcd1234","speed":"blitz"},{"gameId":"","speed":"rapid"},{"gameId":"wxyz5678"}]}`)
	}))

	ids, err := client.ActiveGameIDs(context.Background())
	if err != nil {
		t.Fatalf("ActiveGameIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "abcd1234" || ids[1] != "wxyz5678" {
		t.Fatalf("ids: %v", ids)
	}
}

func TestExportOngoingSkipsMalformedLines(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"abcd1234","status":"started","speed":"rapid","moves":"e4 e5"}
not json
{"noid":true}
{"id":"wxyz5678","status":"mate","moves":"f3 e5 g4 Qh4#"}
`)
	}))

	games, err := client.ExportOngoing(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ExportOngoing: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %v", games)
	}
	if games[0].ID != "abcd1234" || games[0].Moves != "e4 e5" {
		t.Fatalf("first game: %+v", games[0])
	}
	if games[1].Status != "mate" {
		t.Fatalf("second game: %+v", games[1])
	}
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := client.Account(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRateLimitMapsToSentinelWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	if _, err := client.ExportOngoing(context.Background(), "alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("429 must not be retried, got %d calls", calls.Load())
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"id":"alice","username":"Alice"}`)
	}))

	info, err := client.Account(context.Background())
	if err != nil {
		t.Fatalf("Account after retries: %v", err)
	}
	if info.ID != "alice" {
		t.Fatalf("account: %+v", info)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestStreamEventsYieldsLinesThenEOF(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stream/event" {
			http.NotFound(w, r)
			return
		}
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "{\"type\":\"gameStart\",\"game\":{\"id\":\"abcd1234\"}}\n")
		flusher.Flush()
		// Heartbeat lines are dropped before delivery.
		fmt.Fprint(w, "\n\n")
		fmt.Fprint(w, "{\"type\":\"gameFinish\",\"game\":{\"id\":\"abcd1234\"}}\n")
		flusher.Flush()
	}))

	stream, err := client.StreamEvents(context.Background())
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	line, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("first line: %v", err)
	}
	if string(line) != `{"type":"gameStart","game":{"id":"abcd1234"}}` {
		t.Fatalf("first line: %s", line)
	}

	if _, err := stream.Next(ctx); err != nil {
		t.Fatalf("second line: %v", err)
	}
	if _, err := stream.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after the server closed, got %v", err)
	}
}

func TestStreamGamePath(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, "{\"type\":\"gameFull\",\"state\":{\"moves\":\"\",\"status\":\"started\"}}\n")
	}))

	stream, err := client.StreamGame(context.Background(), "board", "abcd1234")
	if err != nil {
		t.Fatalf("StreamGame: %v", err)
	}
	defer stream.Close()

	if gotPath != "/api/board/game/stream/abcd1234" {
		t.Fatalf("path: %q", gotPath)
	}
	if stream.Name() != "board-stream" {
		t.Fatalf("name: %q", stream.Name())
	}
}

func TestStreamOpenRejectsNon2xx(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if _, err := client.StreamGame(context.Background(), "bot", "abcd1234"); err == nil {
		t.Fatalf("expected an open error for 404")
	}
}

func TestNextHonorsContext(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	stream, err := client.StreamEvents(context.Background())
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := stream.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestStatusInProgress(t *testing.T) {
	for _, status := range []string{"", "created", "started", "Started"} {
		if !StatusInProgress(status) {
			t.Fatalf("%q should be in progress", status)
		}
	}
	for _, status := range []string{"mate", "resign", "outoftime", "draw", "aborted"} {
		if StatusInProgress(status) {
			t.Fatalf("%q should be terminal", status)
		}
	}
}

func TestFastSpeed(t *testing.T) {
	for _, speed := range []string{"ultraBullet", "bullet", "blitz"} {
		if !FastSpeed(speed) {
			t.Fatalf("%q should be fast", speed)
		}
	}
	for _, speed := range []string{"rapid", "classical", "correspondence", ""} {
		if FastSpeed(speed) {
			t.Fatalf("%q should be standard", speed)
		}
	}
}
