package lichess

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/valyala/fasthttp"
)

// Stream is a long-lived NDJSON feed. A background goroutine reads lines
// off the response body into a channel so that Next can honor context
// cancellation; blank heartbeat lines are dropped at this layer.
type Stream struct {
	name string

	resp  *fasthttp.Response
	lines chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newStream(name string, resp *fasthttp.Response) *Stream {
	s := &Stream{
		name:  name,
		resp:  resp,
		lines: make(chan []byte, 8),
		done:  make(chan struct{}),
	}
	// Capture the body reader before the goroutine starts: a concurrent
	// Close would nil the response's stream out from under readLoop.
	go s.readLoop(resp.BodyStream())
	return s
}

func (s *Stream) Name() string { return s.name }

// Next returns the next non-empty line, io.EOF after the feed closes,
// or the context error.
func (s *Stream) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return nil, io.EOF
		}
		return line, nil
	}
}

// Close tears the connection down; a blocked reader unblocks with EOF.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.resp.CloseBodyStream() //nolint:errcheck
	})
}

func (s *Stream) readLoop(body io.Reader) {
	defer func() {
		close(s.lines)
		s.Close()
		fasthttp.ReleaseResponse(s.resp)
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 16*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- []byte(line):
		case <-s.done:
			return
		}
	}
}
