package capabilities

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// DefaultMaxLineBytes bounds one line of an event stream.
const DefaultMaxLineBytes = 1 << 20

type SSEConfig struct {
	MaxLineBytes int
	Egress       *Egress
	Logger       *slog.Logger
	Client       *http.Client
}

// SSEClient answers ServerSentEvents effects. It emits one SSEChunk per
// dispatched event carrying the event re-serialized as a canonical block
// ("id", "event", "retry" then one "data" line per data line, ending with a
// blank line), then SSEDone when the server closes the stream.
type SSEClient struct {
	client  *http.Client
	maxLine int
	egress  *Egress
	logger  *slog.Logger
}

func NewSSEClient(cfg SSEConfig) *SSEClient {
	s := &SSEClient{client: withoutRedirects(cfg.Client), maxLine: cfg.MaxLineBytes, egress: cfg.Egress, logger: cfg.Logger}
	if s.maxLine <= 0 {
		s.maxLine = DefaultMaxLineBytes
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "sse")
	}
	return s
}

func (s *SSEClient) Subscribe(ctx context.Context, req wire.SSERequest, emit func(wire.SSEResponse)) {
	fail := func(format string, args ...any) {
		if ctx.Err() != nil {
			return
		}
		emit(wire.SSEError{Message: fmt.Sprintf(format, args...)})
	}

	u, err := parseTarget(req.URL)
	if err != nil {
		fail("invalid url: %v", err)
		return
	}
	if err := s.egress.Check(ctx, http.MethodGet, u); err != nil {
		fail("%v", err)
		return
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		fail("%v", err)
		return
	}
	r.Header.Set("Accept", "text/event-stream")
	r.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(r)
	if err != nil {
		fail("%v", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fail("unexpected status %d", resp.StatusCode)
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), s.maxLine)
	scanner.Split(scanLines)

	p := &eventParser{}
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if ev, ok := p.feed(line); ok {
			if ctx.Err() != nil {
				return
			}
			emit(wire.SSEChunk{Data: ev.block()})
		}
	}
	if err := scanner.Err(); err != nil {
		fail("read stream: %v", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	// An event without its terminating blank line is discarded at EOF.
	s.logger.DebugContext(ctx, "sse stream closed", "host", u.Host)
	emit(wire.SSEDone{})
}

// scanLines splits on LF, CR or CRLF. A CR at the end of the buffer is held
// back until the next byte shows whether it starts a CRLF pair.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type sseEvent struct {
	id    string
	hasID bool
	typ   string
	data  string
	retry string
}

// block renders the event in canonical text/event-stream form.
func (e sseEvent) block() []byte {
	var b strings.Builder
	if e.hasID {
		b.WriteString("id: " + e.id + "\n")
	}
	if e.typ != "" {
		b.WriteString("event: " + e.typ + "\n")
	}
	if e.retry != "" {
		b.WriteString("retry: " + e.retry + "\n")
	}
	for _, line := range strings.Split(e.data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// eventParser accumulates fields until a blank line dispatches the event.
// The last event id persists across events as the stream format requires.
type eventParser struct {
	lastID  string
	hasID   bool
	typ     string
	data    strings.Builder
	hasData bool
	retry   string
}

func (p *eventParser) feed(line string) (sseEvent, bool) {
	if line == "" {
		return p.dispatch()
	}
	if strings.HasPrefix(line, ":") {
		return sseEvent{}, false
	}

	field, value := line, ""
	if i := strings.IndexByte(line, ':'); i >= 0 {
		field, value = line[:i], strings.TrimPrefix(line[i+1:], " ")
	}

	switch field {
	case "event":
		p.typ = value
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.lastID, p.hasID = value, true
		}
	case "retry":
		if _, err := strconv.ParseUint(value, 10, 64); err == nil {
			p.retry = value
		}
	}
	return sseEvent{}, false
}

func (p *eventParser) dispatch() (sseEvent, bool) {
	defer func() {
		p.typ, p.retry, p.hasData = "", "", false
		p.data.Reset()
	}()
	if !p.hasData {
		return sseEvent{}, false
	}
	return sseEvent{
		id:    p.lastID,
		hasID: p.hasID,
		typ:   p.typ,
		data:  p.data.String(),
		retry: p.retry,
	}, true
}
