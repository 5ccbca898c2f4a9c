package capabilities

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

const (
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

type HTTPConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	Egress       *Egress
	Logger       *slog.Logger
	// Client overrides the transport, mainly for tests.
	Client *http.Client
}

// HTTPClient answers Http effects with exactly one attempt per request.
type HTTPClient struct {
	client    *http.Client
	timeout   time.Duration
	maxBody   int64
	userAgent string
	egress    *Egress
	logger    *slog.Logger
}

func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	h := &HTTPClient{
		client:    withoutRedirects(cfg.Client),
		timeout:   cfg.Timeout,
		maxBody:   cfg.MaxBodyBytes,
		userAgent: cfg.UserAgent,
		egress:    cfg.Egress,
		logger:    cfg.Logger,
	}
	if h.timeout <= 0 {
		h.timeout = DefaultHTTPTimeout
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	if h.logger == nil {
		h.logger = slog.Default().With("component", "http")
	}
	return h
}

// withoutRedirects returns a copy of c (or a fresh client) that hands 3xx
// responses back to the caller. Each effect is one network request, and a
// followed redirect would skip the egress check.
func withoutRedirects(c *http.Client) *http.Client {
	out := &http.Client{}
	if c != nil {
		cp := *c
		out = &cp
	}
	out.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return out
}

// parseTarget accepts absolute http and https URLs only.
func parseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func (h *HTTPClient) Do(ctx context.Context, req wire.HTTPRequest) wire.HTTPResult {
	u, err := parseTarget(req.URL)
	if err != nil {
		return wire.HTTPFailed(wire.HTTPErrorURL, err.Error())
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.egress.Check(ctx, method, u); err != nil {
		return h.failure(err)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	r, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return wire.HTTPFailed(wire.HTTPErrorIO, err.Error())
	}
	if h.userAgent != "" {
		r.Header.Set("User-Agent", h.userAgent)
	}
	for _, hdr := range req.Headers {
		if strings.EqualFold(hdr.Name, "Host") {
			r.Host = hdr.Value
			continue
		}
		r.Header.Add(hdr.Name, hdr.Value)
	}

	start := time.Now()
	resp, err := h.client.Do(r)
	if err != nil {
		return h.failure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody+1))
	if err != nil {
		return h.failure(err)
	}
	if int64(len(data)) > h.maxBody {
		return wire.HTTPFailed(wire.HTTPErrorIO, fmt.Sprintf("response body exceeds %d bytes", h.maxBody))
	}

	h.logger.DebugContext(ctx, "http exchange",
		"method", method,
		"host", u.Host,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return wire.HTTPOk(wire.HTTPResponse{
		Status:  uint16(resp.StatusCode), //nolint:gosec // status codes fit in uint16
		Headers: flattenHeaders(resp.Header),
		Body:    data,
	})
}

func (h *HTTPClient) failure(err error) wire.HTTPResult {
	if isTimeout(err) {
		return wire.HTTPFailed(wire.HTTPErrorTimeout, "")
	}
	return wire.HTTPFailed(wire.HTTPErrorIO, err.Error())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// flattenHeaders returns one pair per header value, sorted by name. Values
// of the same name keep their received order.
func flattenHeaders(h http.Header) []wire.HTTPHeader {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []wire.HTTPHeader
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, wire.HTTPHeader{Name: name, Value: v})
		}
	}
	return out
}
