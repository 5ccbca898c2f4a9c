package capabilities

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/cel-go/cel"
	"golang.org/x/time/rate"
)

// ErrEgressDenied is returned when the egress policy rejects a request.
var ErrEgressDenied = errors.New("egress denied")

// EgressPolicy limits where the Http and SSE handlers may connect.
//
// Host patterns are exact host names or "*.suffix", which matches any
// subdomain of suffix. "*" matches every host. Deny wins over allow; an
// empty allow list allows every host not denied.
type EgressPolicy struct {
	AllowedHosts []string `yaml:"allowed_hosts" json:"allowed_hosts"`
	DeniedHosts  []string `yaml:"denied_hosts" json:"denied_hosts"`
	RequireTLS   bool     `yaml:"require_tls" json:"require_tls"`
	// Expression is a CEL predicate over request.method, request.url,
	// request.host and request.scheme that must evaluate to true.
	Expression        string `yaml:"expression" json:"expression"`
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int    `yaml:"burst" json:"burst"`
}

// Egress enforces an EgressPolicy. A nil *Egress allows everything.
type Egress struct {
	policy  EgressPolicy
	program cel.Program
	limiter *rate.Limiter
}

func NewEgress(p EgressPolicy) (*Egress, error) {
	g := &Egress{policy: p}

	if p.Expression != "" {
		env, err := cel.NewEnv(cel.Variable("request", cel.MapType(cel.StringType, cel.StringType)))
		if err != nil {
			return nil, fmt.Errorf("egress: cel env: %w", err)
		}
		ast, issues := env.Compile(p.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("egress: compile expression: %w", issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("egress: expression must return bool, got %v", ast.OutputType())
		}
		prg, err := env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
		if err != nil {
			return nil, fmt.Errorf("egress: program: %w", err)
		}
		g.program = prg
	}

	if p.RequestsPerMinute > 0 {
		burst := p.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(p.RequestsPerMinute)/60.0), burst)
	}
	return g, nil
}

// Check decides whether method may be sent to u, then waits for the rate
// limiter. The returned error wraps ErrEgressDenied for a policy decision
// or is the limiter's context error.
func (g *Egress) Check(ctx context.Context, method string, u *url.URL) error {
	if g == nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())

	if g.policy.RequireTLS && u.Scheme != "https" {
		return fmt.Errorf("%w: TLS required for %s", ErrEgressDenied, host)
	}
	for _, pattern := range g.policy.DeniedHosts {
		if matchHost(pattern, host) {
			return fmt.Errorf("%w: host %s is denied", ErrEgressDenied, host)
		}
	}
	if len(g.policy.AllowedHosts) > 0 {
		allowed := false
		for _, pattern := range g.policy.AllowedHosts {
			if matchHost(pattern, host) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: host %s is not allowed", ErrEgressDenied, host)
		}
	}

	if g.program != nil {
		out, _, err := g.program.Eval(map[string]any{
			"request": map[string]string{
				"method": method,
				"url":    u.String(),
				"host":   host,
				"scheme": u.Scheme,
			},
		})
		if err != nil {
			return fmt.Errorf("%w: expression: %w", ErrEgressDenied, err)
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			return fmt.Errorf("%w: rejected by expression", ErrEgressDenied)
		}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("egress: rate limit: %w", err)
		}
	}
	return nil
}

func matchHost(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	default:
		return host == pattern
	}
}
