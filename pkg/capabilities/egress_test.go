package capabilities

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestMatchHost(t *testing.T) {
	assert.True(t, matchHost("*", "anything.test"))
	assert.True(t, matchHost("issuer.test", "issuer.test"))
	assert.True(t, matchHost("*.issuer.test", "api.issuer.test"))
	assert.True(t, matchHost("*.Issuer.Test", "a.b.issuer.test"))
	assert.False(t, matchHost("*.issuer.test", "issuer.test"))
	assert.False(t, matchHost("*.issuer.test", "evilissuer.test"))
	assert.False(t, matchHost("issuer.test", "api.issuer.test"))
}

func TestEgress_HostLists(t *testing.T) {
	g, err := NewEgress(EgressPolicy{
		AllowedHosts: []string{"*.issuer.test", "verifier.test"},
		DeniedHosts:  []string{"blocked.issuer.test"},
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, g.Check(ctx, "GET", mustURL(t, "https://api.issuer.test/x")))
	assert.NoError(t, g.Check(ctx, "GET", mustURL(t, "http://VERIFIER.test:8080/")))
	assert.ErrorIs(t, g.Check(ctx, "GET", mustURL(t, "https://blocked.issuer.test/")), ErrEgressDenied)
	assert.ErrorIs(t, g.Check(ctx, "GET", mustURL(t, "https://elsewhere.test/")), ErrEgressDenied)
}

func TestEgress_RequireTLS(t *testing.T) {
	g, err := NewEgress(EgressPolicy{RequireTLS: true})
	require.NoError(t, err)
	assert.ErrorIs(t, g.Check(context.Background(), "GET", mustURL(t, "http://issuer.test/")), ErrEgressDenied)
	assert.NoError(t, g.Check(context.Background(), "GET", mustURL(t, "https://issuer.test/")))
}

func TestEgress_Expression(t *testing.T) {
	g, err := NewEgress(EgressPolicy{
		Expression: `request.method == "GET" && request.host.endsWith(".test") && request.scheme == "https"`,
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, g.Check(ctx, "GET", mustURL(t, "https://issuer.test/offer")))
	assert.ErrorIs(t, g.Check(ctx, "POST", mustURL(t, "https://issuer.test/offer")), ErrEgressDenied)
	assert.ErrorIs(t, g.Check(ctx, "GET", mustURL(t, "https://issuer.example/offer")), ErrEgressDenied)
}

func TestEgress_InvalidExpressions(t *testing.T) {
	_, err := NewEgress(EgressPolicy{Expression: `request.method ==`})
	assert.ErrorContains(t, err, "compile expression")

	_, err = NewEgress(EgressPolicy{Expression: `request.method`})
	assert.ErrorContains(t, err, "must return bool")
}

func TestEgress_RateLimit(t *testing.T) {
	g, err := NewEgress(EgressPolicy{RequestsPerMinute: 1, Burst: 1})
	require.NoError(t, err)
	u := mustURL(t, "https://issuer.test/")

	require.NoError(t, g.Check(context.Background(), "GET", u))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = g.Check(ctx, "GET", u)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEgressDenied)
}

func TestEgress_NilAllowsEverything(t *testing.T) {
	var g *Egress
	assert.NoError(t, g.Check(context.Background(), "DELETE", mustURL(t, "http://anywhere/")))
}
