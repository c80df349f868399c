package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc123", want: "abc123"},
		{name: "trims", header: "Bearer   abc123  ", want: "abc123"},
		{name: "missing", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic abc", wantErr: true},
		{name: "empty token", header: "Bearer    ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	tokens := []TokenConfig{
		{Token: "reader", Scopes: []string{ScopePipelineRO}},
		{Token: "writer", Scopes: []string{" pipeline:rw ", "events:rw", ""}},
	}

	p, ok := Authenticate("admin-key", "admin-key", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopePipelineRW, ScopeEventsRO))

	p, ok = Authenticate("reader", "admin-key", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopePipelineRO))
	assert.False(t, HasAnyScope(p, ScopePipelineRW))

	p, ok = Authenticate("writer", "admin-key", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, ScopePipelineRO), "rw implies ro")
	assert.True(t, HasAnyScope(p, ScopeEventsRO))

	_, ok = Authenticate("nope", "admin-key", tokens)
	assert.False(t, ok)

	_, ok = Authenticate("", "", nil)
	assert.False(t, ok, "empty legacy key must not match empty token")
}

func TestSecretMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, SecretMatches("s3cret", "s3cret"))
	assert.False(t, SecretMatches("s3cret", "s3cre7"))
	assert.False(t, SecretMatches("short", "s3cret"))
	assert.False(t, SecretMatches("", ""))
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()

	_, ok := PrincipalFromContext(t.Context())
	assert.False(t, ok)

	ctx := WithPrincipal(t.Context(), Principal{Token: "x"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "x", p.Token)
}

func TestKnownScope(t *testing.T) {
	t.Parallel()

	assert.True(t, KnownScope("pipeline:ro"))
	assert.False(t, KnownScope("jobs:ro"))
}
