package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestClient_BranchHead verifies the branch endpoint is read and the token sent
func TestClient_BranchHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/demo/branches/main", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"main","commit":{"sha":"aaa111"}}`))
	}))
	defer server.Close()

	client, err := NewClient("tok", server.URL, zap.NewNop())
	require.NoError(t, err)

	sha, err := client.BranchHead(context.Background(), "octo", "demo", "main")
	require.NoError(t, err)
	assert.Equal(t, "aaa111", sha)
}

// TestClient_BranchHeadError verifies API failures are returned
func TestClient_BranchHeadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer server.Close()

	client, err := NewClient("tok", server.URL, zap.NewNop())
	require.NoError(t, err)

	_, err = client.BranchHead(context.Background(), "octo", "demo", "main")
	assert.Error(t, err)
}

// TestClient_BranchHeadMissingSHA verifies an empty commit is an error
func TestClient_BranchHeadMissingSHA(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"main"}`))
	}))
	defer server.Close()

	client, err := NewClient("tok", server.URL, zap.NewNop())
	require.NoError(t, err)

	_, err = client.BranchHead(context.Background(), "octo", "demo", "main")
	assert.ErrorContains(t, err, "no head commit")
}
