package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeDealAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deals":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_GuestQuotaPersistsAcrossRuns(t *testing.T) {
	srv := fakeDealAPI(t)
	db := filepath.Join(t.TempDir(), "quota.db")
	base := []string{"dealctl", "--upstream", srv.URL, "--quota-db", db}

	for _, q := range []string{"tv", "phone", "laptop"} {
		require.NoError(t, run(append(base, "search", q)))
	}
	err := run(append(base, "search", "camera"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily guest search limit")
}

func TestRun_SignedInUserIsUnlimited(t *testing.T) {
	srv := fakeDealAPI(t)
	db := filepath.Join(t.TempDir(), "quota.db")

	// assina um token com o mesmo segredo usado na verificação
	tok := signForTest(t, "s3cret")
	base := []string{"dealctl", "--upstream", srv.URL, "--quota-db", db, "--secret", "s3cret", "--token", tok}
	for i := 0; i < 5; i++ {
		require.NoError(t, run(append(base, "search", "tv")))
	}
}

func TestRun_RejectsBadToken(t *testing.T) {
	srv := fakeDealAPI(t)
	db := filepath.Join(t.TempDir(), "quota.db")
	err := run([]string{"dealctl", "--upstream", srv.URL, "--quota-db", db, "--secret", "s3cret", "--token", "nope", "quota"})
	assert.Error(t, err)
}

func TestRun_DealNeedsID(t *testing.T) {
	assert.Error(t, run([]string{"dealctl", "deal"}))
}
