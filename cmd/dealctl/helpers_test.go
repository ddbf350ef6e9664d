package main

import (
	"testing"
	"time"

	"deal-gateway/auth"
)

func signForTest(t *testing.T, secret string) string {
	t.Helper()
	tok, err := auth.NewVerifier(secret).Sign("tester", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}
