package main

import (
	"net/http"
	"testing"

	"github.com/ilmarik/fitcoach/internal/e2etest"
	"github.com/ilmarik/fitcoach/internal/testhelpers"
)

// startTestServer boots the real server against an in-memory database and
// returns a handle for driving it over HTTP.
func startTestServer(t *testing.T) *e2etest.Server {
	t.Helper()
	lookupEnv := func(key string) (string, bool) {
		switch key {
		case "FITCOACH_ADDR":
			return "localhost:0", true
		case "FITCOACH_SQLITE_URL":
			return ":memory:", true
		case "FITCOACH_AUTH_JWT_SECRET":
			return e2etest.TestJWTSecret, true
		default:
			return "", false
		}
	}
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), lookupEnv, run)
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	return server
}

// decodeData unwraps the JSON response envelope into the given payload type.
func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var env struct {
		Success bool   `json:"success"`
		Data    T      `json:"data"`
		Error   string `json:"error"`
	}
	if err := e2etest.DecodeJSON(resp, &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !env.Success {
		t.Fatalf("request failed: %s", env.Error)
	}
	return env.Data
}

// mustStatus asserts the response status and discards the body.
func mustStatus(t *testing.T, resp *http.Response, err error, want int) {
	t.Helper()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Fatalf("close response body: %v", closeErr)
	}
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}
