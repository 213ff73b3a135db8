package main

import (
	"testing"
)

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	server := startTestServer(t)
	ctx := t.Context()
	client := server.Client()

	// Protected endpoints reject anonymous requests.
	resp, err := client.Get(ctx, "/split/plan")
	mustStatus(t, resp, err, 401)

	// Garbage tokens are rejected.
	resp, err = client.PostJSON(ctx, "/api/session", map[string]string{"token": "not-a-jwt"})
	mustStatus(t, resp, err, 401)

	// Logging in twice with the same subject maps to the same user record.
	userID, err := client.LoginAs(ctx, "alice", "Alice", false)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	again, err := client.LoginAs(ctx, "alice", "Alice Updated", false)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if again != userID {
		t.Errorf("second login user id = %d, want %d", again, userID)
	}

	// Authenticated but without a plan: not found rather than unauthorized.
	resp, err = client.Get(ctx, "/split/plan")
	mustStatus(t, resp, err, 404)

	// Coach endpoints stay off limits for regular clients.
	resp, err = client.Get(ctx, "/coach/waitlist/rank?date=2030-01-07&start=10:00&end=11:00")
	mustStatus(t, resp, err, 401)

	// Logout drops the session.
	resp, err = client.PostJSON(ctx, "/api/logout", nil)
	mustStatus(t, resp, err, 200)
	resp, err = client.Get(ctx, "/split/plan")
	mustStatus(t, resp, err, 401)
}
