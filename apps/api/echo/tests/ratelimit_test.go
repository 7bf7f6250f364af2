package tests

import (
	"net/http"
	"testing"

	"github.com/darasahq/darasa/core/user"
)

// The identity limiter keys buckets on the authenticated user, not the client
// IP: two users behind the same address must not share a bucket, and the JWT
// guard must still answer before any throttling happens.
func Test_userRateLimit_perIdentity(t *testing.T) {
	resetDB(t)

	conf := testConfig()
	conf.TestMode = false // enable the limiters
	conf.Server.UserRateLimit = 0.001
	conf.Server.AnonRateLimit = 100
	conf.Server.RateBurst = 1
	limited := newTestServer(conf)

	usrA := createUser(t, "A", "a@test.cd", "", user.RoleStudent, "", true)
	usrB := createUser(t, "B", "b@test.cd", "", user.RoleStudent, "", true)

	send := func(token, path string) int {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	// httptest requests all share the same RemoteAddr
	if code := send(getToken(t, usrA), "/v1/users/"+usrA.ID); code != http.StatusOK {
		t.Fatalf("failed! first request code = %v; want %v", code, http.StatusOK)
	}
	if code := send(getToken(t, usrA), "/v1/users/"+usrA.ID); code != http.StatusTooManyRequests {
		t.Errorf("failed! exhausted bucket code = %v; want %v", code, http.StatusTooManyRequests)
	}
	if code := send(getToken(t, usrB), "/v1/users/"+usrB.ID); code != http.StatusOK {
		t.Errorf("failed! second identity code = %v; want %v", code, http.StatusOK)
	}

	// anonymous requests are rejected by the JWT guard, not throttled
	if code := send("", "/v1/users/"+usrA.ID); code != http.StatusUnauthorized {
		t.Errorf("failed! anonymous code = %v; want %v", code, http.StatusUnauthorized)
	}
}
