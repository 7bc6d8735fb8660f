package server

import (
	"net/http"
	"testing"
)

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	harness := newTestHarness(t)

	recorder := harness.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username":         "alice",
		"password":         "secret-pass",
		"confirm_password": "other-pass",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched passwords, got %d", recorder.Code)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	harness := newTestHarness(t)
	harness.registerAndLogin(t, "alice", "secret-pass")

	recorder := harness.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username":         "alice",
		"password":         "secret-pass",
		"confirm_password": "secret-pass",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", recorder.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	harness := newTestHarness(t)
	harness.registerAndLogin(t, "alice", "secret-pass")

	recorder := harness.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", recorder.Code)
	}
}

func TestProtectedRouteRequiresBearerToken(t *testing.T) {
	harness := newTestHarness(t)

	recorder := harness.do(t, http.MethodGet, "/users/me", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}

	recorder = harness.do(t, http.MethodGet, "/users/me", "not-a-valid-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", recorder.Code)
	}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	harness := newTestHarness(t)
	harness.registerAndLogin(t, "alice", "secret-pass")

	recorder := harness.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "secret-pass",
	})
	var tokens tokenResponsePayload
	decodeBody(t, recorder, &tokens)
	if tokens.RefreshToken == "" {
		t.Fatalf("expected login to return a refresh token")
	}

	recorder = harness.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("refresh failed with status %d: %s", recorder.Code, recorder.Body.String())
	}
	var refreshed tokenResponsePayload
	decodeBody(t, recorder, &refreshed)
	if refreshed.AccessToken == "" {
		t.Fatalf("expected refresh to return an access token")
	}

	recorder = harness.do(t, http.MethodGet, "/users/me", refreshed.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("refreshed token rejected with status %d", recorder.Code)
	}
}

func TestLogoutRevokesRefreshSession(t *testing.T) {
	harness := newTestHarness(t)
	harness.registerAndLogin(t, "alice", "secret-pass")

	recorder := harness.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "secret-pass",
	})
	var tokens tokenResponsePayload
	decodeBody(t, recorder, &tokens)

	recorder = harness.do(t, http.MethodPost, "/auth/logout", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	})
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("logout failed with status %d", recorder.Code)
	}

	recorder = harness.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 refreshing a revoked session, got %d", recorder.Code)
	}
}
