package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

type stubUserGetter struct {
	record  *firebaseauth.UserRecord
	calls   int
	lastUID string
}

func (s *stubUserGetter) GetUser(_ context.Context, uid string) (*firebaseauth.UserRecord, error) {
	s.calls++
	s.lastUID = uid
	return s.record, nil
}

func runAuthed(t *testing.T, authn *Authenticator, roles []string, token string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	authn.RequireFirebaseAuth(roles...)(handler).ServeHTTP(rr, req)
	return rr
}

func TestRequireFirebaseAuthPopulatesIdentity(t *testing.T) {
	verifier := &stubVerifier{token: &firebaseauth.Token{
		UID: "uid-123",
		Claims: map[string]interface{}{
			"role":  []interface{}{"manager", "owner", "manager"},
			"name":  "Amina Yusuf",
			"email": "amina@duka.example",
		},
	}}
	users := &stubUserGetter{record: &firebaseauth.UserRecord{
		UserInfo: &firebaseauth.UserInfo{UID: "uid-123", Email: "amina@duka.example"},
	}}
	authn := NewAuthenticator(verifier, WithUserGetter(users))

	var handlerRan bool
	rr := runAuthed(t, authn, []string{RoleManager}, "token-value", func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true

		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		if identity.UID != "uid-123" {
			t.Fatalf("UID = %s, want uid-123", identity.UID)
		}
		if got := len(identity.Roles); got != 2 {
			t.Fatalf("roles = %v, want deduplicated pair", identity.Roles)
		}
		if !identity.HasRole(RoleOwner) {
			t.Fatalf("expected owner role in %v", identity.Roles)
		}
		if identity.Name != "Amina Yusuf" || identity.Email != "amina@duka.example" {
			t.Fatalf("name/email = %s/%s", identity.Name, identity.Email)
		}

		first, err := identity.User(r.Context())
		if err != nil {
			t.Fatalf("User: %v", err)
		}
		second, err := identity.User(r.Context())
		if err != nil {
			t.Fatalf("User second call: %v", err)
		}
		if first != second {
			t.Fatal("expected memoised user record")
		}

		w.WriteHeader(http.StatusNoContent)
	})

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if !handlerRan {
		t.Fatal("handler did not run")
	}
	if verifier.received != "token-value" {
		t.Fatalf("verifier received %q", verifier.received)
	}
	if users.calls != 1 || users.lastUID != "uid-123" {
		t.Fatalf("user getter calls = %d uid = %s", users.calls, users.lastUID)
	}
}

func TestRequireFirebaseAuthRejectsExpiredToken(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{err: ErrTokenExpired})

	rr := runAuthed(t, authn, []string{RoleSeller}, "expired", func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run for expired token")
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "token_expired" {
		t.Fatalf("error = %v, want token_expired", body["error"])
	}
}

func TestRequireFirebaseAuthRejectsMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{token: &firebaseauth.Token{UID: "uid-1"}})

	rr := runAuthed(t, authn, nil, "", func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a token")
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestRequireFirebaseAuthAppliesFallbackRole(t *testing.T) {
	verifier := &stubVerifier{token: &firebaseauth.Token{
		UID:    "uid-456",
		Claims: map[string]interface{}{},
	}}
	authn := NewAuthenticator(verifier)

	rr := runAuthed(t, authn, nil, "some-token", func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		if len(identity.Roles) != 1 || identity.Roles[0] != RoleSeller {
			t.Fatalf("roles = %v, want [%s]", identity.Roles, RoleSeller)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
}

func TestRequireFirebaseAuthEnforcesAllowedRoles(t *testing.T) {
	verifier := &stubVerifier{token: &firebaseauth.Token{
		UID:    "uid-789",
		Claims: map[string]interface{}{"role": "seller"},
	}}
	authn := NewAuthenticator(verifier)

	rr := runAuthed(t, authn, []string{RoleOwner}, "seller-token", func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without the owner role")
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "insufficient_role" {
		t.Fatalf("error = %v, want insufficient_role", body["error"])
	}
}
