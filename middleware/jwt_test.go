// middleware/jwt_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/sstpro/backend/models"
)

func testUser() models.User {
	return models.User{ID: uuid.New(), Email: "a@example.com", Name: "A"}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret")
	u := testUser()

	token, err := m.GenerateToken(u)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != u.ID.String() || claims.Email != u.Email {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Typ != "" {
		t.Fatalf("access token typ = %q, want empty", claims.Typ)
	}

	refresh, err := m.GenerateRefreshToken(u)
	if err != nil {
		t.Fatalf("generate refresh: %v", err)
	}
	rc, err := m.Parse(refresh)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if rc.Typ != "refresh" {
		t.Fatalf("refresh token typ = %q", rc.Typ)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	u := testUser()
	token, err := NewTokenManager("secret-a").GenerateToken(u)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenManager("secret-b").Parse(token); err == nil {
		t.Fatalf("token signed with another secret accepted")
	}
}

func TestMiddleware(t *testing.T) {
	m := NewTokenManager("secret")
	u := testUser()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetUserID(r); got != u.ID {
			t.Fatalf("GetUserID = %s, want %s", got, u.ID)
		}
		w.WriteHeader(http.StatusOK)
	})
	protected := m.Middleware(next)

	access, _ := m.GenerateToken(u)
	refresh, _ := m.GenerateRefreshToken(u)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"access token", "Bearer " + access, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("got %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestGetUserIDWithoutClaims(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := GetUserID(req); got != uuid.Nil {
		t.Fatalf("got %s, want uuid.Nil", got)
	}
}
