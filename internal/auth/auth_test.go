package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"careops/internal/clock"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestIssuerRoundTrip(t *testing.T) {
	clk := clock.NewFake(time.Now())
	iss, err := NewIssuer("test-secret", time.Hour, clk)
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.New()

	token, err := iss.Generate(id, "owner@example.com", "owner")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := iss.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != id || claims.Email != "owner@example.com" || claims.Role != "owner" {
		t.Fatalf("claims = %+v", claims)
	}

	clk.Advance(2 * time.Hour)
	if _, err := iss.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expired token error = %v", err)
	}
}

func TestIssuerRejectsForeignTokens(t *testing.T) {
	a, _ := NewIssuer("secret-a", time.Hour, nil)
	b, _ := NewIssuer("secret-b", time.Hour, nil)
	token, _ := a.Generate(uuid.New(), "x@example.com", "staff")

	if _, err := b.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign token error = %v", err)
	}
	if _, err := a.Validate("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token error = %v", err)
	}
	if _, err := NewIssuer("", time.Hour, nil); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatal("matching password rejected")
	}
	if CheckPassword(hash, "battery staple") {
		t.Fatal("wrong password accepted")
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, _ := GenerateRandomString(12)
	b, _ := GenerateRandomString(12)
	if len(a) != 12 || a == b {
		t.Fatalf("random strings %q and %q", a, b)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss, _ := NewIssuer("secret", time.Hour, nil)
	id := uuid.New()
	token, _ := iss.Generate(id, "a@example.com", "owner")

	r := gin.New()
	r.GET("/me", Middleware(iss), func(c *gin.Context) {
		got, ok := UserID(c)
		if !ok || got != id || Role(c) != "owner" {
			c.Status(http.StatusTeapot)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
