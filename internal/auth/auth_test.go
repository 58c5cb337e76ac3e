package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func makeToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("irrelevant-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %+v", err)
	}
	return token
}

func TestExpiresAt(t *testing.T) {
	t.Run("with_exp_claim", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		token := makeToken(t, jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(exp),
		})

		got, err := ExpiresAt(token)
		if err != nil {
			t.Fatalf("ExpiresAt() error = %+v", err)
		}
		if !got.Equal(exp) {
			t.Errorf("want %v, got %v", exp, got)
		}
	})

	t.Run("without_exp_claim", func(t *testing.T) {
		// The backend issues non-expiring tokens with only a sub claim.
		token := makeToken(t, jwt.RegisteredClaims{Subject: "alice"})

		got, err := ExpiresAt(token)
		if err != nil {
			t.Fatalf("ExpiresAt() error = %+v", err)
		}
		if !got.IsZero() {
			t.Errorf("want zero time, got %v", got)
		}
	})

	t.Run("malformed_token", func(t *testing.T) {
		_, err := ExpiresAt("not-a-jwt")
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("want ErrMalformed, got %+v", err)
		}
	})
}

func TestExpired(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
		want  bool
	}{
		{
			"future_exp",
			func(t *testing.T) string {
				return makeToken(t, jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				})
			},
			false,
		},
		{
			"past_exp",
			func(t *testing.T) string {
				return makeToken(t, jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				})
			},
			true,
		},
		{
			"no_exp",
			func(t *testing.T) string {
				return makeToken(t, jwt.RegisteredClaims{Subject: "alice"})
			},
			false,
		},
		{
			// Opaque tokens stay the server's call, so they are not
			// treated as locally expired.
			"malformed",
			func(t *testing.T) string { return "opaque-token" },
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.token(t)); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubject(t *testing.T) {
	token := makeToken(t, jwt.RegisteredClaims{Subject: "klementevyp"})

	sub, err := Subject(token)
	if err != nil {
		t.Fatalf("Subject() error = %+v", err)
	}
	if sub != "klementevyp" {
		t.Errorf("want %q, got %q", "klementevyp", sub)
	}
}
