package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), "crudcast", time.Hour)

	token, err := svc.Issue("bill@mail.com", []string{"ADMIN", "USER"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "bill@mail.com" {
		t.Errorf("subject = %q", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "ADMIN" || claims.Roles[1] != "USER" {
		t.Errorf("roles = %v", claims.Roles)
	}
	if claims.Issuer != "crudcast" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService([]byte("secret-a"), "crudcast", time.Hour)
	verifier := NewTokenService([]byte("secret-b"), "crudcast", time.Hour)

	token, err := issuer.Issue("bill@mail.com", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	issuer := NewTokenService([]byte("test-secret"), "other-service", time.Hour)
	verifier := NewTokenService([]byte("test-secret"), "crudcast", time.Hour)

	token, err := issuer.Issue("bill@mail.com", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Validate err = %v, want ErrInvalidToken", err)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), "crudcast", time.Hour)
	svc.expiry = -time.Minute

	token, err := svc.Issue("bill@mail.com", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Validate err = %v, want ErrExpiredToken", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), "crudcast", time.Hour)
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate(%q) err = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestZeroExpiryDefaults(t *testing.T) {
	svc := NewTokenService([]byte("test-secret"), "crudcast", 0)
	if svc.expiry != 8*time.Hour {
		t.Errorf("expiry = %v, want 8h", svc.expiry)
	}
}
