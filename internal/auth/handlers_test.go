package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go.crudcast.dev/internal/crud"
)

func loginHandler(t *testing.T, lookup UserLookup) *Handler {
	t.Helper()
	passwords := NewPasswordServiceWithCost(bcrypt.MinCost)
	tokens := NewTokenService([]byte("test-secret"), "crudcast", time.Hour)
	return NewHandler(lookup, passwords, tokens)
}

func postLogin(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

func TestLoginSuccess(t *testing.T) {
	passwords := NewPasswordServiceWithCost(bcrypt.MinCost)
	hash, err := passwords.HashPassword("abcd1234")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	lookup := func(ctx context.Context, username string) (crud.Entity, error) {
		if username != "bill@mail.com" {
			return nil, nil
		}
		return crud.Entity{
			"email":    "bill@mail.com",
			"password": hash,
			"roles":    []any{"ADMIN", "USER"},
		}, nil
	}

	h := loginHandler(t, lookup)
	w := postLogin(h, `{"username":"bill@mail.com","password":"abcd1234"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp loginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("token missing from response")
	}
	if !reflect.DeepEqual(resp.Roles, []string{"ADMIN", "USER"}) {
		t.Errorf("roles = %v", resp.Roles)
	}

	claims, err := h.tokens.Validate(resp.Token)
	if err != nil {
		t.Fatalf("Validate issued token: %v", err)
	}
	if claims.Subject != "bill@mail.com" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	h := loginHandler(t, func(ctx context.Context, username string) (crud.Entity, error) {
		return nil, nil
	})
	w := postLogin(h, `{"username":"ghost@mail.com","password":"abcd1234"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	passwords := NewPasswordServiceWithCost(bcrypt.MinCost)
	hash, _ := passwords.HashPassword("correct")
	h := loginHandler(t, func(ctx context.Context, username string) (crud.Entity, error) {
		return crud.Entity{"password": hash}, nil
	})
	w := postLogin(h, `{"username":"bill@mail.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLoginMissingCredentials(t *testing.T) {
	h := loginHandler(t, func(ctx context.Context, username string) (crud.Entity, error) {
		t.Fatal("lookup must not run")
		return nil, nil
	})
	for _, body := range []string{`{}`, `{"username":"bill@mail.com"}`, `{"password":"x"}`, `not json`} {
		if w := postLogin(h, body); w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestLoginLookupFailure(t *testing.T) {
	h := loginHandler(t, func(ctx context.Context, username string) (crud.Entity, error) {
		return nil, errors.New("store unavailable")
	})
	w := postLogin(h, `{"username":"bill@mail.com","password":"abcd1234"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestEntityRoles(t *testing.T) {
	cases := []struct {
		entity crud.Entity
		want   []string
	}{
		{crud.Entity{"roles": []string{"ADMIN"}}, []string{"ADMIN"}},
		{crud.Entity{"roles": []any{"ADMIN", "USER"}}, []string{"ADMIN", "USER"}},
		{crud.Entity{"roles": []any{"ADMIN", 7}}, []string{"ADMIN"}},
		{crud.Entity{"roles": "ADMIN"}, nil},
		{crud.Entity{}, nil},
	}
	for _, c := range cases {
		if got := entityRoles(c.entity); !reflect.DeepEqual(got, c.want) {
			t.Errorf("entityRoles(%v) = %v, want %v", c.entity, got, c.want)
		}
	}
}
