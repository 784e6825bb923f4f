package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"cgl-backend/internal/ingress"
	"cgl-backend/internal/observability"
	"cgl-backend/internal/user"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[string]user.User
}

func (s *memoryStore) List(ctx context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (s *memoryStore) Create(ctx context.Context, input user.Input) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == input.Email {
			return user.User{}, user.ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	u := user.User{ID: uuid.NewString(), Name: input.Name, Email: input.Email, CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	return u, nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func newServer() http.Handler {
	store := &memoryStore{users: make(map[string]user.User)}
	return ingress.NewBodyDecoder(1 << 20).Stage(user.NewHandler(store, observability.NewNopLogger()).Routes())
}

func post(t *testing.T, h http.Handler, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestCreateUserLifecycle(t *testing.T) {
	srv := newServer()

	rec, payload := post(t, srv, "application/json", `{"name":"Ada Lovelace","email":" Ada@Example.com "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	data := payload["data"].(map[string]any)
	require.Equal(t, "ada@example.com", data["email"])
	id := data["id"].(string)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, payload = post(t, srv, "application/x-www-form-urlencoded", "name=Other&email=ada%40example.com")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, false, payload["ok"])
	require.Equal(t, "email already registered", payload["error"])

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/"+id, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+id, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUserValidation(t *testing.T) {
	srv := newServer()

	for _, tc := range []struct {
		body    string
		message string
	}{
		{body: `{"email":"a@example.com"}`, message: "name is required"},
		{body: `{"name":"A","email":"not-an-email"}`, message: "email is invalid"},
		{body: `{"name":"A","email":"A <a@example.com>"}`, message: "email is invalid"},
		{body: `{"name":"A","email":"a@example.com","password":"x"}`, message: "invalid json body"},
	} {
		rec, payload := post(t, srv, "application/json", tc.body)
		require.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
		require.Equal(t, tc.message, payload["error"], tc.body)
	}
}

func TestUserIDMustBeUUID(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/42", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
