package user

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cgl-backend/internal/apperr"
	"cgl-backend/internal/ingress"
	"cgl-backend/internal/observability"
	"cgl-backend/internal/respond"
)

type Store interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, input Input) (User, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store  Store
	logger *observability.Logger
}

func NewHandler(store Store, logger *observability.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Routes is mounted under /api/user.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		h.internalError(w, r, err, "failed to list users")
		return
	}

	respond.OK(w, http.StatusOK, users)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	u, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.internalError(w, r, err, "failed to get user")
		return
	}

	respond.OK(w, http.StatusOK, u)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	input, err := readInput(r)
	if err != nil {
		respond.Fail(w, err)
		return
	}

	u, err := h.store.Create(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			respond.Error(w, http.StatusConflict, "email already registered")
			return
		}
		h.internalError(w, r, err, "failed to create user")
		return
	}

	respond.OK(w, http.StatusCreated, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user not found")
			return
		}
		h.internalError(w, r, err, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	requestID := observability.RequestIDFromContext(r.Context())
	h.logger.Error("user_store_failed", map[string]any{
		"error":      err.Error(),
		"path":       r.URL.Path,
		"request_id": requestID,
	})
	observability.CaptureError(err, requestID)
	respond.Error(w, http.StatusInternalServerError, message)
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid user id")
		return "", false
	}
	return id, true
}

func readInput(r *http.Request) (Input, error) {
	var input Input

	body, _ := ingress.BodyFromContext(r.Context())
	if body.Kind == ingress.BodyForm {
		input = Input{Name: body.Form.Get("name"), Email: body.Form.Get("email")}
	} else if err := ingress.DecodeJSON(r, &input); err != nil {
		return Input{}, err
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if input.Name == "" {
		return Input{}, apperr.New(apperr.Invalid, "name is required")
	}
	if !utf8.ValidString(input.Name) || len(input.Name) > 120 {
		return Input{}, apperr.New(apperr.Invalid, "name is invalid")
	}
	addr, err := mail.ParseAddress(input.Email)
	if err != nil || addr.Address != input.Email || len(input.Email) > 254 {
		return Input{}, apperr.New(apperr.Invalid, "email is invalid")
	}

	return input, nil
}
