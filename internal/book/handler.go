package book

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cgl-backend/internal/apperr"
	"cgl-backend/internal/ingress"
	"cgl-backend/internal/observability"
	"cgl-backend/internal/respond"
)

var isbnRegex = regexp.MustCompile(`^(?:\d{9}[\dX]|\d{13})$`)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type Store interface {
	List(ctx context.Context, filter ListFilter) ([]Book, error)
	Get(ctx context.Context, id string) (Book, error)
	Create(ctx context.Context, input Input) (Book, error)
	Update(ctx context.Context, id string, input Input) (Book, error)
	Patch(ctx context.Context, id string, patch Patch) (Book, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	store  Store
	logger *observability.Logger
}

func NewHandler(store Store, logger *observability.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Routes is mounted under /api/books.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}", h.Patch)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		respond.Fail(w, err)
		return
	}

	books, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err, "failed to list books")
		return
	}

	respond.OK(w, http.StatusOK, books)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	b, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err, "failed to get book")
		return
	}

	respond.OK(w, http.StatusOK, b)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	input, err := readInput(r)
	if err != nil {
		respond.Fail(w, err)
		return
	}

	b, err := h.store.Create(r.Context(), input)
	if err != nil {
		h.internalError(w, r, err, "failed to create book")
		return
	}

	respond.OK(w, http.StatusCreated, b)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	input, err := readInput(r)
	if err != nil {
		respond.Fail(w, err)
		return
	}

	b, err := h.store.Update(r.Context(), id, input)
	if err != nil {
		h.storeError(w, r, err, "failed to update book")
		return
	}

	respond.OK(w, http.StatusOK, b)
}

// Patch updates only the fields present in a JSON or form body. A JSON null
// counts as absent, so published_year cannot be cleared here; PUT can.
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	patch, err := readPatch(r)
	if err != nil {
		respond.Fail(w, err)
		return
	}

	b, err := h.store.Patch(r.Context(), id, patch)
	if err != nil {
		h.storeError(w, r, err, "failed to update book")
		return
	}

	respond.OK(w, http.StatusOK, b)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.storeError(w, r, err, "failed to delete book")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(w, http.StatusNotFound, "book not found")
		return
	}
	h.internalError(w, r, err, message)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	requestID := observability.RequestIDFromContext(r.Context())
	h.logger.Error("book_store_failed", map[string]any{
		"error":      err.Error(),
		"path":       r.URL.Path,
		"request_id": requestID,
	})
	observability.CaptureError(err, requestID)
	respond.Error(w, http.StatusInternalServerError, message)
}

func bookID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid book id")
		return "", false
	}
	return id, true
}

func parseListFilter(query url.Values) (ListFilter, error) {
	filter := ListFilter{
		Author: strings.TrimSpace(query.Get("author")),
		Query:  strings.TrimSpace(query.Get("q")),
		Limit:  defaultListLimit,
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return ListFilter{}, apperr.New(apperr.Invalid, "limit must be between 1 and %d", maxListLimit)
		}
		filter.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return ListFilter{}, apperr.New(apperr.Invalid, "offset must be >= 0")
		}
		filter.Offset = offset
	}

	return filter, nil
}

// readInput accepts either a JSON or a URL-encoded form body.
func readInput(r *http.Request) (Input, error) {
	var input Input

	body, _ := ingress.BodyFromContext(r.Context())
	if body.Kind == ingress.BodyForm {
		input = Input{
			Title:       body.Form.Get("title"),
			Author:      body.Form.Get("author"),
			ISBN:        body.Form.Get("isbn"),
			Description: body.Form.Get("description"),
		}
		if raw := strings.TrimSpace(body.Form.Get("published_year")); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				return Input{}, apperr.New(apperr.Invalid, "published_year must be a number")
			}
			input.PublishedYear = &year
		}
	} else if err := ingress.DecodeJSON(r, &input); err != nil {
		return Input{}, err
	}

	if err := validateInput(&input); err != nil {
		return Input{}, err
	}
	return input, nil
}

// readPatch applies the same body rules as readInput, keeping only the
// fields the client sent.
func readPatch(r *http.Request) (Patch, error) {
	var patch Patch

	body, _ := ingress.BodyFromContext(r.Context())
	if body.Kind == ingress.BodyForm {
		formField := func(name string) *string {
			if _, ok := body.Form[name]; !ok {
				return nil
			}
			value := body.Form.Get(name)
			return &value
		}
		patch.Title = formField("title")
		patch.Author = formField("author")
		patch.ISBN = formField("isbn")
		patch.Description = formField("description")
		if raw := formField("published_year"); raw != nil {
			year, err := strconv.Atoi(strings.TrimSpace(*raw))
			if err != nil {
				return Patch{}, apperr.New(apperr.Invalid, "published_year must be a number")
			}
			patch.PublishedYear = &year
		}
	} else if err := ingress.DecodeJSON(r, &patch); err != nil {
		return Patch{}, err
	}

	if err := validatePatch(&patch); err != nil {
		return Patch{}, err
	}
	return patch, nil
}

func validateInput(input *Input) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	input.Description = strings.TrimSpace(input.Description)
	input.ISBN = normalizeISBN(input.ISBN)

	if input.Title == "" {
		return apperr.New(apperr.Invalid, "title is required")
	}
	if input.Author == "" {
		return apperr.New(apperr.Invalid, "author is required")
	}
	return validateFields(&input.Title, &input.Author, &input.ISBN, input.PublishedYear, &input.Description)
}

func validatePatch(patch *Patch) error {
	if patch.Empty() {
		return apperr.New(apperr.Invalid, "at least one field is required")
	}
	if patch.Title != nil {
		*patch.Title = strings.TrimSpace(*patch.Title)
		if *patch.Title == "" {
			return apperr.New(apperr.Invalid, "title is required")
		}
	}
	if patch.Author != nil {
		*patch.Author = strings.TrimSpace(*patch.Author)
		if *patch.Author == "" {
			return apperr.New(apperr.Invalid, "author is required")
		}
	}
	if patch.ISBN != nil {
		*patch.ISBN = normalizeISBN(*patch.ISBN)
	}
	if patch.Description != nil {
		*patch.Description = strings.TrimSpace(*patch.Description)
	}
	return validateFields(patch.Title, patch.Author, patch.ISBN, patch.PublishedYear, patch.Description)
}

// validateFields checks whichever fields are present.
func validateFields(title, author, isbn *string, year *int, description *string) error {
	if title != nil && (!utf8.ValidString(*title) || len(*title) > 200) {
		return apperr.New(apperr.Invalid, "title is invalid")
	}
	if author != nil && (!utf8.ValidString(*author) || len(*author) > 200) {
		return apperr.New(apperr.Invalid, "author is invalid")
	}
	if isbn != nil && *isbn != "" && !isbnRegex.MatchString(*isbn) {
		return apperr.New(apperr.Invalid, "isbn must have 10 or 13 digits")
	}
	if year != nil && (*year < 1 || *year > time.Now().UTC().Year()+1) {
		return apperr.New(apperr.Invalid, "published_year is out of range")
	}
	if description != nil && (!utf8.ValidString(*description) || len(*description) > 2000) {
		return apperr.New(apperr.Invalid, "description is invalid")
	}
	return nil
}

func normalizeISBN(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	return strings.NewReplacer("-", "", " ", "").Replace(value)
}
