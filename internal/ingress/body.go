package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"cgl-backend/internal/apperr"
	"cgl-backend/internal/respond"
)

type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyJSON
	BodyForm
)

// Body is the decoded request body made available to handlers.
type Body struct {
	Kind BodyKind
	Raw  []byte
	Form url.Values
}

type bodyKey struct{}

func BodyFromContext(ctx context.Context) (Body, bool) {
	body, ok := ctx.Value(bodyKey{}).(Body)
	return body, ok
}

// BodyDecoder caps every request body at a byte limit and decodes JSON and
// URL-encoded form bodies. Other content types are passed on undecoded.
type BodyDecoder struct {
	maxBytes int64
}

func NewBodyDecoder(maxBytes int64) *BodyDecoder {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &BodyDecoder{maxBytes: maxBytes}
}

func (d *BodyDecoder) Stage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > d.maxBytes {
			respond.Fail(w, apperr.Wrap(apperr.PayloadTooLarge, errors.New("content length exceeds limit"), ""))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, d.maxBytes)

		kind := bodyKindOf(r.Header.Get("Content-Type"))
		if kind == BodyNone {
			// Read other bodies here too so an oversized chunked upload
			// stops before dispatch.
			if err := bufferBody(r); err != nil {
				respond.Fail(w, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		var body Body
		var err error
		switch kind {
		case BodyJSON:
			body, err = decodeJSONBody(r)
		case BodyForm:
			body, err = decodeFormBody(r)
		}
		if err != nil {
			respond.Fail(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, body)))
	})
}

func bodyKindOf(contentType string) BodyKind {
	if strings.TrimSpace(contentType) == "" {
		return BodyNone
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return BodyNone
	}
	switch {
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return BodyJSON
	case mediaType == "application/x-www-form-urlencoded":
		return BodyForm
	default:
		return BodyNone
	}
}

func bufferBody(r *http.Request) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return classifyReadError(err)
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	r.ContentLength = int64(len(raw))
	return nil
}

func decodeJSONBody(r *http.Request) (Body, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return Body{}, classifyReadError(err)
	}
	raw = bytes.TrimSpace(raw)

	r.Body = io.NopCloser(bytes.NewReader(raw))
	r.ContentLength = int64(len(raw))
	if len(raw) == 0 {
		return Body{Kind: BodyNone}, nil
	}
	if !json.Valid(raw) {
		return Body{}, apperr.Wrap(apperr.MalformedBody, errors.New("invalid json"), "")
	}
	return Body{Kind: BodyJSON, Raw: raw}, nil
}

func decodeFormBody(r *http.Request) (Body, error) {
	if err := r.ParseForm(); err != nil {
		return Body{}, classifyReadError(err)
	}
	return Body{Kind: BodyForm, Form: r.PostForm}, nil
}

func classifyReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Wrap(apperr.PayloadTooLarge, err, "")
	}
	return apperr.Wrap(apperr.MalformedBody, err, "")
}

// DecodeJSON decodes the JSON body captured by the BodyDecoder stage into
// dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	body, ok := BodyFromContext(r.Context())
	if !ok || body.Kind != BodyJSON {
		return apperr.New(apperr.Invalid, "json body is required")
	}

	decoder := json.NewDecoder(bytes.NewReader(body.Raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperr.Wrap(apperr.MalformedBody, err, "invalid json body")
	}
	return nil
}
