package ingress

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CORSConfig declares which cross-origin callers may use the API. An origin
// of "*" selects wildcard mode, where any origin is allowed and credentials
// are not. Otherwise only the listed origins are echoed back, with
// credentials allowed.
type CORSConfig struct {
	Origins []string
	Methods []string
	Headers []string
}

type CORSPolicy struct {
	wildcard bool
	allowed  map[string]struct{}
	methods  string
	headers  string
}

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Content-Type", "Authorization"}
)

func NewCORSPolicy(cfg CORSConfig) (*CORSPolicy, error) {
	policy := &CORSPolicy{allowed: make(map[string]struct{})}
	for _, origin := range cfg.Origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			policy.wildcard = true
			continue
		}
		normalized, err := normalizeOrigin(origin)
		if err != nil {
			return nil, fmt.Errorf("parse origin %q: %w", origin, err)
		}
		if normalized != "" {
			policy.allowed[normalized] = struct{}{}
		}
	}

	methods := cfg.Methods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.Headers
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	policy.methods = strings.ToUpper(strings.Join(methods, ", "))
	policy.headers = strings.Join(headers, ", ")
	return policy, nil
}

func normalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", nil
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("origin must include scheme and host")
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(parsed.Scheme), strings.ToLower(parsed.Host)), nil
}

// Wildcard reports whether any origin is allowed.
func (p *CORSPolicy) Wildcard() bool {
	return p.wildcard
}

// Allows reports whether origin is on the allow-list.
func (p *CORSPolicy) Allows(origin string) bool {
	if p.wildcard {
		return true
	}
	normalized, err := normalizeOrigin(origin)
	if err != nil || normalized == "" {
		return false
	}
	_, ok := p.allowed[normalized]
	return ok
}

// Stage sets the CORS response headers. It never rejects a request; a
// browser enforces the policy from the headers it does or does not see.
func (p *CORSPolicy) Stage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		origin := strings.TrimSpace(r.Header.Get("Origin"))

		switch {
		case p.wildcard:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && p.Allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", p.methods)
		h.Set("Access-Control-Allow-Headers", p.headers)

		next.ServeHTTP(w, r)
	})
}
