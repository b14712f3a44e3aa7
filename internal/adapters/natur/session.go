package natur

import (
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Session owns the upstream cookie jar. The booking backend is a classic
// session-cookie site: cookies captured from any response must be replayed
// as a single Cookie header on every later request in the run.
//
// Safe for concurrent use; the checker stage may run pooled.
type Session struct {
	mu  sync.Mutex
	jar map[string]string
}

func NewSession() *Session {
	return &Session{jar: map[string]string{}}
}

// Apply attaches the current cookie set to req as one header value.
func (s *Session) Apply(req *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jar) == 0 {
		return
	}
	names := make([]string, 0, len(s.jar))
	for n := range s.jar {
		names = append(names, n)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, n := range names {
		pairs = append(pairs, n+"="+s.jar[n])
	}
	req.Header.Set("Cookie", strings.Join(pairs, "; "))
}

// Absorb merges Set-Cookie values from resp into the jar, last write wins
// per cookie name.
func (s *Session) Absorb(resp *http.Response) {
	if resp == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range resp.Header.Values("Set-Cookie") {
		for _, raw := range splitSetCookie(h) {
			name, value, ok := firstPair(raw)
			if ok {
				s.jar[name] = value
			}
		}
	}
}

// Len returns the number of cookies currently held.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jar)
}

// splitSetCookie splits an aggregated Set-Cookie value into individual
// cookie strings. Only a comma followed by a new name= token starts a new
// cookie; commas inside attribute values (Expires dates) stay put.
func splitSetCookie(h string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(h); i++ {
		if h[i] != ',' {
			continue
		}
		rest := h[i+1:]
		j := 0
		for j < len(rest) && (rest[j] == ' ' || rest[j] == '\t') {
			j++
		}
		k := j
		for k < len(rest) && isCookieToken(rest[k]) {
			k++
		}
		if k > j && k < len(rest) && rest[k] == '=' {
			parts = append(parts, strings.TrimSpace(h[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(h[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// firstPair extracts the leading name=value pair of one cookie string,
// dropping attributes (Path, Expires, HttpOnly, ...).
func firstPair(cookie string) (name, value string, ok bool) {
	if i := strings.IndexByte(cookie, ';'); i >= 0 {
		cookie = cookie[:i]
	}
	eq := strings.IndexByte(cookie, '=')
	if eq <= 0 {
		return "", "", false
	}
	name = strings.TrimSpace(cookie[:eq])
	value = strings.TrimSpace(cookie[eq+1:])
	if name == "" {
		return "", "", false
	}
	return name, value, true
}

// RFC 6265 token characters, the set valid in a cookie name.
func isCookieToken(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
