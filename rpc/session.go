package rpc

import (
	"strings"
	"sync"
)

// Session is the gateway login state sent with every request that
// takes it. The zero value is logged out and safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	cookie string
}

// Cookie returns the session cookie as "name=value", or "".
func (s *Session) Cookie() string {
	if s == nil {
		return ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cookie
}

// SetCookie replaces the session cookie, given as "name=value".
func (s *Session) SetCookie(cookie string) {
	s.mu.Lock()
	s.cookie = cookie
	s.mu.Unlock()
}

// Clear logs the session out.
func (s *Session) Clear() {
	s.SetCookie("")
}

// Authenticated reports whether a cookie is held.
func (s *Session) Authenticated() bool {
	return s.Cookie() != ""
}

func (s *Session) cookiePair() (string, string, bool) {
	cookie := s.Cookie()
	if cookie == "" {
		return "", "", false
	}

	i := strings.Index(cookie, "=")
	if i <= 0 {
		return "", "", false
	}
	return cookie[:i], cookie[i+1:], true
}
