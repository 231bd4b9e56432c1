package identity

import (
	"net/http"
	"net/url"
	"sync"
	"time"
)

// MemoryStorage is a Storage held in process memory. Sharing one value
// between Managers simulates a reload on the same device.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

const cookieMaxAge = 30 * 24 * time.Hour

// CookieStorage persists values as cookies on the guest's browser. It is
// bound to one request: reads see the request cookies plus anything set
// while handling it, writes go to the response.
type CookieStorage struct {
	w    http.ResponseWriter
	r    *http.Request
	path string

	pending map[string]*string
}

func NewCookieStorage(w http.ResponseWriter, r *http.Request, path string) *CookieStorage {
	if path == "" {
		path = "/"
	}
	return &CookieStorage{w: w, r: r, path: path, pending: make(map[string]*string)}
}

func (s *CookieStorage) Get(key string) (string, bool) {
	if v, ok := s.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	c, err := s.r.Cookie(key)
	if err != nil {
		return "", false
	}
	v, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", false
	}
	return v, true
}

func (s *CookieStorage) Set(key, value string) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     s.path,
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.pending[key] = &value
	return nil
}

func (s *CookieStorage) Delete(key string) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     s.path,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.pending[key] = nil
	return nil
}
