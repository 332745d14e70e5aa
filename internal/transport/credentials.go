package transport

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Credential is the persisted form of the session credential: the cookies
// the backend set for the base URL.
type Credential struct {
	Cookies []StoredCookie `json:"cookies"`
}

// StoredCookie is a cookie replayed into the cookie jar on startup. Path keeps
// a cookie scoped to e.g. the refresh endpoint off every other request.
type StoredCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

// CredentialStore persists the session credential between processes.
// Load returns (nil, nil) when nothing is stored.
type CredentialStore interface {
	Load() (*Credential, error)
	Save(cred *Credential) error
	Clear() error
}

// MemoryStore is an in-process CredentialStore
type MemoryStore struct {
	mu   sync.Mutex
	cred *Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	c := *m.cred
	c.Cookies = append([]StoredCookie(nil), m.cred.Cookies...)
	return &c, nil
}

func (m *MemoryStore) Save(cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cred
	c.Cookies = append([]StoredCookie(nil), cred.Cookies...)
	m.cred = &c
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

// sessionJar is a cookie jar that can be dropped atomically while requests
// are in flight.
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &sessionJar{jar: jar}, nil
}

func (j *sessionJar) current() *cookiejar.Jar {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.current().SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current().Cookies(u)
}

func (j *sessionJar) reset() {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

func (j *sessionJar) seed(u *url.URL, cred *Credential) {
	if cred == nil || len(cred.Cookies) == 0 {
		return
	}
	cookies := make([]*http.Cookie, 0, len(cred.Cookies))
	for _, c := range cred.Cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: path})
	}
	j.SetCookies(u, cookies)
}

// snapshot collects the cookies sent to any of urls, first occurrence of a
// name wins. urls go from the widest scope to the narrowest, so a cookie is
// recorded with the path of the first URL it is sent to.
func (j *sessionJar) snapshot(urls ...*url.URL) *Credential {
	cred := &Credential{Cookies: []StoredCookie{}}
	seen := make(map[string]bool)
	for _, u := range urls {
		path := u.Path
		if path == "" {
			path = "/"
		}
		for _, c := range j.Cookies(u) {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			cred.Cookies = append(cred.Cookies, StoredCookie{Name: c.Name, Value: c.Value, Path: path})
		}
	}
	sort.Slice(cred.Cookies, func(a, b int) bool { return cred.Cookies[a].Name < cred.Cookies[b].Name })
	return cred
}

func (c *Credential) equal(other *Credential) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.Cookies) != len(other.Cookies) {
		return false
	}
	for i := range c.Cookies {
		if c.Cookies[i] != other.Cookies[i] {
			return false
		}
	}
	return true
}
