package network

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

var ErrNoProxies = errors.New("no proxies available")

// DefaultBanStatuses are the responses that bench a proxy.
var DefaultBanStatuses = []int{403, 429}

// Rotator hands out proxies round-robin and benches any proxy that the
// remote side rate-limited or blocked.
type Rotator struct {
	proxies     []*url.URL
	banDuration time.Duration
	banStatuses map[int]struct{}
	now         func() time.Time

	mu          sync.Mutex
	bannedUntil map[string]time.Time
	index       int
}

type RotatorOption func(*Rotator)

// WithBanStatuses replaces DefaultBanStatuses.
func WithBanStatuses(codes ...int) RotatorOption {
	return func(r *Rotator) {
		r.banStatuses = make(map[int]struct{}, len(codes))
		for _, code := range codes {
			r.banStatuses[code] = struct{}{}
		}
	}
}

// NewRotator parses raw proxy URLs. Blank entries are skipped; an entry
// without a scheme is treated as http.
func NewRotator(raw []string, banDuration time.Duration, opts ...RotatorOption) (*Rotator, error) {
	r := &Rotator{
		banDuration: banDuration,
		bannedUntil: map[string]time.Time{},
		now:         time.Now,
	}
	WithBanStatuses(DefaultBanStatuses...)(r)
	for _, opt := range opts {
		opt(r)
	}

	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "://") {
			entry = "http://" + entry
		}
		u, err := url.Parse(entry)
		if err != nil {
			return nil, fmt.Errorf("proxy %q: %w", entry, err)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return nil, fmt.Errorf("proxy %q: unsupported scheme %q", entry, u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("proxy %q: missing host", entry)
		}
		r.proxies = append(r.proxies, u)
	}

	return r, nil
}

// Len returns the number of configured proxies, benched or not.
func (r *Rotator) Len() int {
	return len(r.proxies)
}

func (r *Rotator) Next() (*url.URL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.proxies) == 0 {
		return nil, ErrNoProxies
	}

	for range r.proxies {
		proxy := r.proxies[r.index]
		r.index = (r.index + 1) % len(r.proxies)
		if !r.isBanned(proxy) {
			return proxy, nil
		}
	}
	return nil, ErrNoProxies
}

// Report benches proxy when status is a ban status. The bench lasts the
// configured duration or retryAfter, whichever is longer.
func (r *Rotator) Report(proxy *url.URL, status int, retryAfter time.Duration) {
	if proxy == nil {
		return
	}
	if _, ban := r.banStatuses[status]; !ban {
		return
	}

	d := r.banDuration
	if retryAfter > d {
		d = retryAfter
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bannedUntil[proxy.String()] = r.now().Add(d)
}

// isBanned expects r.mu to be held.
func (r *Rotator) isBanned(proxy *url.URL) bool {
	until, ok := r.bannedUntil[proxy.String()]
	if !ok {
		return false
	}
	if !r.now().Before(until) {
		delete(r.bannedUntil, proxy.String())
		return false
	}
	return true
}
