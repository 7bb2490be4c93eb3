package scraper

import (
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Rand is the sampling source used for identity and pacing decisions.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand draws from the math/rand/v2 top-level generator.
var DefaultRand Rand = globalRand{}

// between returns a uniformly distributed duration in [min, max].
func between(r Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.Float64()*float64(max-min))
}

// ProxyCredential is one authenticated outbound proxy.
type ProxyCredential struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Address returns host:port.
func (p ProxyCredential) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the proxy URL with credentials, used for both http and https targets.
func (p ProxyCredential) URL() *url.URL {
	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(p.User, p.Password),
		Host:   p.Address(),
	}
}

// String hides the password so credentials can be logged.
func (p ProxyCredential) String() string {
	return p.User + "@" + p.Address()
}

// ParseCredential parses "host:port:user:password".
func ParseCredential(raw string) (ProxyCredential, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 4 {
		return ProxyCredential{}, fmt.Errorf("%w: proxy %q must have the form host:port:user:password", ErrConfiguration, raw)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port <= 0 || port > 65535 {
		return ProxyCredential{}, fmt.Errorf("%w: proxy %q has an invalid port", ErrConfiguration, raw)
	}
	if parts[0] == "" {
		return ProxyCredential{}, fmt.Errorf("%w: proxy %q has an empty host", ErrConfiguration, raw)
	}
	return ProxyCredential{Host: parts[0], Port: port, User: parts[2], Password: parts[3]}, nil
}

// ParseCredentials parses every entry, failing on the first malformed one.
func ParseCredentials(raw []string) ([]ProxyCredential, error) {
	out := make([]ProxyCredential, 0, len(raw))
	for _, r := range raw {
		cred, err := ParseCredential(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, nil
}

// IdentityPool is a fixed set of proxy credentials sampled with replacement.
type IdentityPool struct {
	creds []ProxyCredential
	rand  Rand
}

// NewIdentityPool copies creds into a new pool. A nil r selects DefaultRand.
func NewIdentityPool(creds []ProxyCredential, r Rand) (*IdentityPool, error) {
	if len(creds) == 0 {
		return nil, fmt.Errorf("%w: proxy pool is empty", ErrConfiguration)
	}
	if r == nil {
		r = DefaultRand
	}
	pool := make([]ProxyCredential, len(creds))
	copy(pool, creds)
	return &IdentityPool{creds: pool, rand: r}, nil
}

// Pick returns a uniformly random credential.
func (p *IdentityPool) Pick() (ProxyCredential, error) {
	if p == nil || len(p.creds) == 0 {
		return ProxyCredential{}, fmt.Errorf("%w: proxy pool is empty", ErrConfiguration)
	}
	return p.creds[p.rand.IntN(len(p.creds))], nil
}

// Len returns the number of credentials in the pool.
func (p *IdentityPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.creds)
}
