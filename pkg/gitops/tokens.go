package gitops

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"

	"github.com/quarryhq/quarry/pkg/metrics"
)

// Confirmation token parameters. The alphabet excludes the ambiguous
// characters 0, O, 1 and I.
const (
	tokenAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	tokenLength   = 6
	tokenTTL      = 5 * time.Minute
	maxTokens     = 10000
)

type tokenEntry struct {
	operation string
	expiresAt time.Time
}

// TokenCache is the in-memory store for single-use confirmation tokens.
// Tokens are bound to one operation name, expire silently after the TTL
// and are consumed on first valid use.
type TokenCache struct {
	mu     sync.Mutex
	tokens map[string]tokenEntry
	now    func() time.Time
}

// NewTokenCache creates an empty token cache
func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]tokenEntry),
		now:    time.Now,
	}
}

// Generate issues a new token bound to operation
func (c *TokenCache) Generate(operation string) string {
	token := randomToken()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.tokens) >= maxTokens {
		c.purgeLocked()
	}
	if len(c.tokens) >= maxTokens {
		c.evictOldestLocked()
	}
	c.tokens[token] = tokenEntry{
		operation: operation,
		expiresAt: c.now().Add(tokenTTL),
	}

	metrics.TokensIssued.Inc()
	return token
}

// Consume validates and consumes a token. It returns true only when the
// token exists, has not expired and is bound to the same operation; the
// validation and the delete are one atomic step.
func (c *TokenCache) Consume(operation, token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tokens[token]
	if !ok {
		metrics.TokensRejected.Inc()
		return false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.tokens, token)
		metrics.TokensRejected.Inc()
		return false
	}
	if entry.operation != operation {
		metrics.TokensRejected.Inc()
		return false
	}

	delete(c.tokens, token)
	metrics.TokensConsumed.Inc()
	return true
}

// purgeLocked drops expired entries. Caller holds the lock.
func (c *TokenCache) purgeLocked() {
	now := c.now()
	for token, entry := range c.tokens {
		if now.After(entry.expiresAt) {
			delete(c.tokens, token)
		}
	}
}

// evictOldestLocked makes room by dropping the entry closest to expiry.
// Caller holds the lock.
func (c *TokenCache) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for token, entry := range c.tokens {
		if oldest == "" || entry.expiresAt.Before(oldestAt) {
			oldest = token
			oldestAt = entry.expiresAt
		}
	}
	if oldest != "" {
		delete(c.tokens, oldest)
	}
}

func randomToken() string {
	buf := make([]byte, tokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the platform randomness source is
			// broken; there is no safe fallback for a capability token.
			panic(err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf)
}
