package clientinfo

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedParser memoizes parse results; user-agent strings repeat heavily
// across logins.
type CachedParser struct {
	next  Parser
	cache *lru.LRU[string, ClientInfo]
}

func NewCachedParser(next Parser, size int, ttl time.Duration) *CachedParser {
	if size < 1 {
		size = 1
	}
	return &CachedParser{
		next:  next,
		cache: lru.NewLRU[string, ClientInfo](size, nil, ttl),
	}
}

func (p *CachedParser) Parse(raw string) ClientInfo {
	if info, ok := p.cache.Get(raw); ok {
		return info
	}
	info := p.next.Parse(raw)
	p.cache.Add(raw, info)
	return info
}

func (p *CachedParser) Len() int { return p.cache.Len() }
