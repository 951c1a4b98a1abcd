// Package browse remembers pagination continuation tokens for a browsing
// session.
//
// Tokens are keyed explicitly by collection id and page number, so moving
// back to an earlier page finds the token that produced it. The store is
// bounded: beyond its capacity the least recently used page is evicted, and
// Reset drops everything when the session ends.
package browse

import (
	"github.com/hashicorp/golang-lru/v2"
	"github.com/samber/mo"
)

// Key identifies one page of a collection.
type Key struct {
	Collection string
	Page       int
}

// Pages stores the continuation token that loads each page.
type Pages struct {
	cache *lru.Cache[Key, string]
}

// New creates a store holding at most size pages.
func New(size int) *Pages {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[Key, string](size) //nolint:errcheck // only fails for size <= 0
	return &Pages{cache: c}
}

// Put records the token that loads page of collection.
func (p *Pages) Put(collection string, page int, continuation string) {
	p.cache.Add(Key{collection, page}, continuation)
}

// Get returns the token that loads page of collection. Page 0 always loads
// with an empty token.
func (p *Pages) Get(collection string, page int) mo.Option[string] {
	if page == 0 {
		return mo.Some("")
	}
	if v, ok := p.cache.Get(Key{collection, page}); ok {
		return mo.Some(v)
	}
	return mo.None[string]()
}

// Last returns the highest remembered page of collection and its token.
func (p *Pages) Last(collection string) (int, mo.Option[string]) {
	last := -1
	for _, k := range p.cache.Keys() {
		if k.Collection == collection && k.Page > last {
			last = k.Page
		}
	}
	if last < 0 {
		return 0, mo.None[string]()
	}
	return last, p.Get(collection, last)
}

// Forget drops every page of collection.
func (p *Pages) Forget(collection string) {
	for _, k := range p.cache.Keys() {
		if k.Collection == collection {
			p.cache.Remove(k)
		}
	}
}

// Reset drops every page.
func (p *Pages) Reset() {
	p.cache.Purge()
}

// Len returns the number of remembered pages.
func (p *Pages) Len() int {
	return p.cache.Len()
}
