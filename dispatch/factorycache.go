package dispatch

import (
	"reflect"
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru"
)

// Introspector yields the RemoteInfo for a remote type. FactoryCache.Get
// calls it only on a cache miss.
type Introspector interface {
	Examine(remoteType reflect.Type) (RemoteInfo, error)
}

// FactoryCache is a mutex-guarded memoization table: resolving a remote
// type's SkeletonFactory is idempotent, and racing misses are serialized
// under a single lock so they observe the same factory instance. Each
// NewFactoryCache call builds an independent table; the package keeps no
// shared instance. The weak map holds no strong reference to a
// SkeletonFactory — only a weak.Pointer — so a factory that neither the LRU
// layer nor a factory client keeps reachable is eligible for GC. A Skeleton
// holds its factory's MethodTable, not the factory, so a live Skeleton does
// not keep the entry alive. The bounded LRU layer below keeps
// recently-resolved factories strongly reachable across a burst of calls so
// they are not reclaimed between them.
type FactoryCache struct {
	mu           sync.Mutex
	introspector Introspector
	weak         map[reflect.Type]weak.Pointer[SkeletonFactory]
	recent       *lru.Cache // bounded keep-alive layer; see doc above
}

// NewFactoryCache builds a cache backed by introspector, keeping the most
// recently resolved recentSize factories strongly reachable.
func NewFactoryCache(introspector Introspector, recentSize int) *FactoryCache {
	if recentSize <= 0 {
		recentSize = 64
	}
	recent, _ := lru.New(recentSize)
	return &FactoryCache{
		introspector: introspector,
		weak:         make(map[reflect.Type]weak.Pointer[SkeletonFactory]),
		recent:       recent,
	}
}

// Get returns the SkeletonFactory for remoteType, synthesizing and caching
// one on a miss. Concurrent misses for the same type are serialized by mu,
// so both observe the same factory.
func (c *FactoryCache) Get(remoteType reflect.Type) (*SkeletonFactory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wp, ok := c.weak[remoteType]; ok {
		if factory := wp.Value(); factory != nil {
			c.recent.Add(remoteType, factory)
			return factory, nil
		}
		// The weakly-held factory was reclaimed; fall through and
		// synthesize a fresh one.
		delete(c.weak, remoteType)
	}

	ri, err := c.introspector.Examine(remoteType)
	if err != nil {
		return nil, err
	}
	factory, err := NewSkeletonFactory(remoteType, ri)
	if err != nil {
		return nil, err
	}

	c.weak[remoteType] = weak.Make(factory)
	c.recent.Add(remoteType, factory)
	return factory, nil
}
