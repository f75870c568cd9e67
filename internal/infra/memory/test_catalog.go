package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"prepcuet/internal/domain"
)

// TestLoader fetches test series from a backing store (e.g., Postgres).
type TestLoader interface {
	LoadTest(ctx context.Context, testID string) (domain.TestSeries, error)
}

// TestCatalog caches test series with TTL to avoid repeated store hits.
type TestCatalog struct {
	loader TestLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedTest
}

type cachedTest struct {
	test      domain.TestSeries
	expiresAt time.Time
}

func NewTestCatalog(loader TestLoader, ttl time.Duration) *TestCatalog {
	return &TestCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTest),
	}
}

func (c *TestCatalog) GetTest(ctx context.Context, testID string) (domain.TestSeries, error) {
	if test, ok := c.cached(testID, c.clock()); ok {
		return test, nil
	}

	result, err, _ := c.sf.Do(testID, func() (interface{}, error) {
		now := c.clock()
		if test, ok := c.cached(testID, now); ok {
			return test, nil
		}

		test, err := c.loader.LoadTest(ctx, testID)
		if err != nil {
			return domain.TestSeries{}, err
		}

		c.mu.Lock()
		c.cache[testID] = cachedTest{test: test, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return test, nil
	})
	if err != nil {
		return domain.TestSeries{}, err
	}
	return result.(domain.TestSeries), nil
}

func (c *TestCatalog) cached(testID string, now time.Time) (domain.TestSeries, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[testID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.TestSeries{}, false
	}
	return entry.test, true
}

func (c *TestCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticTestLoader serves test series from a map (seed data, tests).
type StaticTestLoader struct {
	tests map[string]domain.TestSeries
}

func NewStaticTestLoader(tests map[string]domain.TestSeries) *StaticTestLoader {
	return &StaticTestLoader{tests: tests}
}

func (l *StaticTestLoader) LoadTest(_ context.Context, testID string) (domain.TestSeries, error) {
	if test, ok := l.tests[testID]; ok {
		return test, nil
	}
	return domain.TestSeries{}, domain.ErrTestNotFound
}
