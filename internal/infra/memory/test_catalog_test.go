package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"prepcuet/internal/domain"
)

func TestTestCatalogCaches(t *testing.T) {
	loader := &countingLoader{TestLoader: NewStaticTestLoader(sampleTests())}
	catalog := NewTestCatalog(loader, time.Minute)

	test, err := catalog.GetTest(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get test: %v", err)
	}
	if test.Title != "CUET Mock 1" {
		t.Fatalf("unexpected title %q", test.Title)
	}
	if _, err := catalog.GetTest(context.Background(), "t1"); err != nil {
		t.Fatalf("get test 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestTestCatalogReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{TestLoader: NewStaticTestLoader(sampleTests())}
	catalog := NewTestCatalog(loader, time.Minute)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	catalog.clock = func() time.Time { return now }

	_, _ = catalog.GetTest(context.Background(), "t1")
	now = now.Add(2 * time.Minute)
	_, _ = catalog.GetTest(context.Background(), "t1")
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls.Load())
	}
}

func TestTestCatalogMissingTest(t *testing.T) {
	catalog := NewTestCatalog(NewStaticTestLoader(sampleTests()), time.Minute)
	if _, err := catalog.GetTest(context.Background(), "nope"); !errors.Is(err, domain.ErrTestNotFound) {
		t.Fatalf("expected ErrTestNotFound, got %v", err)
	}
}

type countingLoader struct {
	TestLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadTest(ctx context.Context, testID string) (domain.TestSeries, error) {
	l.calls.Add(1)
	return l.TestLoader.LoadTest(ctx, testID)
}

func sampleTests() map[string]domain.TestSeries {
	return map[string]domain.TestSeries{
		"t1": {ID: "t1", Title: "CUET Mock 1", Description: "General test"},
	}
}
