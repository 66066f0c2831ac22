package evaluator

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCacheSingleCallPerKey(t *testing.T) {
	c := NewCache()

	var calls int64
	fn := func() (Evaluation, error) {
		atomic.AddInt64(&calls, 1)
		return Evaluation{Match: true, Confidence: 0.9}, nil
	}

	eval, hit, err := c.Do("k1", fn)
	if err != nil || hit || !eval.Match {
		t.Fatalf("first call: eval=%+v hit=%v err=%v", eval, hit, err)
	}

	eval, hit, err = c.Do("k1", fn)
	if err != nil || !hit || !eval.Match {
		t.Fatalf("second call must be a cache hit: eval=%+v hit=%v err=%v", eval, hit, err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 underlying call, got %d", calls)
	}

	if _, hit, _ := c.Do("k2", fn); hit {
		t.Fatalf("different key must miss")
	}
	if calls != 2 {
		t.Fatalf("expected 2 underlying calls, got %d", calls)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 cached keys, got %d", c.Len())
	}
}

func TestCacheConcurrentSingleFlight(t *testing.T) {
	c := NewCache()

	var calls int64
	release := make(chan struct{})
	fn := func() (Evaluation, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return Evaluation{Match: true}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eval, _, err := c.Do("shared", fn)
			if err != nil || !eval.Match {
				t.Errorf("unexpected result: eval=%+v err=%v", eval, err)
			}
		}()
	}
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("concurrent callers for the same key must share 1 call, got %d", calls)
	}
}

func TestCacheCachesErrors(t *testing.T) {
	c := NewCache()

	var calls int64
	fn := func() (Evaluation, error) {
		atomic.AddInt64(&calls, 1)
		return Evaluation{}, errors.New("llm unavailable")
	}

	if _, _, err := c.Do("k", fn); err == nil {
		t.Fatalf("expected an error")
	}
	if _, hit, err := c.Do("k", fn); err == nil || !hit {
		t.Fatalf("the error must be cached for the batch (hit=%v err=%v)", hit, err)
	}
	if calls != 1 {
		t.Fatalf("a failing group must cost exactly one call, got %d", calls)
	}
}
