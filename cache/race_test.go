package cache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// A mixed workload of concurrent Put/Get/Remove/PutAll on random keys.
// Should pass under -race without detector reports.
func TestRaceMixedWorkload(t *testing.T) {
	c := New[string, []byte](Options[string, []byte]{MaxSize: 8_192})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 5_000
	deadline := time.Now().Add(500 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch r.Intn(100) {
				case 0, 1, 2, 3, 4: // ~5% — Remove
					c.Remove(k)
				case 5, 6, 7, 8, 9: // ~5% — PutAll
					c.PutAll(map[string][]byte{
						k:                        []byte("x"),
						"k:" + strconv.Itoa(r.Intn(keyspace)): []byte("y"),
					})
				case 10, 11, 12, 13, 14, 15, 16, 17, 18, 19: // ~10% — Put
					c.Put(k, []byte("x"))
				default: // ~80% — GetIfAvailable
					c.GetIfAvailable(k)
				}
			}
		}(w)
	}
	wg.Wait()
}

// Concurrent GetOrPut calls against a handful of keys, racing producers,
// replacements, and Remove/Clear together.
func TestRaceCoalescingUnderContention(t *testing.T) {
	c := New[string, string](Options[string, string]{MaxSize: 64})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 16
	deadline := time.Now().Add(500 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*7919))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch r.Intn(10) {
				case 0:
					c.Remove(k)
				case 1:
					c.Clear()
				case 2:
					c.Put(k, "direct")
				default:
					ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
					c.GetOrPut(ctx, k, func(ctx context.Context) (string, error) {
						return "produced:" + k, nil
					})
					cancel()
				}
			}
		}(w)
	}
	wg.Wait()
}

// One hundred goroutines call GetOrPut on the same key concurrently; the
// producer should run at most once (coalescing).
func TestRaceGetOrPutSameKey(t *testing.T) {
	var calls int64

	c := New[string, string](Options[string, string]{MaxSize: 1024})

	const goroutines = 100
	key := "same-key"

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, ok := c.GetOrPut(context.Background(), key, func(ctx context.Context) (string, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(2 * time.Millisecond)
				return "v:" + key, nil
			})
			if !ok {
				t.Errorf("GetOrPut reported a miss")
				return
			}
			if v != "v:"+key {
				t.Errorf("unexpected value: %q", v)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got > 1 {
		t.Fatalf("producer should run at most once, got %d", got)
	}

	if v, ok := c.GetIfAvailable(key); !ok || v != "v:"+key {
		t.Fatalf("final value = %q, %v", v, ok)
	}
}
