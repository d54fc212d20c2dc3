package cache

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm cache using
// parallel workers (RunParallel spawns GOMAXPROCS goroutines).
func benchmarkMix(b *testing.B, readsPct int) {
	c := New[string, string](Options[string, string]{MaxSize: 100_000})

	for i := 0; i < 50_000; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Put(k, "v")
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				c.GetIfAvailable(k)
			} else {
				c.Put(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkCache50r50w(b *testing.B) { benchmarkMix(b, 50) }

// benchmarkGetOrPut measures the coalescing path against a hot key.
func benchmarkGetOrPut(b *testing.B) {
	c := New[string, string](Options[string, string]{MaxSize: 1024})
	ctx := context.Background()
	producer := func(ctx context.Context) (string, error) { return "v", nil }

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.GetOrPut(ctx, "hot", producer)
		}
	})
}

func BenchmarkGetOrPutHotKey(b *testing.B) { benchmarkGetOrPut(b) }
