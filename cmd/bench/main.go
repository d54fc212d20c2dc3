// Command bench runs a synthetic workload against the cache and exposes
// an optional pprof endpoint and a Prometheus /metrics endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mayaka-Apps/coalesce/cache"
	pmet "github.com/Mayaka-Apps/coalesce/metrics/prom"
	"github.com/Mayaka-Apps/coalesce/strategy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		maxSize      = flag.Int64("max-size", 100_000, "cache size budget (entries, since sizeOf defaults to 1)")
		strategyName = flag.String("strategy", "lru", "eviction strategy: lru | mru | fifo | filo")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]; remaining is split between direct puts and GetOrPut")
		getOrPct = flag.Int("getorput", 10, "percentage of non-read ops that are GetOrPut instead of Put")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = max-size/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	metrics := pmet.New(nil, "coalesce", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	kind, err := parseStrategy(*strategyName)
	if err != nil {
		log.Fatal(err)
	}

	c := cache.New[string, string](cache.Options[string, string]{
		MaxSize:  *maxSize,
		Strategy: kind,
		Metrics:  metrics,
	})

	pl := *preload
	if pl == 0 {
		pl = int(*maxSize / 2)
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Put(k, "v"+strconv.Itoa(i))
	}

	readPctVal := *readPct
	getOrPctVal := *getOrPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	var reads, writes, getOrPuts, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)
			keyByZipf := func() string { return "k:" + strconv.FormatUint(localZipf.Uint64(), 10) }

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				switch {
				case int(localR.Int31n(100)) < readPctVal:
					atomic.AddUint64(&reads, 1)
					if _, ok := c.GetIfAvailable(keyByZipf()); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				case int(localR.Int31n(100)) < getOrPctVal:
					atomic.AddUint64(&getOrPuts, 1)
					k := keyByZipf()
					c.GetOrPut(ctx, k, func(ctx context.Context) (string, error) {
						return "loaded:" + k, nil
					})
				default:
					atomic.AddUint64(&writes, 1)
					k := keyByZipf()
					c.Put(k, "v"+strconv.Itoa(localR.Int()))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	getOrPutsN := atomic.LoadUint64(&getOrPuts)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("strategy=%s max-size=%d workers=%d keys=%d dur=%v seed=%d\n",
		*strategyName, *maxSize, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  getOrPut=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN, getOrPutsN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
	fmt.Printf("Len()=%d  Size()=%d\n", c.Len(), c.Size())
}

func parseStrategy(name string) (strategy.Kind, error) {
	switch name {
	case "lru":
		return strategy.LRU, nil
	case "mru":
		return strategy.MRU, nil
	case "fifo":
		return strategy.FIFO, nil
	case "filo":
		return strategy.FILO, nil
	default:
		return 0, fmt.Errorf("unknown strategy: %q (use lru, mru, fifo, or filo)", name)
	}
}
