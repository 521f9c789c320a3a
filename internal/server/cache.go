package server

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultCacheSize is the number of seeded responses kept by default.
const DefaultCacheSize = 256

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rbergomi_response_cache_lookups_total",
	Help: "Response cache lookups, by result (hit or miss)",
}, []string{"result"})

// responseCache keeps the responses of seeded requests. A seeded request is
// deterministic for a given server, so an identical one can be answered
// without simulating again.
type responseCache struct {
	cache *lru.Cache[uint64, PriceResponse]
}

// newResponseCache returns nil when size is not positive, which disables
// caching.
func newResponseCache(size int) *responseCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[uint64, PriceResponse](size)
	if err != nil {
		return nil
	}
	return &responseCache{cache: c}
}

func (c *responseCache) get(key uint64) (PriceResponse, bool) {
	if c == nil {
		return PriceResponse{}, false
	}
	resp, ok := c.cache.Get(key)
	if ok {
		cacheLookups.WithLabelValues("hit").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}
	return resp, ok
}

func (c *responseCache) add(key uint64, resp PriceResponse) {
	if c == nil {
		return
	}
	c.cache.Add(key, resp)
}

func (c *responseCache) len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// cacheKey hashes everything that determines the rows of a response: the
// parameter arrays in request order and the resolved run settings.
func cacheKey(req PriceRequest, job Job, ordered bool) uint64 {
	d := xxhash.New()
	var buf [8]byte
	putUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}
	putBool := func(b bool) {
		if b {
			putUint(1)
		} else {
			putUint(0)
		}
	}

	for _, arr := range [][]float64{req.H, req.Eta, req.Rho, req.T, req.K, req.Xi} {
		putUint(uint64(len(arr)))
		for _, v := range arr {
			putUint(math.Float64bits(v))
		}
	}
	opts := job.Options
	putUint(uint64(opts.Steps))
	putUint(uint64(opts.Samples))
	putUint(uint64(opts.Workers))
	putUint(uint64(opts.Mode))
	putUint(job.Seed)
	putBool(ordered)
	putBool(opts.FullRecompute)
	d.WriteString(job.Sampler)
	d.WriteString("|")
	d.WriteString(string(opts.Backend))
	return d.Sum64()
}
