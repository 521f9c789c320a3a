package entropy

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/rand"
)

// PseudoRandom gives every worker its own PCG generator. Sub-seeds are
// derived by hashing the master seed vector together with the worker
// index, so streams never share state and need no locking.
type PseudoRandom struct {
	subSeeds []uint64
}

// NewPseudoRandom derives one sub-seed per worker from seeds.
//
// Parameters:
//   - workers: Number of streams to prepare.
//   - seeds: Master seed, or seed vector. At least one value is expected;
//     an empty vector behaves like a single zero seed.
//
// Returns:
//   - *PseudoRandom: The source.
func NewPseudoRandom(workers int, seeds ...uint64) *PseudoRandom {
	if len(seeds) == 0 {
		seeds = []uint64{0}
	}
	p := &PseudoRandom{subSeeds: make([]uint64, workers)}
	for w := range p.subSeeds {
		p.subSeeds[w] = MixSeed(w, seeds...)
	}
	return p
}

// MixSeed expands a seed vector into the sub-seed of one worker.
func MixSeed(worker int, seeds ...uint64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, s := range seeds {
		binary.LittleEndian.PutUint64(buf[:], s)
		_, _ = d.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(worker))
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

// SubSeed returns the sub-seed of worker w.
func (p *PseudoRandom) SubSeed(w int) uint64 { return p.subSeeds[w] }

// Stream implements Source.
func (p *PseudoRandom) Stream(worker int) Stream {
	return &prngStream{rng: rand.New(rand.NewSource(p.subSeeds[worker]))}
}

// Name implements Source.
func (p *PseudoRandom) Name() string { return "prng" }

type prngStream struct {
	rng *rand.Rand
}

func (s *prngStream) Draw(_ int64, dst *Sample) {
	fillNormal(s.rng, dst.W1)
	fillNormal(s.rng, dst.W1Perp)
	fillNormal(s.rng, dst.WPerp)
}

func fillNormal(rng *rand.Rand, dst []float64) {
	for i := range dst {
		dst[i] = rng.NormFloat64()
	}
}
