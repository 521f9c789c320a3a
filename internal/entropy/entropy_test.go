package entropy

import (
	"math"
	"sync"
	"testing"

	"github.com/agbru/rbergomi/internal/arena"
)

func newTestSample(n int, withSpot bool) *Sample {
	return NewSample(arena.New[float64](SampleFloats(n, withSpot)), n, withSpot)
}

func TestMixSeed(t *testing.T) {
	t.Parallel()
	if MixSeed(0, 42) != MixSeed(0, 42) {
		t.Error("Expected MixSeed to be deterministic")
	}
	if MixSeed(0, 42) == MixSeed(1, 42) {
		t.Error("Expected distinct sub-seeds for distinct workers")
	}
	if MixSeed(0, 42) == MixSeed(0, 43) {
		t.Error("Expected distinct sub-seeds for distinct master seeds")
	}
	if MixSeed(0, 1, 2) == MixSeed(0, 2, 1) {
		t.Error("Expected the seed vector order to matter")
	}
}

func TestPseudoRandomReproducible(t *testing.T) {
	t.Parallel()
	const n = 32
	a := NewPseudoRandom(4, 7).Stream(2)
	b := NewPseudoRandom(4, 7).Stream(2)
	sa, sb := newTestSample(n, true), newTestSample(n, true)
	for draw := 0; draw < 5; draw++ {
		a.Draw(int64(draw), sa)
		b.Draw(int64(draw), sb)
		for k := 0; k < n; k++ {
			if sa.W1[k] != sb.W1[k] || sa.W1Perp[k] != sb.W1Perp[k] || sa.WPerp[k] != sb.WPerp[k] {
				t.Fatalf("draw %d step %d: streams diverged", draw, k)
			}
		}
	}
}

func TestPseudoRandomWorkersDiffer(t *testing.T) {
	t.Parallel()
	src := NewPseudoRandom(2, 7)
	s0, s1 := newTestSample(8, false), newTestSample(8, false)
	src.Stream(0).Draw(0, s0)
	src.Stream(1).Draw(0, s1)
	same := 0
	for k := range s0.W1 {
		if s0.W1[k] == s1.W1[k] {
			same++
		}
	}
	if same == len(s0.W1) {
		t.Error("Expected worker streams to differ")
	}
}

func TestPseudoRandomMoments(t *testing.T) {
	t.Parallel()
	const n, draws = 50, 400
	stream := NewPseudoRandom(1, 11).Stream(0)
	s := newTestSample(n, false)
	var sum, sumSq float64
	for d := 0; d < draws; d++ {
		stream.Draw(int64(d), s)
		for _, v := range s.W1 {
			sum += v
			sumSq += v * v
		}
	}
	count := float64(n * draws)
	mean := sum / count
	variance := sumSq/count - mean*mean
	if math.Abs(mean) > 0.03 {
		t.Errorf("Expected mean near 0, got %v", mean)
	}
	if math.Abs(variance-1) > 0.05 {
		t.Errorf("Expected variance near 1, got %v", variance)
	}
}

func TestFirstPrimes(t *testing.T) {
	t.Parallel()
	want := []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}
	got := firstPrimes(10)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
	if p := firstPrimes(300); len(p) != 300 || p[299] != 1987 {
		t.Errorf("Expected the 300th prime to be 1987, got %d (len %d)", p[len(p)-1], len(p))
	}
}

func TestHaltonPoints(t *testing.T) {
	t.Parallel()
	h := NewHalton(6, 1)
	// Base 2 has a single non-zero digit, so its permutation is the identity.
	if got := h.At(1)[0]; got != 0.5 {
		t.Errorf("Expected 0.5 for index 1 in base 2, got %v", got)
	}
	if got := h.At(3)[0]; got != 0.75 {
		t.Errorf("Expected 0.75 for index 3 in base 2, got %v", got)
	}

	const count = 4096
	sums := make([]float64, h.Dim())
	for i := uint64(1); i <= count; i++ {
		for j, v := range h.At(i) {
			if v <= 0 || v >= 1 {
				t.Fatalf("index %d dim %d: %v outside (0,1)", i, j, v)
			}
			sums[j] += v
		}
	}
	for j, s := range sums {
		if mean := s / count; math.Abs(mean-0.5) > 0.01 {
			t.Errorf("dim %d: expected mean near 0.5, got %v", j, mean)
		}
	}
}

func TestHaltonRejectsOrigin(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for index 0")
		}
	}()
	NewHalton(2, 1).At(0)
}

func TestQuasiRandomIndependentOfWorker(t *testing.T) {
	t.Parallel()
	const n = 16
	src := NewQuasiRandom(n, true, 3)
	a, b := newTestSample(n, true), newTestSample(n, true)
	src.Stream(0).Draw(10, a)
	other := src.Stream(5)
	other.Draw(2, b)
	other.Draw(10, b)
	for k := 0; k < n; k++ {
		if a.W1[k] != b.W1[k] || a.W1Perp[k] != b.W1Perp[k] || a.WPerp[k] != b.WPerp[k] {
			t.Fatalf("step %d: sample 10 depends on the stream", k)
		}
		if math.IsInf(a.W1[k], 0) || math.IsNaN(a.W1[k]) {
			t.Fatalf("step %d: non-finite Gaussian %v", k, a.W1[k])
		}
	}
}

func TestQuasiRandomConcurrentDraws(t *testing.T) {
	t.Parallel()
	const n, draws, workers = 8, 200, 4
	src := NewQuasiRandom(n, false, 9)

	want := make([][]float64, draws)
	ref := src.Stream(0)
	for i := range want {
		s := newTestSample(n, false)
		ref.Draw(int64(i), s)
		want[i] = append(append([]float64(nil), s.W1...), s.W1Perp...)
	}

	var wg sync.WaitGroup
	errs := make(chan int, draws)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			stream := src.Stream(w)
			s := newTestSample(n, false)
			for i := w; i < draws; i += workers {
				stream.Draw(int64(i), s)
				for k := 0; k < n; k++ {
					if s.W1[k] != want[i][k] || s.W1Perp[k] != want[i][n+k] {
						errs <- i
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for i := range errs {
		t.Errorf("sample %d differed under concurrent draws", i)
	}
}
