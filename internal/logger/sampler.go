package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler passes numerator out of every denominator calls to Allow.
// A zero ratio disables sampling and lets everything through.
type ratioSampler struct {
	mu    sync.Mutex
	num   int
	den   int
	count int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the sampling ratio and resets the window counter.
func (s *ratioSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num <= 0 || den <= 0 {
		s.num, s.den, s.count = 0, 0, 0
		return
	}
	if num > den {
		num = den
	}
	s.num, s.den, s.count = num, den, 0
}

// Allow reports whether the current call falls inside the sampled window.
func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.num <= 0 || s.den <= 0 {
		return true
	}
	s.count++
	if s.count > s.den {
		s.count = 1
	}
	return s.count <= s.num
}

// parseRatioSpec accepts "n/m" or a bare "m" meaning 1/m. Anything else
// yields the zero ratio.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0
	}
	if num, den, ok := strings.Cut(spec, "/"); ok {
		n, errN := strconv.Atoi(strings.TrimSpace(num))
		d, errD := strconv.Atoi(strings.TrimSpace(den))
		if errN == nil && errD == nil {
			return n, d
		}
		return 0, 0
	}
	if v, err := strconv.Atoi(spec); err == nil && v > 0 {
		return 1, v
	}
	return 0, 0
}
