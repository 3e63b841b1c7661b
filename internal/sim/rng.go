package sim

// seedRNG expands the match seed with splitmix64 so that small seeds still
// produce well-mixed, non-zero xorshift state.
func seedRNG(seed int64) uint64 {
	z := uint64(seed) + 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	if z == 0 {
		z = 0x9E3779B97F4A7C15
	}
	return z
}

// rand advances the xorshift64* generator carried in the state.
func (s *State) rand() uint64 {
	x := s.RNG
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	s.RNG = x
	return x * 2685821657736338717
}

func (s *State) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.rand() % uint64(n))
}

func (s *State) nextID() uint32 {
	s.NextID++
	return s.NextID
}
