package gen

// bjorklund computes the euclidean rhythm E(hits, steps): hits spread
// as evenly as possible over steps.
//
// The implementation uses the modular-arithmetic formulation: step i
// is a hit iff (i * hits) mod steps < hits. For E(3,8) this yields the
// canonical pattern 10010010, with a hit on step 0. This is the
// documented canonical output asserted by the test suite. Other
// densities come out as rotations of the classic necklaces (E(5,8) is
// 10101101); callers pick the phase with rotate.
//
// Preconditions (enforced by Params.Validate): 0 <= hits <= steps,
// steps > 0.
func bjorklund(hits, steps int) []bool {
	pattern := make([]bool, steps)
	if hits == 0 {
		return pattern
	}
	for i := 0; i < steps; i++ {
		pattern[i] = (i*hits)%steps < hits
	}
	return pattern
}

// rotate returns the pattern shifted left by n steps, so the hit that
// was at position n lands on position 0. n is taken modulo the length;
// negative rotations shift right.
func rotate(pattern []bool, n int) []bool {
	steps := len(pattern)
	if steps == 0 {
		return pattern
	}
	n = ((n % steps) + steps) % steps
	if n == 0 {
		return pattern
	}
	rotated := make([]bool, steps)
	for i := range pattern {
		rotated[i] = pattern[(i+n)%steps]
	}
	return rotated
}
