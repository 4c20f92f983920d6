package breeding

const (
	DominantBalanced = "balanced"
	DominantParentA  = "parent_a"
	DominantParentB  = "parent_b"

	// Trait sums closer than this count as balanced.
	dominanceMargin = 20

	fallbackNameA = "GYEOL"
	fallbackNameB = "AI"
)

// ChildName joins the first half of a (rounded up) with the second half of
// b (split rounded down). Names are split on runes.
func ChildName(a, b string) string {
	if a == "" {
		a = fallbackNameA
	}
	if b == "" {
		b = fallbackNameB
	}
	ar := []rune(a)
	br := []rune(b)
	prefix := ar[:(len(ar)+1)/2]
	suffix := br[len(br)/2:]
	return string(prefix) + string(suffix)
}

// DominantParent compares the parents' trait sums.
func DominantParent(sumA, sumB int) string {
	diff := sumA - sumB
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff < dominanceMargin:
		return DominantBalanced
	case sumA > sumB:
		return DominantParentA
	default:
		return DominantParentB
	}
}
