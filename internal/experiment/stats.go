package experiment

import "math"

// z95 is the two-tailed 95% critical value of the standard normal.
const z95 = 1.96

// StandardError returns the standard error of a binomial proportion p
// over n trials. Returns 0 when n is 0. p is clamped to [0, 1] so that
// out-of-range inputs never produce a negative variance.
func StandardError(p float64, n int64) float64 {
	if n <= 0 {
		return 0
	}
	p = clampProportion(p)
	return math.Sqrt(p * (1 - p) / float64(n))
}

// clampProportion forces p into [0, 1].
func clampProportion(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ConfidenceInterval95 returns the 95% confidence interval for a binomial
// proportion using the normal approximation, clamped to [0, 1].
func ConfidenceInterval95(p float64, n int64) (low, high float64) {
	se := StandardError(p, n)
	low = p - z95*se
	high = p + z95*se
	if low < 0 {
		low = 0
	}
	if high > 1 {
		high = 1
	}
	return low, high
}

// Comparison is the result of a two-proportion test between variants.
type Comparison struct {
	VariantA string  `json:"variant_a"`
	VariantB string  `json:"variant_b"`
	RateA    float64 `json:"rate_a"`
	RateB    float64 `json:"rate_b"`

	// Difference is RateA - RateB.
	Difference float64 `json:"difference"`

	ZStat  float64 `json:"z_stat"`
	PValue float64 `json:"p_value"`

	// IsSignificant is true when the two-tailed p-value is below 0.05.
	IsSignificant bool `json:"is_significant"`
}

// significanceLevel is the alpha for variant comparisons.
const significanceLevel = 0.05

// TwoProportionTest runs a pooled two-proportion z-test between rates
// pA (over nA trials) and pB (over nB trials) with a two-tailed p-value.
// Degenerate inputs (zero trials, zero pooled variance) produce z = 0 and
// p = 1, i.e. no evidence of a difference.
func TwoProportionTest(pA float64, nA int64, pB float64, nB int64) (z, p float64) {
	if nA <= 0 || nB <= 0 {
		return 0, 1
	}
	pA = clampProportion(pA)
	pB = clampProportion(pB)

	pooled := (pA*float64(nA) + pB*float64(nB)) / float64(nA+nB)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(nA) + 1/float64(nB)))
	if se == 0 {
		return 0, 1
	}

	z = (pA - pB) / se
	p = 2 * (1 - normalCDF(math.Abs(z)))
	return z, p
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
