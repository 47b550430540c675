package features

import "math"

// DefaultAnnualRate is the interest rate assumed for the indicative EMI estimate.
const DefaultAnnualRate = 0.10

// TenureEMI returns the amortised monthly instalment P·R·(1+R)^N / ((1+R)^N − 1) with R the
// monthly rate. A zero rate degrades to straight division; a non-positive tenure yields 0.
func TenureEMI(principal, annualRate float64, months int) float64 {
	if months <= 0 || principal <= 0 {
		return 0
	}
	n := float64(months)
	r := annualRate / 12
	if r == 0 {
		return principal / n
	}
	growth := math.Pow(1+r, n)
	return principal * r * growth / (growth - 1)
}

// RoundCurrency rounds a currency amount to two decimals.
func RoundCurrency(value float64) float64 {
	return math.Round(value*100) / 100
}
