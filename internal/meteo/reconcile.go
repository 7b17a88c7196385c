package meteo

import "math"

// Round2 rounds to two decimal places, the precision used for corrected
// values and correction factors.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Reconcile merges the two provider readings for one basin into a corrected
// reading and a correction factor. The corrected value is the per-field mean
// of both readings rounded to two decimals; the factor is corrected minus
// primary. If either reading is incomplete, no corrected reading is produced
// and the factor is nil, meaning the previously known factor for that basin
// stays in effect.
//
// Reconcile is pure: the same inputs always yield the same outputs.
func Reconcile(primary, secondary Reading, timestamp string) (*Reading, *CorrectionFactor) {
	if !primary.Complete() || !secondary.Complete() {
		return nil, nil
	}

	corrected := Reading{
		Temp:      mean(primary.Temp, secondary.Temp),
		Rain:      mean(primary.Rain, secondary.Rain),
		Rain24h:   mean(primary.Rain24h, secondary.Rain24h),
		Timestamp: timestamp,
	}

	factor := CorrectionFactor{
		Temp:    Round2(*corrected.Temp - *primary.Temp),
		Rain:    Round2(*corrected.Rain - *primary.Rain),
		Rain24h: Round2(*corrected.Rain24h - *primary.Rain24h),
	}

	return &corrected, &factor
}

func mean(a, b *float64) *float64 {
	v := Round2((*a + *b) / 2)
	return &v
}
