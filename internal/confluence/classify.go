package confluence

import "github.com/wonny/confluence/backend/internal/contracts"

// Classify maps a composite score to a quality tier. Lower bounds are
// inclusive; scores outside 0..100 are clamped first.
func Classify(score int) contracts.Quality {
	switch score = clamp(score, 0, 100); {
	case score >= 95:
		return contracts.QualityInstitutional
	case score >= 90:
		return contracts.QualityExcellent
	case score >= 85:
		return contracts.QualityStrong
	case score >= 80:
		return contracts.QualityGood
	default:
		return contracts.QualityWeak
	}
}
