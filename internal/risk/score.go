// Package risk aggregates validation and narrative signals into a risk score and level.
package risk

import (
	"github.com/opensource-finance/harpia/internal/domain"
)

// Signal weights and the score ceiling. These define the product's risk
// semantics and are not configurable.
const (
	InvalidWeight = 25
	WarningWeight = 10
	FlagWeight    = 15
	MaxScore      = 100
)

// Level band upper bounds, inclusive.
const (
	lowUpper    = 20
	mediumUpper = 50
	highUpper   = 75
)

// Contribution is the share of the raw score coming from one signal.
type Contribution struct {
	Signal string `json:"signal"`
	Count  int    `json:"count"`
	Weight int    `json:"weight"`
	Points int    `json:"points"`
}

// Breakdown explains how a score was reached.
type Breakdown struct {
	Contributions []Contribution   `json:"contributions"`
	RawScore      int              `json:"rawScore"`
	Score         int              `json:"score"`
	Level         domain.RiskLevel `json:"level"`
	Clamped       bool             `json:"clamped"`
}

// Assess computes the score with a per-signal breakdown.
func Assess(validation domain.ValidationResult, analysis domain.FraudAnalysis) Breakdown {
	contributions := []Contribution{
		contribution("invalid_fields", len(validation.InvalidFields), InvalidWeight),
		contribution("warnings", len(validation.Warnings), WarningWeight),
		contribution("flags", len(analysis.Flags), FlagWeight),
	}

	raw := 0
	for _, c := range contributions {
		raw += c.Points
	}

	score := min(raw, MaxScore)
	return Breakdown{
		Contributions: contributions,
		RawScore:      raw,
		Score:         score,
		Level:         LevelFor(score),
		Clamped:       raw > MaxScore,
	}
}

func contribution(signal string, count, weight int) Contribution {
	return Contribution{
		Signal: signal,
		Count:  count,
		Weight: weight,
		Points: count * weight,
	}
}

// CalculateScore returns min(100, 25*invalid + 10*warnings + 15*flags).
func CalculateScore(validation domain.ValidationResult, analysis domain.FraudAnalysis) int {
	return Assess(validation, analysis).Score
}

// LevelFor bands a score: <=20 BAIXO, <=50 MEDIO, <=75 ALTO, else CRITICO.
func LevelFor(score int) domain.RiskLevel {
	switch {
	case score <= lowUpper:
		return domain.RiskLow
	case score <= mediumUpper:
		return domain.RiskMedium
	case score <= highUpper:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}
