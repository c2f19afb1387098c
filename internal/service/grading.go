package service

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/univ-erp-api/internal/models"
)

// Grading math. The order of operations is fixed: per-component percentage at
// 4 fractional digits, then weighting at 4 digits, then the sum rounded to 2.
// Reordering changes rounding outcomes.

var gradePointTable = []struct {
	floor  decimal.Decimal
	letter string
	points decimal.Decimal
}{
	{decimal.NewFromInt(95), "A+", decimal.RequireFromString("10.0")},
	{decimal.NewFromInt(90), "A", decimal.RequireFromString("9.0")},
	{decimal.NewFromInt(85), "A-", decimal.RequireFromString("8.5")},
	{decimal.NewFromInt(80), "B+", decimal.RequireFromString("8.0")},
	{decimal.NewFromInt(75), "B", decimal.RequireFromString("7.0")},
	{decimal.NewFromInt(70), "B-", decimal.RequireFromString("6.5")},
	{decimal.NewFromInt(65), "C+", decimal.RequireFromString("6.0")},
	{decimal.NewFromInt(60), "C", decimal.RequireFromString("5.0")},
	{decimal.NewFromInt(55), "C-", decimal.RequireFromString("4.5")},
	{decimal.NewFromInt(50), "D", decimal.RequireFromString("4.0")},
}

// LetterGrade converts a final percentage to a letter grade. Every breakpoint
// is an inclusive lower bound.
func LetterGrade(percentage decimal.Decimal) string {
	for _, row := range gradePointTable {
		if percentage.GreaterThanOrEqual(row.floor) {
			return row.letter
		}
	}
	return "F"
}

// GradePoints maps a letter grade to grade points on the 10-point scale.
func GradePoints(letter string) decimal.Decimal {
	for _, row := range gradePointTable {
		if row.letter == letter {
			return row.points
		}
	}
	return decimal.Zero
}

// FinalPercentage computes the weighted final percentage over the given
// components, or nil when there are no usable components or the total
// weightage is zero. Components with max_score <= 0 are skipped.
func FinalPercentage(components []models.GradeComponent) *decimal.Decimal {
	if len(components) == 0 {
		return nil
	}

	totalWeighted := decimal.Zero
	totalWeightage := decimal.Zero
	for _, component := range components {
		if component.MaxScore.LessThanOrEqual(decimal.Zero) {
			continue
		}
		percentage := component.Score.DivRound(component.MaxScore, 4).Mul(hundredPct)
		weighted := percentage.Mul(component.WeightagePct).DivRound(hundredPct, 4)
		totalWeighted = totalWeighted.Add(weighted)
		totalWeightage = totalWeightage.Add(component.WeightagePct)
	}

	if totalWeightage.IsZero() {
		return nil
	}

	result := totalWeighted.Round(2)
	return &result
}

var hundredPct = decimal.NewFromInt(100)
