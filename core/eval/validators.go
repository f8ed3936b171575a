package eval

import (
	"errors"
	"fmt"
	"math"

	"github.com/Maad-exe/projectgo/core"
)

var (
	errWeightSum       = errors.New("category weights must sum to 1.0")
	errDuplicateMember = errors.New("panel members must be distinct teachers")
)

// validateWeightSum enforces the rubric invariant at write time: category
// weights sum to 1.0 within tolerance. It is never re-checked lazily.
func validateWeightSum(cats []NewRubricCategory) error {
	var sum float64
	for _, cat := range cats {
		sum += cat.Weight
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return core.NewValidationError(errWeightSum, core.FieldError{
			Field: "categories",
			Error: fmt.Sprintf("category weights sum to %.2f, expected 1.0", sum),
		})
	}
	return nil
}

func validateDistinctMembers(members []NewPanelMember) error {
	seen := make(map[int]bool, len(members))
	for _, m := range members {
		if seen[m.TeacherID] {
			return core.NewValidationError(errDuplicateMember, core.FieldError{
				Field: "members",
				Error: fmt.Sprintf("teacher %d appears more than once", m.TeacherID),
			})
		}
		seen[m.TeacherID] = true
	}
	return nil
}
