package eval

import (
	"math"
	"sort"
)

// normalization targets: grades are rescaled to mean 70 with 10 points
// per standard deviation, then clipped to the valid 0-100 range.
const (
	normalTargetMean   = 70.0
	normalTargetSpread = 10.0
)

// FinalGrade computes a student's weighted final grade on a 0-100 scale
// from their completed evaluations. Evaluations are grouped by event;
// multiple evaluations under the same event (re-evaluation scenarios)
// average their percentage within the group before weighting. A student
// with no completed evaluations gets 0, not an error.
func (svc *Service) FinalGrade(studentID int) (float64, error) {
	records, err := svc.repo.QueryCompletedEvaluationsByStudent(studentID)
	if err != nil {
		return 0, err
	}
	return finalGrade(records), nil
}

func finalGrade(records []EvaluationRecord) float64 {
	if len(records) == 0 {
		return 0
	}

	type eventAgg struct {
		weight float64
		pctSum float64
		count  int
	}
	byEvent := make(map[int]*eventAgg)
	for _, rec := range records {
		agg := byEvent[rec.Event.ID]
		if agg == nil {
			agg = &eventAgg{weight: rec.Event.Weight}
			byEvent[rec.Event.ID] = agg
		}
		agg.pctSum += float64(rec.ObtainedMarks) / float64(rec.Event.TotalMarks) * 100
		agg.count++
	}

	var weightedSum, weightSum float64
	for _, agg := range byEvent {
		weightedSum += agg.weight * (agg.pctSum / float64(agg.count))
		weightSum += agg.weight
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

// NormalizeAll computes the cohort-relative normalized grade for every
// student with at least one completed evaluation: a z-score rescale of
// the raw final grades to mean 70 / spread 10, clamped to [0, 100]. A
// degenerate cohort (σ = 0: identical scores or a single student) keeps
// the raw grades rather than dividing by zero. The pass reads a snapshot
// and tolerates slight staleness; results are sorted descending by
// normalized grade.
func (svc *Service) NormalizeAll() ([]NormalizedGrade, error) {
	studentIDs, err := svc.repo.QueryStudentIDsWithCompletedEvaluations()
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return []NormalizedGrade{}, nil
	}

	grades := make([]NormalizedGrade, 0, len(studentIDs))
	for _, id := range studentIDs {
		raw, err := svc.FinalGrade(id)
		if err != nil {
			return nil, err
		}
		grades = append(grades, NormalizedGrade{
			StudentID:   id,
			StudentName: svc.resolveName(id),
			RawGrade:    raw,
		})
	}

	mean, stdDev := populationStats(grades)
	for i := range grades {
		if stdDev > 0 {
			z := (grades[i].RawGrade - mean) / stdDev
			grades[i].NormalizedGrade = clamp(z*normalTargetSpread+normalTargetMean, 0, 100)
		} else {
			grades[i].NormalizedGrade = grades[i].RawGrade
		}
	}

	sort.Slice(grades, func(i, j int) bool {
		if grades[i].NormalizedGrade != grades[j].NormalizedGrade {
			return grades[i].NormalizedGrade > grades[j].NormalizedGrade
		}
		return grades[i].StudentID < grades[j].StudentID
	})
	return grades, nil
}

// GetStudentProgress returns all of a student's evaluations with their
// per-evaluator breakdowns, plus the current final grade.
func (svc *Service) GetStudentProgress(studentID int) (StudentProgress, error) {
	records, err := svc.repo.QueryEvaluationsByStudent(studentID)
	if err != nil {
		return StudentProgress{}, err
	}

	views := make([]StudentEvaluationView, 0, len(records))
	for _, rec := range records {
		rub, err := svc.eventRubric(rec.Event)
		if err != nil {
			return StudentProgress{}, err
		}
		view, err := svc.project(rec.StudentEvaluation, rec.Event, rub)
		if err != nil {
			return StudentProgress{}, err
		}
		views = append(views, view)
	}

	grade, err := svc.FinalGrade(studentID)
	if err != nil {
		return StudentProgress{}, err
	}
	return StudentProgress{
		StudentID:   studentID,
		StudentName: svc.resolveName(studentID),
		Evaluations: views,
		FinalGrade:  grade,
	}, nil
}

// populationStats returns mean and population standard deviation
// (denominator N, not N-1) of the raw grades.
func populationStats(grades []NormalizedGrade) (mean, stdDev float64) {
	n := float64(len(grades))
	for _, g := range grades {
		mean += g.RawGrade
	}
	mean /= n

	var variance float64
	for _, g := range grades {
		d := g.RawGrade - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
