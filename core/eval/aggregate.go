package eval

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/Maad-exe/projectgo/core"
)

// SubmitScore records one evaluator's input for one student under a group
// evaluation and recomputes the derived state. The payload carries either
// simple marks or rubric category scores, matching the event's mode.
//
// The ledger upsert, the aggregate recompute and the completion flip run
// in one repository transaction so that concurrent submissions for the
// same student evaluation serialize and the completion transition fires
// exactly once.
func (svc *Service) SubmitScore(groupEvalID, studentID, evaluatorID int, sub ScoreSubmission) (StudentEvaluationView, error) {
	if err := sub.Validate(); err != nil {
		return StudentEvaluationView{}, err
	}

	ge, err := svc.repo.GetGroupEvaluationByID(groupEvalID)
	if err != nil {
		return StudentEvaluationView{}, notFound(err, ErrGroupEvalNotFound)
	}
	evt := *ge.Event
	pnl := *ge.Panel

	grp, err := svc.groups.GetByID(ge.GroupID)
	if err != nil {
		return StudentEvaluationView{}, err
	}
	if !grp.HasMember(studentID) {
		return StudentEvaluationView{}, core.NewValidationError(errors.New("student is not a member of this group"))
	}
	// the caller is trusted to have authorized the evaluator already;
	// both panel checks are re-validated here regardless
	if grp.SupervisorID != nil && *grp.SupervisorID == evaluatorID {
		return StudentEvaluationView{}, core.NewConflictError("the group's supervisor cannot evaluate its members")
	}
	if !pnl.HasMember(evaluatorID) {
		return StudentEvaluationView{}, core.NewValidationError(errors.New("evaluator is not a member of the assigned panel"))
	}

	rub, err := svc.eventRubric(evt)
	if err != nil {
		return StudentEvaluationView{}, err
	}
	entries, err := buildLedgerEntries(evt, rub, sub)
	if err != nil {
		return StudentEvaluationView{}, err
	}

	now := time.Now().UTC()
	var view StudentEvaluationView
	var completedNow bool
	err = svc.repo.WithTx(func(tx Repository) error {
		se, err := tx.FindStudentEvaluationForUpdate(groupEvalID, studentID)
		if err == ErrStudentEvalNotFound {
			// created lazily on first submission; the panel size is
			// snapshotted here so later panel edits don't move the
			// completion threshold
			se, err = tx.CreateStudentEvaluation(StudentEvaluation{
				GroupEvaluationID:       groupEvalID,
				StudentID:               studentID,
				RequiredEvaluatorsCount: len(pnl.Members),
				RubricID:                evt.RubricID,
				CreatedAt:               now,
				UpdatedAt:               now,
			})
		}
		if err != nil {
			return err
		}

		for _, entry := range entries {
			entry.StudentEvaluationID = se.ID
			entry.EvaluatorID = evaluatorID
			entry.EvaluatedAt = now
			if _, err := tx.UpsertScore(entry); err != nil {
				return pkgerrors.Wrap(err, "upserting score")
			}
		}

		scores, err := tx.QueryScores(se.ID)
		if err != nil {
			return pkgerrors.Wrap(err, "reading score ledger")
		}

		se.ObtainedMarks, _ = computeObtainedMarks(evt, rub, scores)
		if !se.IsComplete && len(distinctEvaluators(scores)) >= se.RequiredEvaluatorsCount {
			se.IsComplete = true // irreversible
			completedNow = true
			se.Feedback = svc.compileFeedback(evt, rub, scores)
		}
		se.UpdatedAt = now

		se, err = tx.SaveStudentEvaluation(se)
		if err != nil {
			return pkgerrors.Wrap(err, "saving student evaluation")
		}
		se.Scores = scores
		view, err = svc.project(se, evt, rub)
		return err
	})
	if err != nil {
		return StudentEvaluationView{}, err
	}

	if completedNow && svc.notifier != nil {
		svc.notifier.EvaluationCompleted(studentID, evt.Name, view.ObtainedMarks, evt.TotalMarks)
	}
	return view, nil
}

// MarkComplete finalizes a student evaluation once every required
// evaluator has submitted, and recompiles the combined feedback from the
// current ledger state (an explicit refresh is always allowed).
func (svc *Service) MarkComplete(studentEvalID int) (StudentEvaluationView, error) {
	cur, err := svc.repo.GetStudentEvaluationByID(studentEvalID)
	if err != nil {
		return StudentEvaluationView{}, notFound(err, ErrStudentEvalNotFound)
	}
	ge, err := svc.repo.GetGroupEvaluationByID(cur.GroupEvaluationID)
	if err != nil {
		return StudentEvaluationView{}, notFound(err, ErrGroupEvalNotFound)
	}
	evt := *ge.Event
	rub, err := svc.eventRubric(evt)
	if err != nil {
		return StudentEvaluationView{}, err
	}

	var view StudentEvaluationView
	var completedNow bool
	err = svc.repo.WithTx(func(tx Repository) error {
		se, err := tx.FindStudentEvaluationForUpdate(cur.GroupEvaluationID, cur.StudentID)
		if err != nil {
			return notFound(err, ErrStudentEvalNotFound)
		}
		scores, err := tx.QueryScores(se.ID)
		if err != nil {
			return pkgerrors.Wrap(err, "reading score ledger")
		}
		if len(distinctEvaluators(scores)) < se.RequiredEvaluatorsCount {
			return core.NewConflictError("not all panel members have submitted scores yet")
		}

		se.ObtainedMarks, _ = computeObtainedMarks(evt, rub, scores)
		if !se.IsComplete {
			se.IsComplete = true
			completedNow = true
		}
		se.Feedback = svc.compileFeedback(evt, rub, scores)
		se.UpdatedAt = time.Now().UTC()

		se, err = tx.SaveStudentEvaluation(se)
		if err != nil {
			return pkgerrors.Wrap(err, "saving student evaluation")
		}
		se.Scores = scores
		view, err = svc.project(se, evt, rub)
		return err
	})
	if err != nil {
		return StudentEvaluationView{}, err
	}

	if completedNow && svc.notifier != nil {
		svc.notifier.EvaluationCompleted(view.StudentID, evt.Name, view.ObtainedMarks, evt.TotalMarks)
	}
	return view, nil
}

// buildLedgerEntries validates the payload against the event's mode and
// the rubric's category bounds, and returns the entries to upsert.
func buildLedgerEntries(evt EvaluationEvent, rub *Rubric, sub ScoreSubmission) ([]StudentCategoryScore, error) {
	if evt.IsRubricMode() {
		if sub.ObtainedMarks != nil {
			return nil, core.NewValidationError(errors.New("simple marks are not accepted for a rubric-based event"))
		}
		if len(sub.CategoryScores) == 0 {
			return nil, core.NewValidationError(errors.New("rubric category scores are required for this event"))
		}

		entries := make([]StudentCategoryScore, 0, len(sub.CategoryScores))
		seen := make(map[int]bool, len(sub.CategoryScores))
		for _, cs := range sub.CategoryScores {
			if seen[cs.CategoryID] {
				return nil, core.NewValidationError(fmt.Errorf("category %d scored more than once", cs.CategoryID))
			}
			seen[cs.CategoryID] = true

			cat, ok := rub.CategoryByID(cs.CategoryID)
			if !ok {
				return nil, core.NewNotFoundError(fmt.Sprintf("category %d not found in rubric", cs.CategoryID))
			}
			if cs.Score < 0 || cs.Score > cat.MaxScore {
				return nil, core.NewValidationError(
					fmt.Errorf("score for %q must be between 0 and %d", cat.Name, cat.MaxScore))
			}
			catID := cs.CategoryID
			entries = append(entries, StudentCategoryScore{CategoryID: &catID, Score: cs.Score, Feedback: cs.Feedback})
		}
		return entries, nil
	}

	// simple-marks mode
	if len(sub.CategoryScores) > 0 {
		return nil, core.NewValidationError(errors.New("category scores are not accepted for a simple-marks event"))
	}
	if sub.ObtainedMarks == nil {
		return nil, core.NewValidationError(errors.New("obtained marks are required for this event"))
	}
	if *sub.ObtainedMarks < 0 || *sub.ObtainedMarks > evt.TotalMarks {
		return nil, core.NewValidationError(
			fmt.Errorf("obtained marks must be between 0 and %d", evt.TotalMarks))
	}
	return []StudentCategoryScore{{Score: *sub.ObtainedMarks, Feedback: sub.Feedback}}, nil
}

// computeObtainedMarks derives the obtained-marks value from the current
// ledger. Partial snapshots (fewer evaluators than required) are legal.
// It also returns each evaluator's weighted percentage for projections.
//
// Simple mode: arithmetic mean of all raw scores.
// Rubric mode: each evaluator's percentage is a ratio of sums over the
// categories that evaluator actually scored, so a skipped category neither
// zeroes the score nor inflates it; the per-evaluator percentages are
// then averaged.
func computeObtainedMarks(evt EvaluationEvent, rub *Rubric, scores []StudentCategoryScore) (int, map[int]float64) {
	pcts := make(map[int]float64)
	if len(scores) == 0 {
		return 0, pcts
	}

	if !evt.IsRubricMode() {
		var sum float64
		for _, s := range scores {
			sum += float64(s.Score)
			pcts[s.EvaluatorID] = float64(s.Score) / float64(evt.TotalMarks) * 100
		}
		mean := sum / float64(len(scores))
		return roundHalfAway(mean), pcts
	}

	type ratio struct{ num, den float64 }
	ratios := make(map[int]*ratio)
	for _, s := range scores {
		if s.CategoryID == nil {
			continue // stray simple-mode row; unreachable through the API
		}
		cat, ok := rub.CategoryByID(*s.CategoryID)
		if !ok || cat.MaxScore == 0 {
			continue
		}
		r := ratios[s.EvaluatorID]
		if r == nil {
			r = &ratio{}
			ratios[s.EvaluatorID] = r
		}
		r.num += float64(s.Score) / float64(cat.MaxScore) * cat.Weight
		r.den += cat.Weight
	}
	if len(ratios) == 0 {
		return 0, pcts
	}

	var total float64
	for evaluatorID, r := range ratios {
		pct := r.num / r.den * 100
		pcts[evaluatorID] = pct
		total += pct
	}
	avg := total / float64(len(ratios))
	return roundHalfAway(avg / 100 * float64(evt.TotalMarks)), pcts
}

// distinctEvaluators returns the sorted set of evaluator IDs present in
// the ledger.
func distinctEvaluators(scores []StudentCategoryScore) []int {
	seen := make(map[int]bool)
	ids := make([]int, 0, len(scores))
	for _, s := range scores {
		if !seen[s.EvaluatorID] {
			seen[s.EvaluatorID] = true
			ids = append(ids, s.EvaluatorID)
		}
	}
	sort.Ints(ids)
	return ids
}

// roundHalfAway rounds to the nearest integer, halves away from zero.
// This is the single rounding rule applied to every derived mark.
func roundHalfAway(x float64) int {
	return int(math.Round(x))
}

// project builds the outward StudentEvaluationView from a student
// evaluation and its loaded scores.
func (svc *Service) project(se StudentEvaluation, evt EvaluationEvent, rub *Rubric) (StudentEvaluationView, error) {
	_, pcts := computeObtainedMarks(evt, rub, se.Scores)
	evaluators := distinctEvaluators(se.Scores)

	breakdown := make([]EvaluatorBreakdown, 0, len(evaluators))
	for _, evaluatorID := range evaluators {
		lines := make([]ScoreLine, 0, len(se.Scores))
		for _, s := range se.Scores {
			if s.EvaluatorID != evaluatorID {
				continue
			}
			line := ScoreLine{CategoryID: s.CategoryID, Score: s.Score, Feedback: s.Feedback, MaxScore: evt.TotalMarks}
			if s.CategoryID != nil && rub != nil {
				if cat, ok := rub.CategoryByID(*s.CategoryID); ok {
					line.CategoryName = cat.Name
					line.MaxScore = cat.MaxScore
				}
			}
			lines = append(lines, line)
		}
		sort.Slice(lines, func(i, j int) bool {
			if lines[i].CategoryID == nil || lines[j].CategoryID == nil {
				return lines[j].CategoryID != nil
			}
			return *lines[i].CategoryID < *lines[j].CategoryID
		})
		breakdown = append(breakdown, EvaluatorBreakdown{
			EvaluatorID:   evaluatorID,
			EvaluatorName: svc.resolveName(evaluatorID),
			Percentage:    pcts[evaluatorID],
			Scores:        lines,
		})
	}

	return StudentEvaluationView{
		ID:                      se.ID,
		GroupEvaluationID:       se.GroupEvaluationID,
		StudentID:               se.StudentID,
		StudentName:             svc.resolveName(se.StudentID),
		ObtainedMarks:           se.ObtainedMarks,
		TotalMarks:              evt.TotalMarks,
		IsComplete:              se.IsComplete,
		RequiredEvaluatorsCount: se.RequiredEvaluatorsCount,
		EvaluatorsSubmitted:     len(evaluators),
		Feedback:                se.Feedback,
		Breakdown:               breakdown,
	}, nil
}

// resolveName falls back to a placeholder when the directory cannot
// resolve the user (e.g. a since-deleted account); projections should not
// fail over display names.
func (svc *Service) resolveName(userID int) string {
	name, err := svc.users.DisplayName(userID)
	if err != nil {
		if svc.logger != nil {
			svc.logger.Warn(fmt.Sprintf("resolving display name for user %d: %v", userID, err))
		}
		return fmt.Sprintf("User #%d", userID)
	}
	return name
}
