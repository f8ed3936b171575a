package eval

import (
	"fmt"
	"sort"
	"strings"
)

// compileFeedback synthesizes one human-readable narrative from the full
// score ledger, grouped by evaluator. Each block is headed by the
// evaluator's resolved display name; each line is prefixed by the
// category name (or the raw score in simple-marks mode). Entries without
// feedback text still contribute a score-only line, so no evaluator's
// input is silently dropped.
//
// The output is a pure function of the ledger state: recompiling from an
// unchanged ledger yields the same string.
func (svc *Service) compileFeedback(evt EvaluationEvent, rub *Rubric, scores []StudentCategoryScore) string {
	if len(scores) == 0 {
		return ""
	}

	byEvaluator := make(map[int][]StudentCategoryScore)
	for _, s := range scores {
		byEvaluator[s.EvaluatorID] = append(byEvaluator[s.EvaluatorID], s)
	}

	blocks := make([]string, 0, len(byEvaluator))
	for _, evaluatorID := range distinctEvaluators(scores) {
		entries := byEvaluator[evaluatorID]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].CategoryID == nil || entries[j].CategoryID == nil {
				return entries[j].CategoryID != nil
			}
			return *entries[i].CategoryID < *entries[j].CategoryID
		})

		var b strings.Builder
		fmt.Fprintf(&b, "Evaluation by %s:", svc.resolveName(evaluatorID))
		for _, entry := range entries {
			b.WriteString("\n- ")
			b.WriteString(feedbackLine(evt, rub, entry))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func feedbackLine(evt EvaluationEvent, rub *Rubric, entry StudentCategoryScore) string {
	label := "Score"
	maxScore := evt.TotalMarks
	if entry.CategoryID != nil && rub != nil {
		if cat, ok := rub.CategoryByID(*entry.CategoryID); ok {
			label = cat.Name
			maxScore = cat.MaxScore
		}
	}
	if entry.Feedback == "" {
		return fmt.Sprintf("%s [%d/%d]", label, entry.Score, maxScore)
	}
	return fmt.Sprintf("%s [%d/%d]: %s", label, entry.Score, maxScore, entry.Feedback)
}
