package inmemdb

import (
	"sort"

	"github.com/Maad-exe/projectgo/core/eval"
)

type evalRepository struct {
	db *DB
}

var _ eval.Repository = (*evalRepository)(nil)

func NewEvalRepository(db *DB) *evalRepository {
	return &evalRepository{db: db}
}

// -- rubrics --

func (repo *evalRepository) CreateRubric(rub eval.Rubric) (eval.Rubric, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rub.ID = repo.db.nextID()
	for i := range rub.Categories {
		rub.Categories[i].ID = repo.db.nextID()
		rub.Categories[i].RubricID = rub.ID
	}
	repo.db.rubrics[rub.ID] = &rub
	return rub, nil
}

func (repo *evalRepository) GetRubricByID(id int) (eval.Rubric, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rub, ok := repo.db.rubrics[id]; ok {
		return *rub, nil
	}
	return eval.Rubric{}, eval.ErrRubricNotFound
}

func (repo *evalRepository) QueryAllRubrics() ([]eval.Rubric, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rubrics := make([]eval.Rubric, 0, len(repo.db.rubrics))
	for _, rub := range repo.db.rubrics {
		rubrics = append(rubrics, *rub)
	}
	return rubrics, nil
}

func (repo *evalRepository) UpdateRubric(rub eval.Rubric) (eval.Rubric, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rubrics[rub.ID]; !ok {
		return eval.Rubric{}, eval.ErrRubricNotFound
	}
	for i := range rub.Categories {
		if rub.Categories[i].ID == 0 {
			rub.Categories[i].ID = repo.db.nextID()
		}
		rub.Categories[i].RubricID = rub.ID
	}
	repo.db.rubrics[rub.ID] = &rub
	return rub, nil
}

func (repo *evalRepository) DeleteRubricsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.rubrics, id)
	}
	return nil
}

func (repo *evalRepository) RubricInUse(id int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, evt := range repo.db.events {
		if evt.RubricID != nil && *evt.RubricID == id {
			return true, nil
		}
	}
	return false, nil
}

// -- events --

func (repo *evalRepository) CreateEvent(evt eval.EvaluationEvent) (eval.EvaluationEvent, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	evt.ID = repo.db.nextID()
	repo.db.events[evt.ID] = &evt
	return evt, nil
}

func (repo *evalRepository) GetEventByID(id int) (eval.EvaluationEvent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if evt, ok := repo.db.events[id]; ok {
		return *evt, nil
	}
	return eval.EvaluationEvent{}, eval.ErrEventNotFound
}

func (repo *evalRepository) QueryAllEvents() ([]eval.EvaluationEvent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	events := make([]eval.EvaluationEvent, 0, len(repo.db.events))
	for _, evt := range repo.db.events {
		events = append(events, *evt)
	}
	return events, nil
}

func (repo *evalRepository) DeleteEventsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.events, id)
	}
	return nil
}

func (repo *evalRepository) EventInUse(id int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, ge := range repo.db.groupEvaluations {
		if ge.EventID == id {
			return true, nil
		}
	}
	return false, nil
}

// -- panels --

func (repo *evalRepository) CreatePanel(pnl eval.Panel) (eval.Panel, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pnl.ID = repo.db.nextID()
	repo.db.panels[pnl.ID] = &pnl
	return pnl, nil
}

func (repo *evalRepository) GetPanelByID(id int) (eval.Panel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if pnl, ok := repo.db.panels[id]; ok {
		return *pnl, nil
	}
	return eval.Panel{}, eval.ErrPanelNotFound
}

func (repo *evalRepository) QueryAllPanels() ([]eval.Panel, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	panels := make([]eval.Panel, 0, len(repo.db.panels))
	for _, pnl := range repo.db.panels {
		panels = append(panels, *pnl)
	}
	return panels, nil
}

func (repo *evalRepository) UpdatePanel(pnl eval.Panel) (eval.Panel, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.panels[pnl.ID]; !ok {
		return eval.Panel{}, eval.ErrPanelNotFound
	}
	repo.db.panels[pnl.ID] = &pnl
	return pnl, nil
}

func (repo *evalRepository) DeletePanelsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.panels, id)
	}
	return nil
}

func (repo *evalRepository) PanelInUse(id int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, ge := range repo.db.groupEvaluations {
		if ge.PanelID == id {
			return true, nil
		}
	}
	return false, nil
}

// -- group evaluations --

func (repo *evalRepository) CreateGroupEvaluation(ge eval.GroupEvaluation) (eval.GroupEvaluation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ge.ID = repo.db.nextID()
	stored := ge
	stored.Event, stored.Panel = nil, nil
	repo.db.groupEvaluations[ge.ID] = &stored
	return ge, nil
}

func (repo *evalRepository) GetGroupEvaluationByID(id int) (eval.GroupEvaluation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.getGroupEvaluation(id)
}

// getGroupEvaluation eagerly attaches the event and panel; callers must
// hold the read lock.
func (repo *evalRepository) getGroupEvaluation(id int) (eval.GroupEvaluation, error) {
	stored, ok := repo.db.groupEvaluations[id]
	if !ok {
		return eval.GroupEvaluation{}, eval.ErrGroupEvalNotFound
	}
	ge := *stored
	if evt, ok := repo.db.events[ge.EventID]; ok {
		evtCopy := *evt
		ge.Event = &evtCopy
	}
	if pnl, ok := repo.db.panels[ge.PanelID]; ok {
		pnlCopy := *pnl
		ge.Panel = &pnlCopy
	}
	return ge, nil
}

func (repo *evalRepository) FindGroupEvaluation(groupID, eventID int) (eval.GroupEvaluation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, ge := range repo.db.groupEvaluations {
		if ge.GroupID == groupID && ge.EventID == eventID {
			return repo.getGroupEvaluation(ge.ID)
		}
	}
	return eval.GroupEvaluation{}, eval.ErrGroupEvalNotFound
}

func (repo *evalRepository) QueryStudentEvaluationsByGroupEvaluation(groupEvalID int) ([]eval.StudentEvaluation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	evals := make([]eval.StudentEvaluation, 0)
	for _, se := range repo.db.studentEvaluations {
		if se.GroupEvaluationID == groupEvalID {
			loaded := *se
			loaded.Scores = repo.queryScores(se.ID)
			evals = append(evals, loaded)
		}
	}
	sort.Slice(evals, func(i, j int) bool { return evals[i].ID < evals[j].ID })
	return evals, nil
}

// -- student evaluations & score ledger --

func (repo *evalRepository) GetStudentEvaluationByID(id int) (eval.StudentEvaluation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	se, ok := repo.db.studentEvaluations[id]
	if !ok {
		return eval.StudentEvaluation{}, eval.ErrStudentEvalNotFound
	}
	loaded := *se
	loaded.Scores = repo.queryScores(se.ID)
	return loaded, nil
}

func (repo *evalRepository) QueryEvaluationsByStudent(studentID int) ([]eval.EvaluationRecord, error) {
	return repo.queryRecordsByStudent(studentID, false)
}

func (repo *evalRepository) QueryCompletedEvaluationsByStudent(studentID int) ([]eval.EvaluationRecord, error) {
	return repo.queryRecordsByStudent(studentID, true)
}

func (repo *evalRepository) queryRecordsByStudent(studentID int, completedOnly bool) ([]eval.EvaluationRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]eval.EvaluationRecord, 0)
	for _, se := range repo.db.studentEvaluations {
		if se.StudentID != studentID {
			continue
		}
		if completedOnly && !se.IsComplete {
			continue
		}
		ge, ok := repo.db.groupEvaluations[se.GroupEvaluationID]
		if !ok {
			continue
		}
		evt, ok := repo.db.events[ge.EventID]
		if !ok {
			continue
		}
		loaded := *se
		loaded.Scores = repo.queryScores(se.ID)
		records = append(records, eval.EvaluationRecord{StudentEvaluation: loaded, Event: *evt})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (repo *evalRepository) QueryStudentIDsWithCompletedEvaluations() ([]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[int]bool)
	ids := make([]int, 0)
	for _, se := range repo.db.studentEvaluations {
		if se.IsComplete && !seen[se.StudentID] {
			seen[se.StudentID] = true
			ids = append(ids, se.StudentID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// WithTx serializes whole submit flows behind a dedicated lock; the
// map tables stand in for row-level locking here.
func (repo *evalRepository) WithTx(fn func(tx eval.Repository) error) error {
	repo.db.txMu.Lock()
	defer repo.db.txMu.Unlock()
	return fn(repo)
}

func (repo *evalRepository) FindStudentEvaluationForUpdate(groupEvalID, studentID int) (eval.StudentEvaluation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, se := range repo.db.studentEvaluations {
		if se.GroupEvaluationID == groupEvalID && se.StudentID == studentID {
			return *se, nil
		}
	}
	return eval.StudentEvaluation{}, eval.ErrStudentEvalNotFound
}

func (repo *evalRepository) CreateStudentEvaluation(se eval.StudentEvaluation) (eval.StudentEvaluation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	se.ID = repo.db.nextID()
	stored := se
	stored.Scores = nil
	repo.db.studentEvaluations[se.ID] = &stored
	return se, nil
}

func (repo *evalRepository) QueryScores(studentEvalID int) ([]eval.StudentCategoryScore, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryScores(studentEvalID), nil
}

// queryScores returns the ledger entries for one student evaluation in
// insertion order; callers must hold the read lock.
func (repo *evalRepository) queryScores(studentEvalID int) []eval.StudentCategoryScore {
	scores := make([]eval.StudentCategoryScore, 0)
	for _, s := range repo.db.scores {
		if s.StudentEvaluationID == studentEvalID {
			scores = append(scores, *s)
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].ID < scores[j].ID })
	return scores
}

// UpsertScore enforces the one-entry-per-(evaluation, category, evaluator)
// invariant: a resubmission overwrites score, feedback and timestamp in
// place instead of appending.
func (repo *evalRepository) UpsertScore(score eval.StudentCategoryScore) (eval.StudentCategoryScore, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.scores {
		if existing.StudentEvaluationID != score.StudentEvaluationID ||
			existing.EvaluatorID != score.EvaluatorID ||
			!sameCategory(existing.CategoryID, score.CategoryID) {
			continue
		}
		existing.Score = score.Score
		existing.Feedback = score.Feedback
		existing.EvaluatedAt = score.EvaluatedAt
		return *existing, nil
	}

	score.ID = repo.db.nextID()
	repo.db.scores[score.ID] = &score
	return score, nil
}

func (repo *evalRepository) SaveStudentEvaluation(se eval.StudentEvaluation) (eval.StudentEvaluation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.studentEvaluations[se.ID]; !ok {
		return eval.StudentEvaluation{}, eval.ErrStudentEvalNotFound
	}
	stored := se
	stored.Scores = nil
	repo.db.studentEvaluations[se.ID] = &stored
	return se, nil
}

func sameCategory(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
