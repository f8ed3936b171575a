package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Maad-exe/projectgo/core"
	"github.com/Maad-exe/projectgo/core/eval"
)

type rubricRow struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type categoryRow struct {
	ID       int     `db:"id"`
	RubricID int     `db:"rubric_id"`
	Name     string  `db:"name"`
	Weight   float64 `db:"weight"`
	MaxScore int     `db:"max_score"`
}

type eventRow struct {
	ID         int       `db:"id"`
	Name       string    `db:"name"`
	TotalMarks int       `db:"total_marks"`
	Weight     float64   `db:"weight"`
	RubricID   null.Int  `db:"rubric_id"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r eventRow) toEvent() eval.EvaluationEvent {
	evt := eval.EvaluationEvent{
		ID:         r.ID,
		Name:       r.Name,
		TotalMarks: r.TotalMarks,
		Weight:     r.Weight,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.RubricID.Valid {
		id := int(r.RubricID.Int64)
		evt.RubricID = &id
	}
	return evt
}

type panelRow struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type panelMemberRow struct {
	PanelID   int  `db:"panel_id"`
	TeacherID int  `db:"teacher_id"`
	IsHead    bool `db:"is_head"`
}

type groupEvalRow struct {
	ID        int       `db:"id"`
	GroupID   int       `db:"group_id"`
	PanelID   int       `db:"panel_id"`
	EventID   int       `db:"event_id"`
	CreatedAt time.Time `db:"created_at"`
}

type studentEvalRow struct {
	ID                      int       `db:"id"`
	GroupEvaluationID       int       `db:"group_evaluation_id"`
	StudentID               int       `db:"student_id"`
	ObtainedMarks           int       `db:"obtained_marks"`
	Feedback                string    `db:"feedback"`
	IsComplete              bool      `db:"is_complete"`
	RequiredEvaluatorsCount int       `db:"required_evaluators_count"`
	RubricID                null.Int  `db:"rubric_id"`
	CreatedAt               time.Time `db:"created_at"`
	UpdatedAt               time.Time `db:"updated_at"`
}

func (r studentEvalRow) toStudentEvaluation() eval.StudentEvaluation {
	se := eval.StudentEvaluation{
		ID:                      r.ID,
		GroupEvaluationID:       r.GroupEvaluationID,
		StudentID:               r.StudentID,
		ObtainedMarks:           r.ObtainedMarks,
		Feedback:                r.Feedback,
		IsComplete:              r.IsComplete,
		RequiredEvaluatorsCount: r.RequiredEvaluatorsCount,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
	if r.RubricID.Valid {
		id := int(r.RubricID.Int64)
		se.RubricID = &id
	}
	return se
}

type scoreRow struct {
	ID                  int       `db:"id"`
	StudentEvaluationID int       `db:"student_evaluation_id"`
	CategoryID          null.Int  `db:"category_id"`
	Score               int       `db:"score"`
	Feedback            string    `db:"feedback"`
	EvaluatorID         int       `db:"evaluator_id"`
	EvaluatedAt         time.Time `db:"evaluated_at"`
}

func (r scoreRow) toScore() eval.StudentCategoryScore {
	s := eval.StudentCategoryScore{
		ID:                  r.ID,
		StudentEvaluationID: r.StudentEvaluationID,
		Score:               r.Score,
		Feedback:            r.Feedback,
		EvaluatorID:         r.EvaluatorID,
		EvaluatedAt:         r.EvaluatedAt,
	}
	if r.CategoryID.Valid {
		id := int(r.CategoryID.Int64)
		s.CategoryID = &id
	}
	return s
}

func nullIntFromPtr(p *int) null.Int {
	if p == nil {
		return null.Int{}
	}
	return null.IntFrom(int64(*p))
}

type evalRepository struct {
	db  *sqlx.DB
	ext sqlx.Ext
}

var _ eval.Repository = (*evalRepository)(nil)

func NewEvalRepository(db *sqlx.DB) *evalRepository {
	return &evalRepository{db: db, ext: db}
}

func trapEvalNoRowsErr(err, sentinel error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

// -- rubrics --

func (repo *evalRepository) CreateRubric(rub eval.Rubric) (eval.Rubric, error) {
	err := sqlx.Get(repo.ext, &rub.ID,
		`INSERT INTO rubric (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		rub.Name, rub.CreatedAt.UTC(), rub.UpdatedAt.UTC())
	if err != nil {
		return eval.Rubric{}, errors.Wrap(err, "inserting rubric")
	}
	if err = repo.insertCategories(&rub); err != nil {
		return eval.Rubric{}, err
	}
	return rub, nil
}

func (repo *evalRepository) insertCategories(rub *eval.Rubric) error {
	for i := range rub.Categories {
		cat := &rub.Categories[i]
		cat.RubricID = rub.ID
		err := sqlx.Get(repo.ext, &cat.ID,
			`INSERT INTO rubric_category (rubric_id, name, weight, max_score)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			cat.RubricID, cat.Name, cat.Weight, cat.MaxScore)
		if err != nil {
			return errors.Wrap(err, "inserting rubric category")
		}
	}
	return nil
}

func (repo *evalRepository) categories(rubricID int) ([]eval.RubricCategory, error) {
	var rows []categoryRow
	err := sqlx.Select(repo.ext, &rows,
		`SELECT * FROM rubric_category WHERE rubric_id = $1`+orderBy(byID), rubricID)
	if err != nil {
		return nil, errors.Wrap(err, "querying rubric categories")
	}
	cats := make([]eval.RubricCategory, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, eval.RubricCategory(r))
	}
	return cats, nil
}

func (repo *evalRepository) GetRubricByID(id int) (eval.Rubric, error) {
	var r rubricRow
	err := sqlx.Get(repo.ext, &r, `SELECT * FROM rubric WHERE id = $1`, id)
	if err != nil {
		return eval.Rubric{}, trapEvalNoRowsErr(err, eval.ErrRubricNotFound, "finding rubric")
	}
	cats, err := repo.categories(id)
	if err != nil {
		return eval.Rubric{}, err
	}
	return eval.Rubric{ID: r.ID, Name: r.Name, Categories: cats, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}, nil
}

func (repo *evalRepository) QueryAllRubrics() ([]eval.Rubric, error) {
	var rows []rubricRow
	if err := sqlx.Select(repo.ext, &rows, `SELECT * FROM rubric`+orderBy(byID)); err != nil {
		return nil, errors.Wrap(err, "querying rubrics")
	}
	rubrics := make([]eval.Rubric, 0, len(rows))
	for _, r := range rows {
		cats, err := repo.categories(r.ID)
		if err != nil {
			return nil, err
		}
		rubrics = append(rubrics, eval.Rubric{
			ID: r.ID, Name: r.Name, Categories: cats, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		})
	}
	return rubrics, nil
}

// UpdateRubric replaces the category set wholesale; scores reference
// categories by ID so callers only update rubrics not yet in use.
func (repo *evalRepository) UpdateRubric(rub eval.Rubric) (eval.Rubric, error) {
	res, err := repo.ext.Exec(
		`UPDATE rubric SET name = $1, updated_at = $2 WHERE id = $3`,
		rub.Name, rub.UpdatedAt.UTC(), rub.ID)
	if err != nil {
		return eval.Rubric{}, errors.Wrap(err, "updating rubric")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return eval.Rubric{}, eval.ErrRubricNotFound
	}
	if _, err = repo.ext.Exec(`DELETE FROM rubric_category WHERE rubric_id = $1`, rub.ID); err != nil {
		return eval.Rubric{}, errors.Wrap(err, "updating rubric")
	}
	for i := range rub.Categories {
		rub.Categories[i].ID = 0
	}
	if err = repo.insertCategories(&rub); err != nil {
		return eval.Rubric{}, err
	}
	return rub, nil
}

func (repo *evalRepository) DeleteRubricsByID(ids ...int) error {
	return repo.deleteByID("rubric", ids)
}

func (repo *evalRepository) RubricInUse(id int) (bool, error) {
	return repo.exists(`SELECT EXISTS (SELECT 1 FROM evaluation_event WHERE rubric_id = $1)`, id)
}

func (repo *evalRepository) deleteByID(table string, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM `+table+` WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting from "+table)
	}
	if _, err = repo.ext.Exec(repo.ext.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting from "+table)
	}
	return nil
}

func (repo *evalRepository) exists(q string, args ...interface{}) (bool, error) {
	var exists bool
	if err := sqlx.Get(repo.ext, &exists, q, args...); err != nil {
		return false, errors.Wrap(err, "checking existence")
	}
	return exists, nil
}

// -- events --

func (repo *evalRepository) CreateEvent(evt eval.EvaluationEvent) (eval.EvaluationEvent, error) {
	err := sqlx.Get(repo.ext, &evt.ID,
		`INSERT INTO evaluation_event (name, total_marks, weight, rubric_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		evt.Name, evt.TotalMarks, evt.Weight, nullIntFromPtr(evt.RubricID),
		evt.CreatedAt.UTC(), evt.UpdatedAt.UTC())
	if err != nil {
		return eval.EvaluationEvent{}, errors.Wrap(err, "inserting evaluation event")
	}
	return evt, nil
}

func (repo *evalRepository) GetEventByID(id int) (eval.EvaluationEvent, error) {
	var r eventRow
	err := sqlx.Get(repo.ext, &r, `SELECT * FROM evaluation_event WHERE id = $1`, id)
	if err != nil {
		return eval.EvaluationEvent{}, trapEvalNoRowsErr(err, eval.ErrEventNotFound, "finding evaluation event")
	}
	return r.toEvent(), nil
}

func (repo *evalRepository) QueryAllEvents() ([]eval.EvaluationEvent, error) {
	var rows []eventRow
	if err := sqlx.Select(repo.ext, &rows, `SELECT * FROM evaluation_event`+orderBy(byID)); err != nil {
		return nil, errors.Wrap(err, "querying evaluation events")
	}
	events := make([]eval.EvaluationEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

func (repo *evalRepository) DeleteEventsByID(ids ...int) error {
	return repo.deleteByID("evaluation_event", ids)
}

func (repo *evalRepository) EventInUse(id int) (bool, error) {
	return repo.exists(`SELECT EXISTS (SELECT 1 FROM group_evaluation WHERE event_id = $1)`, id)
}

// -- panels --

func (repo *evalRepository) CreatePanel(pnl eval.Panel) (eval.Panel, error) {
	err := sqlx.Get(repo.ext, &pnl.ID,
		`INSERT INTO panel (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		pnl.Name, pnl.CreatedAt.UTC(), pnl.UpdatedAt.UTC())
	if err != nil {
		return eval.Panel{}, errors.Wrap(err, "inserting panel")
	}
	if err = repo.insertPanelMembers(pnl.ID, pnl.Members); err != nil {
		return eval.Panel{}, err
	}
	return pnl, nil
}

func (repo *evalRepository) insertPanelMembers(panelID int, members []eval.PanelMember) error {
	for _, m := range members {
		_, err := repo.ext.Exec(
			`INSERT INTO panel_member (panel_id, teacher_id, is_head) VALUES ($1, $2, $3)`,
			panelID, m.TeacherID, m.IsHead)
		if err != nil {
			return errors.Wrap(err, "inserting panel member")
		}
	}
	return nil
}

func (repo *evalRepository) panelMembers(panelID int) ([]eval.PanelMember, error) {
	var rows []panelMemberRow
	err := sqlx.Select(repo.ext, &rows,
		`SELECT * FROM panel_member WHERE panel_id = $1`+orderBy(core.DBOrdering{Field: "teacher_id", Ascending: true}), panelID)
	if err != nil {
		return nil, errors.Wrap(err, "querying panel members")
	}
	members := make([]eval.PanelMember, 0, len(rows))
	for _, r := range rows {
		members = append(members, eval.PanelMember{TeacherID: r.TeacherID, IsHead: r.IsHead})
	}
	return members, nil
}

func (repo *evalRepository) GetPanelByID(id int) (eval.Panel, error) {
	var r panelRow
	err := sqlx.Get(repo.ext, &r, `SELECT * FROM panel WHERE id = $1`, id)
	if err != nil {
		return eval.Panel{}, trapEvalNoRowsErr(err, eval.ErrPanelNotFound, "finding panel")
	}
	members, err := repo.panelMembers(id)
	if err != nil {
		return eval.Panel{}, err
	}
	return eval.Panel{ID: r.ID, Name: r.Name, Members: members, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}, nil
}

func (repo *evalRepository) QueryAllPanels() ([]eval.Panel, error) {
	var rows []panelRow
	if err := sqlx.Select(repo.ext, &rows, `SELECT * FROM panel`+orderBy(byID)); err != nil {
		return nil, errors.Wrap(err, "querying panels")
	}
	panels := make([]eval.Panel, 0, len(rows))
	for _, r := range rows {
		members, err := repo.panelMembers(r.ID)
		if err != nil {
			return nil, err
		}
		panels = append(panels, eval.Panel{
			ID: r.ID, Name: r.Name, Members: members, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		})
	}
	return panels, nil
}

func (repo *evalRepository) UpdatePanel(pnl eval.Panel) (eval.Panel, error) {
	res, err := repo.ext.Exec(
		`UPDATE panel SET name = $1, updated_at = $2 WHERE id = $3`,
		pnl.Name, pnl.UpdatedAt.UTC(), pnl.ID)
	if err != nil {
		return eval.Panel{}, errors.Wrap(err, "updating panel")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return eval.Panel{}, eval.ErrPanelNotFound
	}
	if _, err = repo.ext.Exec(`DELETE FROM panel_member WHERE panel_id = $1`, pnl.ID); err != nil {
		return eval.Panel{}, errors.Wrap(err, "updating panel")
	}
	if err = repo.insertPanelMembers(pnl.ID, pnl.Members); err != nil {
		return eval.Panel{}, err
	}
	return pnl, nil
}

func (repo *evalRepository) DeletePanelsByID(ids ...int) error {
	return repo.deleteByID("panel", ids)
}

func (repo *evalRepository) PanelInUse(id int) (bool, error) {
	return repo.exists(`SELECT EXISTS (SELECT 1 FROM group_evaluation WHERE panel_id = $1)`, id)
}

// -- group evaluations --

func (repo *evalRepository) CreateGroupEvaluation(ge eval.GroupEvaluation) (eval.GroupEvaluation, error) {
	err := sqlx.Get(repo.ext, &ge.ID,
		`INSERT INTO group_evaluation (group_id, panel_id, event_id, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		ge.GroupID, ge.PanelID, ge.EventID, ge.CreatedAt.UTC())
	if err != nil {
		return eval.GroupEvaluation{}, errors.Wrap(err, "inserting group evaluation")
	}
	return ge, nil
}

func (repo *evalRepository) loadGroupEvaluation(r groupEvalRow) (eval.GroupEvaluation, error) {
	ge := eval.GroupEvaluation{
		ID: r.ID, GroupID: r.GroupID, PanelID: r.PanelID, EventID: r.EventID, CreatedAt: r.CreatedAt,
	}
	evt, err := repo.GetEventByID(ge.EventID)
	if err != nil {
		return eval.GroupEvaluation{}, err
	}
	pnl, err := repo.GetPanelByID(ge.PanelID)
	if err != nil {
		return eval.GroupEvaluation{}, err
	}
	ge.Event, ge.Panel = &evt, &pnl
	return ge, nil
}

func (repo *evalRepository) GetGroupEvaluationByID(id int) (eval.GroupEvaluation, error) {
	var r groupEvalRow
	err := sqlx.Get(repo.ext, &r, `SELECT * FROM group_evaluation WHERE id = $1`, id)
	if err != nil {
		return eval.GroupEvaluation{}, trapEvalNoRowsErr(err, eval.ErrGroupEvalNotFound, "finding group evaluation")
	}
	return repo.loadGroupEvaluation(r)
}

func (repo *evalRepository) FindGroupEvaluation(groupID, eventID int) (eval.GroupEvaluation, error) {
	var r groupEvalRow
	err := sqlx.Get(repo.ext, &r,
		`SELECT * FROM group_evaluation WHERE group_id = $1 AND event_id = $2`, groupID, eventID)
	if err != nil {
		return eval.GroupEvaluation{}, trapEvalNoRowsErr(err, eval.ErrGroupEvalNotFound, "finding group evaluation")
	}
	return repo.loadGroupEvaluation(r)
}

func (repo *evalRepository) QueryStudentEvaluationsByGroupEvaluation(groupEvalID int) ([]eval.StudentEvaluation, error) {
	var rows []studentEvalRow
	err := sqlx.Select(repo.ext, &rows,
		`SELECT * FROM student_evaluation WHERE group_evaluation_id = $1`+orderBy(byID), groupEvalID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student evaluations")
	}
	evals := make([]eval.StudentEvaluation, 0, len(rows))
	for _, r := range rows {
		se := r.toStudentEvaluation()
		if se.Scores, err = repo.QueryScores(se.ID); err != nil {
			return nil, err
		}
		evals = append(evals, se)
	}
	return evals, nil
}

// -- student evaluations & score ledger --

func (repo *evalRepository) GetStudentEvaluationByID(id int) (eval.StudentEvaluation, error) {
	var r studentEvalRow
	err := sqlx.Get(repo.ext, &r, `SELECT * FROM student_evaluation WHERE id = $1`, id)
	if err != nil {
		return eval.StudentEvaluation{}, trapEvalNoRowsErr(err, eval.ErrStudentEvalNotFound, "finding student evaluation")
	}
	se := r.toStudentEvaluation()
	if se.Scores, err = repo.QueryScores(se.ID); err != nil {
		return eval.StudentEvaluation{}, err
	}
	return se, nil
}

func (repo *evalRepository) QueryEvaluationsByStudent(studentID int) ([]eval.EvaluationRecord, error) {
	return repo.queryRecordsByStudent(studentID, false)
}

func (repo *evalRepository) QueryCompletedEvaluationsByStudent(studentID int) ([]eval.EvaluationRecord, error) {
	return repo.queryRecordsByStudent(studentID, true)
}

func (repo *evalRepository) queryRecordsByStudent(studentID int, completedOnly bool) ([]eval.EvaluationRecord, error) {
	q := `
		SELECT se.*
		FROM student_evaluation se
		JOIN group_evaluation ge ON ge.id = se.group_evaluation_id
		WHERE se.student_id = $1`
	if completedOnly {
		q += ` AND se.is_complete`
	}
	q += orderBy(core.DBOrdering{Field: "se.id", Ascending: true})

	var rows []studentEvalRow
	if err := sqlx.Select(repo.ext, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student evaluation records")
	}

	records := make([]eval.EvaluationRecord, 0, len(rows))
	for _, r := range rows {
		se := r.toStudentEvaluation()
		var err error
		if se.Scores, err = repo.QueryScores(se.ID); err != nil {
			return nil, err
		}
		var ge groupEvalRow
		err = sqlx.Get(repo.ext, &ge, `SELECT * FROM group_evaluation WHERE id = $1`, se.GroupEvaluationID)
		if err != nil {
			return nil, errors.Wrap(err, "querying student evaluation records")
		}
		evt, err := repo.GetEventByID(ge.EventID)
		if err != nil {
			return nil, err
		}
		records = append(records, eval.EvaluationRecord{StudentEvaluation: se, Event: evt})
	}
	return records, nil
}

func (repo *evalRepository) QueryStudentIDsWithCompletedEvaluations() ([]int, error) {
	ids := make([]int, 0)
	err := sqlx.Select(repo.ext, &ids,
		`SELECT DISTINCT student_id FROM student_evaluation WHERE is_complete`+orderBy(core.DBOrdering{Field: "student_id", Ascending: true}))
	if err != nil {
		return nil, errors.Wrap(err, "querying students with completed evaluations")
	}
	return ids, nil
}

// WithTx runs fn against a repository bound to one transaction; the
// parent group_evaluation row lock taken in FindStudentEvaluationForUpdate
// serializes concurrent submissions for the same student.
func (repo *evalRepository) WithTx(fn func(tx eval.Repository) error) error {
	tx, err := repo.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(&evalRepository{db: repo.db, ext: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (repo *evalRepository) FindStudentEvaluationForUpdate(groupEvalID, studentID int) (eval.StudentEvaluation, error) {
	// lock the parent first so concurrent lazy creations serialize too
	var parentID int
	err := sqlx.Get(repo.ext, &parentID,
		`SELECT id FROM group_evaluation WHERE id = $1 FOR UPDATE`, groupEvalID)
	if err != nil {
		return eval.StudentEvaluation{}, trapEvalNoRowsErr(err, eval.ErrGroupEvalNotFound, "locking group evaluation")
	}

	var r studentEvalRow
	err = sqlx.Get(repo.ext, &r,
		`SELECT * FROM student_evaluation
		 WHERE group_evaluation_id = $1 AND student_id = $2 FOR UPDATE`, groupEvalID, studentID)
	if err != nil {
		return eval.StudentEvaluation{}, trapEvalNoRowsErr(err, eval.ErrStudentEvalNotFound, "locking student evaluation")
	}
	return r.toStudentEvaluation(), nil
}

func (repo *evalRepository) CreateStudentEvaluation(se eval.StudentEvaluation) (eval.StudentEvaluation, error) {
	err := sqlx.Get(repo.ext, &se.ID,
		`INSERT INTO student_evaluation (group_evaluation_id, student_id, obtained_marks, feedback,
			is_complete, required_evaluators_count, rubric_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		se.GroupEvaluationID, se.StudentID, se.ObtainedMarks, se.Feedback,
		se.IsComplete, se.RequiredEvaluatorsCount, nullIntFromPtr(se.RubricID),
		se.CreatedAt.UTC(), se.UpdatedAt.UTC())
	if err != nil {
		return eval.StudentEvaluation{}, errors.Wrap(err, "inserting student evaluation")
	}
	return se, nil
}

func (repo *evalRepository) QueryScores(studentEvalID int) ([]eval.StudentCategoryScore, error) {
	var rows []scoreRow
	err := sqlx.Select(repo.ext, &rows,
		`SELECT * FROM student_category_score WHERE student_evaluation_id = $1`+orderBy(byID), studentEvalID)
	if err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	scores := make([]eval.StudentCategoryScore, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, r.toScore())
	}
	return scores, nil
}

// UpsertScore rides the unique expression index over
// (student_evaluation_id, COALESCE(category_id, 0), evaluator_id):
// resubmissions overwrite in place.
func (repo *evalRepository) UpsertScore(score eval.StudentCategoryScore) (eval.StudentCategoryScore, error) {
	err := sqlx.Get(repo.ext, &score.ID,
		`INSERT INTO student_category_score
			(student_evaluation_id, category_id, score, feedback, evaluator_id, evaluated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (student_evaluation_id, COALESCE(category_id, 0), evaluator_id)
		 DO UPDATE SET score = EXCLUDED.score, feedback = EXCLUDED.feedback, evaluated_at = EXCLUDED.evaluated_at
		 RETURNING id`,
		score.StudentEvaluationID, nullIntFromPtr(score.CategoryID), score.Score,
		score.Feedback, score.EvaluatorID, score.EvaluatedAt.UTC())
	if err != nil {
		return eval.StudentCategoryScore{}, errors.Wrap(err, "upserting score")
	}
	return score, nil
}

func (repo *evalRepository) SaveStudentEvaluation(se eval.StudentEvaluation) (eval.StudentEvaluation, error) {
	res, err := repo.ext.Exec(
		`UPDATE student_evaluation
		 SET obtained_marks = $1, feedback = $2, is_complete = $3, updated_at = $4
		 WHERE id = $5`,
		se.ObtainedMarks, se.Feedback, se.IsComplete, se.UpdatedAt.UTC(), se.ID)
	if err != nil {
		return eval.StudentEvaluation{}, errors.Wrap(err, "saving student evaluation")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return eval.StudentEvaluation{}, eval.ErrStudentEvalNotFound
	}
	return se, nil
}
