package eval

import (
	"errors"
	"fmt"
	"time"

	"github.com/Maad-exe/projectgo/core"
	"github.com/Maad-exe/projectgo/core/group"
)

var (
	// repository sentinel errors
	ErrRubricNotFound      = errors.New("rubric not found")
	ErrEventNotFound       = errors.New("evaluation event not found")
	ErrPanelNotFound       = errors.New("panel not found")
	ErrGroupEvalNotFound   = errors.New("group evaluation not found")
	ErrStudentEvalNotFound = errors.New("student evaluation not found")
)

type (
	Repository interface {
		CreateRubric(rub Rubric) (Rubric, error)
		GetRubricByID(id int) (Rubric, error) // categories eagerly loaded
		QueryAllRubrics() ([]Rubric, error)
		UpdateRubric(rub Rubric) (Rubric, error)
		DeleteRubricsByID(ids ...int) error
		RubricInUse(id int) (bool, error)

		CreateEvent(evt EvaluationEvent) (EvaluationEvent, error)
		GetEventByID(id int) (EvaluationEvent, error)
		QueryAllEvents() ([]EvaluationEvent, error)
		DeleteEventsByID(ids ...int) error
		EventInUse(id int) (bool, error)

		CreatePanel(pnl Panel) (Panel, error)
		GetPanelByID(id int) (Panel, error) // members eagerly loaded
		QueryAllPanels() ([]Panel, error)
		UpdatePanel(pnl Panel) (Panel, error)
		DeletePanelsByID(ids ...int) error
		PanelInUse(id int) (bool, error)

		CreateGroupEvaluation(ge GroupEvaluation) (GroupEvaluation, error)
		GetGroupEvaluationByID(id int) (GroupEvaluation, error) // event + panel eagerly loaded
		FindGroupEvaluation(groupID, eventID int) (GroupEvaluation, error)
		QueryStudentEvaluationsByGroupEvaluation(groupEvalID int) ([]StudentEvaluation, error) // scores eagerly loaded

		GetStudentEvaluationByID(id int) (StudentEvaluation, error) // scores eagerly loaded
		QueryEvaluationsByStudent(studentID int) ([]EvaluationRecord, error)
		QueryCompletedEvaluationsByStudent(studentID int) ([]EvaluationRecord, error)
		QueryStudentIDsWithCompletedEvaluations() ([]int, error)

		// WithTx runs fn against a Repository bound to a single transaction.
		// Two concurrent transactions touching the same StudentEvaluation
		// must serialize (row lock or equivalent).
		WithTx(fn func(tx Repository) error) error

		// transaction-scope ledger operations
		FindStudentEvaluationForUpdate(groupEvalID, studentID int) (StudentEvaluation, error)
		CreateStudentEvaluation(se StudentEvaluation) (StudentEvaluation, error)
		QueryScores(studentEvalID int) ([]StudentCategoryScore, error)
		UpsertScore(score StudentCategoryScore) (StudentCategoryScore, error)
		SaveStudentEvaluation(se StudentEvaluation) (StudentEvaluation, error)
	}

	// Directory is the slice of the user service this package needs:
	// identity resolution for feedback/projections and defensive checks.
	Directory interface {
		DisplayName(id int) (string, error)
		EmailAddress(id int) (string, error)
		TeacherExists(id int) (bool, error)
	}

	// Groups resolves group membership and supervisor links.
	Groups interface {
		GetByID(id int) (group.Group, error)
	}

	// Notifier is told when a student evaluation first completes.
	Notifier interface {
		EvaluationCompleted(studentID int, eventName string, obtained, total int)
	}

	Service struct {
		repo     Repository
		users    Directory
		groups   Groups
		notifier Notifier
		logger   core.Logger
	}
)

func NewService(repo Repository, users Directory, groups Groups, notifier Notifier, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, groups: groups, notifier: notifier, logger: logger}
}

// -- Rubrics --

func (svc *Service) CreateRubric(nr NewRubric) (Rubric, error) {
	now := time.Now().UTC()
	rub := Rubric{Name: nr.Name, CreatedAt: now, UpdatedAt: now}
	rub.Categories = buildCategories(nr.Categories)
	return svc.repo.CreateRubric(rub)
}

func (svc *Service) GetRubric(id int) (Rubric, error) {
	rub, err := svc.repo.GetRubricByID(id)
	if err != nil {
		return Rubric{}, notFound(err, ErrRubricNotFound)
	}
	return rub, nil
}

func (svc *Service) QueryRubrics() ([]Rubric, error) {
	return svc.repo.QueryAllRubrics()
}

// UpdateRubric replaces the rubric's name and categories. The weight-sum
// invariant is re-enforced here, at write time.
func (svc *Service) UpdateRubric(id int, nr NewRubric) (Rubric, error) {
	rub, err := svc.GetRubric(id)
	if err != nil {
		return Rubric{}, err
	}
	rub.Name = nr.Name
	rub.Categories = buildCategories(nr.Categories)
	for i := range rub.Categories {
		rub.Categories[i].RubricID = rub.ID
	}
	rub.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRubric(rub)
}

func (svc *Service) DeleteRubric(id int) error {
	if _, err := svc.GetRubric(id); err != nil {
		return err
	}
	inUse, err := svc.repo.RubricInUse(id)
	if err != nil {
		return err
	}
	if inUse {
		return core.NewConflictError("rubric is referenced by an evaluation event")
	}
	return svc.repo.DeleteRubricsByID(id)
}

func buildCategories(inputs []NewRubricCategory) []RubricCategory {
	cats := make([]RubricCategory, 0, len(inputs))
	for _, in := range inputs {
		maxScore := in.MaxScore
		if maxScore == 0 {
			maxScore = defaultCategoryMaxScore
		}
		cats = append(cats, RubricCategory{Name: core.CleanString(in.Name), Weight: in.Weight, MaxScore: maxScore})
	}
	return cats
}

// -- Events --

func (svc *Service) CreateEvent(ne NewEvent) (EvaluationEvent, error) {
	if ne.RubricID != nil {
		if _, err := svc.GetRubric(*ne.RubricID); err != nil {
			return EvaluationEvent{}, err
		}
	}
	weight := ne.Weight
	if weight == 0 {
		weight = 1.0
	}
	now := time.Now().UTC()
	evt := EvaluationEvent{
		Name:       ne.Name,
		TotalMarks: ne.TotalMarks,
		Weight:     weight,
		RubricID:   ne.RubricID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateEvent(evt)
}

func (svc *Service) GetEvent(id int) (EvaluationEvent, error) {
	evt, err := svc.repo.GetEventByID(id)
	if err != nil {
		return EvaluationEvent{}, notFound(err, ErrEventNotFound)
	}
	return evt, nil
}

func (svc *Service) QueryEvents() ([]EvaluationEvent, error) {
	return svc.repo.QueryAllEvents()
}

func (svc *Service) DeleteEvent(id int) error {
	if _, err := svc.GetEvent(id); err != nil {
		return err
	}
	inUse, err := svc.repo.EventInUse(id)
	if err != nil {
		return err
	}
	if inUse {
		return core.NewConflictError("evaluation event has assigned panels")
	}
	return svc.repo.DeleteEventsByID(id)
}

// -- Panels --

func (svc *Service) CreatePanel(np NewPanel) (Panel, error) {
	members, err := svc.resolveMembers(np.Members)
	if err != nil {
		return Panel{}, err
	}
	now := time.Now().UTC()
	pnl := Panel{Name: np.Name, Members: members, CreatedAt: now, UpdatedAt: now}
	return svc.repo.CreatePanel(pnl)
}

func (svc *Service) GetPanel(id int) (Panel, error) {
	pnl, err := svc.repo.GetPanelByID(id)
	if err != nil {
		return Panel{}, notFound(err, ErrPanelNotFound)
	}
	return pnl, nil
}

func (svc *Service) QueryPanels() ([]Panel, error) {
	return svc.repo.QueryAllPanels()
}

// UpdatePanel replaces the member set. Existing student evaluations keep
// the RequiredEvaluatorsCount snapshotted at assignment time.
func (svc *Service) UpdatePanel(id int, np NewPanel) (Panel, error) {
	pnl, err := svc.GetPanel(id)
	if err != nil {
		return Panel{}, err
	}
	members, err := svc.resolveMembers(np.Members)
	if err != nil {
		return Panel{}, err
	}
	pnl.Name = np.Name
	pnl.Members = members
	pnl.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePanel(pnl)
}

func (svc *Service) DeletePanel(id int) error {
	if _, err := svc.GetPanel(id); err != nil {
		return err
	}
	inUse, err := svc.repo.PanelInUse(id)
	if err != nil {
		return err
	}
	if inUse {
		return core.NewConflictError("panel is assigned to a group evaluation")
	}
	return svc.repo.DeletePanelsByID(id)
}

func (svc *Service) resolveMembers(inputs []NewPanelMember) ([]PanelMember, error) {
	members := make([]PanelMember, 0, len(inputs))
	for _, m := range inputs {
		ok, err := svc.users.TeacherExists(m.TeacherID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, core.NewNotFoundError(fmt.Sprintf("teacher %d not found", m.TeacherID))
		}
		members = append(members, PanelMember{TeacherID: m.TeacherID, IsHead: m.IsHead})
	}
	return members, nil
}

// -- Panel assignment --

// Assign links a panel to a group for an event. It fails when any
// reference is missing, the group has no supervisor, the supervisor sits
// on the panel, or the (group, event) pair is already assigned.
func (svc *Service) Assign(ap AssignPanel) (GroupEvaluation, error) {
	grp, err := svc.groups.GetByID(ap.GroupID)
	if err != nil {
		return GroupEvaluation{}, err
	}
	pnl, err := svc.GetPanel(ap.PanelID)
	if err != nil {
		return GroupEvaluation{}, err
	}
	evt, err := svc.GetEvent(ap.EventID)
	if err != nil {
		return GroupEvaluation{}, err
	}

	if !grp.HasSupervisor() {
		return GroupEvaluation{}, core.NewValidationError(errors.New("group has no supervisor"))
	}
	if pnl.HasMember(*grp.SupervisorID) {
		return GroupEvaluation{}, core.NewConflictError("the group's supervisor cannot sit on its evaluation panel")
	}
	if _, err := svc.repo.FindGroupEvaluation(grp.ID, evt.ID); err == nil {
		return GroupEvaluation{}, core.NewConflictError("group is already assigned a panel for this event")
	} else if err != ErrGroupEvalNotFound {
		return GroupEvaluation{}, err
	}

	ge := GroupEvaluation{
		GroupID:   grp.ID,
		PanelID:   pnl.ID,
		EventID:   evt.ID,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateGroupEvaluation(ge)
}

// GetGroupEvaluation returns the full detail projection: panel, event and
// the current per-student state.
func (svc *Service) GetGroupEvaluation(id int) (GroupEvaluationDetail, error) {
	ge, err := svc.repo.GetGroupEvaluationByID(id)
	if err != nil {
		return GroupEvaluationDetail{}, notFound(err, ErrGroupEvalNotFound)
	}
	rub, err := svc.eventRubric(*ge.Event)
	if err != nil {
		return GroupEvaluationDetail{}, err
	}

	evals, err := svc.repo.QueryStudentEvaluationsByGroupEvaluation(ge.ID)
	if err != nil {
		return GroupEvaluationDetail{}, err
	}
	views := make([]StudentEvaluationView, 0, len(evals))
	for _, se := range evals {
		view, err := svc.project(se, *ge.Event, rub)
		if err != nil {
			return GroupEvaluationDetail{}, err
		}
		views = append(views, view)
	}

	return GroupEvaluationDetail{
		ID:       ge.ID,
		GroupID:  ge.GroupID,
		Panel:    *ge.Panel,
		Event:    *ge.Event,
		Students: views,
	}, nil
}

// eventRubric loads the event's rubric, or nil in simple-marks mode.
func (svc *Service) eventRubric(evt EvaluationEvent) (*Rubric, error) {
	if !evt.IsRubricMode() {
		return nil, nil
	}
	rub, err := svc.GetRubric(*evt.RubricID)
	if err != nil {
		return nil, err
	}
	return &rub, nil
}

func notFound(err, sentinel error) error {
	if err == sentinel {
		return core.NewNotFoundError(sentinel.Error())
	}
	return err
}
