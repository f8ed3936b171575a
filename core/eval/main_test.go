package eval_test

import (
	"fmt"
	"testing"

	"github.com/Maad-exe/projectgo/core/eval"
	"github.com/Maad-exe/projectgo/core/group"
	"github.com/Maad-exe/projectgo/core/user"
	"github.com/Maad-exe/projectgo/storage/database/inmem"
)

// notification captures one Notifier.EvaluationCompleted call.
type notification struct {
	studentID int
	eventName string
	obtained  int
	total     int
}

type notifierSpy struct {
	calls []notification
}

func (spy *notifierSpy) EvaluationCompleted(studentID int, eventName string, obtained, total int) {
	spy.calls = append(spy.calls, notification{studentID, eventName, obtained, total})
}

// testEnv wires the eval service against the in-memory store with real
// user and group services behind the Directory/Groups seams.
type testEnv struct {
	usrSvc   *user.Service
	grpSvc   *group.Service
	svc      *eval.Service
	notifier *notifierSpy
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	usrSvc := user.NewService(inmemdb.NewUserRepository(db))
	grpSvc := group.NewService(inmemdb.NewGroupRepository(db), usrSvc)
	spy := &notifierSpy{}
	return &testEnv{
		usrSvc:   usrSvc,
		grpSvc:   grpSvc,
		svc:      eval.NewService(inmemdb.NewEvalRepository(db), usrSvc, grpSvc, spy, nil),
		notifier: spy,
	}
}

func (env *testEnv) createUser(t *testing.T, name string, kind user.Kind) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(user.NewUser{
		Name:     name,
		Email:    fmt.Sprintf("%s@projectgo.test", name),
		Password: "Str0ng!Pwd",
		Kind:     kind,
	})
	if err != nil {
		t.Fatalf("creating %s %q: %v", kind, name, err)
	}
	return usr
}

func (env *testEnv) createStudent(t *testing.T, name string) user.User {
	return env.createUser(t, name, user.KindStudent)
}

func (env *testEnv) createTeacher(t *testing.T, name string) user.User {
	return env.createUser(t, name, user.KindTeacher)
}

// createGroup creates a group with the given students and runs the full
// supervision-request flow to set the supervisor.
func (env *testEnv) createGroup(t *testing.T, supervisor user.User, students ...user.User) group.Group {
	t.Helper()
	ids := make([]int, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	grp, err := env.grpSvc.Create(group.NewGroup{Name: "Group " + students[0].Name, MemberIDs: ids})
	if err != nil {
		t.Fatalf("creating group: %v", err)
	}
	req, err := env.grpSvc.RequestSupervision(group.NewSupervisionRequest{GroupID: grp.ID, TeacherID: supervisor.ID})
	if err != nil {
		t.Fatalf("requesting supervision: %v", err)
	}
	if _, err = env.grpSvc.ResolveSupervisionRequest(req.ID, true); err != nil {
		t.Fatalf("accepting supervision request: %v", err)
	}
	grp, err = env.grpSvc.GetByID(grp.ID)
	if err != nil {
		t.Fatalf("reloading group: %v", err)
	}
	return grp
}

func (env *testEnv) createRubric(t *testing.T, cats ...eval.NewRubricCategory) eval.Rubric {
	t.Helper()
	rub, err := env.svc.CreateRubric(eval.NewRubric{Name: "Defense Rubric", Categories: cats})
	if err != nil {
		t.Fatalf("creating rubric: %v", err)
	}
	return rub
}

func (env *testEnv) createEvent(t *testing.T, name string, totalMarks int, weight float64, rubricID *int) eval.EvaluationEvent {
	t.Helper()
	evt, err := env.svc.CreateEvent(eval.NewEvent{Name: name, TotalMarks: totalMarks, Weight: weight, RubricID: rubricID})
	if err != nil {
		t.Fatalf("creating event %q: %v", name, err)
	}
	return evt
}

func (env *testEnv) createPanel(t *testing.T, teachers ...user.User) eval.Panel {
	t.Helper()
	members := make([]eval.NewPanelMember, 0, len(teachers))
	for i, tch := range teachers {
		members = append(members, eval.NewPanelMember{TeacherID: tch.ID, IsHead: i == 0})
	}
	pnl, err := env.svc.CreatePanel(eval.NewPanel{Name: "Panel " + teachers[0].Name, Members: members})
	if err != nil {
		t.Fatalf("creating panel: %v", err)
	}
	return pnl
}

func (env *testEnv) assign(t *testing.T, grp group.Group, pnl eval.Panel, evt eval.EvaluationEvent) eval.GroupEvaluation {
	t.Helper()
	ge, err := env.svc.Assign(eval.AssignPanel{GroupID: grp.ID, PanelID: pnl.ID, EventID: evt.ID})
	if err != nil {
		t.Fatalf("assigning panel: %v", err)
	}
	return ge
}

func (env *testEnv) submitMarks(t *testing.T, groupEvalID, studentID, evaluatorID, marks int, feedback string) eval.StudentEvaluationView {
	t.Helper()
	view, err := env.svc.SubmitScore(groupEvalID, studentID, evaluatorID, eval.ScoreSubmission{
		ObtainedMarks: intPtr(marks),
		Feedback:      feedback,
	})
	if err != nil {
		t.Fatalf("submitting marks for student %d by evaluator %d: %v", studentID, evaluatorID, err)
	}
	return view
}

func intPtr(i int) *int { return &i }
