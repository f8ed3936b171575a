package eval_test

import (
	"testing"

	"github.com/Maad-exe/projectgo/core"
	"github.com/Maad-exe/projectgo/core/eval"
	"github.com/Maad-exe/projectgo/core/group"
)

func TestNewRubricValidate(t *testing.T) {
	cat := func(w float64) eval.NewRubricCategory {
		return eval.NewRubricCategory{Name: "Category", Weight: w, MaxScore: 10}
	}
	tests := []struct {
		name    string
		rubric  eval.NewRubric
		wantErr bool
	}{
		{
			name:   "weights sum to one",
			rubric: eval.NewRubric{Name: "Defense", Categories: []eval.NewRubricCategory{cat(0.3), cat(0.5), cat(0.2)}},
		},
		{
			name:   "sum within tolerance",
			rubric: eval.NewRubric{Name: "Defense", Categories: []eval.NewRubricCategory{cat(0.33), cat(0.33), cat(0.335)}},
		},
		{
			name:    "sum short of one",
			rubric:  eval.NewRubric{Name: "Defense", Categories: []eval.NewRubricCategory{cat(0.3), cat(0.5)}},
			wantErr: true,
		},
		{
			name:    "sum above one",
			rubric:  eval.NewRubric{Name: "Defense", Categories: []eval.NewRubricCategory{cat(0.8), cat(0.5)}},
			wantErr: true,
		},
		{
			name:    "no categories",
			rubric:  eval.NewRubric{Name: "Defense"},
			wantErr: true,
		},
		{
			name:    "missing name",
			rubric:  eval.NewRubric{Categories: []eval.NewRubricCategory{cat(1)}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rubric.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateRubricDefaults(t *testing.T) {
	env := newTestEnv(t)
	rub := env.createRubric(t,
		eval.NewRubricCategory{Name: "Design", Weight: 0.5}, // MaxScore omitted
		eval.NewRubricCategory{Name: "Implementation", Weight: 0.5, MaxScore: 20},
	)
	if rub.ID == 0 {
		t.Error("rubric ID not assigned")
	}
	if got := rub.Categories[0].MaxScore; got != 10 {
		t.Errorf("default MaxScore = %d; want 10", got)
	}
	if got := rub.Categories[1].MaxScore; got != 20 {
		t.Errorf("MaxScore = %d; want 20", got)
	}
	for i, cat := range rub.Categories {
		if cat.ID == 0 || cat.RubricID != rub.ID {
			t.Errorf("Categories[%d] = %+v; want assigned ID and RubricID %d", i, cat, rub.ID)
		}
	}
}

func TestUpdateRubric(t *testing.T) {
	env := newTestEnv(t)
	rub := env.createRubric(t,
		eval.NewRubricCategory{Name: "Design", Weight: 0.5},
		eval.NewRubricCategory{Name: "Implementation", Weight: 0.5},
	)

	updated, err := env.svc.UpdateRubric(rub.ID, eval.NewRubric{
		Name: "Revised Rubric",
		Categories: []eval.NewRubricCategory{
			{Name: "Presentation", Weight: 1, MaxScore: 15},
		},
	})
	if err != nil {
		t.Fatalf("UpdateRubric(): %v", err)
	}
	if updated.Name != "Revised Rubric" {
		t.Errorf("Name = %q; want %q", updated.Name, "Revised Rubric")
	}
	if len(updated.Categories) != 1 || updated.Categories[0].Name != "Presentation" {
		t.Errorf("Categories = %+v; want the replaced set", updated.Categories)
	}

	if _, err := env.svc.UpdateRubric(9999, eval.NewRubric{Name: "x"}); err == nil {
		t.Error("UpdateRubric() on unknown rubric succeeded; want NotFoundError")
	} else {
		checkErrType(t, err, &core.NotFoundError{})
	}
}

func TestCreateEventDefaults(t *testing.T) {
	env := newTestEnv(t)

	evt := env.createEvent(t, "Mid Review", 100, 0 /* weight defaulted */, nil)
	if evt.Weight != 1.0 {
		t.Errorf("default Weight = %v; want 1.0", evt.Weight)
	}

	if _, err := env.svc.CreateEvent(eval.NewEvent{Name: "x", TotalMarks: 10, RubricID: intPtr(4242)}); err == nil {
		t.Error("CreateEvent() with unknown rubric succeeded; want NotFoundError")
	} else {
		checkErrType(t, err, &core.NotFoundError{})
	}
}

func TestNewPanelValidate(t *testing.T) {
	member := func(id int) eval.NewPanelMember { return eval.NewPanelMember{TeacherID: id} }
	tests := []struct {
		name    string
		panel   eval.NewPanel
		wantErr bool
	}{
		{
			name:  "three distinct members",
			panel: eval.NewPanel{Name: "Panel A", Members: []eval.NewPanelMember{member(1), member(2), member(3)}},
		},
		{
			name:    "too few members",
			panel:   eval.NewPanel{Name: "Panel A", Members: []eval.NewPanelMember{member(1), member(2)}},
			wantErr: true,
		},
		{
			name:    "duplicate member",
			panel:   eval.NewPanel{Name: "Panel A", Members: []eval.NewPanelMember{member(1), member(2), member(1)}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.panel.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreatePanelMemberChecks(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "leon")
	t2 := env.createTeacher(t, "mireille")
	std := env.createStudent(t, "nathan")

	// students cannot sit on panels
	_, err := env.svc.CreatePanel(eval.NewPanel{
		Name: "Panel A",
		Members: []eval.NewPanelMember{
			{TeacherID: t1.ID, IsHead: true},
			{TeacherID: t2.ID},
			{TeacherID: std.ID},
		},
	})
	if err == nil {
		t.Fatal("CreatePanel() with a student member succeeded; want NotFoundError")
	}
	checkErrType(t, err, &core.NotFoundError{})
}

func TestAssign(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "odette")
	t2 := env.createTeacher(t, "patrice")
	t3 := env.createTeacher(t, "regine")
	sup := env.createTeacher(t, "serge")
	std := env.createStudent(t, "tatiana")
	orphan := env.createStudent(t, "ulrich")

	grp := env.createGroup(t, sup, std)
	unsupervised, err := env.grpSvc.Create(group.NewGroup{Name: "Unsupervised", MemberIDs: []int{orphan.ID}})
	if err != nil {
		t.Fatalf("creating group: %v", err)
	}

	evt := env.createEvent(t, "Final Defense", 100, 1, nil)
	pnl := env.createPanel(t, t1, t2, t3)
	tainted := env.createPanel(t, t1, t2, sup) // includes the supervisor

	ge := env.assign(t, grp, pnl, evt)
	if ge.GroupID != grp.ID || ge.PanelID != pnl.ID || ge.EventID != evt.ID {
		t.Errorf("Assign() = %+v; want links to group %d, panel %d, event %d", ge, grp.ID, pnl.ID, evt.ID)
	}

	tests := []struct {
		name    string
		ap      eval.AssignPanel
		wantErr error
	}{
		{
			name:    "duplicate group/event pair",
			ap:      eval.AssignPanel{GroupID: grp.ID, PanelID: tainted.ID, EventID: evt.ID},
			wantErr: &core.ConflictError{},
		},
		{
			name:    "group without supervisor",
			ap:      eval.AssignPanel{GroupID: unsupervised.ID, PanelID: pnl.ID, EventID: evt.ID},
			wantErr: &core.ValidationError{},
		},
		{
			name:    "unknown group",
			ap:      eval.AssignPanel{GroupID: 9999, PanelID: pnl.ID, EventID: evt.ID},
			wantErr: &core.NotFoundError{},
		},
		{
			name:    "unknown panel",
			ap:      eval.AssignPanel{GroupID: grp.ID, PanelID: 9999, EventID: evt.ID},
			wantErr: &core.NotFoundError{},
		},
		{
			name:    "unknown event",
			ap:      eval.AssignPanel{GroupID: grp.ID, PanelID: pnl.ID, EventID: 9999},
			wantErr: &core.NotFoundError{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Assign(tt.ap)
			checkErrType(t, err, tt.wantErr)
		})
	}
}

func TestAssignSupervisorOnPanel(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "vianney")
	t2 := env.createTeacher(t, "wendy")
	sup := env.createTeacher(t, "xaviera")
	std := env.createStudent(t, "yolande")
	grp := env.createGroup(t, sup, std)

	evt := env.createEvent(t, "Final Defense", 100, 1, nil)
	pnl := env.createPanel(t, t1, t2, sup)

	_, err := env.svc.Assign(eval.AssignPanel{GroupID: grp.ID, PanelID: pnl.ID, EventID: evt.ID})
	if err == nil {
		t.Fatal("Assign() with supervisor on panel succeeded; want ConflictError")
	}
	checkErrType(t, err, &core.ConflictError{})
}

func TestDeleteInUse(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "zita")
	t2 := env.createTeacher(t, "achille")
	t3 := env.createTeacher(t, "bijou")
	sup := env.createTeacher(t, "cyprien")
	std := env.createStudent(t, "divine")
	grp := env.createGroup(t, sup, std)

	rub := env.createRubric(t, eval.NewRubricCategory{Name: "Design", Weight: 1})
	evt := env.createEvent(t, "Final Defense", 100, 1, &rub.ID)
	pnl := env.createPanel(t, t1, t2, t3)
	env.assign(t, grp, pnl, evt)

	if err := env.svc.DeleteRubric(rub.ID); err == nil {
		t.Error("DeleteRubric() on referenced rubric succeeded; want ConflictError")
	} else {
		checkErrType(t, err, &core.ConflictError{})
	}
	if err := env.svc.DeleteEvent(evt.ID); err == nil {
		t.Error("DeleteEvent() on assigned event succeeded; want ConflictError")
	} else {
		checkErrType(t, err, &core.ConflictError{})
	}
	if err := env.svc.DeletePanel(pnl.ID); err == nil {
		t.Error("DeletePanel() on assigned panel succeeded; want ConflictError")
	} else {
		checkErrType(t, err, &core.ConflictError{})
	}

	// unreferenced entities delete fine
	spare := env.createPanel(t, t1, t2, t3)
	if err := env.svc.DeletePanel(spare.ID); err != nil {
		t.Fatalf("DeletePanel(): %v", err)
	}
	if _, err := env.svc.GetPanel(spare.ID); err == nil {
		t.Error("GetPanel() found a deleted panel")
	} else {
		checkErrType(t, err, &core.NotFoundError{})
	}
}

func TestGetGroupEvaluation(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "eloi")
	t2 := env.createTeacher(t, "fatou")
	t3 := env.createTeacher(t, "gaelle")
	sup := env.createTeacher(t, "hassan")
	s1 := env.createStudent(t, "imelda")
	s2 := env.createStudent(t, "jonas")
	grp := env.createGroup(t, sup, s1, s2)

	evt := env.createEvent(t, "Proposal Defense", 50, 1, nil)
	pnl := env.createPanel(t, t1, t2, t3)
	ge := env.assign(t, grp, pnl, evt)

	env.submitMarks(t, ge.ID, s1.ID, t1.ID, 40, "")

	detail, err := env.svc.GetGroupEvaluation(ge.ID)
	if err != nil {
		t.Fatalf("GetGroupEvaluation(): %v", err)
	}
	if detail.Event.ID != evt.ID || detail.Panel.ID != pnl.ID {
		t.Errorf("detail links = event %d, panel %d; want event %d, panel %d",
			detail.Event.ID, detail.Panel.ID, evt.ID, pnl.ID)
	}
	// only students with submissions have evaluation records so far
	if len(detail.Students) != 1 {
		t.Fatalf("len(Students) = %d; want 1", len(detail.Students))
	}
	if got := detail.Students[0]; got.StudentID != s1.ID || got.ObtainedMarks != 40 {
		t.Errorf("Students[0] = %+v; want student %d with 40 marks", got, s1.ID)
	}

	if _, err := env.svc.GetGroupEvaluation(9999); err == nil {
		t.Error("GetGroupEvaluation() on unknown id succeeded; want NotFoundError")
	} else {
		checkErrType(t, err, &core.NotFoundError{})
	}
}
