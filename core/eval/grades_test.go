package eval_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/Maad-exe/projectgo/core/user"
)

const gradeTolerance = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) <= gradeTolerance }

// completeSimple has every panel member submit the same marks, driving
// the student evaluation to completion with a known obtained value.
func (env *testEnv) completeSimple(t *testing.T, groupEvalID, studentID, marks int, evaluators ...user.User) {
	t.Helper()
	for _, tch := range evaluators {
		env.submitMarks(t, groupEvalID, studentID, tch.ID, marks, "")
	}
}

func TestFinalGrade(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "honore")
	t2 := env.createTeacher(t, "irene")
	t3 := env.createTeacher(t, "jules")
	sup := env.createTeacher(t, "kami")
	std := env.createStudent(t, "landry")
	grp := env.createGroup(t, sup, std)
	pnl := env.createPanel(t, t1, t2, t3)

	// 80/100 on a weight-2 event and 30/50 on a weight-1 event:
	// (2*80% + 1*60%) / 3 = 73.33%
	evtA := env.createEvent(t, "Final Defense", 100, 2, nil)
	evtB := env.createEvent(t, "Proposal Defense", 50, 1, nil)
	geA := env.assign(t, grp, pnl, evtA)
	geB := env.assign(t, grp, pnl, evtB)
	env.completeSimple(t, geA.ID, std.ID, 80, t1, t2, t3)
	env.completeSimple(t, geB.ID, std.ID, 30, t1, t2, t3)

	grade, err := env.svc.FinalGrade(std.ID)
	if err != nil {
		t.Fatalf("FinalGrade(): %v", err)
	}
	if want := 220.0 / 3; !almostEqual(grade, want) {
		t.Errorf("FinalGrade() = %v; want %v", grade, want)
	}
}

// A student evaluated twice under the same event (re-evaluation in a
// second group) gets the percentages averaged within that event before
// the cross-event weighting.
func TestFinalGradeAveragesReEvaluations(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "adolphe")
	t2 := env.createTeacher(t, "brigitte")
	t3 := env.createTeacher(t, "clovis")
	sup := env.createTeacher(t, "dorcas")
	std := env.createStudent(t, "emery")
	grpA := env.createGroup(t, sup, std)
	grpB := env.createGroup(t, sup, std)
	pnl := env.createPanel(t, t1, t2, t3)

	// 80% and 60% under the weight-1 event average to 70%, then
	// (1*70 + 2*90) / 3 = 250/3
	evtA := env.createEvent(t, "Mid Review", 100, 1, nil)
	evtB := env.createEvent(t, "Final Defense", 100, 2, nil)
	geA1 := env.assign(t, grpA, pnl, evtA)
	geA2 := env.assign(t, grpB, pnl, evtA)
	geB := env.assign(t, grpA, pnl, evtB)
	env.completeSimple(t, geA1.ID, std.ID, 80, t1, t2, t3)
	env.completeSimple(t, geA2.ID, std.ID, 60, t1, t2, t3)
	env.completeSimple(t, geB.ID, std.ID, 90, t1, t2, t3)

	grade, err := env.svc.FinalGrade(std.ID)
	if err != nil {
		t.Fatalf("FinalGrade(): %v", err)
	}
	if want := 250.0 / 3; !almostEqual(grade, want) {
		t.Errorf("FinalGrade() = %v; want %v", grade, want)
	}
}

func TestFinalGradeIgnoresIncomplete(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "marcel")
	t2 := env.createTeacher(t, "noella")
	t3 := env.createTeacher(t, "olivier")
	sup := env.createTeacher(t, "prisca")
	std := env.createStudent(t, "quentin")
	grp := env.createGroup(t, sup, std)
	pnl := env.createPanel(t, t1, t2, t3)

	evtA := env.createEvent(t, "Final Defense", 100, 1, nil)
	evtB := env.createEvent(t, "Mid Review", 100, 5, nil)
	geA := env.assign(t, grp, pnl, evtA)
	geB := env.assign(t, grp, pnl, evtB)
	env.completeSimple(t, geA.ID, std.ID, 80, t1, t2, t3)
	env.submitMarks(t, geB.ID, std.ID, t1.ID, 10, "") // still pending

	grade, err := env.svc.FinalGrade(std.ID)
	if err != nil {
		t.Fatalf("FinalGrade(): %v", err)
	}
	if !almostEqual(grade, 80) {
		t.Errorf("FinalGrade() = %v; want 80 (pending evaluation must not count)", grade)
	}
}

func TestFinalGradeNoEvaluations(t *testing.T) {
	env := newTestEnv(t)
	std := env.createStudent(t, "rebecca")

	grade, err := env.svc.FinalGrade(std.ID)
	if err != nil {
		t.Fatalf("FinalGrade(): %v", err)
	}
	if grade != 0 {
		t.Errorf("FinalGrade() = %v; want 0", grade)
	}
}

func TestNormalizeAll(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "sandrine")
	t2 := env.createTeacher(t, "thierry")
	t3 := env.createTeacher(t, "ursula")
	sup := env.createTeacher(t, "valery")
	s1 := env.createStudent(t, "william")
	s2 := env.createStudent(t, "yvette")
	s3 := env.createStudent(t, "zachee")
	grp := env.createGroup(t, sup, s1, s2, s3)
	pnl := env.createPanel(t, t1, t2, t3)

	evt := env.createEvent(t, "Final Defense", 100, 1, nil)
	ge := env.assign(t, grp, pnl, evt)
	env.completeSimple(t, ge.ID, s1.ID, 90, t1, t2, t3)
	env.completeSimple(t, ge.ID, s2.ID, 70, t1, t2, t3)
	env.completeSimple(t, ge.ID, s3.ID, 50, t1, t2, t3)

	grades, err := env.svc.NormalizeAll()
	if err != nil {
		t.Fatalf("NormalizeAll(): %v", err)
	}
	if len(grades) != 3 {
		t.Fatalf("len(grades) = %d; want 3", len(grades))
	}

	// raw 90/70/50: mean 70, population stddev sqrt(800/3)
	sigma := math.Sqrt(800.0 / 3)
	spread := 20 / sigma * 10
	wants := []struct {
		studentID       int
		raw, normalized float64
	}{
		{s1.ID, 90, 70 + spread},
		{s2.ID, 70, 70},
		{s3.ID, 50, 70 - spread},
	}
	for i, want := range wants {
		got := grades[i]
		if got.StudentID != want.studentID {
			t.Errorf("grades[%d].StudentID = %d; want %d", i, got.StudentID, want.studentID)
		}
		if !almostEqual(got.RawGrade, want.raw) {
			t.Errorf("grades[%d].RawGrade = %v; want %v", i, got.RawGrade, want.raw)
		}
		if !almostEqual(got.NormalizedGrade, want.normalized) {
			t.Errorf("grades[%d].NormalizedGrade = %v; want %v", i, got.NormalizedGrade, want.normalized)
		}
	}
}

// An extreme outlier is clipped at the 100 ceiling rather than rescaled
// past it.
func TestNormalizeAllClampsOutliers(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "fabrice")
	t2 := env.createTeacher(t, "gisele")
	t3 := env.createTeacher(t, "hubert")
	sup := env.createTeacher(t, "ines")

	students := make([]user.User, 0, 11)
	for i := 0; i < 11; i++ {
		students = append(students, env.createStudent(t, fmt.Sprintf("cohort%02d", i)))
	}
	grp := env.createGroup(t, sup, students...)
	pnl := env.createPanel(t, t1, t2, t3)

	evt := env.createEvent(t, "Final Defense", 100, 1, nil)
	ge := env.assign(t, grp, pnl, evt)
	for _, std := range students[:10] {
		env.completeSimple(t, ge.ID, std.ID, 50, t1, t2, t3)
	}
	outlier := students[10]
	env.completeSimple(t, ge.ID, outlier.ID, 100, t1, t2, t3)

	grades, err := env.svc.NormalizeAll()
	if err != nil {
		t.Fatalf("NormalizeAll(): %v", err)
	}
	if len(grades) != 11 {
		t.Fatalf("len(grades) = %d; want 11", len(grades))
	}

	// ten raws of 50 and one of 100: z = sqrt(10) for the outlier, so the
	// rescale lands above the ceiling and must clip to exactly 100
	mean := 600.0 / 11
	var variance float64
	for i := 0; i < 10; i++ {
		d := 50 - mean
		variance += d * d
	}
	d := 100 - mean
	variance += d * d
	variance /= 11
	sigma := math.Sqrt(variance)
	if unclipped := (100-mean)/sigma*10 + 70; unclipped <= 100 {
		t.Fatalf("unclipped rescale = %v; cohort not extreme enough", unclipped)
	}

	top := grades[0]
	if top.StudentID != outlier.ID {
		t.Errorf("grades[0].StudentID = %d; want outlier %d", top.StudentID, outlier.ID)
	}
	if top.RawGrade != 100 {
		t.Errorf("grades[0].RawGrade = %v; want 100", top.RawGrade)
	}
	if top.NormalizedGrade != 100 {
		t.Errorf("grades[0].NormalizedGrade = %v; want exactly 100", top.NormalizedGrade)
	}
	wantRest := (50-mean)/sigma*10 + 70
	for i, g := range grades[1:] {
		if !almostEqual(g.NormalizedGrade, wantRest) {
			t.Errorf("grades[%d].NormalizedGrade = %v; want %v", i+1, g.NormalizedGrade, wantRest)
		}
	}
}

// A degenerate cohort (identical raw grades) keeps the raw values; ties
// order by student ID.
func TestNormalizeAllDegenerateCohort(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "alphonse")
	t2 := env.createTeacher(t, "berthe")
	t3 := env.createTeacher(t, "celestin")
	sup := env.createTeacher(t, "delphine")
	s1 := env.createStudent(t, "edouard")
	s2 := env.createStudent(t, "florence")
	grp := env.createGroup(t, sup, s1, s2)
	pnl := env.createPanel(t, t1, t2, t3)

	evt := env.createEvent(t, "Final Defense", 100, 1, nil)
	ge := env.assign(t, grp, pnl, evt)
	env.completeSimple(t, ge.ID, s1.ID, 75, t1, t2, t3)
	env.completeSimple(t, ge.ID, s2.ID, 75, t1, t2, t3)

	grades, err := env.svc.NormalizeAll()
	if err != nil {
		t.Fatalf("NormalizeAll(): %v", err)
	}
	if len(grades) != 2 {
		t.Fatalf("len(grades) = %d; want 2", len(grades))
	}
	for i, g := range grades {
		if !almostEqual(g.NormalizedGrade, 75) {
			t.Errorf("grades[%d].NormalizedGrade = %v; want raw 75", i, g.NormalizedGrade)
		}
	}
	if grades[0].StudentID != s1.ID || grades[1].StudentID != s2.ID {
		t.Errorf("tie order = [%d %d]; want [%d %d]", grades[0].StudentID, grades[1].StudentID, s1.ID, s2.ID)
	}
}

func TestNormalizeAllEmptyCohort(t *testing.T) {
	env := newTestEnv(t)

	grades, err := env.svc.NormalizeAll()
	if err != nil {
		t.Fatalf("NormalizeAll(): %v", err)
	}
	if len(grades) != 0 {
		t.Errorf("len(grades) = %d; want 0", len(grades))
	}
}

func TestGetStudentProgress(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.createTeacher(t, "gilbert")
	t2 := env.createTeacher(t, "hortense")
	t3 := env.createTeacher(t, "isidore")
	sup := env.createTeacher(t, "jeannette")
	std := env.createStudent(t, "kevin")
	grp := env.createGroup(t, sup, std)
	pnl := env.createPanel(t, t1, t2, t3)

	evtA := env.createEvent(t, "Proposal Defense", 50, 1, nil)
	evtB := env.createEvent(t, "Final Defense", 100, 2, nil)
	geA := env.assign(t, grp, pnl, evtA)
	geB := env.assign(t, grp, pnl, evtB)
	env.completeSimple(t, geA.ID, std.ID, 40, t1, t2, t3)
	env.submitMarks(t, geB.ID, std.ID, t1.ID, 55, "") // in progress

	progress, err := env.svc.GetStudentProgress(std.ID)
	if err != nil {
		t.Fatalf("GetStudentProgress(): %v", err)
	}
	if progress.StudentID != std.ID {
		t.Errorf("StudentID = %d; want %d", progress.StudentID, std.ID)
	}
	if progress.StudentName != "kevin" {
		t.Errorf("StudentName = %q; want %q", progress.StudentName, "kevin")
	}
	if len(progress.Evaluations) != 2 {
		t.Fatalf("len(Evaluations) = %d; want 2 (pending included)", len(progress.Evaluations))
	}
	if !progress.Evaluations[0].IsComplete || progress.Evaluations[1].IsComplete {
		t.Errorf("completion flags = [%v %v]; want [true false]",
			progress.Evaluations[0].IsComplete, progress.Evaluations[1].IsComplete)
	}
	if !almostEqual(progress.FinalGrade, 80) { // 40/50 on the only completed event
		t.Errorf("FinalGrade = %v; want 80", progress.FinalGrade)
	}
}
