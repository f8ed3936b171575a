package echoapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Maad-exe/projectgo/apps/api/echo"
	"github.com/Maad-exe/projectgo/core"
	"github.com/Maad-exe/projectgo/core/eval"
	"github.com/Maad-exe/projectgo/core/group"
	"github.com/Maad-exe/projectgo/core/user"
	"github.com/Maad-exe/projectgo/storage/database/inmem"
)

func TestMain(m *testing.M) {
	core.Conf.Debug = false
	core.Conf.TestMode = true
	os.Exit(m.Run())
}

type testEnv struct {
	app     echoapi.Server
	usrSvc  *user.Service
	grpSvc  *group.Service
	evalSvc *eval.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	usrSvc := user.NewService(inmemdb.NewUserRepository(db))
	grpSvc := group.NewService(inmemdb.NewGroupRepository(db), usrSvc)
	evalSvc := eval.NewService(inmemdb.NewEvalRepository(db), usrSvc, grpSvc, nil, nil)

	app := echoapi.NewServer(&echoapi.Options{
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		GroupSvc:       grpSvc,
		EvalSvc:        evalSvc,
	})
	return &testEnv{app: app, usrSvc: usrSvc, grpSvc: grpSvc, evalSvc: evalSvc}
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

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func decodeObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHomeAPI(t *testing.T) {
	env := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d; want %d", rec.Code, http.StatusOK)
	}
	if want := "Welcome to the " + core.Conf.AppName + " API!"; rec.Body.String() != want {
		t.Errorf("body = %q; want %q", rec.Body.String(), want)
	}
}

func TestUserLoginAPI(t *testing.T) {
	env := setup(t)
	env.createUser(t, "amani", user.KindStudent)

	deactivated := env.createUser(t, "bahati", user.KindStudent)
	inactive := false
	if _, err := env.usrSvc.Update(deactivated.ID, user.UpdateUser{
		Name: deactivated.Name, Email: deactivated.Email, IsActive: &inactive,
	}); err != nil {
		t.Fatalf("deactivating user: %v", err)
	}

	login := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	tests := []struct {
		name     string
		body     []byte
		wantCode int
	}{
		{name: "valid credentials", body: login("amani@projectgo.test", "Str0ng!Pwd"), wantCode: http.StatusOK},
		{name: "wrong password", body: login("amani@projectgo.test", "nope"), wantCode: http.StatusBadRequest},
		{name: "unknown user", body: login("ghost@projectgo.test", "Str0ng!Pwd"), wantCode: http.StatusBadRequest},
		{name: "deactivated account", body: login("bahati@projectgo.test", "Str0ng!Pwd"), wantCode: http.StatusForbidden},
		{name: "empty body", body: nil, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.app.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d; want %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				decodeObj(t, rec, &resp)
				if resp.Token == "" {
					t.Error("empty token on successful login")
				}
			}
		})
	}
}

func TestRubricAPIPermissions(t *testing.T) {
	env := setup(t)
	std := env.createUser(t, "amani", user.KindStudent)
	tch := env.createUser(t, "chiza", user.KindTeacher)
	adm := env.createUser(t, "root", user.KindAdmin)

	body := marchallObj(t, eval.NewRubric{
		Name: "Defense Rubric",
		Categories: []eval.NewRubricCategory{
			{Name: "Design", Weight: 0.5, MaxScore: 10},
			{Name: "Implementation", Weight: 0.5, MaxScore: 10},
		},
	})

	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{name: "anonymous", token: "", wantCode: http.StatusUnauthorized},
		{name: "student", token: getToken(t, std), wantCode: http.StatusForbidden},
		{name: "teacher", token: getToken(t, tch), wantCode: http.StatusForbidden},
		{name: "admin", token: getToken(t, adm), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/rubrics", tt.token, body)
			env.app.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d; want %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	// teachers may read rubrics, students may not
	req, rec := newAuthRequest(http.MethodGet, "/v1/rubrics", getToken(t, tch))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("teacher GET /rubrics code = %d; want %d", rec.Code, http.StatusOK)
	}
	req, rec = newAuthRequest(http.MethodGet, "/v1/rubrics", getToken(t, std))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student GET /rubrics code = %d; want %d", rec.Code, http.StatusForbidden)
	}
}

func TestEvaluationFlowAPI(t *testing.T) {
	env := setup(t)
	t1 := env.createUser(t, "chiza", user.KindTeacher)
	t2 := env.createUser(t, "dunia", user.KindTeacher)
	t3 := env.createUser(t, "esengo", user.KindTeacher)
	sup := env.createUser(t, "furaha", user.KindTeacher)
	std := env.createUser(t, "amani", user.KindStudent)
	other := env.createUser(t, "bahati", user.KindStudent)
	adm := env.createUser(t, "root", user.KindAdmin)
	grp := env.createGroup(t, sup, std)

	admToken := getToken(t, adm)

	// admin sets up rubric, event, panel and the assignment
	var rub eval.Rubric
	req, rec := newAuthRequest(http.MethodPost, "/v1/rubrics", admToken, marchallObj(t, eval.NewRubric{
		Name: "Defense Rubric",
		Categories: []eval.NewRubricCategory{
			{Name: "Design", Weight: 0.5, MaxScore: 10},
			{Name: "Implementation", Weight: 0.5, MaxScore: 10},
		},
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /rubrics code = %d; body %s", rec.Code, rec.Body.String())
	}
	decodeObj(t, rec, &rub)

	var evt eval.EvaluationEvent
	req, rec = newAuthRequest(http.MethodPost, "/v1/events", admToken, marchallObj(t, eval.NewEvent{
		Name: "Final Defense", TotalMarks: 100, Weight: 1, RubricID: &rub.ID,
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /events code = %d; body %s", rec.Code, rec.Body.String())
	}
	decodeObj(t, rec, &evt)

	var pnl eval.Panel
	req, rec = newAuthRequest(http.MethodPost, "/v1/panels", admToken, marchallObj(t, eval.NewPanel{
		Name: "Panel A",
		Members: []eval.NewPanelMember{
			{TeacherID: t1.ID, IsHead: true},
			{TeacherID: t2.ID},
			{TeacherID: t3.ID},
		},
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /panels code = %d; body %s", rec.Code, rec.Body.String())
	}
	decodeObj(t, rec, &pnl)

	var ge eval.GroupEvaluation
	req, rec = newAuthRequest(http.MethodPost, "/v1/evaluations/assign", admToken, marchallObj(t, eval.AssignPanel{
		GroupID: grp.ID, PanelID: pnl.ID, EventID: evt.ID,
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /evaluations/assign code = %d; body %s", rec.Code, rec.Body.String())
	}
	decodeObj(t, rec, &ge)

	scoresPath := fmt.Sprintf("/v1/evaluations/%d/students/%d/scores", ge.ID, std.ID)
	submission := func(design, impl int) []byte {
		return marchallObj(t, eval.ScoreSubmission{CategoryScores: []eval.CategoryScoreInput{
			{CategoryID: rub.Categories[0].ID, Score: design},
			{CategoryID: rub.Categories[1].ID, Score: impl, Feedback: "Looks good"},
		}})
	}

	// students cannot submit scores
	req, rec = newAuthRequest(http.MethodPost, scoresPath, getToken(t, std), submission(5, 5))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student submit code = %d; want %d", rec.Code, http.StatusForbidden)
	}

	// the group's supervisor cannot either
	req, rec = newAuthRequest(http.MethodPost, scoresPath, getToken(t, sup), submission(5, 5))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("supervisor submit code = %d; want %d; body %s", rec.Code, http.StatusConflict, rec.Body.String())
	}

	// panel members drive the evaluation to completion
	var view eval.StudentEvaluationView
	for i, tch := range []user.User{t1, t2, t3} {
		req, rec = newAuthRequest(http.MethodPost, scoresPath, getToken(t, tch), submission(8, 6))
		env.app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("submit %d code = %d; body %s", i+1, rec.Code, rec.Body.String())
		}
		decodeObj(t, rec, &view)
		if view.EvaluatorsSubmitted != i+1 {
			t.Errorf("EvaluatorsSubmitted = %d; want %d", view.EvaluatorsSubmitted, i+1)
		}
	}
	if !view.IsComplete {
		t.Error("IsComplete = false after all panel members submitted")
	}
	if view.ObtainedMarks != 70 { // (8/10*0.5 + 6/10*0.5) * 100
		t.Errorf("ObtainedMarks = %d; want 70", view.ObtainedMarks)
	}

	// students read their own progress, not their peers'
	progressPath := fmt.Sprintf("/v1/students/%d/progress", std.ID)
	req, rec = newAuthRequest(http.MethodGet, progressPath, getToken(t, std))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("own progress code = %d; want %d", rec.Code, http.StatusOK)
	}
	req, rec = newAuthRequest(http.MethodGet, progressPath, getToken(t, other))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("peer progress code = %d; want %d", rec.Code, http.StatusForbidden)
	}

	// cohort normalization is a staff view
	req, rec = newAuthRequest(http.MethodGet, "/v1/grades/normalized", getToken(t, t1))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /grades/normalized code = %d; body %s", rec.Code, rec.Body.String())
	}
	var grades []eval.NormalizedGrade
	decodeObj(t, rec, &grades)
	if assert.Len(t, grades, 1) {
		assert.Equal(t, std.ID, grades[0].StudentID)
		assert.Equal(t, grades[0].RawGrade, grades[0].NormalizedGrade) // single-student cohort keeps raw
	}
	req, rec = newAuthRequest(http.MethodGet, "/v1/grades/normalized", getToken(t, std))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student GET /grades/normalized code = %d; want %d", rec.Code, http.StatusForbidden)
	}
}

func TestUserAPIPermissions(t *testing.T) {
	env := setup(t)
	std := env.createUser(t, "amani", user.KindStudent)
	adm := env.createUser(t, "root", user.KindAdmin)

	// listing users is admin-only
	req, rec := newAuthRequest(http.MethodGet, "/v1/users", getToken(t, std))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student GET /users code = %d; want %d", rec.Code, http.StatusForbidden)
	}
	req, rec = newAuthRequest(http.MethodGet, "/v1/users", getToken(t, adm))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin GET /users code = %d; want %d", rec.Code, http.StatusOK)
	}

	// users see their own detail; others' records do not leak
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/users/%d", std.ID), getToken(t, std))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("own detail code = %d; want %d", rec.Code, http.StatusOK)
	}
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/users/%d", adm.ID), getToken(t, std))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("peer detail code = %d; want %d", rec.Code, http.StatusNotFound)
	}

	// admins cannot delete themselves
	req, rec = newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/users/%d", adm.ID), getToken(t, adm))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("self delete code = %d; want %d", rec.Code, http.StatusForbidden)
	}
}
