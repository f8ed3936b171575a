package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Maad-exe/projectgo/core/eval"
)

type evalApi struct {
	svc *eval.Service
}

func registerEvalAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *eval.Service) {
	api := evalApi{svc: svc}

	rg := g.Group("/rubrics", jwt)
	rg.POST("", api.createRubric, adminMiddleware())
	rg.GET("", api.queryRubrics, teacherMiddleware())
	rg.GET("/:id", api.retrieveRubric, teacherMiddleware())
	rg.PUT("/:id", api.updateRubric, adminMiddleware())
	rg.DELETE("/:id", api.destroyRubric, adminMiddleware())

	eg := g.Group("/events", jwt)
	eg.POST("", api.createEvent, adminMiddleware())
	eg.GET("", api.queryEvents)
	eg.GET("/:id", api.retrieveEvent)
	eg.DELETE("/:id", api.destroyEvent, adminMiddleware())

	pg := g.Group("/panels", jwt)
	pg.POST("", api.createPanel, adminMiddleware())
	pg.GET("", api.queryPanels, teacherMiddleware())
	pg.GET("/:id", api.retrievePanel, teacherMiddleware())
	pg.PUT("/:id", api.updatePanel, adminMiddleware())
	pg.DELETE("/:id", api.destroyPanel, adminMiddleware())

	vg := g.Group("/evaluations", jwt)
	vg.POST("/assign", api.assign, adminMiddleware())
	vg.GET("/:id", api.retrieveGroupEvaluation, teacherMiddleware())
	vg.POST("/:id/students/:sid/scores", api.submitScore, teacherMiddleware())

	sg := g.Group("/student-evaluations", jwt)
	sg.POST("/:id/complete", api.markComplete, adminMiddleware())

	stg := g.Group("/students", jwt)
	stg.GET("/:id/progress", api.studentProgress, selfOrStaffMiddleware())
	stg.GET("/:id/final-grade", api.finalGrade, selfOrStaffMiddleware())

	gg := g.Group("/grades", jwt)
	gg.GET("/normalized", api.normalizedGrades, teacherMiddleware())
}

// -- rubrics --

func (api *evalApi) createRubric(ctx echo.Context) error {
	var data eval.NewRubric
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRubric")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rub, err := api.svc.CreateRubric(data)
	if err != nil {
		return errors.Wrap(err, "creating rubric")
	}
	return ctx.JSON(http.StatusCreated, rub)
}

func (api *evalApi) queryRubrics(ctx echo.Context) error {
	rubrics, err := api.svc.QueryRubrics()
	if err != nil {
		return errors.Wrap(err, "querying rubrics")
	}
	if rubrics == nil {
		rubrics = []eval.Rubric{}
	}
	return ctx.JSON(http.StatusOK, rubrics)
}

func (api *evalApi) retrieveRubric(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	rub, err := api.svc.GetRubric(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rub)
}

func (api *evalApi) updateRubric(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data eval.NewRubric
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRubric")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rub, err := api.svc.UpdateRubric(id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rub)
}

func (api *evalApi) destroyRubric(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteRubric(id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// -- events --

func (api *evalApi) createEvent(ctx echo.Context) error {
	var data eval.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	evt, err := api.svc.CreateEvent(data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *evalApi) queryEvents(ctx echo.Context) error {
	events, err := api.svc.QueryEvents()
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	if events == nil {
		events = []eval.EvaluationEvent{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *evalApi) retrieveEvent(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	evt, err := api.svc.GetEvent(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (api *evalApi) destroyEvent(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteEvent(id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// -- panels --

func (api *evalApi) createPanel(ctx echo.Context) error {
	var data eval.NewPanel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPanel")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	pnl, err := api.svc.CreatePanel(data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, pnl)
}

func (api *evalApi) queryPanels(ctx echo.Context) error {
	panels, err := api.svc.QueryPanels()
	if err != nil {
		return errors.Wrap(err, "querying panels")
	}
	if panels == nil {
		panels = []eval.Panel{}
	}
	return ctx.JSON(http.StatusOK, panels)
}

func (api *evalApi) retrievePanel(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	pnl, err := api.svc.GetPanel(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pnl)
}

func (api *evalApi) updatePanel(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data eval.NewPanel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPanel")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	pnl, err := api.svc.UpdatePanel(id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pnl)
}

func (api *evalApi) destroyPanel(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeletePanel(id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// -- evaluations --

func (api *evalApi) assign(ctx echo.Context) error {
	var data eval.AssignPanel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignPanel")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ge, err := api.svc.Assign(data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ge)
}

func (api *evalApi) retrieveGroupEvaluation(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	detail, err := api.svc.GetGroupEvaluation(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, detail)
}

// submitScore records the calling teacher's marks for one student; the
// evaluator identity always comes from the token, never the payload.
func (api *evalApi) submitScore(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	studentID, err := strconv.Atoi(ctx.Param("sid"))
	if err != nil {
		return errHttpNotFound
	}

	var data eval.ScoreSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	view, err := api.svc.SubmitScore(id, studentID, claims.UserID(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *evalApi) markComplete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.MarkComplete(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

// -- grades --

func (api *evalApi) studentProgress(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	progress, err := api.svc.GetStudentProgress(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *evalApi) finalGrade(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	grade, err := api.svc.FinalGrade(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, FinalGradeResponse{StudentID: id, FinalGrade: grade})
}

func (api *evalApi) normalizedGrades(ctx echo.Context) error {
	grades, err := api.svc.NormalizeAll()
	if err != nil {
		return err
	}
	if grades == nil {
		grades = []eval.NormalizedGrade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

// selfOrStaffMiddleware lets students read their own records and staff
// read anyone's.
func selfOrStaffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsTeacher || claims.IsAdmin {
				return next(ctx)
			}
			if id, err := strconv.Atoi(ctx.Param("id")); err == nil && id == claims.UserID() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

type FinalGradeResponse struct {
	StudentID  int     `json:"student_id"`
	FinalGrade float64 `json:"final_grade"`
}
