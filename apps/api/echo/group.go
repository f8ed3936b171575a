package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Maad-exe/projectgo/core/group"
	"github.com/Maad-exe/projectgo/core/user"
)

type groupApi struct {
	svc     *group.Service
	userSvc *user.Service
}

func registerGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *group.Service, userSvc *user.Service) {
	api := groupApi{svc: svc, userSvc: userSvc}

	gg := g.Group("/groups", jwt)
	gg.POST("", api.create, adminMiddleware())
	gg.GET("", api.query)
	gg.DELETE("", api.destroyMultiple, adminMiddleware())
	gg.GET("/:id", api.retrieve)
	gg.POST("/:id/members", api.addMember, adminMiddleware())

	rg := g.Group("/supervision-requests", jwt)
	rg.POST("", api.requestSupervision, studentMiddleware())
	rg.GET("", api.queryRequests, teacherMiddleware())
	rg.PUT("/:id", api.resolveRequest, teacherMiddleware())
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	grp, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) query(ctx echo.Context) error {
	groups, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	grp, err := api.svc.GetByID(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) addMember(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data AddMemberRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMemberRequest")
	}

	grp, err := api.svc.AddMember(id, data.StudentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(query.IDs...); err != nil {
		return errors.Wrap(err, "deleting groups")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) requestSupervision(ctx echo.Context) error {
	var data group.NewSupervisionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSupervisionRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	req, err := api.svc.RequestSupervision(data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, req)
}

// queryRequests lists the pending and resolved requests addressed to the
// calling teacher.
func (api *groupApi) queryRequests(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqs, err := api.svc.QueryRequestsByTeacher(ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying supervision requests")
	}
	if reqs == nil {
		reqs = []group.SupervisionRequest{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *groupApi) resolveRequest(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data ResolveRequestRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResolveRequestRequest")
	}

	// only the addressed teacher (or an admin) may resolve
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	req, err := api.svc.GetRequestByID(id)
	if err != nil {
		return err
	}
	if req.TeacherID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return errHttpForbidden
	}

	req, err = api.svc.ResolveSupervisionRequest(id, data.Accept)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, req)
}

type (
	AddMemberRequest struct {
		StudentID int `json:"student_id" validate:"required"`
	}

	ResolveRequestRequest struct {
		Accept bool `json:"accept"`
	}
)
