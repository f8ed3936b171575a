package group

import (
	"errors"
	"fmt"
	"time"

	"github.com/Maad-exe/projectgo/core"
)

var (
	// errors
	ErrNotFound        = errors.New("group not found")
	ErrRequestNotFound = errors.New("supervision request not found")
)

type (
	Repository interface {
		CreateGroup(grp Group) (Group, error)
		GetGroupByID(id int) (Group, error)
		QueryAllGroups() ([]Group, error)
		UpdateGroup(grp Group) (Group, error)
		DeleteGroupsByID(ids ...int) error

		CreateSupervisionRequest(req SupervisionRequest) (SupervisionRequest, error)
		GetSupervisionRequestByID(id int) (SupervisionRequest, error)
		QuerySupervisionRequestsByTeacher(teacherID int) ([]SupervisionRequest, error)
		UpdateSupervisionRequest(req SupervisionRequest) (SupervisionRequest, error)
	}

	// Directory is the slice of the user service this package needs.
	Directory interface {
		TeacherExists(id int) (bool, error)
		StudentExists(id int) (bool, error)
	}

	Service struct {
		repo  Repository
		users Directory
	}
)

func NewService(repo Repository, users Directory) *Service {
	return &Service{repo: repo, users: users}
}

func (svc *Service) Create(ng NewGroup) (Group, error) {
	for _, id := range ng.MemberIDs {
		ok, err := svc.users.StudentExists(id)
		if err != nil {
			return Group{}, err
		}
		if !ok {
			return Group{}, core.NewNotFoundError(fmt.Sprintf("student %d not found", id))
		}
	}
	now := time.Now().UTC()
	grp := Group{
		Name:      ng.Name,
		MemberIDs: ng.MemberIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateGroup(grp)
}

func (svc *Service) GetByID(id int) (Group, error) {
	grp, err := svc.repo.GetGroupByID(id)
	if err != nil {
		if err == ErrNotFound {
			return Group{}, core.NewNotFoundError(err.Error())
		}
		return Group{}, err
	}
	return grp, nil
}

func (svc *Service) QueryAll() ([]Group, error) {
	return svc.repo.QueryAllGroups()
}

func (svc *Service) AddMember(groupID, studentID int) (Group, error) {
	grp, err := svc.GetByID(groupID)
	if err != nil {
		return Group{}, err
	}
	if grp.HasMember(studentID) {
		return Group{}, core.NewConflictError("student is already a member of this group")
	}
	ok, err := svc.users.StudentExists(studentID)
	if err != nil {
		return Group{}, err
	}
	if !ok {
		return Group{}, core.NewNotFoundError(fmt.Sprintf("student %d not found", studentID))
	}
	grp.MemberIDs = append(grp.MemberIDs, studentID)
	grp.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateGroup(grp)
}

func (svc *Service) Delete(ids ...int) error {
	return svc.repo.DeleteGroupsByID(ids...)
}

// RequestSupervision files a pending supervision request for a teacher.
func (svc *Service) RequestSupervision(nr NewSupervisionRequest) (SupervisionRequest, error) {
	if _, err := svc.GetByID(nr.GroupID); err != nil {
		return SupervisionRequest{}, err
	}
	ok, err := svc.users.TeacherExists(nr.TeacherID)
	if err != nil {
		return SupervisionRequest{}, err
	}
	if !ok {
		return SupervisionRequest{}, core.NewNotFoundError(fmt.Sprintf("teacher %d not found", nr.TeacherID))
	}
	now := time.Now().UTC()
	req := SupervisionRequest{
		GroupID:   nr.GroupID,
		TeacherID: nr.TeacherID,
		Message:   nr.Message,
		Status:    RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSupervisionRequest(req)
}

// ResolveSupervisionRequest accepts or rejects a pending request;
// accepting sets the group's supervisor.
func (svc *Service) ResolveSupervisionRequest(id int, accept bool) (SupervisionRequest, error) {
	req, err := svc.repo.GetSupervisionRequestByID(id)
	if err != nil {
		if err == ErrRequestNotFound {
			return SupervisionRequest{}, core.NewNotFoundError(err.Error())
		}
		return SupervisionRequest{}, err
	}
	if req.Status != RequestPending {
		return SupervisionRequest{}, core.NewConflictError("supervision request already resolved")
	}

	if accept {
		grp, err := svc.GetByID(req.GroupID)
		if err != nil {
			return SupervisionRequest{}, err
		}
		if grp.HasSupervisor() {
			return SupervisionRequest{}, core.NewConflictError("group already has a supervisor")
		}
		grp.SupervisorID = &req.TeacherID
		grp.UpdatedAt = time.Now().UTC()
		if _, err := svc.repo.UpdateGroup(grp); err != nil {
			return SupervisionRequest{}, err
		}
		req.Status = RequestAccepted
	} else {
		req.Status = RequestRejected
	}
	req.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSupervisionRequest(req)
}

func (svc *Service) GetRequestByID(id int) (SupervisionRequest, error) {
	req, err := svc.repo.GetSupervisionRequestByID(id)
	if err != nil {
		if err == ErrRequestNotFound {
			return SupervisionRequest{}, core.NewNotFoundError(err.Error())
		}
		return SupervisionRequest{}, err
	}
	return req, nil
}

func (svc *Service) QueryRequestsByTeacher(teacherID int) ([]SupervisionRequest, error) {
	return svc.repo.QuerySupervisionRequestsByTeacher(teacherID)
}
