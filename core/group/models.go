package group

import (
	"time"

	"github.com/Maad-exe/projectgo/core"
)

type Group struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	SupervisorID *int      `json:"supervisor_id"`
	MemberIDs    []int     `json:"member_ids"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (g *Group) HasMember(studentID int) bool {
	for _, id := range g.MemberIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

func (g *Group) HasSupervisor() bool {
	return g.SupervisorID != nil
}

// Supervision request lifecycle
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// SupervisionRequest is a group's ask for a teacher to supervise it.
// Accepting one sets the group's supervisor.
type SupervisionRequest struct {
	ID        int           `json:"id"`
	GroupID   int           `json:"group_id"`
	TeacherID int           `json:"teacher_id"`
	Message   string        `json:"message"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"` // UTC
	UpdatedAt time.Time     `json:"updated_at"` // UTC
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name      string `json:"name" validate:"required"`
	MemberIDs []int  `json:"member_ids" validate:"required,min=1,unique"`
}

func (ng *NewGroup) Validate() error {
	ng.Name = core.CleanString(ng.Name)
	return core.Validate.Struct(ng)
}

// NewSupervisionRequest asks a teacher to supervise a group.
type NewSupervisionRequest struct {
	GroupID   int    `json:"group_id" validate:"required"`
	TeacherID int    `json:"teacher_id" validate:"required"`
	Message   string `json:"message"`
}

func (nr *NewSupervisionRequest) Validate() error {
	nr.Message = core.CleanString(nr.Message)
	return core.Validate.Struct(nr)
}
