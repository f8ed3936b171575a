package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Maad-exe/projectgo/core"
)

// Kind discriminates the closed set of account variants. Kind-specific
// data lives in the matching profile struct; exactly one of Student /
// Teacher is set for those kinds, admins carry none.
type Kind string

const (
	KindStudent Kind = "student"
	KindTeacher Kind = "teacher"
	KindAdmin   Kind = "admin"
)

var AllKinds = []Kind{KindStudent, KindTeacher, KindAdmin}

func (k Kind) Valid() bool {
	switch k {
	case KindStudent, KindTeacher, KindAdmin:
		return true
	}
	return false
}

type StudentProfile struct {
	EnrollmentNo string `json:"enrollment_no"`
	Program      string `json:"program"`
}

type TeacherProfile struct {
	Qualification string `json:"qualification"`
	Designation   string `json:"designation"`
}

type User struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	IsActive     bool            `json:"is_active"`
	Kind         Kind            `json:"kind"`
	Student      *StudentProfile `json:"student,omitempty"`
	Teacher      *TeacherProfile `json:"teacher,omitempty"`
	PasswordHash []byte          `json:"-"`
	CreatedAt    time.Time       `json:"created_at"` // UTC
	UpdatedAt    time.Time       `json:"updated_at"` // UTC
	LastLogin    time.Time       `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Kind == KindAdmin }
func (u *User) IsTeacher() bool { return u.Kind == KindTeacher }
func (u *User) IsStudent() bool { return u.Kind == KindStudent }

// DisplayName resolves the name shown in compiled feedback and API
// projections; teachers get their designation prefixed.
func (u *User) DisplayName() string {
	switch u.Kind {
	case KindTeacher:
		if u.Teacher != nil && u.Teacher.Designation != "" {
			return u.Teacher.Designation + " " + u.Name
		}
		return u.Name
	default:
		return u.Name
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string          `json:"name" validate:"required"`
	Username        string          `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string          `json:"email" validate:"required,email"`
	Password        string          `json:"password" validate:"required"`
	PasswordConfirm string          `json:"password_confirm" validate:"required,eqfield=Password"`
	Kind            Kind            `json:"kind" validate:"required,userkind"`
	Student         *StudentProfile `json:"student,omitempty"`
	Teacher         *TeacherProfile `json:"teacher,omitempty"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Kind is immutable after creation; profile data of the matching kind may change.
type UpdateUser struct {
	Name            string          `json:"name"`
	Username        string          `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string          `json:"email" validate:"omitempty,email"`
	IsActive        *bool           `json:"is_active"`
	Password        string          `json:"password" validate:"omitempty"`
	PasswordConfirm string          `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	Student         *StudentProfile `json:"student,omitempty"`
	Teacher         *TeacherProfile `json:"teacher,omitempty"`
}

func (uu *UpdateUser) Validate(origUsr User, svc *Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(uu.Username, uu.Email, origUsr)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Kind        Kind      `query:"kind"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Kind == "" && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
