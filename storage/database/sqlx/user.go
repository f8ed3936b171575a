package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Maad-exe/projectgo/core/user"
)

type userRow struct {
	ID            int         `db:"id"`
	Name          string      `db:"name"`
	Username      null.String `db:"username"`
	Email         string      `db:"email"`
	Kind          string      `db:"kind"`
	IsActive      bool        `db:"is_active"`
	PasswordHash  []byte      `db:"password_hash"`
	EnrollmentNo  null.String `db:"enrollment_no"`
	Program       null.String `db:"program"`
	Qualification null.String `db:"qualification"`
	Designation   null.String `db:"designation"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
	LastLogin     null.Time   `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email,
		Kind:         user.Kind(r.Kind),
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
	switch usr.Kind {
	case user.KindStudent:
		usr.Student = &user.StudentProfile{
			EnrollmentNo: r.EnrollmentNo.String,
			Program:      r.Program.String,
		}
	case user.KindTeacher:
		usr.Teacher = &user.TeacherProfile{
			Qualification: r.Qualification.String,
			Designation:   r.Designation.String,
		}
	}
	return usr
}

func rowFromUser(usr user.User) userRow {
	r := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        usr.Email,
		Kind:         string(usr.Kind),
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
	if usr.Student != nil {
		r.EnrollmentNo = null.StringFrom(usr.Student.EnrollmentNo)
		r.Program = null.StringFrom(usr.Student.Program)
	}
	if usr.Teacher != nil {
		r.Qualification = null.StringFrom(usr.Teacher.Qualification)
		r.Designation = null.StringFrom(usr.Teacher.Designation)
	}
	return r
}

const userColumns = `id, name, username, email, kind, is_active, password_hash,
	enrollment_no, program, qualification, designation, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapUserNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(username, email string, excludedUsers ...user.User) error {
	args := []interface{}{username, email}
	q := `SELECT username, email FROM user_account WHERE (username = ? OR email = ?)`
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		q, args, err = sqlx.In(q+` AND id NOT IN (?)`, username, email, ids)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
	}

	var rows []struct {
		Username null.String `db:"username"`
		Email    string      `db:"email"`
	}
	if err := repo.db.Select(&rows, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
		if r.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(usr user.User) (user.User, error) {
	r := rowFromUser(usr)
	q := `
		INSERT INTO user_account (name, username, email, kind, is_active, password_hash,
			enrollment_no, program, qualification, designation, created_at, updated_at)
		VALUES (:name, :username, :email, :kind, :is_active, :password_hash,
			:enrollment_no, :program, :qualification, :designation, :created_at, :updated_at)
		RETURNING id`
	stmt, err := repo.db.PrepareNamed(q)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	defer func() { _ = stmt.Close() }()
	if err = stmt.Get(&usr.ID, r); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryAllUsers() ([]user.User, error) {
	var rows []userRow
	if err := repo.db.Select(&rows, `SELECT `+userColumns+` FROM user_account`+orderBy(byID)); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return rowsToUsers(rows), nil
}

func rowsToUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

func (repo userRepository) GetUserByID(id int) (user.User, error) {
	var r userRow
	err := repo.db.Get(&r, `SELECT `+userColumns+` FROM user_account WHERE id = $1`, id)
	if err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user by ID")
	}
	return r.toUser(), nil
}

func (repo userRepository) GetUserByUsername(username string) (user.User, error) {
	var r userRow
	err := repo.db.Get(&r, `SELECT `+userColumns+` FROM user_account WHERE username = $1`, username)
	if err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user by username")
	}
	return r.toUser(), nil
}

func (repo userRepository) GetUserByEmail(email string) (user.User, error) {
	var r userRow
	err := repo.db.Get(&r, `SELECT `+userColumns+` FROM user_account WHERE email = $1`, email)
	if err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user by email")
	}
	return r.toUser(), nil
}

func (repo userRepository) GetUserByUsernameOrEmail(username string) (user.User, error) {
	var r userRow
	err := repo.db.Get(&r,
		`SELECT `+userColumns+` FROM user_account WHERE username = $1 OR email = $1`, username)
	if err != nil {
		return user.User{}, trapUserNoRowsErr(err, "finding user")
	}
	return r.toUser(), nil
}

func (repo userRepository) FilterUsers(filter user.QueryFilter) ([]user.User, error) {
	q := `SELECT ` + userColumns + ` FROM user_account WHERE 1=1`
	var args []interface{}

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q += ` AND (name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`
		args = append(args, val, val, val)
	}
	if filter.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.IsActive != nil {
		q += ` AND is_active = ?`
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		q += ` AND created_at >= ?`
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		q += ` AND created_at <= ?`
		args = append(args, filter.CreatedTo.UTC())
	}
	q += orderBy(byID)

	var rows []userRow
	if err := repo.db.Select(&rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return rowsToUsers(rows), nil
}

func (repo userRepository) UpdateUser(usr user.User, isActive *bool) (user.User, error) {
	q := `UPDATE user_account SET name = ?, username = ?, email = ?, updated_at = ?`
	args := []interface{}{usr.Name, null.NewString(usr.Username, usr.Username != ""), usr.Email, usr.UpdatedAt.UTC()}

	if usr.PasswordHash != nil {
		q += `, password_hash = ?`
		args = append(args, usr.PasswordHash)
	}
	if usr.Student != nil {
		q += `, enrollment_no = ?, program = ?`
		args = append(args, usr.Student.EnrollmentNo, usr.Student.Program)
	}
	if usr.Teacher != nil {
		q += `, qualification = ?, designation = ?`
		args = append(args, usr.Teacher.Qualification, usr.Teacher.Designation)
	}
	if isActive != nil {
		q += `, is_active = ?`
		args = append(args, *isActive)
	}
	q += ` WHERE id = ?`
	args = append(args, usr.ID)

	res, err := repo.db.Exec(repo.db.Rebind(q), args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(usr.ID)
}

func (repo userRepository) SetLastLogin(id int, t time.Time) error {
	res, err := repo.db.Exec(`UPDATE user_account SET last_login = $1 WHERE id = $2`, t.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM user_account WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
