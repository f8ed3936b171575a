package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Maad-exe/projectgo/core"
	"github.com/Maad-exe/projectgo/core/group"
)

type groupRow struct {
	ID           int       `db:"id"`
	Name         string    `db:"name"`
	SupervisorID null.Int  `db:"supervisor_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r groupRow) toGroup(memberIDs []int) group.Group {
	grp := group.Group{
		ID:        r.ID,
		Name:      r.Name,
		MemberIDs: memberIDs,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.SupervisorID.Valid {
		id := int(r.SupervisorID.Int64)
		grp.SupervisorID = &id
	}
	return grp
}

func supervisorVal(grp group.Group) null.Int {
	if grp.SupervisorID == nil {
		return null.Int{}
	}
	return null.IntFrom(int64(*grp.SupervisorID))
}

type requestRow struct {
	ID        int       `db:"id"`
	GroupID   int       `db:"group_id"`
	TeacherID int       `db:"teacher_id"`
	Message   string    `db:"message"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r requestRow) toRequest() group.SupervisionRequest {
	return group.SupervisionRequest{
		ID:        r.ID,
		GroupID:   r.GroupID,
		TeacherID: r.TeacherID,
		Message:   r.Message,
		Status:    group.RequestStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *sqlx.DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo groupRepository) memberIDs(groupID int) ([]int, error) {
	ids := make([]int, 0)
	err := repo.db.Select(&ids,
		`SELECT student_id FROM group_member WHERE group_id = $1`+orderBy(core.DBOrdering{Field: "student_id", Ascending: true}), groupID)
	if err != nil {
		return nil, errors.Wrap(err, "querying group members")
	}
	return ids, nil
}

func (repo groupRepository) saveMembers(tx *sqlx.Tx, groupID int, memberIDs []int) error {
	if _, err := tx.Exec(`DELETE FROM group_member WHERE group_id = $1`, groupID); err != nil {
		return errors.Wrap(err, "clearing group members")
	}
	for _, id := range memberIDs {
		_, err := tx.Exec(
			`INSERT INTO group_member (group_id, student_id) VALUES ($1, $2)`, groupID, id)
		if err != nil {
			return errors.Wrap(err, "inserting group member")
		}
	}
	return nil
}

func (repo groupRepository) CreateGroup(grp group.Group) (group.Group, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.Get(&grp.ID,
		`INSERT INTO student_group (name, supervisor_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		grp.Name, supervisorVal(grp), grp.CreatedAt.UTC(), grp.UpdatedAt.UTC())
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	if err = repo.saveMembers(tx, grp.ID, grp.MemberIDs); err != nil {
		return group.Group{}, err
	}
	if err = tx.Commit(); err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return grp, nil
}

func (repo groupRepository) GetGroupByID(id int) (group.Group, error) {
	var r groupRow
	err := repo.db.Get(&r, `SELECT * FROM student_group WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return group.Group{}, group.ErrNotFound
		}
		return group.Group{}, errors.Wrap(err, "finding group")
	}
	members, err := repo.memberIDs(id)
	if err != nil {
		return group.Group{}, err
	}
	return r.toGroup(members), nil
}

func (repo groupRepository) QueryAllGroups() ([]group.Group, error) {
	var rows []groupRow
	if err := repo.db.Select(&rows, `SELECT * FROM student_group`+orderBy(byID)); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		members, err := repo.memberIDs(r.ID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, r.toGroup(members))
	}
	return groups, nil
}

func (repo groupRepository) UpdateGroup(grp group.Group) (group.Group, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return group.Group{}, errors.Wrap(err, "updating group")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`UPDATE student_group SET name = $1, supervisor_id = $2, updated_at = $3 WHERE id = $4`,
		grp.Name, supervisorVal(grp), grp.UpdatedAt.UTC(), grp.ID)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "updating group")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return group.Group{}, group.ErrNotFound
	}
	if err = repo.saveMembers(tx, grp.ID, grp.MemberIDs); err != nil {
		return group.Group{}, err
	}
	if err = tx.Commit(); err != nil {
		return group.Group{}, errors.Wrap(err, "updating group")
	}
	return grp, nil
}

func (repo groupRepository) DeleteGroupsByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM student_group WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting groups")
	}
	if _, err = repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting groups")
	}
	return nil
}

func (repo groupRepository) CreateSupervisionRequest(req group.SupervisionRequest) (group.SupervisionRequest, error) {
	err := repo.db.Get(&req.ID,
		`INSERT INTO supervision_request (group_id, teacher_id, message, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		req.GroupID, req.TeacherID, req.Message, string(req.Status), req.CreatedAt.UTC(), req.UpdatedAt.UTC())
	if err != nil {
		return group.SupervisionRequest{}, errors.Wrap(err, "inserting supervision request")
	}
	return req, nil
}

func (repo groupRepository) GetSupervisionRequestByID(id int) (group.SupervisionRequest, error) {
	var r requestRow
	err := repo.db.Get(&r, `SELECT * FROM supervision_request WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return group.SupervisionRequest{}, group.ErrRequestNotFound
		}
		return group.SupervisionRequest{}, errors.Wrap(err, "finding supervision request")
	}
	return r.toRequest(), nil
}

func (repo groupRepository) QuerySupervisionRequestsByTeacher(teacherID int) ([]group.SupervisionRequest, error) {
	var rows []requestRow
	err := repo.db.Select(&rows,
		`SELECT * FROM supervision_request WHERE teacher_id = $1`+orderBy(byID), teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying supervision requests")
	}
	reqs := make([]group.SupervisionRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.toRequest())
	}
	return reqs, nil
}

func (repo groupRepository) UpdateSupervisionRequest(req group.SupervisionRequest) (group.SupervisionRequest, error) {
	res, err := repo.db.Exec(
		`UPDATE supervision_request SET status = $1, updated_at = $2 WHERE id = $3`,
		string(req.Status), req.UpdatedAt.UTC(), req.ID)
	if err != nil {
		return group.SupervisionRequest{}, errors.Wrap(err, "updating supervision request")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return group.SupervisionRequest{}, group.ErrRequestNotFound
	}
	return req, nil
}
