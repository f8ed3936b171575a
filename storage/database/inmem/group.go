package inmemdb

import (
	"github.com/Maad-exe/projectgo/core/group"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(grp group.Group) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp.ID = repo.db.nextID()
	repo.db.groups[grp.ID] = &grp
	return grp, nil
}

func (repo *groupRepository) GetGroupByID(id int) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return *grp, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) QueryAllGroups() ([]group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make([]group.Group, 0, len(repo.db.groups))
	for _, grp := range repo.db.groups {
		groups = append(groups, *grp)
	}
	return groups, nil
}

func (repo *groupRepository) UpdateGroup(grp group.Group) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.groups[grp.ID]; !ok {
		return group.Group{}, group.ErrNotFound
	}
	repo.db.groups[grp.ID] = &grp
	return grp, nil
}

func (repo *groupRepository) DeleteGroupsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.groups, id)
	}
	return nil
}

func (repo *groupRepository) CreateSupervisionRequest(req group.SupervisionRequest) (group.SupervisionRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	req.ID = repo.db.nextID()
	repo.db.supervisionRequests[req.ID] = &req
	return req, nil
}

func (repo *groupRepository) GetSupervisionRequestByID(id int) (group.SupervisionRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if req, ok := repo.db.supervisionRequests[id]; ok {
		return *req, nil
	}
	return group.SupervisionRequest{}, group.ErrRequestNotFound
}

func (repo *groupRepository) QuerySupervisionRequestsByTeacher(teacherID int) ([]group.SupervisionRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reqs := make([]group.SupervisionRequest, 0)
	for _, req := range repo.db.supervisionRequests {
		if req.TeacherID == teacherID {
			reqs = append(reqs, *req)
		}
	}
	return reqs, nil
}

func (repo *groupRepository) UpdateSupervisionRequest(req group.SupervisionRequest) (group.SupervisionRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.supervisionRequests[req.ID]; !ok {
		return group.SupervisionRequest{}, group.ErrRequestNotFound
	}
	repo.db.supervisionRequests[req.ID] = &req
	return req, nil
}
