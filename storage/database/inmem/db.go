package inmemdb

import (
	"sync"

	"github.com/Maad-exe/projectgo/core/eval"
	"github.com/Maad-exe/projectgo/core/group"
	"github.com/Maad-exe/projectgo/core/user"
)

// DB is a mutex-guarded, map-backed store used in tests and local dev.
type DB struct {
	mutex sync.RWMutex
	txMu  sync.Mutex // serializes eval.Repository.WithTx blocks

	lastID int

	users               map[int]*user.User
	groups              map[int]*group.Group
	supervisionRequests map[int]*group.SupervisionRequest
	rubrics             map[int]*eval.Rubric
	events              map[int]*eval.EvaluationEvent
	panels              map[int]*eval.Panel
	groupEvaluations    map[int]*eval.GroupEvaluation
	studentEvaluations  map[int]*eval.StudentEvaluation
	scores              map[int]*eval.StudentCategoryScore
}

func Open() (*DB, error) {
	db := &DB{
		users:               make(map[int]*user.User),
		groups:              make(map[int]*group.Group),
		supervisionRequests: make(map[int]*group.SupervisionRequest),
		rubrics:             make(map[int]*eval.Rubric),
		events:              make(map[int]*eval.EvaluationEvent),
		panels:              make(map[int]*eval.Panel),
		groupEvaluations:    make(map[int]*eval.GroupEvaluation),
		studentEvaluations:  make(map[int]*eval.StudentEvaluation),
		scores:              make(map[int]*eval.StudentCategoryScore),
	}
	return db, nil
}

// nextID hands out primary keys across all tables; callers must hold the
// write lock.
func (db *DB) nextID() int {
	db.lastID++
	return db.lastID
}
