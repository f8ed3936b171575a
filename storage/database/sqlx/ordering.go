package sqlxrepos

import (
	"strings"

	"github.com/Maad-exe/projectgo/core"
)

// byID is the default ordering for list queries.
var byID = core.DBOrdering{Field: "id", Ascending: true}

// orderBy renders an ORDER BY clause from the given orderings.
func orderBy(orderings ...core.DBOrdering) string {
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		clauses = append(clauses, ord.String())
	}
	return ` ORDER BY ` + strings.Join(clauses, ", ")
}
