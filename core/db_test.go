package core

import (
	"database/sql"
	"testing"
)

// both *sql.DB and *sql.Tx must satisfy the executor contract
var (
	_ DBExecutor = (*sql.DB)(nil)
	_ DBExecutor = (*sql.Tx)(nil)
)

func TestDBOrderingString(t *testing.T) {
	tests := []struct {
		name string
		ord  DBOrdering
		want string
	}{
		{name: "ascending", ord: DBOrdering{Field: "id", Ascending: true}, want: "id ASC"},
		{name: "descending", ord: DBOrdering{Field: "created_at"}, want: "created_at DESC"},
		{name: "qualified field", ord: DBOrdering{Field: "se.id", Ascending: true}, want: "se.id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ord.String(); got != tt.want {
				t.Errorf("String() = %q; want %q", got, tt.want)
			}
		})
	}
}
