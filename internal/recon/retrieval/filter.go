// Package retrieval implements the two retrieval channels of the engine:
// trigram similarity and vector similarity over an entity's lookup view.
package retrieval

import (
	"fmt"

	"github.com/lib/pq"
)

// Filter is a resolved attribute constraint applied to a retrieval statement.
// The column comes from the strategy's allowed-filter table, never from the
// caller.
type Filter struct {
	Column string
	Value  interface{}
}

// clause renders the filter as a WHERE predicate using placeholder idx.
func (f Filter) clause(idx int) string {
	switch f.Value.(type) {
	case []string, []interface{}:
		return fmt.Sprintf("%s = ANY($%d)", f.Column, idx)
	default:
		return fmt.Sprintf("%s = $%d", f.Column, idx)
	}
}

// arg adapts the filter value for the driver.
func (f Filter) arg() interface{} {
	switch v := f.Value.(type) {
	case []string:
		return pq.Array(v)
	case []interface{}:
		return pq.Array(v)
	default:
		return f.Value
	}
}
