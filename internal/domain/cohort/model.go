package cohort

import (
	"time"

	"github.com/google/uuid"
)

// Definition maps to the cohort_query table. Each definition is a stored SQL
// query that yields the ids of patients matching a clinical trigger; the
// definition name doubles as the trigger name.
type Definition struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Query       string    `db:"query" json:"query"`
	Retired     bool      `db:"retired" json:"retired"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
