package models

import "time"

// ClassKind distinguishes group classes from one-on-one private lessons.
type ClassKind string

const (
	ClassKindGroup   ClassKind = "group"
	ClassKindPrivate ClassKind = "private"
)

// Seat capacities are fixed by class kind, not stored per occurrence.
const (
	GroupClassCapacity   = 4
	PrivateClassCapacity = 1
)

// Valid returns true when the kind is a supported value.
func (k ClassKind) Valid() bool {
	return k == ClassKindGroup || k == ClassKindPrivate
}

// Capacity returns the number of seats a class of this kind offers.
func (k ClassKind) Capacity() int {
	if k == ClassKindPrivate {
		return PrivateClassCapacity
	}
	return GroupClassCapacity
}

// Class is a recurring class template. Dated occurrences are generated
// from it between StartDate and EndDate on the configured weekday.
type Class struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"nombre" json:"name"`
	Kind         ClassKind  `db:"tipo" json:"kind"`
	Level        string     `db:"nivel" json:"level"`
	Weekday      int        `db:"dia_semana" json:"weekday"`
	StartTime    string     `db:"hora_inicio" json:"start_time"`
	EndTime      string     `db:"hora_fin" json:"end_time"`
	StartDate    time.Time  `db:"fecha_inicio" json:"start_date"`
	EndDate      time.Time  `db:"fecha_fin" json:"end_date"`
	InstructorID *string    `db:"profesor_id" json:"instructor_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Capacity returns the seat capacity derived from the class kind.
func (c *Class) Capacity() int {
	return c.Kind.Capacity()
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Kind      ClassKind
	Level     string
	Weekday   *int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
