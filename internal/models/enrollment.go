package models

import "time"

// EnrollmentOrigin is the billing provenance tag of an enrollment:
// school-billed enrollments generate expected payments, internal ones do not.
type EnrollmentOrigin string

const (
	OriginSchool   EnrollmentOrigin = "escuela"
	OriginInternal EnrollmentOrigin = "interna"
)

// Valid returns true when the origin is a supported value.
func (o EnrollmentOrigin) Valid() bool {
	return o == OriginSchool || o == OriginInternal
}

// AssignmentType distinguishes permanent enrollments (every future
// occurrence) from temporary ones (a single occurrence).
type AssignmentType string

const (
	AssignmentPermanent AssignmentType = "permanent"
	AssignmentTemporary AssignmentType = "temporary"
)

// Enrollment binds a student to a recurring class. Temporary enrollments
// additionally carry the single occurrence they apply to; MakeupFill marks
// a temporary enrollment placed to consume a makeup credit.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"alumno_id" json:"student_id"`
	ClassID        string           `db:"clase_id" json:"class_id"`
	Origin         EnrollmentOrigin `db:"origen" json:"origin"`
	AssignmentType AssignmentType   `db:"tipo_asignacion" json:"assignment_type"`
	OccurrenceID   *string          `db:"evento_id" json:"occurrence_id,omitempty"`
	MakeupFill     bool             `db:"es_recuperacion" json:"makeup_fill"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// AppliesTo reports whether this enrollment occupies a seat on the given
// occurrence. Permanent enrollments (including legacy rows with an empty
// assignment type) apply to every occurrence of their class; temporary
// ones only to the occurrence they were created for.
func (e *Enrollment) AppliesTo(occurrenceID string) bool {
	if e.AssignmentType != AssignmentTemporary {
		return true
	}
	return e.OccurrenceID != nil && *e.OccurrenceID == occurrenceID
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID      string
	ClassID        string
	OccurrenceID   string
	Origin         EnrollmentOrigin
	AssignmentType AssignmentType
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
