package models

import "time"

// ReleaseReason records why a student's seat was freed.
type ReleaseReason string

const (
	ReleaseReasonJustified   ReleaseReason = "justified_absence"
	ReleaseReasonUnjustified ReleaseReason = "unjustified_absence"
	ReleaseReasonInjury      ReleaseReason = "injury"
)

// Valid returns true when the reason is a supported value.
func (r ReleaseReason) Valid() bool {
	switch r {
	case ReleaseReasonJustified, ReleaseReasonUnjustified, ReleaseReasonInjury:
		return true
	default:
		return false
	}
}

// GrantsMakeup reports whether the reason entitles the student to a
// makeup credit. Only justified absences do.
func (r ReleaseReason) GrantsMakeup() bool {
	return r == ReleaseReasonJustified
}

// ReleaseStatus represents the lifecycle of a slot release.
type ReleaseStatus string

const (
	ReleaseStatusActive   ReleaseStatus = "active"
	ReleaseStatusCanceled ReleaseStatus = "canceled"
	ReleaseStatusExpired  ReleaseStatus = "expired"
)

// SlotRelease frees a student's seat in a class for a date window.
// At most one active release may exist per (student, class, window start).
type SlotRelease struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"alumno_id" json:"student_id"`
	ClassID       string        `db:"clase_id" json:"class_id"`
	StartDate     time.Time     `db:"fecha_inicio" json:"start_date"`
	EndDate       time.Time     `db:"fecha_fin" json:"end_date"`
	Reason        ReleaseReason `db:"motivo" json:"reason"`
	RightToMakeup bool          `db:"derecho_recuperacion" json:"right_to_makeup"`
	Status        ReleaseStatus `db:"estado" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	CanceledAt    *time.Time    `db:"canceled_at" json:"canceled_at,omitempty"`
}

// Covers reports whether the release window contains the given date.
func (r *SlotRelease) Covers(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(r.StartDate.Truncate(24*time.Hour)) && !d.After(r.EndDate.Truncate(24*time.Hour))
}

// SlotReleaseFilter scopes release listing queries.
type SlotReleaseFilter struct {
	StudentID string
	ClassID   string
	Status    ReleaseStatus
	Date      *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
