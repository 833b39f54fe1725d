package models

import "time"

// AttendanceStatus represents the status for attendance marks.
type AttendanceStatus string

const (
	AttendanceStatusAttended    AttendanceStatus = "asistio"
	AttendanceStatusJustified   AttendanceStatus = "falta_justificada"
	AttendanceStatusUnjustified AttendanceStatus = "falta_injustificada"
	AttendanceStatusInjury      AttendanceStatus = "lesion"
	AttendanceStatusMakeup      AttendanceStatus = "recuperacion"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusAttended, AttendanceStatusJustified, AttendanceStatusUnjustified,
		AttendanceStatusInjury, AttendanceStatusMakeup:
		return true
	default:
		return false
	}
}

// ReleaseReason maps an absence status to the slot release reason it
// opens. The second return is false for statuses that free no seat.
func (s AttendanceStatus) ReleaseReason() (ReleaseReason, bool) {
	switch s {
	case AttendanceStatusJustified:
		return ReleaseReasonJustified, true
	case AttendanceStatusUnjustified:
		return ReleaseReasonUnjustified, true
	case AttendanceStatusInjury:
		return ReleaseReasonInjury, true
	default:
		return "", false
	}
}

// Attendance is a single attendance mark for a (student, class, date).
type Attendance struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"alumno_id" json:"student_id"`
	ClassID      string           `db:"clase_id" json:"class_id"`
	OccurrenceID *string          `db:"evento_id" json:"occurrence_id,omitempty"`
	Date         time.Time        `db:"fecha" json:"date"`
	Status       AttendanceStatus `db:"estado" json:"status"`
	Notes        *string          `db:"notas" json:"notes,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the attendance mark with student metadata.
type AttendanceRecord struct {
	Attendance
	StudentName string  `db:"student_name" json:"student_name"`
	ClassName   *string `db:"class_name" json:"class_name,omitempty"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
