package models

import "time"

// OccurrenceStatus represents the lifecycle of a dated class session.
type OccurrenceStatus string

const (
	OccurrenceStatusScheduled OccurrenceStatus = "scheduled"
	OccurrenceStatusCanceled  OccurrenceStatus = "canceled"
	OccurrenceStatusDeleted   OccurrenceStatus = "deleted"
)

// Valid returns true when the status is a supported value.
func (s OccurrenceStatus) Valid() bool {
	switch s {
	case OccurrenceStatusScheduled, OccurrenceStatusCanceled, OccurrenceStatusDeleted:
		return true
	default:
		return false
	}
}

// Occurrence is one concrete dated session of a recurring class.
// Rescheduled marks sessions moved individually by an operator; those
// survive bulk regeneration when the parent class is edited.
type Occurrence struct {
	ID                string           `db:"id" json:"id"`
	ClassID           string           `db:"clase_id" json:"class_id"`
	Date              time.Time        `db:"fecha" json:"date"`
	StartTime         string           `db:"hora_inicio" json:"start_time"`
	EndTime           string           `db:"hora_fin" json:"end_time"`
	Status            OccurrenceStatus `db:"estado" json:"status"`
	Rescheduled       bool             `db:"modificado_individualmente" json:"rescheduled"`
	ExcludeFromRental bool             `db:"excluir_alquiler" json:"exclude_from_rental"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// OccurrenceDetail enriches an occurrence with its parent class info.
type OccurrenceDetail struct {
	Occurrence
	ClassName string    `db:"class_name" json:"class_name"`
	ClassKind ClassKind `db:"class_kind" json:"class_kind"`
}

// OccurrenceFilter scopes occurrence listing queries.
type OccurrenceFilter struct {
	ClassID   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Status    OccurrenceStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
