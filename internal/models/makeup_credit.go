package models

import "time"

// CreditStatus represents the lifecycle of a makeup credit.
// Both fulfilled and canceled are terminal.
type CreditStatus string

const (
	CreditStatusPending   CreditStatus = "pending"
	CreditStatusFulfilled CreditStatus = "fulfilled"
	CreditStatusCanceled  CreditStatus = "canceled"
)

// CreditType distinguishes credits created automatically from a justified
// absence from credits an operator granted by hand.
type CreditType string

const (
	CreditTypeAuto   CreditType = "auto"
	CreditTypeManual CreditType = "manual"
)

// MakeupCredit is a pending right to attend a substitute occurrence after
// a justified absence. SourceReleaseID back-references the slot release
// the credit was derived from; manual credits have none.
type MakeupCredit struct {
	ID                      string       `db:"id" json:"id"`
	StudentID               string       `db:"alumno_id" json:"student_id"`
	ClassID                 string       `db:"clase_id" json:"class_id"`
	MissedDate              time.Time    `db:"fecha_falta" json:"missed_date"`
	SourceReleaseID         *string      `db:"liberacion_id" json:"source_release_id,omitempty"`
	Type                    CreditType   `db:"tipo" json:"type"`
	Status                  CreditStatus `db:"estado" json:"status"`
	FulfilledDate           *time.Time   `db:"fecha_recuperacion" json:"fulfilled_date,omitempty"`
	FulfillmentOccurrenceID *string      `db:"evento_recuperacion_id" json:"fulfillment_occurrence_id,omitempty"`
	Notes                   *string      `db:"notas" json:"notes,omitempty"`
	CancelReason            *string      `db:"motivo_cancelacion" json:"cancel_reason,omitempty"`
	CreatedAt               time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time    `db:"updated_at" json:"updated_at"`
}

// MakeupCreditDetail enriches a credit with student and class info.
type MakeupCreditDetail struct {
	MakeupCredit
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// MakeupCreditFilter scopes credit listing queries.
type MakeupCreditFilter struct {
	StudentID string
	ClassID   string
	Status    CreditStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
