package models

import "time"

// Payment is a monthly bookkeeping row for a student. Only school-billed
// enrollments generate expected payments.
type Payment struct {
	ID        string     `db:"id" json:"id"`
	StudentID string     `db:"alumno_id" json:"student_id"`
	ClassID   *string    `db:"clase_id" json:"class_id,omitempty"`
	Month     string     `db:"mes" json:"month"`
	Amount    float64    `db:"importe" json:"amount"`
	Paid      bool       `db:"pagado" json:"paid"`
	PaidAt    *time.Time `db:"fecha_pago" json:"paid_at,omitempty"`
	Notes     *string    `db:"notas" json:"notes,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches a payment with student info.
type PaymentDetail struct {
	Payment
	StudentName string `db:"student_name" json:"student_name"`
}

// PaymentFilter scopes payment listing queries.
type PaymentFilter struct {
	StudentID string
	Month     string
	Paid      *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
