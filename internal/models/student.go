package models

import "time"

// Student represents an academy student.
type Student struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"nombre" json:"full_name"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"telefono" json:"phone,omitempty"`
	Active    bool      `db:"activo" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
