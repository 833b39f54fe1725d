package models

import "time"

// SeatOccupant describes one occupied seat of an occurrence and the
// provenance of the enrollment holding it.
type SeatOccupant struct {
	EnrollmentID string         `json:"enrollment_id"`
	StudentID    string         `json:"student_id"`
	StudentName  string         `json:"student_name,omitempty"`
	Assignment   AssignmentType `json:"assignment_type"`
	MakeupFill   bool           `json:"makeup_fill"`
}

// OccurrenceAvailability is the seat accounting result for one occurrence.
// FreeSeatsOffered never exceeds FreeSeatsReal regardless of any hint the
// caller supplied.
type OccurrenceAvailability struct {
	OccurrenceID     string         `json:"occurrence_id"`
	ClassID          string         `json:"class_id"`
	Date             time.Time      `json:"date"`
	Capacity         int            `json:"capacity"`
	OccupiedSeats    int            `json:"occupied_seats"`
	FreeSeatsReal    int            `json:"free_seats_real"`
	FreeSeatsOffered int            `json:"free_seats_offered"`
	Seats            []SeatOccupant `json:"seats"`
}
