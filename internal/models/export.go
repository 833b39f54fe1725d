package models

import "time"

// ExportType identifies the dataset an export job renders.
type ExportType string

const (
	ExportTypeStudents   ExportType = "students"
	ExportTypeAttendance ExportType = "attendance"
	ExportTypePayments   ExportType = "payments"
	ExportTypeMakeups    ExportType = "makeups"
)

// ExportFormat identifies the rendered file format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus is the lifecycle state of an export job.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "queued"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusFinished   ExportStatus = "finished"
	ExportStatusFailed     ExportStatus = "failed"
)

// ExportParams scopes the dataset of an export job.
type ExportParams struct {
	ClassID  *string      `json:"class_id,omitempty"`
	DateFrom *time.Time   `json:"date_from,omitempty"`
	DateTo   *time.Time   `json:"date_to,omitempty"`
	Month    string       `json:"month,omitempty"`
	Format   ExportFormat `json:"format"`
}

// ExportJob tracks one queued export through rendering and download.
type ExportJob struct {
	ID           string       `json:"id"`
	Type         ExportType   `json:"type"`
	Params       ExportParams `json:"params"`
	Status       ExportStatus `json:"status"`
	Progress     int          `json:"progress"`
	ResultURL    *string      `json:"result_url,omitempty"`
	ErrorMessage *string      `json:"error,omitempty"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}
