package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/molinacode/padel-crm-api/internal/models"
	"github.com/molinacode/padel-crm-api/pkg/export"
	"github.com/molinacode/padel-crm-api/pkg/storage"
)

type exportStudentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type exportAttendanceLister interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type exportPaymentLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

type exportCreditLister interface {
	List(ctx context.Context, filter models.MakeupCreditFilter) ([]models.MakeupCreditDetail, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService builds datasets and persists rendered files.
type ExportService struct {
	students    exportStudentLister
	attendances exportAttendanceLister
	payments    exportPaymentLister
	credits     exportCreditLister
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(students exportStudentLister, attendances exportAttendanceLister, payments exportPaymentLister, credits exportCreditLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		students:    students,
		attendances: attendances,
		payments:    payments,
		credits:     credits,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.ClassID != nil && *job.Params.ClassID != "" {
		scope = sanitizeFilename(*job.Params.ClassID)
	} else if job.Params.Month != "" {
		scope = sanitizeFilename(job.Params.Month)
	}
	return fmt.Sprintf("%s_%s_%s.%s", string(job.Type), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeStudents:
		return s.buildStudentDataset(ctx)
	case models.ExportTypeAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	case models.ExportTypePayments:
		return s.buildPaymentDataset(ctx, job.Params)
	case models.ExportTypeMakeups:
		return s.buildMakeupDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildStudentDataset(ctx context.Context) (export.Dataset, string, error) {
	rows, _, err := s.students.List(ctx, models.StudentFilter{PageSize: 100, Page: 1})
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		active := "no"
		if row.Active {
			active = "yes"
		}
		dataRows = append(dataRows, map[string]string{
			"Name":   row.FullName,
			"Email":  derefString(row.Email),
			"Phone":  derefString(row.Phone),
			"Active": active,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Name", "Email", "Phone", "Active"},
		Rows:    dataRows,
	}
	return dataset, "Student Roster", nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ExportParams) (export.Dataset, string, error) {
	filter := models.AttendanceFilter{
		ClassID:  derefString(params.ClassID),
		DateFrom: params.DateFrom,
		DateTo:   params.DateTo,
		PageSize: 200,
		Page:     1,
	}
	rows, _, err := s.attendances.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Date":    row.Date.Format("2006-01-02"),
			"Student": row.StudentName,
			"Class":   derefString(row.ClassName),
			"Status":  string(row.Status),
			"Notes":   derefString(row.Notes),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Student", "Class", "Status", "Notes"},
		Rows:    dataRows,
	}
	return dataset, "Attendance Log", nil
}

func (s *ExportService) buildPaymentDataset(ctx context.Context, params models.ExportParams) (export.Dataset, string, error) {
	rows, _, err := s.payments.List(ctx, models.PaymentFilter{Month: params.Month, PageSize: 100, Page: 1})
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		paid := "pending"
		if row.Paid {
			paid = "paid"
		}
		dataRows = append(dataRows, map[string]string{
			"Month":   row.Month,
			"Student": row.StudentName,
			"Amount":  fmt.Sprintf("%.2f", row.Amount),
			"Status":  paid,
			"Paid At": formatExportTime(row.PaidAt),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Month", "Student", "Amount", "Status", "Paid At"},
		Rows:    dataRows,
	}
	title := "Payment Ledger"
	if params.Month != "" {
		title = fmt.Sprintf("Payment Ledger %s", params.Month)
	}
	return dataset, title, nil
}

// buildMakeupDataset covers pending credits only. Fulfilled and canceled
// credits are terminal and stay out of the operator worksheet.
func (s *ExportService) buildMakeupDataset(ctx context.Context, params models.ExportParams) (export.Dataset, string, error) {
	filter := models.MakeupCreditFilter{
		ClassID:  derefString(params.ClassID),
		Status:   models.CreditStatusPending,
		PageSize: 200,
		Page:     1,
	}
	rows, _, err := s.credits.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Missed":  row.MissedDate.Format("2006-01-02"),
			"Student": row.StudentName,
			"Class":   row.ClassName,
			"Type":    string(row.Type),
			"Notes":   derefString(row.Notes),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Missed", "Student", "Class", "Type", "Notes"},
		Rows:    dataRows,
	}
	return dataset, "Pending Makeup Credits", nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
