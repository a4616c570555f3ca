package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/directory-submitter/internal/repository"
)

const (
	SummarySheet = "Summary"
	ResultsSheet = "Results"
)

// Service produces XLSX bytes for a job's submission results.
type Service struct {
	jobsRepo    repository.JobRepository
	resultsRepo repository.ResultRepository
	logger      *slog.Logger
}

func NewService(jobs repository.JobRepository, results repository.ResultRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: jobs, resultsRepo: results, logger: logger}
}

// ExportJobResultsXLSX returns a workbook with the job's counters on the
// Summary sheet and one row per directory, by name, on the Results sheet.
func (s *Service) ExportJobResultsXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	results, err := s.resultsRepo.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	// the default sheet becomes the summary
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ResultsSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Job ID", job.ID.String()},
		{"Package", string(job.Package)},
		{"Status", string(job.Status)},
		{"Total Directories", job.TotalDirectories},
		{"Completed", job.CompletedDirectories},
		{"Successful", job.SuccessfulSubmissions},
		{"Failed", job.FailedSubmissions},
		{"Needs Review", job.ReviewSubmissions},
		{"Created", job.CreatedAt.UTC().Format(time.RFC3339)},
		{"Updated", job.UpdatedAt.UTC().Format(time.RFC3339)},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(SummarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 20)
	_ = f.SetColWidth(SummarySheet, "B", "B", 40)

	headers := []string{
		"Directory",
		"Directory URL",
		"Status",
		"Submission URL",
		"Error",
		"Notes",
		"Evidence",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ResultsSheet, cell, h)
	}

	row := 2
	for _, r := range results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(ResultsSheet, cell, v)
		}
		write(1, r.DirectoryName)
		write(2, r.DirectoryURL)
		write(3, string(r.Status))
		write(4, deref(r.SubmissionURL))
		write(5, truncate(deref(r.ErrorMessage), 200))
		write(6, truncate(deref(r.Notes), 200))
		write(7, deref(r.EvidenceRef))
		row++
	}

	_ = f.SetColWidth(ResultsSheet, "A", "A", 28) // directory
	_ = f.SetColWidth(ResultsSheet, "B", "B", 40) // url
	_ = f.SetColWidth(ResultsSheet, "C", "C", 14) // status
	_ = f.SetColWidth(ResultsSheet, "D", "D", 40) // submission url
	_ = f.SetColWidth(ResultsSheet, "E", "F", 48) // error, notes
	_ = f.SetColWidth(ResultsSheet, "G", "G", 60) // evidence path

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", jobID.String(),
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
