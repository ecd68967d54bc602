package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"retail-analytics/internal/errors"
	"retail-analytics/internal/ingest"
	"retail-analytics/internal/models"
	"retail-analytics/internal/observability"
	"retail-analytics/internal/schema"
	"retail-analytics/internal/store"
)

// Analyzer is the part of services.Analyzer the handlers use.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, r io.Reader, filename string, p models.Periodicity) (*models.Report, error)
	Stats() map[string]any
}

// RunLedger records finished runs. A nil ledger disables run history.
type RunLedger interface {
	SaveRun(ctx context.Context, run store.Run) error
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
}

type upload struct {
	file        multipart.File
	fileName    string
	periodicity models.Periodicity
}

// predictor holds the upload flow shared by the JSON and SSE endpoints.
type predictor struct {
	analyzer Analyzer
	ledger   RunLedger
	logger   *slog.Logger
	maxBytes int64
}

// predict parses the multipart form, runs the analysis and records the run.
func (p *predictor) predict(r *http.Request) (*models.Report, upload, error) {
	up, err := p.parse(r)
	if err != nil {
		return nil, up, err
	}
	defer up.file.Close()

	report, err := p.analyze(r.Context(), up)
	return report, up, err
}

// parse reads the form fields. It must run before anything is written to
// the response, since the body may not be readable afterwards.
func (p *predictor) parse(r *http.Request) (upload, error) {
	var up upload

	if err := r.ParseMultipartForm(p.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return up, errors.PayloadTooLarge(p.maxBytes)
		}
		return up, errors.BadRequestWrap(err, "request must be multipart/form-data with a file field")
	}

	periodicity, err := models.ParsePeriodicity(r.FormValue("periodicity"))
	if err != nil {
		return up, errors.ValidationWrap(err, err.Error())
	}
	up.periodicity = periodicity

	file, header, err := r.FormFile("file")
	if err != nil {
		return up, errors.BadRequestWrap(err, "file field is required")
	}
	up.file = file
	up.fileName = header.Filename
	return up, nil
}

func (p *predictor) analyze(ctx context.Context, up upload) (*models.Report, error) {
	start := time.Now()
	report, err := p.analyzer.AnalyzeFile(ctx, up.file, up.fileName, up.periodicity)
	if err != nil {
		appErr := mapError(err)
		p.record(ctx, up, nil, appErr, time.Since(start))
		return nil, appErr
	}

	report.RunID = uuid.NewString()
	p.record(ctx, up, report, nil, time.Since(start))
	return report, nil
}

func (p *predictor) record(ctx context.Context, up upload, report *models.Report, failure *errors.AppError, took time.Duration) {
	if p.ledger == nil {
		return
	}

	run := store.Run{
		ID:          uuid.NewString(),
		FileName:    up.fileName,
		Periodicity: string(up.periodicity),
		Status:      store.StatusSucceeded,
		DurationMs:  took.Milliseconds(),
		CreatedAt:   time.Now(),
	}
	if report != nil {
		run.ID = report.RunID
		run.Rows = report.DetailedInsights.DataQuality.Rows
		run.Customers = report.KPIs.UniqueCustomers
		run.Products = report.KPIs.UniqueProducts
	}
	if failure != nil {
		run.Status = store.StatusFailed
		run.Error = failure.Message
		if failure.Details != "" {
			run.Error = failure.Details
		}
	}

	if err := p.ledger.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		observability.LoggerFrom(ctx, p.logger).Warn("failed to record run",
			"run_id", run.ID,
			"error", err,
		)
	}
}

// mapError converts domain errors into API errors.
func mapError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var schemaErr *schema.SchemaError
	if stderrors.As(err, &schemaErr) {
		return errors.Schema(err, map[string]any{
			"missing":  schemaErr.Missing,
			"tried":    schemaErr.Tried,
			"received": schemaErr.Received,
		})
	}

	var parseErr *ingest.ParseError
	if stderrors.As(err, &parseErr) {
		return errors.Parse(err)
	}

	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.PayloadTooLarge(tooLarge.Limit)
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Cancelled(err)
	}

	return errors.InternalWrap(err, "analysis failed")
}
