package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"retail-analytics/internal/errors"
	"retail-analytics/internal/observability"
)

const maxRunsLimit = 200

type APIHandlers struct {
	predictor *predictor
	logger    *slog.Logger
}

func NewAPIHandlers(analyzer Analyzer, ledger RunLedger, logger *slog.Logger, maxBytes int64) *APIHandlers {
	return &APIHandlers{
		predictor: &predictor{
			analyzer: analyzer,
			ledger:   ledger,
			logger:   logger,
			maxBytes: maxBytes,
		},
		logger: logger,
	}
}

// HandlePredict godoc
// @Summary      Analyze a sales export
// @Description  Uploads a CSV or XLSX transaction export and returns the full analytics report.
// @Tags         predict
// @Accept       multipart/form-data
// @Produce      json
// @Param        file         formData  file    true   "CSV or XLSX export"
// @Param        periodicity  formData  string  false  "monthly or yearly"  Enums(monthly, yearly)
// @Success      200  {object}  errors.SuccessResponse{data=models.Report}
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      413  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /api/predict [post]
func (h *APIHandlers) HandlePredict(w http.ResponseWriter, r *http.Request) {
	report, _, err := h.predictor.predict(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, report, map[string]string{
		"Cache-Control": "no-store",
	})
}

// HandleRuns godoc
// @Summary      List recent analysis runs
// @Tags         runs
// @Produce      json
// @Param        limit  query  int  false  "maximum runs to return"  default(50)
// @Success      200  {object}  errors.SuccessResponse{data=[]store.Run}
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /api/runs [get]
func (h *APIHandlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	if h.predictor.ledger == nil {
		errors.WriteError(w, h.logger, errors.NotFound("run history is disabled"), requestID)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRunsLimit {
			errors.WriteError(w, h.logger, errors.Validation("limit must be between 1 and 200"), requestID)
			return
		}
		limit = n
	}

	runs, err := h.predictor.ledger.ListRuns(r.Context(), limit)
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "failed to list runs"), requestID)
		return
	}

	errors.WriteSuccess(w, runs)
}

// HandleHealth godoc
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  errors.SuccessResponse
// @Router   /health [get]
func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

// HandleStats godoc
// @Summary  Analyzer counters
// @Tags     system
// @Produce  json
// @Success  200  {object}  errors.SuccessResponse
// @Router   /admin/stats [get]
func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.predictor.analyzer.Stats()
	stats["run_history"] = h.predictor.ledger != nil

	errors.WriteSuccess(w, stats)
}
