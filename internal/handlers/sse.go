package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"retail-analytics/internal/errors"
	"retail-analytics/internal/observability"
	"retail-analytics/internal/ui/templates"
)

type SSEHandlers struct {
	predictor *predictor
	logger    *slog.Logger
}

func NewSSEHandlers(analyzer Analyzer, ledger RunLedger, logger *slog.Logger, maxBytes int64) *SSEHandlers {
	return &SSEHandlers{
		predictor: &predictor{
			analyzer: analyzer,
			ledger:   ledger,
			logger:   logger,
			maxBytes: maxBytes,
		},
		logger: logger,
	}
}

// HandlePredict runs the same analysis as /api/predict and streams the
// report to the dashboard as a signal plus rendered fragments.
func (h *SSEHandlers) HandlePredict(w http.ResponseWriter, r *http.Request) {
	up, parseErr := h.predictor.parse(r)
	if parseErr == nil {
		defer up.file.Close()
	}

	sse := datastar.NewSSE(w, r)

	if parseErr != nil {
		h.sendError(sse, r, parseErr)
		return
	}

	h.patch(r.Context(), sse, templates.Status("info", "Analyzing "+up.fileName+"..."))

	report, err := h.predictor.analyze(r.Context(), up)
	if err != nil {
		h.sendError(sse, r, err)
		return
	}

	signals, err := json.Marshal(map[string]any{
		"report": report,
		"error":  nil,
	})
	if err != nil {
		h.logger.Error("marshal report signal", "error", err)
		return
	}
	sse.PatchSignals(signals)

	h.patch(r.Context(), sse, templates.Summary(report))
	h.patch(r.Context(), sse, templates.Status("ok", "Analysis complete."))

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) patch(ctx context.Context, sse *datastar.ServerSentEventGenerator, c templ.Component) {
	html, err := templates.Render(ctx, c)
	if err != nil {
		h.logger.Error("render fragment", "error", err)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) sendError(sse *datastar.ServerSentEventGenerator, r *http.Request, err error) {
	requestID := observability.GetRequestID(r.Context())

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = mapError(err)
	}
	appErr.RequestID = requestID

	h.logger.Warn("sse predict failed",
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"request_id", requestID,
		"cause", appErr.Cause,
	)

	signals, marshalErr := json.Marshal(map[string]any{"error": appErr})
	if marshalErr != nil {
		h.logger.Error("marshal error signal", "error", marshalErr)
		return
	}
	sse.PatchSignals(signals)

	message := appErr.Message
	if appErr.Details != "" {
		message += ": " + appErr.Details
	}
	h.patch(r.Context(), sse, templates.Status("error", message))
}
