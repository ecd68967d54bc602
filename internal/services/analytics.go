package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"retail-analytics/internal/aggregate"
	"retail-analytics/internal/basket"
	"retail-analytics/internal/config"
	"retail-analytics/internal/forecast"
	"retail-analytics/internal/ingest"
	"retail-analytics/internal/models"
	"retail-analytics/internal/normalize"
	"retail-analytics/internal/observability"
	"retail-analytics/internal/schema"
	"retail-analytics/internal/segment"
)

// Analyzer turns one uploaded table into a report. It keeps no per-upload
// state between calls and is safe for concurrent use.
type Analyzer struct {
	cfg      config.AnalysisConfig
	resolver schema.Resolver
	logger   *slog.Logger

	runs          atomic.Int64
	failures      atomic.Int64
	rowsProcessed atomic.Int64
	lastRun       atomic.Int64
}

func NewAnalyzer(cfg config.AnalysisConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:      cfg,
		resolver: schema.NewResolver(cfg.RequireDate),
		logger:   logger,
	}
}

// StageError is a panic recovered inside one analysis stage.
type StageError struct {
	Stage string
	Value any
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Value)
}

// AnalyzeFile parses an uploaded CSV or XLSX file and analyzes it.
func (a *Analyzer) AnalyzeFile(ctx context.Context, r io.Reader, filename string, p models.Periodicity) (*models.Report, error) {
	_, span := observability.StartSpan(ctx, "analyze.ingest")
	span.SetTag("file", filename)
	table, err := ingest.Read(r, filename)
	if err != nil {
		span.SetError(err)
		span.End(a.logger)
		a.failures.Add(1)
		return nil, err
	}
	span.SetTag("rows", fmt.Sprint(table.Len()))
	span.End(a.logger)

	return a.Analyze(ctx, table, p)
}

// Analyze resolves the schema, normalizes the rows and runs the analysis
// blocks concurrently. A SchemaError aborts before any computation. Failures
// inside the segmentation, basket and forecast blocks become reasons on
// those blocks.
func (a *Analyzer) Analyze(ctx context.Context, table ingest.Table, p models.Periodicity) (*models.Report, error) {
	start := time.Now()
	requestID := observability.GetRequestID(ctx)

	mapping, err := a.resolver.Resolve(table.Columns)
	if err != nil {
		a.failures.Add(1)
		return nil, err
	}

	ds := normalize.Normalize(table, mapping)

	var (
		summary  aggregate.Summary
		temporal *models.TemporalInsights
		seg      segment.Result
		rules    models.RuleBlock
		fc       models.ForecastBlock
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.stage(gctx, "aggregate", func(context.Context) error {
			summary = aggregate.Summarize(ds, a.cfg.TopN)
			temporal = aggregate.Temporal(ds)
			return nil
		})
	})

	g.Go(func() error {
		err := a.stage(gctx, "segment", func(ctx context.Context) error {
			var err error
			seg, err = segment.Analyze(ctx, ds, a.segmentConfig())
			return err
		})
		return a.downgrade(gctx, "segment", err, func(reason string) {
			seg = segment.Result{
				Segments: models.SegmentBlock{Reason: reason},
				Churn:    models.ChurnModel{Reason: reason},
			}
		})
	})

	g.Go(func() error {
		err := a.stage(gctx, "basket", func(ctx context.Context) error {
			var err error
			rules, err = basket.Mine(ctx, ds, a.basketConfig())
			return err
		})
		return a.downgrade(gctx, "basket", err, func(reason string) {
			rules = models.RuleBlock{Rules: []models.AssociationRule{}, Reason: reason}
		})
	})

	g.Go(func() error {
		err := a.stage(gctx, "forecast", func(ctx context.Context) error {
			var err error
			fc, err = forecast.Run(ctx, ds, p, a.forecastConfig())
			return err
		})
		return a.downgrade(gctx, "forecast", err, func(reason string) {
			fc = models.ForecastBlock{Model: a.cfg.ForecastModel, Reason: reason}
		})
	})

	if err := g.Wait(); err != nil {
		a.failures.Add(1)
		return nil, err
	}

	report := &models.Report{
		Periodicity:       p,
		Horizon:           p.Horizon(),
		Capabilities:      capabilities(table, mapping, ds),
		KPIs:              summary.KPIs,
		TopInsights:       summary.Top,
		DetailedInsights:  summary.Detailed,
		Temporal:          temporal,
		Segments:          &seg.Segments,
		RandomForestModel: seg.Churn,
		AssociationRules:  &rules,
		Forecast:          &fc,
	}
	report.ChurnSummary = churnSummary(seg.Churn, a.cfg.ChurnDays)
	report.ForecastSummary = forecastSummary(fc, report.Horizon)
	sanitize(report)

	a.runs.Add(1)
	a.rowsProcessed.Add(int64(len(ds.Records)))
	a.lastRun.Store(time.Now().UnixNano())

	a.logger.Info("analysis complete",
		"rows", len(ds.Records),
		"customers", report.KPIs.UniqueCustomers,
		"products", report.KPIs.UniqueProducts,
		"churn_model", report.RandomForestModel.ModelUsed,
		"rules", len(rules.Rules),
		"duration", time.Since(start),
		"request_id", requestID,
	)

	return report, nil
}

// stage runs fn inside a span and converts a panic into a StageError.
func (a *Analyzer) stage(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	ctx, span := observability.StartSpan(ctx, "analyze."+name)
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: name, Value: r}
			observability.LoggerFrom(ctx, a.logger).Error("analysis stage panicked",
				"stage", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
		if err != nil {
			span.SetError(err)
		}
		span.End(a.logger)
	}()
	return fn(ctx)
}

// downgrade turns a block failure into a reason via set. Cancellation is
// passed through so the whole request stops.
func (a *Analyzer) downgrade(ctx context.Context, name string, err error, set func(reason string)) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	observability.LoggerFrom(ctx, a.logger).Warn("analysis block degraded",
		"stage", name,
		"error", err,
	)
	set(err.Error())
	return nil
}

func (a *Analyzer) segmentConfig() segment.Config {
	cfg := segment.DefaultConfig()
	cfg.Seed = a.cfg.Seed
	cfg.Clusters = a.cfg.Clusters
	cfg.MaxIterations = a.cfg.KMeansIterations
	cfg.ChurnDays = a.cfg.ChurnDays
	cfg.MinCustomers = a.cfg.MinChurnCustomers
	cfg.TestRatio = a.cfg.TestRatio
	cfg.TopAtRisk = a.cfg.TopAtRisk
	cfg.Forest.Trees = a.cfg.ForestTrees
	cfg.Forest.MaxDepth = a.cfg.ForestDepth
	return cfg
}

func (a *Analyzer) basketConfig() basket.Config {
	return basket.Config{
		MinSupport:     a.cfg.MinSupport,
		MinConfidence:  a.cfg.MinConfidence,
		MaxItemsetSize: a.cfg.MaxItemsetSize,
		MaxItems:       a.cfg.MaxItems,
		MaxRules:       a.cfg.MaxRules,
	}
}

func (a *Analyzer) forecastConfig() forecast.Config {
	return forecast.Config{Model: a.cfg.ForecastModel, TestRatio: a.cfg.ForecastTestRatio}
}

// Stats reports process-wide counters for the admin endpoint.
func (a *Analyzer) Stats() map[string]any {
	stats := map[string]any{
		"runs":           a.runs.Load(),
		"failures":       a.failures.Load(),
		"rows_processed": a.rowsProcessed.Load(),
		"seed":           a.cfg.Seed,
		"forecast_model": a.cfg.ForecastModel,
	}
	if ts := a.lastRun.Load(); ts > 0 {
		stats["last_run"] = time.Unix(0, ts).UTC()
	}
	return stats
}
