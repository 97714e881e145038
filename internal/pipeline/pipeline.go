// Package pipeline sequences a verification run: fetch the inventory, parse
// it, research every record and write the annotated report.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/carloslaurellineves/websearch-agent/internal/config"
	"github.com/carloslaurellineves/websearch-agent/internal/model"
	"github.com/carloslaurellineves/websearch-agent/internal/sheet"
	"github.com/carloslaurellineves/websearch-agent/internal/store"
)

// DefaultPacing is the pause between two records.
const DefaultPacing = time.Second

// DocumentSource authenticates against and downloads from the document store.
type DocumentSource interface {
	Authenticate(ctx context.Context) error
	Download(ctx context.Context, library, file string) ([]byte, error)
}

// Researcher produces a verdict for a single record. It must not fail.
type Researcher interface {
	Research(ctx context.Context, rec model.SoftwareRecord) model.LicenseVerdict
}

// ReportWriter writes the annotated workbook.
type ReportWriter interface {
	Write(verdicts []model.LicenseVerdict, path string) error
}

// Result summarizes a finished run.
type Result struct {
	RunID       string
	State       State
	Transitions []State
	Verdicts    []model.LicenseVerdict
	Stats       model.RunStats
	OutputPath  string
	Elapsed     time.Duration
}

// Pipeline runs the verification workflow.
type Pipeline struct {
	cfg        *config.Config
	source     DocumentSource
	researcher Researcher
	writer     ReportWriter
	store      store.Store
	pacing     time.Duration
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPacing sets the pause between records. Zero disables it.
func WithPacing(d time.Duration) Option {
	return func(p *Pipeline) { p.pacing = d }
}

// WithStore records runs and verdicts in st.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) {
		if st != nil {
			p.store = st
		}
	}
}

// WithClock overrides the time source used for elapsed time.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, src DocumentSource, r Researcher, w ReportWriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		source:     src,
		researcher: r,
		writer:     w,
		store:      store.Nop{},
		pacing:     DefaultPacing,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one verification run. Per-record research failures are kept
// as Error verdicts; only authentication, download, parse and write failures
// (and cancellation) end the run in StateFailed with a non-nil error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.now()
	source := p.cfg.SharePoint.Library + "/" + p.cfg.SharePoint.File
	log := zap.L().With(zap.String("source", source))

	res := &Result{OutputPath: p.cfg.OutputPath()}
	m := newMachine(func(s State) {
		res.State = s
		res.Transitions = append(res.Transitions, s)
		log.Debug("pipeline: state", zap.String("state", string(s)))
	})

	run, err := p.store.CreateRun(ctx, source)
	if err != nil {
		log.Warn("pipeline: history unavailable", zap.Error(err))
		run = &model.Run{}
	}
	res.RunID = run.ID

	fail := func(err error) (*Result, error) {
		m.fail()
		res.Elapsed = p.now().Sub(start)
		log.Error("pipeline: run failed",
			zap.String("stage", string(m.last)),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(err),
		)
		p.finish(run.ID, store.RunOutcome{Status: model.RunStatusFailed, Stats: res.Stats, Error: err.Error()})
		return res, err
	}

	log.Info("pipeline: starting verification run")

	m.enter(StateAuthenticate)
	if err := p.source.Authenticate(ctx); err != nil {
		return fail(err)
	}

	m.enter(StateDownload)
	data, err := p.source.Download(ctx, p.cfg.SharePoint.Library, p.cfg.SharePoint.File)
	if err != nil {
		return fail(err)
	}
	log.Info("pipeline: workbook downloaded", zap.Int("bytes", len(data)))

	m.enter(StateParse)
	records, err := sheet.Parse(data)
	if err != nil {
		return fail(err)
	}
	if len(records) == 0 {
		return fail(eris.Wrap(sheet.ErrMalformedInput, "no software rows found"))
	}
	res.Stats.Total = len(records)
	log.Info("pipeline: records loaded", zap.Int("total", len(records)))

	m.enter(StateResearch)
	verdicts, err := p.research(ctx, records, &res.Stats)
	res.Verdicts = verdicts
	p.saveVerdicts(run.ID, verdicts)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: research interrupted"))
	}

	m.enter(StateWrite)
	if err := p.writer.Write(verdicts, res.OutputPath); err != nil {
		return fail(err)
	}

	m.enter(StateDone)
	res.Elapsed = p.now().Sub(start)
	p.finish(run.ID, store.RunOutcome{Status: model.RunStatusComplete, Stats: res.Stats, OutputPath: res.OutputPath})
	logSummary(log, res)
	return res, nil
}

// research processes records in input order, one at a time. It returns early
// only when ctx is cancelled.
func (p *Pipeline) research(ctx context.Context, records []model.SoftwareRecord, stats *model.RunStats) ([]model.LicenseVerdict, error) {
	var limiter *rate.Limiter
	if p.pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(p.pacing), 1)
	}

	verdicts := make([]model.LicenseVerdict, 0, len(records))
	for i, rec := range records {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return verdicts, err
			}
		}
		if err := ctx.Err(); err != nil {
			return verdicts, err
		}

		v := p.researcher.Research(ctx, rec)
		verdicts = append(verdicts, v)
		stats.Record(v)

		if v.Failed() {
			zap.L().Warn("pipeline: research failed for record",
				zap.Int("row", i+1),
				zap.String("software", rec.Name),
				zap.String("summary", v.Summary),
			)
		}
		zap.L().Info("pipeline: progress",
			zap.Int("processed", stats.Processed),
			zap.Int("total", stats.Total),
			zap.Int("high", stats.High),
			zap.Int("medium", stats.Medium),
			zap.Int("low", stats.Low),
			zap.Int("yes", stats.Yes),
			zap.Int("no", stats.No),
			zap.Int("errors", stats.Errors),
		)
	}
	return verdicts, nil
}

// History writes use a fresh context so a cancelled run is still recorded.
func (p *Pipeline) saveVerdicts(runID string, verdicts []model.LicenseVerdict) {
	if runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.SaveVerdicts(ctx, runID, verdicts); err != nil {
		zap.L().Warn("pipeline: failed to save verdicts", zap.String("run_id", runID), zap.Error(err))
	}
}

func (p *Pipeline) finish(runID string, outcome store.RunOutcome) {
	if runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.FinishRun(ctx, runID, outcome); err != nil {
		zap.L().Warn("pipeline: failed to record run outcome", zap.String("run_id", runID), zap.Error(err))
	}
}

func logSummary(log *zap.Logger, res *Result) {
	log.Info("pipeline: run complete",
		zap.String("run_id", res.RunID),
		zap.Int("total", res.Stats.Total),
		zap.Int("processed", res.Stats.Processed),
		zap.Int("errors", res.Stats.Errors),
		zap.Int("yes", res.Stats.Yes),
		zap.Int("no", res.Stats.No),
		zap.Int("high", res.Stats.High),
		zap.Int("medium", res.Stats.Medium),
		zap.Int("low", res.Stats.Low),
		zap.Duration("elapsed", res.Elapsed),
		zap.String("output", res.OutputPath),
	)
}
