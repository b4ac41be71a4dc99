package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/crimson-sun/auditpull/internal/checkpoint"
	"github.com/crimson-sun/auditpull/internal/connector"
	"github.com/crimson-sun/auditpull/internal/model"
	"github.com/crimson-sun/auditpull/internal/output"
	"github.com/crimson-sun/auditpull/internal/output/file"
	"github.com/crimson-sun/auditpull/internal/output/multi"
	"github.com/crimson-sun/auditpull/internal/output/notice"
)

const (
	DefaultLookback = 24 * time.Hour
	DefaultStaleAge = 5 * time.Minute
)

// Processor turns raw records into events. *engine.Engine satisfies it.
type Processor interface {
	ProcessBatch(run model.RunInfo, recs []model.RawRecord) ([]model.Event, error)
}

// Options configures a Pipeline run.
type Options struct {
	Run       model.RunInfo
	Connector connector.ConnectorConfig
	PageSize  int

	CheckpointKey string
	// Lookback is used when no valid checkpoint exists.
	Lookback time.Duration
	// Unread reads the checkpoint as usual but never writes it, so the same
	// window can be replayed.
	Unread bool

	// ArtifactDir holds the per-run artifact. Empty disables the artifact.
	ArtifactDir  string
	KeepArtifact bool
	StaleAge     time.Duration

	Now func() time.Time
}

// Result summarizes a finished run.
type Result struct {
	State     State
	Since     checkpoint.Watermark
	Events    int
	Watermark checkpoint.Watermark
	Committed bool
	Err       error
}

// Pipeline drives one extraction run: fetch, normalize, checkpoint, emit.
type Pipeline struct {
	connector connector.Connector
	processor Processor
	store     checkpoint.Store
	output    output.Output
	notices   *notice.Reporter
	opts      Options

	openArtifact func(path string) (artifact, error)
}

// New creates a Pipeline from the given components.
func New(conn connector.Connector, proc Processor, store checkpoint.Store, out output.Output, notices *notice.Reporter, opts Options) *Pipeline {
	if opts.CheckpointKey == "" {
		opts.CheckpointKey = checkpoint.DefaultKey
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.StaleAge <= 0 {
		opts.StaleAge = DefaultStaleAge
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Run.Provider == "" {
		opts.Run.Provider = opts.Connector.Provider
	}
	return &Pipeline{
		connector: conn,
		processor: proc,
		store:     store,
		output:    out,
		notices:   notices,
		opts:      opts,

		openArtifact: openFileArtifact,
	}
}

// Run executes a single extraction. The run always concludes with exactly
// one finished or error notice; the returned error is the Result's Err.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	run := p.opts.Run
	now := p.opts.Now()
	res := Result{State: StateInit}

	p.cleanupArtifacts(now)

	since := p.startingWatermark(ctx, now)
	res.Since = since
	slog.Info("run started",
		"run_id", run.ID,
		"provider", run.Provider,
		"since", since.Time(),
		"window", humanize.RelTime(since.Time(), now, "ago", "from now"),
		"unread", p.opts.Unread,
	)
	p.notify(p.notices.Started, "fetching logs since "+since.Time().UTC().Format(model.TimestampLayout))

	res.State = StateFetching
	recs, err := p.connector.Query(ctx, p.opts.Connector, connector.QueryParams{
		Since:    since.Time(),
		PageSize: p.opts.PageSize,
		Warn:     p.warn,
	})
	if err != nil {
		return p.abort(res, fmt.Errorf("log retrieval failed: %w", err))
	}
	slog.Debug("fetch complete", "records", len(recs))

	res.State = StateNormalizing
	events, err := p.processor.ProcessBatch(run, recs)
	if err != nil {
		return p.abort(res, fmt.Errorf("normalization failed: %w", err))
	}
	buf := newRunBuffer(len(events))
	buf.add(events...)
	buf.sortByTime()
	res.Events = buf.len()

	res.State = StateCheckpointing
	if err := p.commit(ctx, buf, &res); err != nil {
		return p.abort(res, err)
	}

	res.State = StateEmitting
	if err := p.emit(ctx, buf, now); err != nil {
		return p.abort(res, fmt.Errorf("emit failed: %w", err))
	}

	res.State = StateDone
	slog.Info("run finished",
		"run_id", run.ID,
		"events", humanize.Comma(int64(res.Events)),
		"committed", res.Committed,
		"watermark", int64(res.Watermark),
		"elapsed", p.opts.Now().Sub(now),
	)
	p.notify(p.notices.Finished, "extraction finished")
	return res, nil
}

// Close closes the primary output and the checkpoint store.
func (p *Pipeline) Close() error {
	return errors.Join(p.output.Close(), p.store.Close())
}

func (p *Pipeline) startingWatermark(ctx context.Context, now time.Time) checkpoint.Watermark {
	fallback := checkpoint.Fallback(now, p.opts.Lookback)
	w, ok, err := p.store.Load(ctx, p.opts.CheckpointKey)
	if err != nil {
		slog.Warn("checkpoint unreadable", "key", p.opts.CheckpointKey, "error", err)
		p.notify(p.notices.Warning, fmt.Sprintf("checkpoint unreadable, using %s lookback: %v", p.opts.Lookback, err))
	}
	if !ok {
		return fallback
	}
	return w
}

func (p *Pipeline) commit(ctx context.Context, buf *runBuffer, res *Result) error {
	if p.opts.Unread {
		slog.Info("unread mode, checkpoint left unchanged")
		return nil
	}
	w, ok := buf.nextWatermark()
	if !ok {
		slog.Info("no new events, checkpoint left unchanged")
		return nil
	}
	if err := p.store.Save(ctx, p.opts.CheckpointKey, w); err != nil {
		return fmt.Errorf("state update failed: %w", err)
	}
	res.Watermark = w
	res.Committed = true
	return nil
}

// emit writes the buffer to the primary output and, when configured, to a
// per-run artifact. Only primary output errors fail the run; artifact
// problems become warnings.
func (p *Pipeline) emit(ctx context.Context, buf *runBuffer, now time.Time) error {
	sink := multi.New(p.output)
	if p.opts.ArtifactDir != "" {
		path := file.ArtifactPath(p.opts.ArtifactDir, p.opts.Run.Provider, now)
		a, err := p.openArtifact(path)
		if err != nil {
			p.warn(fmt.Sprintf("artifact unavailable: %v", err))
		} else {
			m := &mirror{artifact: a, report: p.warn}
			sink.Add(m)
			defer p.releaseArtifact(m)
		}
	}
	return buf.flush(ctx, sink)
}

func (p *Pipeline) releaseArtifact(m *mirror) {
	path := m.Path()
	if err := m.Close(); err != nil {
		m.fail(err)
	}
	if p.opts.KeepArtifact {
		slog.Info("artifact kept", "path", path)
		return
	}
	if err := m.Remove(); err != nil {
		slog.Warn("artifact remove failed", "path", path, "error", err)
	}
}

// warn logs message and emits it as a warning notice.
func (p *Pipeline) warn(message string) {
	slog.Warn(message, "run_id", p.opts.Run.ID)
	p.notify(p.notices.Warning, message)
}

func (p *Pipeline) cleanupArtifacts(now time.Time) {
	if p.opts.ArtifactDir == "" {
		return
	}
	removed, err := file.CleanupStale(file.ArtifactGlob(p.opts.ArtifactDir, p.opts.Run.Provider), p.opts.StaleAge, now)
	for _, path := range removed {
		p.notify(p.notices.Cleanup, "deleted old temp file: "+path)
	}
	if err != nil {
		slog.Warn("artifact cleanup failed", "error", err)
		p.notify(p.notices.Warning, fmt.Sprintf("cleanup failed: %v", err))
	}
}

func (p *Pipeline) abort(res Result, err error) (Result, error) {
	abortErr := &AbortError{State: res.State, Err: err}
	slog.Error("run aborted", "run_id", p.opts.Run.ID, "state", res.State.String(), "error", err)
	res.State = StateAborted
	res.Err = abortErr
	p.notify(p.notices.Error, abortErr.Error())
	return res, abortErr
}

// notify emits a notice; a notice that cannot be written is only logged.
func (p *Pipeline) notify(emit func(string) error, message string) {
	if err := emit(message); err != nil {
		slog.Warn("notice not written", "message", message, "error", err)
	}
}
