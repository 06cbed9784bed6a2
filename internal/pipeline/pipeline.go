// Package pipeline drives a source through the NovAtel parser and fans the
// results out to reporters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"firestige.xyz/edie/internal/log"
	"firestige.xyz/edie/internal/metrics"
	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/plugin"
	"firestige.xyz/edie/pkg/schema"
)

var (
	ErrNilDatabase = errors.New("edie: nil schema database")
	ErrNilSource   = errors.New("edie: nil source")
	ErrNotStarted  = errors.New("edie: pipeline not started")
)

// Config contains pipeline configuration.
type Config struct {
	Source        plugin.Source
	Database      *schema.Database
	ParserOptions []novatel.ParserOption
	Reporters     []plugin.Reporter
	// UnknownReporters receive the bytes the parser could not frame.
	UnknownReporters []plugin.Reporter
}

// Pipeline reads one source to completion.
type Pipeline struct {
	source    plugin.Source
	stream    *sourceStream
	parser    *novatel.FileParser
	reporters []plugin.Reporter
	unknown   []plugin.Reporter
	metrics   *Metrics
	intervals *intervalTracker
	logger    log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	err    error
}

// New creates a new pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Database == nil {
		return nil, ErrNilDatabase
	}
	if cfg.Source == nil {
		return nil, ErrNilSource
	}
	p := &Pipeline{
		source:    cfg.Source,
		reporters: cfg.Reporters,
		unknown:   cfg.UnknownReporters,
		metrics:   NewMetrics(),
		intervals: newIntervalTracker(),
		logger:    log.GetLogger().WithField("source", cfg.Source.Name()),
	}
	opts := append(append([]novatel.ParserOption(nil), cfg.ParserOptions...), novatel.WithSkipHandler(p.onSkip))
	p.stream = &sourceStream{src: cfg.Source, metrics: p.metrics}
	p.parser = novatel.NewFileParser(cfg.Database, p.stream, opts...)
	return p, nil
}

// Start starts the source and reporters and begins reading.
func (p *Pipeline) Start(ctx context.Context) error {
	p.logger.Info("pipeline starting")
	if err := p.source.Start(ctx); err != nil {
		return fmt.Errorf("start source: %w", err)
	}
	for _, r := range p.allReporters() {
		if err := r.Start(ctx); err != nil {
			p.source.Stop(ctx)
			return fmt.Errorf("start reporter %s: %w", r.Name(), err)
		}
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.stream.ctx = p.ctx
	p.done = make(chan struct{})
	metrics.PipelineStatus.Set(metrics.StatusRunning)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.done)
		p.err = p.run()
		if p.err != nil {
			metrics.PipelineStatus.Set(metrics.StatusError)
			p.logger.WithError(p.err).Error("pipeline failed")
		}
	}()
	return nil
}

// Wait blocks until the source is exhausted or the pipeline fails.
func (p *Pipeline) Wait() error {
	if p.done == nil {
		return ErrNotStarted
	}
	<-p.done
	return p.err
}

// Stop cancels reading, flushes the reporters and releases the source.
func (p *Pipeline) Stop() error {
	if p.cancel == nil {
		return ErrNotStarted
	}
	p.cancel()
	p.wg.Wait()

	ctx := context.Background()
	var errs []error
	for _, r := range p.allReporters() {
		if err := r.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush reporter %s: %w", r.Name(), err))
		}
		if err := r.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop reporter %s: %w", r.Name(), err))
		}
	}
	if err := p.source.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop source: %w", err))
	}
	if p.err == nil {
		metrics.PipelineStatus.Set(metrics.StatusStopped)
	}
	s := p.Stats()
	p.logger.WithFields(map[string]interface{}{
		"messages": s.Messages,
		"unknown":  s.Unknown,
		"skipped":  s.Skipped,
	}).Info("pipeline stopped")
	return errors.Join(errs...)
}

func (p *Pipeline) allReporters() []plugin.Reporter {
	return append(append([]plugin.Reporter(nil), p.reporters...), p.unknown...)
}

func (p *Pipeline) run() error {
	for {
		if err := p.ctx.Err(); err != nil {
			return nil
		}
		start := time.Now()
		res, err := p.parser.Read()
		st := novatel.StatusOf(err)
		switch {
		case st == novatel.StatusStreamEmpty:
			p.logger.Debug("input exhausted")
			return nil
		case err != nil && st != novatel.StatusUnknown:
			return fmt.Errorf("read: %w", err)
		}
		metrics.ParseLatencySeconds.Observe(time.Since(start).Seconds())
		metrics.InputPercentRead.WithLabelValues(p.source.Name()).Set(p.source.PercentRead())
		p.handle(res, st)
	}
}

func (p *Pipeline) handle(res *novatel.Result, st novatel.Status) {
	p.metrics.Received.Add(1)
	metrics.MessagesTotal.WithLabelValues(res.Meta.Format.String(), st.String()).Inc()

	targets := p.reporters
	if st == novatel.StatusUnknown {
		p.metrics.Unknown.Add(1)
		p.metrics.UnknownBytes.Add(uint64(len(res.Data.Message)))
		metrics.UnknownBytesTotal.Add(float64(len(res.Data.Message)))
		targets = p.unknown
	} else {
		p.metrics.Messages.Add(1)
		p.intervals.observe(&res.Meta)
	}

	if len(targets) == 0 {
		return
	}
	failed := false
	for _, r := range targets {
		if err := r.Report(p.ctx, res); err != nil {
			failed = true
			p.metrics.ReportErrors.Add(1)
			metrics.ReporterErrorsTotal.WithLabelValues(r.Name()).Inc()
			p.logger.WithError(err).WithField("reporter", r.Name()).Error("reporter failed")
		}
	}
	if !failed {
		p.metrics.Reported.Add(1)
	}
}

func (p *Pipeline) onSkip(meta *novatel.MetaData, err error) {
	p.metrics.Skipped.Add(1)
	metrics.SkippedTotal.WithLabelValues(novatel.StatusOf(err).String()).Inc()
	if p.logger.IsDebugEnabled() {
		p.logger.WithError(err).WithField("message", meta.MessageName).Debug("frame skipped")
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		BytesRead:    p.metrics.BytesRead.Load(),
		Received:     p.metrics.Received.Load(),
		Messages:     p.metrics.Messages.Load(),
		Unknown:      p.metrics.Unknown.Load(),
		UnknownBytes: p.metrics.UnknownBytes.Load(),
		Skipped:      p.metrics.Skipped.Load(),
		Reported:     p.metrics.Reported.Load(),
		ReportErrors: p.metrics.ReportErrors.Load(),
		PercentRead:  p.source.PercentRead(),
	}
}

// Intervals returns message spacing statistics, sorted by message name.
func (p *Pipeline) Intervals() []IntervalStats {
	return p.intervals.snapshot()
}

// Stats represents pipeline statistics.
type Stats struct {
	BytesRead    uint64
	Received     uint64
	Messages     uint64
	Unknown      uint64
	UnknownBytes uint64
	Skipped      uint64
	Reported     uint64
	ReportErrors uint64
	PercentRead  float64
}

// sourceStream adapts a plugin.Source to novatel.InputStream. It reports
// end of stream once ctx is cancelled.
type sourceStream struct {
	src     plugin.Source
	metrics *Metrics
	ctx     context.Context
}

func (s *sourceStream) Read(p []byte) (int, error) {
	if s.ctx != nil && s.ctx.Err() != nil {
		return 0, io.EOF
	}
	n, err := s.src.Read(p)
	if n > 0 {
		s.metrics.BytesRead.Add(uint64(n))
		metrics.InputBytesTotal.WithLabelValues(s.src.Name()).Add(float64(n))
	}
	return n, err
}

func (s *sourceStream) Reset() error {
	r, ok := s.src.(plugin.Resettable)
	if !ok {
		return fmt.Errorf("source %s cannot be reset", s.src.Name())
	}
	return r.Reset()
}

func (s *sourceStream) PercentRead() float64 { return s.src.PercentRead() }
