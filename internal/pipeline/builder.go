package pipeline

import (
	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/plugin"
	"firestige.xyz/edie/pkg/schema"
)

// Builder provides a fluent interface for building pipelines.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithSource sets the byte source.
func (b *Builder) WithSource(s plugin.Source) *Builder {
	b.config.Source = s
	return b
}

// WithDatabase sets the message definitions used by the parser.
func (b *Builder) WithDatabase(db *schema.Database) *Builder {
	b.config.Database = db
	return b
}

// WithParserOptions appends parser options.
func (b *Builder) WithParserOptions(opts ...novatel.ParserOption) *Builder {
	b.config.ParserOptions = append(b.config.ParserOptions, opts...)
	return b
}

// WithReporters sets the reporters for parsed messages.
func (b *Builder) WithReporters(reporters ...plugin.Reporter) *Builder {
	b.config.Reporters = reporters
	return b
}

// WithUnknownReporters sets the reporters for unrecognised bytes.
func (b *Builder) WithUnknownReporters(reporters ...plugin.Reporter) *Builder {
	b.config.UnknownReporters = reporters
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	return New(b.config)
}
