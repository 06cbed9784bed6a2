// Package plugin defines the sources and reporters a pipeline is assembled
// from, and the registries they are looked up in by configured name.
package plugin

import "context"

// Plugin is the base interface for all plugins.
type Plugin interface {
	Name() string
	Init(cfg map[string]any) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
