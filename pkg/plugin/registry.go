package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownPlugin is returned when no factory is registered under a name.
var ErrUnknownPlugin = errors.New("edie: unknown plugin")

type registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]func() T
}

func newRegistry[T any](kind string) *registry[T] {
	return &registry[T]{kind: kind, factories: make(map[string]func() T)}
}

// register panics on programmer errors, as it only runs from init.
func (r *registry[T]) register(name string, factory func() T) {
	if name == "" {
		panic(fmt.Sprintf("plugin: %s name is empty", r.kind))
	}
	if factory == nil {
		panic(fmt.Sprintf("plugin: %s %q factory is nil", r.kind, name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("plugin: %s %q registered twice", r.kind, name))
	}
	r.factories[name] = factory
}

func (r *registry[T]) get(name string) (func() T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", r.kind, name, ErrUnknownPlugin)
	}
	return f, nil
}

func (r *registry[T]) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every registration. Tests only.
func (r *registry[T]) Reset() {
	r.mu.Lock()
	r.factories = make(map[string]func() T)
	r.mu.Unlock()
}

var (
	sourceReg   = newRegistry[Source]("source")
	reporterReg = newRegistry[Reporter]("reporter")
)

func RegisterSource(name string, factory func() Source) { sourceReg.register(name, factory) }

func GetSourceFactory(name string) (func() Source, error) { return sourceReg.get(name) }

// ListSources returns the registered source names, sorted.
func ListSources() []string { return sourceReg.list() }

func RegisterReporter(name string, factory func() Reporter) { reporterReg.register(name, factory) }

func GetReporterFactory(name string) (func() Reporter, error) { return reporterReg.get(name) }

// ListReporters returns the registered reporter names, sorted.
func ListReporters() []string { return reporterReg.list() }

// NewReporter creates and initialises the reporter registered as name.
func NewReporter(name string, cfg map[string]any) (Reporter, error) {
	factory, err := GetReporterFactory(name)
	if err != nil {
		return nil, err
	}
	r := factory()
	if err := r.Init(cfg); err != nil {
		return nil, fmt.Errorf("init reporter %q: %w", name, err)
	}
	return r, nil
}

// NewSource creates and initialises the source registered as name.
func NewSource(name string, cfg map[string]any) (Source, error) {
	factory, err := GetSourceFactory(name)
	if err != nil {
		return nil, err
	}
	s := factory()
	if err := s.Init(cfg); err != nil {
		return nil, fmt.Errorf("init source %q: %w", name, err)
	}
	return s, nil
}
