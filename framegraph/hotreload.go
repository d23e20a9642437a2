// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package framegraph

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the pass/frame-graph directory and flips a dirty
// flag on any filesystem change, per the frame-graph assembler's
// hot-reload rule: the next requested build drains in-flight frames,
// discards the current graph, and rebuilds from disk.
type Watcher struct {
	fsw   *fsnotify.Watcher
	dirty atomic.Bool

	mu     sync.Mutex
	closed bool
}

// NewWatcher starts watching dir. Subdirectories are not watched —
// only a flat directory is expected, matching the "same directory"
// contract for pass and frame-graph files.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, newFgErrCause(ErrConfigMissing, "create filesystem watcher", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, newFgErrCause(ErrConfigMissing, "watch directory "+dir, err)
	}
	w := &Watcher{fsw: fsw}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.dirty.Store(true)
				logger.Sugar().Infow("frame-graph source changed", "file", ev.Name, "op", ev.Op.String())
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Sugar().Warnw("frame-graph watcher error", "error", err)
		}
	}
}

// Dirty reports whether a change was observed since the last
// ClearDirty.
func (w *Watcher) Dirty() bool { return w.dirty.Load() }

// ClearDirty resets the dirty flag, normally called right after a
// successful rebuild.
func (w *Watcher) ClearDirty() { w.dirty.Store(false) }

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}

// FrameFence lets the frame-graph builder wait for every in-flight
// frame to complete before tearing down the previous Graph, mirroring
// "BuildFrameGraph blocks the main thread until all in-flight frames
// fence-complete".
type FrameFence interface {
	// Wait blocks until every frame submitted so far has completed.
	Wait()
}

// Builder owns the live Graph and coordinates hot-reload: rebuild is
// atomic — a failed rebuild leaves the previous Graph untouched and
// live.
type Builder struct {
	cfg     Config
	dev     Device
	watcher *Watcher
	compl   *compiler

	mu    sync.RWMutex
	graph *Graph
}

// NewBuilder constructs a Builder bound to cfg and dev. It does not
// build a graph yet; call Rebuild to perform the initial (and every
// subsequent) compilation and install the result as the live Graph.
// Build alone returns a new Graph without installing it.
func NewBuilder(cfg Config, dev Device) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, err := NewWatcher(cfg.PassDir)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, dev: dev, watcher: w, compl: newCompiler(dev)}, nil
}

// Graph returns the currently live Graph. Safe to call concurrently
// with Build.
func (b *Builder) Graph() *Graph {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph
}

// Rebuild performs a hot-reload check: if the watcher is dirty, it
// waits for fence to drain in-flight frames, rebuilds the graph from
// disk, and swaps it in only on success — exactly the "drain, discard,
// rebuild, reset dirty" sequence; on failure the previous graph
// remains live and the dirty flag is left set so the next call retries.
func (b *Builder) Rebuild(fence FrameFence, drawAreaW, drawAreaH int) error {
	if b.graph != nil && !b.watcher.Dirty() {
		return nil
	}
	fence.Wait()
	g, err := b.Build(drawAreaW, drawAreaH)
	if err != nil {
		logger.Sugar().Errorw("frame-graph rebuild failed, keeping previous graph", "error", err)
		return err
	}
	b.mu.Lock()
	b.graph = g
	b.mu.Unlock()
	b.watcher.ClearDirty()
	return nil
}

// Close releases the Builder's filesystem watcher.
func (b *Builder) Close() error { return b.watcher.Close() }
