// Package watcher drives watch mode: file system events are debounced into
// change sets and each change set triggers a full re-ingest of the watched
// tree, rate limited so event storms cannot starve readers.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"devguard/internal/core/ports"
	"devguard/internal/engine/extract"
	"devguard/internal/ingest"
	"devguard/internal/shared/observability"
	"devguard/internal/shared/util"
)

type Watcher struct {
	root        string
	service     ports.AnalysisService
	fsWatcher   *fsnotify.Watcher
	debounce    time.Duration
	excludeDirs []glob.Glob
	rawExcludes []string
	limiter     *util.Limiter
	onSnapshot  func(ports.SnapshotInfo)

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
	rebuildMu sync.Mutex
}

type Options struct {
	Root                 string
	ExcludeDirs          []string
	Debounce             time.Duration
	MaxRebuildsPerMinute float64
	// OnSnapshot is invoked after every successful rebuild.
	OnSnapshot func(ports.SnapshotInfo)
}

var _ ports.WatchService = (*Watcher)(nil)

func New(service ports.AnalysisService, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.MaxRebuildsPerMinute <= 0 {
		opts.MaxRebuildsPerMinute = 12
	}

	compiled := make([]glob.Glob, 0, len(opts.ExcludeDirs))
	for _, pattern := range opts.ExcludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:        opts.Root,
		service:     service,
		fsWatcher:   fsw,
		debounce:    opts.Debounce,
		excludeDirs: compiled,
		rawExcludes: opts.ExcludeDirs,
		limiter:     util.NewLimiter(opts.MaxRebuildsPerMinute/60.0, 1),
		onSnapshot:  opts.OnSnapshot,
		pending:     make(map[string]time.Time),
	}, nil
}

// Start performs the initial ingest, then watches for changes until the
// context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.rebuild(ctx); err != nil {
		return err
	}
	if err := w.watchRecursive(w.root); err != nil {
		return err
	}

	go w.run(ctx)
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						}
						w.scheduleChange(ctx, event.Name)
					}
					continue
				}
			}

			if !extract.IsSupportedPath(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(ctx, event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(ctx context.Context, path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.flushChanges(ctx)
	})
}

func (w *Watcher) flushChanges(ctx context.Context) {
	w.pendingMu.Lock()
	changed := len(w.pending)
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if changed == 0 || ctx.Err() != nil {
		return
	}

	if err := w.limiter.Wait(ctx, 1); err != nil {
		return
	}
	if err := w.rebuild(ctx); err != nil {
		slog.Error("rebuild after change failed", "error", err, "changed", changed)
	}
}

// rebuild rescans the whole tree and ingests it as a fresh batch. Full
// rebuilds keep snapshot semantics trivial: there is no partial-update state
// to reconcile.
func (w *Watcher) rebuild(ctx context.Context) error {
	w.rebuildMu.Lock()
	defer w.rebuildMu.Unlock()

	docs, err := ingest.ScanDir(w.root, w.rawExcludes)
	if err != nil {
		return err
	}

	info, err := w.service.Ingest(ctx, ingest.NewBatch(docs))
	if err != nil {
		return err
	}
	if w.onSnapshot != nil {
		w.onSnapshot(info)
	}
	return nil
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
