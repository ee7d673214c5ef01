package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hillwire/powergraph/errors"
)

// Watcher watches an inbox directory for observation batch files and feeds
// them through a Processor. Rapid writes to the same file are debounced so a
// file is processed once, after its writer finishes.
type Watcher struct {
	inboxDir  string
	processor *Processor
	watcher   *fsnotify.Watcher
	logger    *zap.SugaredLogger

	mu       sync.Mutex
	pending  map[string]*time.Timer
	debounce time.Duration

	done chan struct{}
}

// NewWatcher creates a watcher over inboxDir. The directory must exist.
func NewWatcher(inboxDir string, processor *Processor, debounce time.Duration, logger *zap.SugaredLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fsw.Add(inboxDir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch inbox directory %s", inboxDir)
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &Watcher{
		inboxDir:  inboxDir,
		processor: processor,
		watcher:   fsw,
		logger:    logger,
		pending:   make(map[string]*time.Timer),
		debounce:  debounce,
		done:      make(chan struct{}),
	}, nil
}

// Start processes any batch files already in the inbox, then begins watching
// for new ones. Returns after the initial sweep; the watch loop runs until
// ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	entries, err := os.ReadDir(w.inboxDir)
	if err != nil {
		return errors.Wrapf(err, "failed to read inbox directory %s", w.inboxDir)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isBatchFile(entry.Name()) {
			continue
		}
		w.process(ctx, filepath.Join(w.inboxDir, entry.Name()))
	}

	go w.watchLoop(ctx)
	return nil
}

// Close stops the watch loop and releases the fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isBatchFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warnw("Inbox watcher error", "error", err)
			}
		}
	}
}

// schedule debounces per file: each new event resets the file's timer.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.process(ctx, path)
	})
}

func (w *Watcher) process(ctx context.Context, path string) {
	result, err := w.processor.ProcessFile(ctx, path)
	if err != nil {
		if w.logger != nil {
			w.logger.Errorw("Batch file failed",
				"file", path,
				"error", err,
			)
		}
		return
	}

	if w.logger != nil {
		w.logger.Infow("Batch file processed",
			"file", path,
			"source", result.Source,
			"entities", result.EntitiesUpserted,
			"edge_events", result.EdgeEventsApplied,
			"rejected", len(result.Rejected),
		)
	}
}

func isBatchFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, ".json")
}
