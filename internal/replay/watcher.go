package replay

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reports .html files created or rewritten in a directory, once per
// burst of writes.
type Watcher struct {
	dir      string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	events   chan string
}

func NewWatcher(dir string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		fsw:      fsw,
		logger:   logger,
		events:   make(chan string),
	}, nil
}

// Events delivers absolute file paths. It is closed when Run returns.
func (w *Watcher) Events() <-chan string {
	return w.events
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run watches until ctx is done or the underlying watcher closes.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".html") {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil {
				path = event.Name
			}
			pending[path] = time.Now()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", slog.String("dir", w.dir), slog.String("error", err.Error()))

		case now := <-ticker.C:
			for path, changed := range pending {
				if now.Sub(changed) < w.debounce {
					continue
				}
				delete(pending, path)
				select {
				case w.events <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
