package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wordsonphone/phrasecurator/pkg/infrastructure/logging"
)

// Importer is the part of Pipeline the watcher drives
type Importer interface {
	Import(ctx context.Context, candidates []Candidate, opts Options) (*Report, error)
}

// WatchOptions configures the drop folder
type WatchOptions struct {
	Import          Options
	DefaultCategory string
	// Debounce waits for writes to a file to settle before importing it
	Debounce time.Duration
	// ProcessedDir and FailedDir default to subdirectories of the watched dir
	ProcessedDir string
	FailedDir    string
}

// WatchResult describes one imported file
type WatchResult struct {
	Path   string
	Report *Report
	Err    error
}

// Watcher imports JSON files dropped into a directory. Files are processed
// one at a time on the Run goroutine, then moved to processed/ or failed/
// with a .report.json written next to them.
type Watcher struct {
	dir      string
	importer Importer
	opts     WatchOptions
	logger   *logging.Logger

	watcher *fsnotify.Watcher
	ready   chan string
	results chan WatchResult
	done    chan struct{}

	debounceMu    sync.Mutex
	debounceTimer map[string]*time.Timer
}

// NewWatcher starts watching dir
func NewWatcher(dir string, importer Importer, opts WatchOptions, logger *logging.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.ProcessedDir == "" {
		opts.ProcessedDir = filepath.Join(dir, "processed")
	}
	if opts.FailedDir == "" {
		opts.FailedDir = filepath.Join(dir, "failed")
	}
	for _, d := range []string{opts.ProcessedDir, opts.FailedDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", d, err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:           dir,
		importer:      importer,
		opts:          opts,
		logger:        logger.WithComponent("watcher"),
		watcher:       fsw,
		ready:         make(chan string, 64),
		results:       make(chan WatchResult, 16),
		done:          make(chan struct{}),
		debounceTimer: make(map[string]*time.Timer),
	}, nil
}

// Results reports each processed file. Results are dropped when nobody reads.
func (w *Watcher) Results() <-chan WatchResult {
	return w.results
}

// Run processes files already present, then imports new ones until ctx ends
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	existing, err := w.pendingFiles()
	if err != nil {
		return err
	}
	for _, path := range existing {
		w.process(ctx, path)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleFsEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", map[string]interface{}{"error": err.Error()})

		case path := <-w.ready:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) stop() {
	close(w.done)
	w.debounceMu.Lock()
	for _, timer := range w.debounceTimer {
		timer.Stop()
	}
	w.debounceMu.Unlock()
	w.watcher.Close()
}

func isCandidateFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") &&
		!strings.HasSuffix(name, ".report.json") &&
		!strings.HasPrefix(name, ".")
}

func (w *Watcher) pendingFiles() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", w.dir, err)
	}
	var out []string
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if !e.IsDir() && isCandidateFile(path) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

// handleFsEvent debounces writes to the same file
func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !isCandidateFile(event.Name) {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if timer, exists := w.debounceTimer[event.Name]; exists {
		timer.Stop()
	}
	name := event.Name
	w.debounceTimer[name] = time.AfterFunc(w.opts.Debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimer, name)
		w.debounceMu.Unlock()
		select {
		case w.ready <- name:
		case <-w.done:
		}
	})
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	result := WatchResult{Path: path}
	candidates, err := LoadFile(path, w.opts.DefaultCategory)
	if err == nil {
		result.Report, err = w.importer.Import(ctx, candidates, w.opts.Import)
	}
	result.Err = err

	dest := w.opts.ProcessedDir
	fields := map[string]interface{}{"file": filepath.Base(path)}
	if err != nil {
		dest = w.opts.FailedDir
		fields["error"] = err.Error()
		w.logger.Warn("Import from drop folder failed", fields)
	} else {
		fields["added"] = result.Report.Added
		fields["skipped"] = result.Report.Skipped
		w.logger.Info("Imported drop folder file", fields)
	}

	target := filepath.Join(dest, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		w.logger.Warn("Failed to move imported file", map[string]interface{}{"file": path, "error": err.Error()})
	} else {
		result.Path = target
	}
	w.writeReport(target, result)

	select {
	case w.results <- result:
	default:
	}
}

func (w *Watcher) writeReport(target string, result WatchResult) {
	out := struct {
		Report *Report `json:"report,omitempty"`
		Error  string  `json:"error,omitempty"`
	}{Report: result.Report}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return
	}
	reportPath := strings.TrimSuffix(target, ".json") + ".report.json"
	if err := os.WriteFile(reportPath, data, 0644); err != nil {
		w.logger.Warn("Failed to write import report", map[string]interface{}{"file": reportPath, "error": err.Error()})
	}
}
