package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FolderOptions controls ingest-folder behavior.
type FolderOptions struct {
	// Path is a directory, or a single file for a one-shot import.
	Path     string
	Watch    bool
	Patterns []string // e.g. []string{"*.jsonl", "*.json"}
	Logger   *log.Logger
	// When true and in Watch mode, start JSONL files at EOF on startup to avoid
	// re-importing existing lines each time the watcher starts.
	TailFromEnd bool
}

// FolderIngestor imports lead files from a directory (one-shot or watch mode).
type FolderIngestor struct {
	importer *Importer
	opts     FolderOptions

	offsets map[string]int64 // per-file tail offset for jsonl
	mu      sync.Mutex

	ingested int
	errors   int
}

// NewFolderIngestor constructs a folder ingestor.
func NewFolderIngestor(importer *Importer, opts FolderOptions) *FolderIngestor {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[ingest] ", log.LstdFlags)
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*.jsonl", "*.json"}
	}
	return &FolderIngestor{
		importer: importer,
		opts:     opts,
		offsets:  make(map[string]int64),
	}
}

// Run executes the import per options (one-shot or watch).
func (fi *FolderIngestor) Run(ctx context.Context) error {
	info, err := os.Stat(fi.opts.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", fi.opts.Path, err)
	}
	if !info.IsDir() {
		if fi.opts.Watch {
			return fmt.Errorf("watch needs a directory, got file %s", fi.opts.Path)
		}
		if err := fi.processFile(ctx, fi.opts.Path); err != nil {
			return err
		}
		fi.opts.Logger.Printf("Completed one-shot import: ingested=%d errors=%d", fi.ingested, fi.errors)
		return nil
	}

	if err := fi.scanOnce(ctx); err != nil {
		return err
	}
	if !fi.opts.Watch {
		fi.opts.Logger.Printf("Completed one-shot import: ingested=%d errors=%d", fi.ingested, fi.errors)
		return nil
	}
	return fi.watchLoop(ctx)
}

// Counts reports how many records were imported and rejected.
func (fi *FolderIngestor) Counts() (ingested, errors int) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.ingested, fi.errors
}

func (fi *FolderIngestor) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range fi.opts.Patterns {
		p := strings.TrimSpace(strings.ToLower(pat))
		if ok, _ := filepath.Match(p, lower); ok {
			return true
		}
	}
	return false
}

func (fi *FolderIngestor) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(fi.opts.Path)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !fi.matches(e.Name()) {
			continue
		}
		path := filepath.Join(fi.opts.Path, e.Name())
		if isJSONL(e.Name()) && fi.opts.Watch && fi.opts.TailFromEnd {
			if st, err := os.Stat(path); err == nil {
				fi.setOffset(path, st.Size())
			}
			continue
		}
		if err := fi.processFile(ctx, path); err != nil {
			fi.opts.Logger.Printf("error processing %s: %v", path, err)
			fi.addCounts(0, 1)
		}
	}
	return nil
}

func (fi *FolderIngestor) processFile(ctx context.Context, path string) error {
	if isJSONL(path) {
		off, err := fi.processJSONL(ctx, path, 0, true)
		fi.setOffset(path, off)
		return err
	}
	return fi.processJSONFile(ctx, path)
}

func (fi *FolderIngestor) watchLoop(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	if err := w.Add(fi.opts.Path); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}
	fi.opts.Logger.Printf("Watching directory: %s (patterns: %s)", fi.opts.Path, strings.Join(fi.opts.Patterns, ","))

	for {
		select {
		case <-ctx.Done():
			ingested, errs := fi.Counts()
			fi.opts.Logger.Printf("Watch stopping: ingested=%d errors=%d", ingested, errs)
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			fi.handleEvent(ctx, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fi.opts.Logger.Printf("watch error: %v", err)
		}
	}
}

func (fi *FolderIngestor) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !fi.matches(filepath.Base(ev.Name)) {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if isJSONL(ev.Name) {
			// Tail from last offset (or 0 if new file)
			newOffset, err := fi.processJSONL(ctx, ev.Name, fi.offset(ev.Name), false)
			if err != nil {
				fi.opts.Logger.Printf("error tailing %s: %v", ev.Name, err)
				fi.addCounts(0, 1)
				return
			}
			fi.setOffset(ev.Name, newOffset)
		} else if err := fi.processJSONFile(ctx, ev.Name); err != nil {
			fi.opts.Logger.Printf("error processing %s: %v", ev.Name, err)
			fi.addCounts(0, 1)
		}
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		fi.mu.Lock()
		delete(fi.offsets, ev.Name)
		fi.mu.Unlock()
	}
}

// processJSONL imports lines after startOffset and returns the offset just past
// the last line consumed. Unless final is set, a trailing line without a newline
// is treated as half-written and left for the next event.
func (fi *FolderIngestor) processJSONL(ctx context.Context, path string, startOffset int64, final bool) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		// File might be transiently missing (rename/rotate)
		return startOffset, err
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.Size() < startOffset {
		// Truncated: start over
		startOffset = 0
	}
	if startOffset > 0 {
		if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
			return startOffset, err
		}
	}

	reader := bufio.NewReaderSize(f, 64*1024)
	offset := startOffset
	var records []json.RawMessage
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF && (!final || len(line) == 0) {
			break
		}
		if err != nil && err != io.EOF {
			return offset, err
		}
		offset += int64(len(line))
		trim := strings.TrimSpace(string(line))
		if trim == "" {
			continue
		}
		records = append(records, json.RawMessage(trim))
	}
	if len(records) > 0 {
		res := fi.importer.Import(ctx, records)
		fi.addCounts(res.Ingested, res.Failed)
	}
	return offset, nil
}

func (fi *FolderIngestor) processJSONFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	records, err := SplitRecords(data, FormatJSON)
	if err != nil {
		return err
	}
	res := fi.importer.Import(ctx, records)
	fi.addCounts(res.Ingested, res.Failed)
	return nil
}

func (fi *FolderIngestor) offset(path string) int64 {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.offsets[path]
}

func (fi *FolderIngestor) setOffset(path string, off int64) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.offsets[path] = off
}

func (fi *FolderIngestor) addCounts(ingested, errors int) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.ingested += ingested
	fi.errors += errors
}

func isJSONL(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".jsonl") || strings.HasSuffix(lower, ".ndjson")
}
