package dedup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileWarmTier keeps marked keys as JSON lines in a local file, typically
// on the ephemeral disk of a warm serverless host. Unmark appends a
// tombstone line. Mark is atomic within one process only.
type FileWarmTier struct {
	mu   sync.Mutex
	path string
	ttl  time.Duration
	now  func() time.Time
}

type fileLine struct {
	Chain string `json:"chain"`
	Key   string `json:"key"`
	At    int64  `json:"at"` // unix ms
	Del   bool   `json:"del,omitempty"`
}

// NewFileWarmTier creates a file-backed warm tier. The parent directory is
// created if missing.
func NewFileWarmTier(path string, ttl time.Duration) (*FileWarmTier, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create warm tier directory: %w", err)
	}
	return &FileWarmTier{path: path, ttl: ttl, now: time.Now}, nil
}

var _ WarmTier = (*FileWarmTier)(nil)

// Read returns the live keys for a chain in append order. When most lines
// in the file are expired or deleted it is compacted.
func (f *FileWarmTier) Read(_ context.Context, chainID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines, err := f.readLines()
	if err != nil {
		return nil, err
	}

	live := f.live(lines)
	var out []string
	for _, l := range live {
		if l.Chain == chainID {
			out = append(out, l.Key)
		}
	}

	if dead := len(lines) - len(live); dead > 0 && dead >= len(live) {
		if err := f.rewrite(live); err != nil {
			return out, fmt.Errorf("compact warm tier: %w", err)
		}
	}
	return out, nil
}

// Mark appends key unless it is already live.
func (f *FileWarmTier) Mark(_ context.Context, chainID, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines, err := f.readLines()
	if err != nil {
		return false, err
	}
	for _, l := range f.live(lines) {
		if l.Chain == chainID && l.Key == key {
			return true, nil
		}
	}
	return false, f.append(fileLine{Chain: chainID, Key: key, At: f.now().UnixMilli()})
}

// Unmark appends a tombstone for key.
func (f *FileWarmTier) Unmark(_ context.Context, chainID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.append(fileLine{Chain: chainID, Key: key, At: f.now().UnixMilli(), Del: true})
}

// live replays lines in order and returns the unexpired marks that were
// not deleted afterwards.
func (f *FileWarmTier) live(lines []fileLine) []fileLine {
	cutoff := f.now().Add(-f.ttl).UnixMilli()
	type id struct{ chain, key string }
	pos := make(map[id]int)
	var out []fileLine
	for _, l := range lines {
		k := id{l.Chain, l.Key}
		if i, ok := pos[k]; ok {
			out[i].Key = ""
			delete(pos, k)
		}
		if l.Del || l.At <= cutoff {
			continue
		}
		pos[k] = len(out)
		out = append(out, l)
	}
	kept := out[:0]
	for _, l := range out {
		if l.Key != "" {
			kept = append(kept, l)
		}
	}
	return kept
}

func (f *FileWarmTier) append(l fileLine) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open warm tier: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("append warm tier: %w", err)
	}
	return nil
}

// readLines parses the file, skipping lines that do not decode (e.g. a
// torn final write).
func (f *FileWarmTier) readLines() ([]fileLine, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open warm tier: %w", err)
	}
	defer file.Close()

	var lines []fileLine
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var l fileLine
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil || l.Key == "" {
			continue
		}
		lines = append(lines, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read warm tier: %w", err)
	}
	return lines, nil
}

func (f *FileWarmTier) rewrite(lines []fileLine) error {
	tmp := f.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
