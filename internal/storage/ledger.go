package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type LinkStatus string

const (
	LinkPending   LinkStatus = "pending"
	LinkCompleted LinkStatus = "completed"
	LinkFailed    LinkStatus = "failed"
)

type LinkEntry struct {
	URL       string     `json:"url"`
	Status    LinkStatus `json:"status"`
	AddedAt   time.Time  `json:"added_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Error     string     `json:"error,omitempty"`
}

// LinkLedger records every product URL a run resolved and how it ended.
// Entries keep the order they were added in.
type LinkLedger struct {
	mu       sync.RWMutex
	order    []string
	links    map[string]*LinkEntry
	filename string
}

func NewLinkLedger(filename string) (*LinkLedger, error) {
	l := &LinkLedger{
		links:    make(map[string]*LinkEntry),
		filename: filename,
	}

	if err := l.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return l, nil
}

// AddBatch registers urls as pending. Known URLs are reset to pending.
func (l *LinkLedger) AddBatch(urls []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for _, url := range urls {
		if url == "" {
			continue
		}

		entry, exists := l.links[url]
		if !exists {
			entry = &LinkEntry{URL: url, AddedAt: now}
			l.links[url] = entry
			l.order = append(l.order, url)
		}
		entry.Status = LinkPending
		entry.UpdatedAt = now
		entry.Error = ""
	}

	return l.save()
}

func (l *LinkLedger) MarkCompleted(url string) error {
	return l.updateStatus(url, LinkCompleted, "")
}

func (l *LinkLedger) MarkFailed(url string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return l.updateStatus(url, LinkFailed, msg)
}

func (l *LinkLedger) updateStatus(url string, status LinkStatus, errorMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.links[url]
	if !exists {
		return fmt.Errorf("link not found: %s", url)
	}

	entry.Status = status
	entry.UpdatedAt = time.Now()
	entry.Error = errorMsg

	return l.save()
}

func (l *LinkLedger) Get(url string) (LinkEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, exists := l.links[url]
	if !exists {
		return LinkEntry{}, false
	}
	return *entry, true
}

// Pending returns the URLs that have not finished, in insertion order.
func (l *LinkLedger) Pending() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var pending []string
	for _, url := range l.order {
		if l.links[url].Status == LinkPending {
			pending = append(pending, url)
		}
	}
	return pending
}

func (l *LinkLedger) Stats() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]int)
	for _, entry := range l.links {
		stats[string(entry.Status)]++
	}
	stats["total"] = len(l.links)
	return stats
}

func (l *LinkLedger) entries() []*LinkEntry {
	entries := make([]*LinkEntry, 0, len(l.order))
	for _, url := range l.order {
		entries = append(entries, l.links[url])
	}
	return entries
}

func (l *LinkLedger) save() error {
	data, err := json.MarshalIndent(l.entries(), "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(l.filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// Replace atomically
	tmpFile := l.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, l.filename)
}

func (l *LinkLedger) load() error {
	data, err := os.ReadFile(l.filename)
	if err != nil {
		return err
	}

	var entries []*LinkEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode ledger: %w", err)
	}

	for _, entry := range entries {
		if _, exists := l.links[entry.URL]; exists {
			continue
		}
		l.links[entry.URL] = entry
		l.order = append(l.order, entry.URL)
	}
	return nil
}
