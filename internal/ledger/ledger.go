// SPDX-License-Identifier: MIT
// Package ledger persists the recovery artifacts that outlive a sync run, so
// the user can always find backups, merge hand-offs, and moved-aside files.
package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/skaphos/dotkeeper/internal/model"
)

// EntryStatus represents whether an entry's artifacts are still on disk.
type EntryStatus string

const (
	StatusPresent  EntryStatus = "present"
	StatusMissing  EntryStatus = "missing"
	StatusResolved EntryStatus = "resolved"
)

// Reason explains why a run left artifacts behind.
type Reason string

const (
	ReasonRestoreFailed Reason = "restore_failed"
	ReasonAborted       Reason = "aborted"
	ReasonNeedsMerge    Reason = "needs_merge"
	ReasonCollisions    Reason = "collisions"
	ReasonSnapshot      Reason = "snapshot"
)

// Entry is a single run in the ledger.
type Entry struct {
	RunID     string          `yaml:"run_id"`
	StartedAt time.Time       `yaml:"started_at"`
	Reasons   []Reason        `yaml:"reasons"`
	Error     string          `yaml:"error,omitempty"`
	Artifacts model.Artifacts `yaml:"artifacts"`
	LastSeen  time.Time       `yaml:"last_seen,omitempty"`
	Status    EntryStatus     `yaml:"status"`
}

// Paths returns the artifact locations that are set.
func (e Entry) Paths() []string {
	var out []string
	for _, p := range []string{e.Artifacts.BackupDir, e.Artifacts.MergeDir, e.Artifacts.CollisionDir, e.Artifacts.SnapshotPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Ledger is the per-user list of runs whose artifacts survive.
type Ledger struct {
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
	Entries   []Entry   `yaml:"runs"`
}

// Load reads a ledger file. A missing file yields an empty ledger.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Ledger{}, nil
		}
		return nil, err
	}
	var l Ledger
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	return &l, nil
}

// Save writes the ledger atomically.
func Save(l *Ledger, path string) error {
	if l == nil {
		return errors.New("ledger is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Upsert adds or updates an entry by run ID. Reasons are merged.
func (l *Ledger) Upsert(entry Entry) {
	if entry.Status == "" {
		entry.Status = StatusPresent
	}
	for i := range l.Entries {
		if l.Entries[i].RunID != entry.RunID {
			continue
		}
		existing := l.Entries[i]
		entry.Reasons = mergeReasons(existing.Reasons, entry.Reasons)
		if entry.StartedAt.IsZero() {
			entry.StartedAt = existing.StartedAt
		}
		if entry.Artifacts.BackupDir == "" {
			entry.Artifacts.BackupDir = existing.Artifacts.BackupDir
		}
		if entry.Artifacts.MergeDir == "" {
			entry.Artifacts.MergeDir = existing.Artifacts.MergeDir
		}
		if entry.Artifacts.CollisionDir == "" {
			entry.Artifacts.CollisionDir = existing.Artifacts.CollisionDir
		}
		if entry.Artifacts.SnapshotPath == "" {
			entry.Artifacts.SnapshotPath = existing.Artifacts.SnapshotPath
		}
		l.Entries[i] = entry
		return
	}
	l.Entries = append(l.Entries, entry)
}

func mergeReasons(a, b []Reason) []Reason {
	seen := map[Reason]struct{}{}
	var out []Reason
	for _, r := range append(append([]Reason(nil), a...), b...) {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ValidatePaths checks every unresolved entry against the filesystem and
// marks it missing once none of its artifacts exist anymore.
func (l *Ledger) ValidatePaths() error {
	for i := range l.Entries {
		if l.Entries[i].Status == StatusResolved {
			continue
		}
		present := false
		for _, p := range l.Entries[i].Paths() {
			_, err := os.Stat(p)
			if err == nil {
				present = true
				break
			}
			if !os.IsNotExist(err) {
				return err
			}
		}
		if present {
			l.Entries[i].Status = StatusPresent
			continue
		}
		l.Entries[i].Status = StatusMissing
	}
	return nil
}

// PruneStale removes missing or resolved entries older than the threshold.
func (l *Ledger) PruneStale(olderThan time.Duration) int {
	if olderThan <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-olderThan)
	var kept []Entry
	pruned := 0
	for _, entry := range l.Entries {
		if entry.Status != StatusPresent && entry.LastSeen.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, entry)
	}
	l.Entries = kept
	return pruned
}

// Remove drops the entry for runID and reports whether one existed.
func (l *Ledger) Remove(runID string) bool {
	for i := range l.Entries {
		if l.Entries[i].RunID == runID {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// FindByRunID returns the entry matching runID, or nil.
func (l *Ledger) FindByRunID(runID string) *Entry {
	for i := range l.Entries {
		if l.Entries[i].RunID == runID {
			return &l.Entries[i]
		}
	}
	return nil
}

// LatestWithMerge returns the newest present entry that has a merge
// directory, or nil.
func (l *Ledger) LatestWithMerge() *Entry {
	var best *Entry
	for i := range l.Entries {
		e := &l.Entries[i]
		if e.Status != StatusPresent || e.Artifacts.MergeDir == "" {
			continue
		}
		if best == nil || e.RunID > best.RunID {
			best = e
		}
	}
	return best
}

// Pending returns present entries.
func (l *Ledger) Pending() []Entry {
	var out []Entry
	for _, e := range l.Entries {
		if e.Status == StatusPresent {
			out = append(out, e)
		}
	}
	return out
}
