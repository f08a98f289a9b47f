// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Holder is the swappable vocabulary slot shared by the mapper and the
// hot-reload watcher.
//
// # Thread Safety
//
//	Safe for concurrent use. Get returns the current pointer; the
//	vocabulary behind it is never mutated after Set.
type Holder struct {
	mu    sync.RWMutex
	vocab *Vocabulary
}

// NewHolder creates a Holder seeded with v. A nil v seeds the built-in
// default vocabulary.
func NewHolder(v *Vocabulary) *Holder {
	if v == nil {
		v = DefaultVocabulary()
	}
	return &Holder{vocab: v}
}

// Get returns the current vocabulary.
func (h *Holder) Get() *Vocabulary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.vocab
}

// Set swaps in a new vocabulary. Nil is ignored.
func (h *Holder) Set(v *Vocabulary) {
	if v == nil {
		return
	}
	h.mu.Lock()
	h.vocab = v
	h.mu.Unlock()
}

// Watch reloads the vocabulary file into holder whenever it changes on
// disk, until ctx is cancelled. Write events are debounced so editors that
// truncate-then-write do not trigger a reload of a half-written file. A
// file that fails to parse is logged and skipped; the previous vocabulary
// stays active.
func Watch(ctx context.Context, path string, holder *Holder, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create vocabulary watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files by rename,
	// which drops a direct file watch.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch vocabulary dir %s: %w", dir, err)
	}

	const debounce = 200 * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	logger.Info("watching vocabulary file", "path", path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timerC = nil
			timer = nil
			vocab, err := LoadVocabulary(path)
			if err != nil {
				logger.Warn("vocabulary reload failed, keeping previous", "path", path, "error", err)
				continue
			}
			holder.Set(vocab)
			logger.Info("vocabulary reloaded", "path", path, "categories", len(vocab.Categories))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("vocabulary watcher error", "error", err)
		}
	}
}
