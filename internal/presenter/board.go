package presenter

import (
	"sync"
	"time"
)

// Snapshot is a consistent view of a Board.
type Snapshot struct {
	Result   *Rendering `json:"result,omitempty"`
	Notice   string     `json:"notice,omitempty"`
	Version  uint64     `json:"version"`
	Rendered time.Time  `json:"rendered_at,omitempty"`
}

// Board is an in-memory result region plus a notice line. Writes replace, never append.
type Board struct {
	mu       sync.RWMutex
	result   *Rendering
	notice   string
	version  uint64
	rendered time.Time
}

// NewBoard returns an empty Board.
func NewBoard() *Board {
	return &Board{}
}

// Render implements Display.
func (b *Board) Render(r Rendering) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = &r
	b.version++
	b.rendered = time.Now().UTC()
}

// Notify implements Notifier.
func (b *Board) Notify(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notice = message
	b.version++
}

// Snapshot returns the current content.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{Notice: b.notice, Version: b.version, Rendered: b.rendered}
	if b.result != nil {
		r := *b.result
		snap.Result = &r
	}
	return snap
}
