// Package editor mediates between an external rich-text editing surface,
// which owns its own document model, and the plain HTML string the post
// aggregate expects. The surface and the parent both feed content in, so
// the buffer has to break the feedback loop a naive bridge creates: surface
// change propagates up, the parent hands the same value back down, the
// surface treats it as fresh input, and the cycle never ends.
package editor

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultDebounce is the propagation window applied when no explicit
// duration is configured.
const DefaultDebounce = 300 * time.Millisecond

// Surface is the external editing widget. It reports its live document as
// HTML and accepts programmatic replacement of it.
type Surface interface {
	Content() string
	SetContent(content string)
}

// State tracks where the buffer is in its editing lifecycle.
type State int

const (
	// StateEmpty means no value has been assigned yet.
	StateEmpty State = iota
	// StateLoaded means the buffer and parent agree on the content.
	StateLoaded
	// StateDirty means an edit is waiting on the debounce window.
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// Buffer holds in-progress content for exactly one post. It must be Reset
// or Closed when the edited post changes; a buffer never outlives the post
// identity it was opened for.
type Buffer struct {
	mu       sync.Mutex
	surface  Surface
	sink     func(content string)
	debounce time.Duration
	strip    *bluemonday.Policy

	state State
	// parentValue is the content as the parent last observed it, either
	// through SetValue or through a fired propagation.
	parentValue string
	// lastPushed is the content most recently written into the surface.
	// Loop prevention needs both markers: an incoming surface change is
	// propagated only when it differs from parentValue AND lastPushed.
	// Collapsing them into one flag reintroduces the loop.
	lastPushed string
	pending    string
	timer      *time.Timer
	closed     bool
	words      int
	chars      int
}

// New creates a Buffer bridging surface to sink. sink receives the buffered
// HTML once per debounce window. A non-positive debounce falls back to
// DefaultDebounce.
func New(surface Surface, sink func(content string), debounce time.Duration) *Buffer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Buffer{
		surface:  surface,
		sink:     sink,
		debounce: debounce,
		strip:    bluemonday.StrictPolicy(),
		state:    StateEmpty,
	}
}

// State reports the current lifecycle state.
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetValue assigns the parent-supplied content, for example when the edited
// post changes or the parent resets content programmatically. The surface
// is written only when the value differs from its live document; pushing
// identical content would still destroy cursor position and undo history
// inside the widget.
func (b *Buffer) SetValue(v string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.cancelTimerLocked()
	b.parentValue = v
	b.state = StateLoaded
	b.recountLocked(v)
	push := v != b.surface.Content()
	if push {
		b.lastPushed = v
	}
	b.mu.Unlock()

	if push {
		b.surface.SetContent(v)
	}
}

// SurfaceChanged reports an edit from the surface. Propagation upward is
// debounced and happens only when content differs from both the parent
// value and the last-pushed marker; anything else is an echo of our own
// write coming back around.
func (b *Buffer) SurfaceChanged(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.state == StateEmpty {
		return
	}
	if content == b.parentValue || content == b.lastPushed {
		return
	}
	b.pending = content
	b.state = StateDirty
	b.recountLocked(content)
	b.cancelTimerLocked()
	b.timer = time.AfterFunc(b.debounce, b.fire)
}

func (b *Buffer) fire() {
	b.mu.Lock()
	if b.closed || b.state != StateDirty {
		b.mu.Unlock()
		return
	}
	content := b.pending
	b.parentValue = content
	b.state = StateLoaded
	b.timer = nil
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(content)
	}
}

// Flush fires a pending propagation immediately so the parent observes the
// latest buffered content, typically right before a save. It is a no-op
// when nothing is pending.
func (b *Buffer) Flush() {
	b.mu.Lock()
	if b.closed || b.state != StateDirty {
		b.mu.Unlock()
		return
	}
	b.cancelTimerLocked()
	b.mu.Unlock()
	b.fire()
}

// Reset returns the buffer to StateEmpty and cancels any pending timer.
// Callers must Reset when the identity of the edited post changes so stale
// content never leaks into a newly opened editor.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelTimerLocked()
	b.state = StateEmpty
	b.parentValue = ""
	b.lastPushed = ""
	b.pending = ""
	b.words = 0
	b.chars = 0
}

// Close tears the buffer down. After Close no timer may fire and every
// entry point becomes a no-op.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelTimerLocked()
	b.closed = true
}

// WordCount reports the word count of the buffered content with markup
// stripped and whitespace collapsed.
func (b *Buffer) WordCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.words
}

// CharCount reports the rune count of the stripped, collapsed content.
func (b *Buffer) CharCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chars
}

func (b *Buffer) cancelTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Buffer) recountLocked(content string) {
	plain := b.strip.Sanitize(content)
	fields := strings.Fields(plain)
	b.words = len(fields)
	b.chars = utf8.RuneCountInString(strings.Join(fields, " "))
}
