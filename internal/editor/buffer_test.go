//go:build unit

package editor

import (
	"sync"
	"testing"
	"time"
)

type fakeSurface struct {
	mu       sync.Mutex
	content  string
	setCalls int
}

func (s *fakeSurface) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

func (s *fakeSurface) SetContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
	s.setCalls++
}

func (s *fakeSurface) sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}

type sinkRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *sinkRecorder) record(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, content)
}

func (r *sinkRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func TestBuffer_StateMachine(t *testing.T) {
	surface := &fakeSurface{}
	sink := &sinkRecorder{}
	b := New(surface, sink.record, 20*time.Millisecond)
	defer b.Close()

	if got := b.State(); got != StateEmpty {
		t.Fatalf("new buffer state = %v, want empty", got)
	}

	b.SetValue("<p>hello</p>")
	if got := b.State(); got != StateLoaded {
		t.Fatalf("state after SetValue = %v, want loaded", got)
	}

	b.SurfaceChanged("<p>hello there</p>")
	if got := b.State(); got != StateDirty {
		t.Fatalf("state after edit = %v, want dirty", got)
	}

	time.Sleep(60 * time.Millisecond)
	if got := b.State(); got != StateLoaded {
		t.Fatalf("state after debounce fired = %v, want loaded", got)
	}

	b.Reset()
	if got := b.State(); got != StateEmpty {
		t.Fatalf("state after Reset = %v, want empty", got)
	}
}

func TestBuffer_BurstCoalescesToOnePropagation(t *testing.T) {
	surface := &fakeSurface{}
	sink := &sinkRecorder{}
	b := New(surface, sink.record, 30*time.Millisecond)
	defer b.Close()

	b.SetValue("<p>start</p>")
	b.SurfaceChanged("<p>a</p>")
	b.SurfaceChanged("<p>ab</p>")
	b.SurfaceChanged("<p>abc</p>")

	time.Sleep(100 * time.Millisecond)

	calls := sink.snapshot()
	if len(calls) != 1 {
		t.Fatalf("burst propagated %d times, want exactly 1", len(calls))
	}
	if calls[0] != "<p>abc</p>" {
		t.Fatalf("propagated %q, want the last edit", calls[0])
	}
}

func TestBuffer_EchoDoesNotPropagate(t *testing.T) {
	surface := &fakeSurface{}
	sink := &sinkRecorder{}
	b := New(surface, sink.record, 10*time.Millisecond)
	defer b.Close()

	b.SetValue("<p>v</p>")

	// Surface reporting back what was just pushed into it is an echo of
	// our own write, not an edit.
	b.SurfaceChanged("<p>v</p>")
	time.Sleep(50 * time.Millisecond)
	if calls := sink.snapshot(); len(calls) != 0 {
		t.Fatalf("echo propagated %d times, want 0", len(calls))
	}
	if got := b.State(); got != StateLoaded {
		t.Fatalf("state after echo = %v, want loaded", got)
	}
}

func TestBuffer_IdenticalParentValueSkipsSurfaceWrite(t *testing.T) {
	surface := &fakeSurface{content: "<p>same</p>"}
	sink := &sinkRecorder{}
	b := New(surface, sink.record, 10*time.Millisecond)
	defer b.Close()

	b.SetValue("<p>same</p>")
	if got := surface.sets(); got != 0 {
		t.Fatalf("identical value forced %d surface writes, want 0", got)
	}

	b.SetValue("<p>different</p>")
	if got := surface.sets(); got != 1 {
		t.Fatalf("changed value wrote %d times, want 1", got)
	}
}

func TestBuffer_FlushFiresPendingImmediately(t *testing.T) {
	surface := &fakeSurface{}
	sink := &sinkRecorder{}
	b := New(surface, sink.record, time.Hour)
	defer b.Close()

	b.SetValue("<p>start</p>")
	b.SurfaceChanged("<p>edited</p>")
	if calls := sink.snapshot(); len(calls) != 0 {
		t.Fatal("nothing should propagate before the window closes")
	}

	b.Flush()
	calls := sink.snapshot()
	if len(calls) != 1 || calls[0] != "<p>edited</p>" {
		t.Fatalf("Flush propagated %v, want the pending edit once", calls)
	}
	if got := b.State(); got != StateLoaded {
		t.Fatalf("state after Flush = %v, want loaded", got)
	}

	// A second Flush has nothing pending.
	b.Flush()
	if calls := sink.snapshot(); len(calls) != 1 {
		t.Fatalf("idle Flush propagated again, got %d calls", len(calls))
	}
}

func TestBuffer_CloseCancelsPendingTimer(t *testing.T) {
	surface := &fakeSurface{}
	sink := &sinkRecorder{}
	b := New(surface, sink.record, 20*time.Millisecond)

	b.SetValue("<p>start</p>")
	b.SurfaceChanged("<p>edited</p>")
	b.Close()

	time.Sleep(80 * time.Millisecond)
	if calls := sink.snapshot(); len(calls) != 0 {
		t.Fatalf("timer fired into a closed buffer, got %d propagations", len(calls))
	}

	// Closed buffers ignore everything.
	b.SetValue("<p>late</p>")
	b.SurfaceChanged("<p>late edit</p>")
	if got := surface.sets(); got != 1 {
		t.Fatalf("closed buffer wrote to the surface, got %d writes", got)
	}
}

func TestBuffer_ResetDropsStaleContent(t *testing.T) {
	surface := &fakeSurface{}
	sink := &sinkRecorder{}
	b := New(surface, sink.record, 20*time.Millisecond)
	defer b.Close()

	b.SetValue("<p>post one</p>")
	b.SurfaceChanged("<p>post one edited</p>")
	b.Reset()

	time.Sleep(80 * time.Millisecond)
	if calls := sink.snapshot(); len(calls) != 0 {
		t.Fatalf("stale edit leaked through Reset, got %d propagations", len(calls))
	}
	if got := b.WordCount(); got != 0 {
		t.Fatalf("word count after Reset = %d, want 0", got)
	}
}

func TestBuffer_Counts(t *testing.T) {
	surface := &fakeSurface{}
	b := New(surface, nil, 10*time.Millisecond)
	defer b.Close()

	b.SetValue("<p>Hello   <strong>big</strong>\nworld</p>")
	if got := b.WordCount(); got != 3 {
		t.Fatalf("word count = %d, want 3", got)
	}
	// "Hello big world" collapsed is 15 runes.
	if got := b.CharCount(); got != 15 {
		t.Fatalf("char count = %d, want 15", got)
	}

	b.SurfaceChanged("<p>Hi</p>")
	if got := b.WordCount(); got != 1 {
		t.Fatalf("word count after edit = %d, want 1", got)
	}
	if got := b.CharCount(); got != 2 {
		t.Fatalf("char count after edit = %d, want 2", got)
	}
}
