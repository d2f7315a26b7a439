package hub

import (
	"context"
	"testing"
	"time"
)

func TestBroadcastJSON_RemembersLast(t *testing.T) {
	h := New("test")

	if err := h.BroadcastJSON(map[string]int{"seq": 7}); err != nil {
		t.Fatalf("BroadcastJSON() error: %v", err)
	}

	last := h.last.Load()
	if last == nil {
		t.Fatal("last message not stored")
	}
	if string(last.Data) != `{"seq":7}` {
		t.Errorf("last = %s, want {\"seq\":7}", last.Data)
	}
}

func TestBroadcastJSON_Unencodable(t *testing.T) {
	h := New("test")
	if err := h.BroadcastJSON(make(chan int)); err == nil {
		t.Error("BroadcastJSON(chan) error = nil, want encode error")
	}
}

func TestBroadcast_DropsWhenBackedUp(t *testing.T) {
	h := New("test")

	// Nothing drains the channel while Run is not started.
	for i := 0; i < cap(h.broadcast)+10; i++ {
		h.Broadcast(Message{Data: []byte("{}")})
	}

	if got := h.Dropped(); got != 10 {
		t.Errorf("Dropped() = %d, want 10", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !h.IsRunning() {
		t.Fatal("IsRunning() = false after Run started")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if h.IsRunning() {
		t.Error("IsRunning() = true after stop")
	}
	if c := NewClient(h, nil); c != nil {
		t.Error("NewClient() on stopped hub = client, want nil")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestLatest(t *testing.T) {
	tests := []struct {
		name   string
		queued []string
		close  bool
		want   string
		wantOK bool
	}{
		{"nothing queued", nil, false, "a", true},
		{"skips to newest", []string{"b", "c"}, false, "c", true},
		{"closed after queue", []string{"b"}, true, "b", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan Message, 4)
			for _, q := range tc.queued {
				ch <- Message{Data: []byte(q)}
			}
			if tc.close {
				close(ch)
			}

			got, ok := latest(ch, Message{Data: []byte("a")}, true)
			if string(got.Data) != tc.want || ok != tc.wantOK {
				t.Errorf("latest() = %s, %v, want %s, %v", got.Data, ok, tc.want, tc.wantOK)
			}
		})
	}
}
