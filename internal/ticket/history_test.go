package ticket

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// seedMessages returns n messages in chronological order.
func seedMessages(n int) []Message {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]Message, n)
	for i := 0; i < n; i++ {
		msgs[i] = Message{
			ID:        fmt.Sprintf("m%04d", i),
			AuthorTag: "alice",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return msgs
}

func TestFetchHistory_MultiPage(t *testing.T) {
	// 250 messages forces three pages (100, 100, 50).
	p := NewMockPlatform()
	want := seedMessages(250)
	p.SetHistory("chan", want)

	got, err := FetchHistory(context.Background(), p, "chan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Fatalf("message %d = %s, want %s (order lost)", i, got[i].ID, want[i].ID)
		}
	}
}

func TestFetchHistory_ExactPageBoundary(t *testing.T) {
	// Exactly 100 messages: the first page is full, the second is empty.
	p := NewMockPlatform()
	want := seedMessages(100)
	p.SetHistory("chan", want)

	got, err := FetchHistory(context.Background(), p, "chan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("got %d messages, want 100", len(got))
	}
	if got[0].ID != "m0000" || got[99].ID != "m0099" {
		t.Errorf("boundary order wrong: first=%s last=%s", got[0].ID, got[99].ID)
	}
}

func TestFetchHistory_Empty(t *testing.T) {
	p := NewMockPlatform()
	got, err := FetchHistory(context.Background(), p, "chan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages, want 0", len(got))
	}
}

func TestFetchHistory_PageError(t *testing.T) {
	p := NewMockPlatform()
	p.SetHistory("chan", seedMessages(10))
	fetchErr := errors.New("rate limited")
	p.SetErr("messages", fetchErr)

	_, err := FetchHistory(context.Background(), p, "chan")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, fetchErr) {
		t.Errorf("error = %v, want wrapped %v", err, fetchErr)
	}
}
