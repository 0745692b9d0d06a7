package entity

import (
	"testing"
	"time"
)

func TestKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		parsed, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", k.String(), err)
		}
		if parsed != k {
			t.Errorf("ParseKind(%q) = %v, want %v", k.String(), parsed, k)
		}
	}

	if _, err := ParseKind("nonsense"); err == nil {
		t.Error("expected error for unknown kind tag")
	}
}

func TestKindSingleton(t *testing.T) {
	singletons := map[Kind]bool{
		KindMemory:    true,
		KindNorthstar: true,
	}
	for _, k := range Kinds() {
		if got := k.Singleton(); got != singletons[k] {
			t.Errorf("%v.Singleton() = %v, want %v", k, got, singletons[k])
		}
	}
}

func TestCaptureValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Capture)
		wantErr bool
	}{
		{"valid", func(c *Capture) {}, false},
		{"missing id", func(c *Capture) { c.ID = "" }, true},
		{"missing content", func(c *Capture) { c.Content = "" }, true},
		{"bad date", func(c *Capture) { c.Date = "June 1" }, true},
		{"bad status", func(c *Capture) { c.Status = "maybe" }, true},
		{"done is valid", func(c *Capture) { c.Status = CaptureDone }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCapture("2025-06-01", "buy milk")
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckinValidate(t *testing.T) {
	c := NewCheckin("2025-06-01", Morning)
	if err := c.Validate(); err != nil {
		t.Fatalf("valid checkin rejected: %v", err)
	}

	c.TimeOfDay = "noon"
	if err := c.Validate(); err == nil {
		t.Error("expected error for invalid time of day")
	}
}

func TestSingletonIDs(t *testing.T) {
	m := NewMemory()
	if err := m.Validate(); err != nil {
		t.Fatalf("valid memory rejected: %v", err)
	}
	m.ID = "other"
	if err := m.Validate(); err == nil {
		t.Error("memory with non-fixed id should be invalid")
	}

	n := NewNorthstar("write every day")
	if err := n.Validate(); err != nil {
		t.Fatalf("valid northstar rejected: %v", err)
	}
	n.ID = "other"
	if err := n.Validate(); err == nil {
		t.Error("northstar with non-fixed id should be invalid")
	}
}

func TestReviewValidate(t *testing.T) {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	r := NewReview(PeriodWeekly, start, end)
	if err := r.Validate(); err != nil {
		t.Fatalf("valid review rejected: %v", err)
	}

	r.PeriodEnd = start.AddDate(0, 0, -1)
	if err := r.Validate(); err == nil {
		t.Error("expected error for end before start")
	}
}

func TestMarkSynced(t *testing.T) {
	c := NewCapture("2025-06-01", "buy milk")
	at := time.Now().UTC()

	c.MarkSynced("file-123", at)

	if c.RemoteFileID != "file-123" {
		t.Errorf("RemoteFileID = %q, want file-123", c.RemoteFileID)
	}
	if c.SyncStatus != SyncSynced {
		t.Errorf("SyncStatus = %q, want synced", c.SyncStatus)
	}
	if c.SyncedAt == nil || !c.SyncedAt.Equal(at) {
		t.Errorf("SyncedAt = %v, want %v", c.SyncedAt, at)
	}
}
