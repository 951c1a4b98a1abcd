package streamable

import (
	"testing"
	"time"
)

func TestTrack_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"zero never expires", time.Time{}, false},
		{"future", now.Add(time.Minute), false},
		{"exactly now", now, true},
		{"past", now.Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Track{ID: "t", ExpiresAt: tt.expires}
			if got := tr.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrack_Unloaded(t *testing.T) {
	tr := Track{
		ID:        "t1",
		Title:     "Song",
		Artists:   []string{"A"},
		Audio:     []Streamable{{ID: "a"}},
		Video:     []Streamable{{ID: "v"}},
		ExpiresAt: time.Now(),
	}

	u := tr.Unloaded()

	if u.IsLoaded() {
		t.Error("Unloaded() should drop streamables")
	}
	if !u.ExpiresAt.IsZero() {
		t.Error("Unloaded() should reset expiry")
	}
	if u.Title != "Song" {
		t.Errorf("Title = %q, want Song", u.Title)
	}
	u.Artists[0] = "B"
	if tr.Artists[0] != "A" {
		t.Error("Unloaded() should not share the artists slice")
	}
}

func TestSameSource(t *testing.T) {
	a := HTTP{URL: "https://cdn/x"}
	b := HTTP{URL: "https://cdn/x", Headers: map[string]string{"k": "v"}}
	c := HTTP{URL: "https://cdn/y"}

	if !SameSource(a, b) {
		t.Error("same URL should be the same source")
	}
	if SameSource(a, c) {
		t.Error("different URLs should differ")
	}
	if SameSource(a, Channel{}) {
		t.Error("different kinds should differ")
	}
	if SameSource(Channel{}, Channel{}) {
		t.Error("nil readers should never compare equal")
	}
}
