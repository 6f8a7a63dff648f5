package utils

import (
	"testing"
	"time"
)

func TestTimeOrDash(t *testing.T) {
	tests := []struct {
		name   string
		t      time.Time
		layout string
		want   string
	}{
		{"zero time", time.Time{}, DateTime, "—"},
		{"valid date", time.Date(2026, 2, 25, 14, 30, 0, 0, time.UTC), DateTime, "2026-02-25 14:30"},
		{"with seconds", time.Date(2026, 3, 15, 8, 45, 30, 0, time.UTC), DateTimeSec, "2026-03-15 08:45:30"},
	}

	for _, tt := range tests {
		got := TimeOrDash(tt.t, tt.layout)
		if got != tt.want {
			t.Errorf("TimeOrDash(%v, %q) = %q, want %q", tt.t, tt.layout, got, tt.want)
		}
	}
}

func TestListOrDash(t *testing.T) {
	if got := ListOrDash(nil); got != "—" {
		t.Errorf("ListOrDash(nil) = %q", got)
	}
	if got := ListOrDash([]string{"Admin", "Steward"}); got != "Admin, Steward" {
		t.Errorf("ListOrDash = %q", got)
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "—"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-47 * time.Hour), "47h"},
		{now.Add(-72 * time.Hour), "3d"},
	}

	for _, tt := range tests {
		if got := Age(tt.t, now); got != tt.want {
			t.Errorf("Age(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"wJalrXUtnFEMI/K7MDENG", "*****************DENG"},
		{"abcd", "****"},
		{"ab", "**"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Mask(tt.input); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
