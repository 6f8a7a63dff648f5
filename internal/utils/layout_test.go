package utils

import (
	"strings"
	"testing"

	"charm.land/lipgloss/v2"
)

func TestDetailBuilder_Row(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.Row("Path", "/system/")

	got := db.String()
	if !strings.Contains(got, "Path") {
		t.Error("Row should contain label")
	}
	if !strings.Contains(got, "/system/") {
		t.Error("Row should contain value")
	}
}

func TestDetailBuilder_Section(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.Section("Admin")

	got := db.String()
	if !strings.Contains(got, "── Admin") {
		t.Error("Section should contain heading")
	}
	if !strings.Contains(got, "───") {
		t.Error("Section should contain padding dashes")
	}
}

func TestDetailBuilder_Bullets(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.Bullets("AWS managed", []string{"ReadOnlyAccess", "IAMUserChangePassword"})
	db.Bullets("Inline", nil)

	got := db.String()
	if !strings.Contains(got, "    - ReadOnlyAccess\n    - IAMUserChangePassword\n") {
		t.Errorf("Bullets should list items, got %q", got)
	}
	if !strings.Contains(got, "Inline") || !strings.Contains(got, "—") {
		t.Errorf("empty Bullets should render a dash, got %q", got)
	}
}

func TestDetailBuilder_Blank(t *testing.T) {
	db := NewDetailBuilder(16, lipgloss.NewStyle())
	db.Row("A", "1")
	db.Blank()
	db.Row("B", "2")

	if !strings.Contains(db.String(), "\n\n") {
		t.Error("Blank should insert empty line")
	}
}
