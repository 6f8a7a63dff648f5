package theme

import (
	"strings"
	"testing"
)

func TestDashboardBoxStyle_HasBorder(t *testing.T) {
	// Rounded border uses ╭ at top-left
	rendered := DashboardBoxStyle.Render("test")
	if !strings.ContainsRune(rendered, '╭') {
		t.Error("expected DashboardBoxStyle to use rounded border")
	}
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		status string
		want   any
	}{
		{"bound", Success},
		{"Active", Success},
		{"create", Success},
		{"missing", Error},
		{"Inactive", Error},
		{"delete", Error},
		{"pending", Warning},
		{"unbound", Warning},
		{"update", Warning},
		{"something-random", Muted},
	}

	for _, tt := range tests {
		if got := StatusColor(tt.status); got != tt.want {
			t.Errorf("StatusColor(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRenderStatus_ContainsBullet(t *testing.T) {
	r := RenderStatus("bound")
	if !strings.ContainsRune(r, '●') {
		t.Error("RenderStatus should contain bullet ●")
	}
	if !strings.Contains(r, "bound") {
		t.Error("RenderStatus should contain the status")
	}
}

func TestOpStyle_Renders(t *testing.T) {
	if got := OpStyle("delete").Render("- user:bob"); !strings.Contains(got, "user:bob") {
		t.Errorf("OpStyle render lost text: %q", got)
	}
}
