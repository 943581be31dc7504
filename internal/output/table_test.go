package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderLines(t *testing.T, tbl *Table) []string {
	t.Helper()
	return strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
}

func TestVisualLen_IgnoresANSI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"plain", "accuracy", 8},
		{"empty", "", 0},
		{"coloured", "\x1b[31mCRITICAL\x1b[0m", 8},
		{"stacked sequences", "\x1b[1m\x1b[34mgrade B\x1b[0m", 7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, visualLen(tc.input))
		})
	}
}

func TestPad(t *testing.T) {
	assert.Equal(t, "70  ", pad("70", 4, false))
	assert.Equal(t, "  70", pad("70", 4, true))
	assert.Equal(t, "100.0", pad("100.0", 3, true), "no truncation while padding")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Kinematics", truncate("Kinematics", 0))
	assert.Equal(t, "Kinem…", truncate("Kinematics", 6))
	assert.Equal(t, "Optics", truncate("Optics", 6))
	styled := "\x1b[31mThermodynamics\x1b[0m"
	assert.Equal(t, styled, truncate(styled, 4))
}

func TestTable_Render(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("Subject", "Accuracy")
	tbl.AddRow("Physics", "72.5")
	tbl.AddRow("Chemistry", "61.0")

	lines := renderLines(t, tbl)
	require.Len(t, lines, 4)
	assert.Equal(t, "Subject    Accuracy", lines[0])
	assert.Equal(t, strings.Repeat("─", 9)+"  "+strings.Repeat("─", 8), lines[1])
	assert.Equal(t, "Physics    72.5    ", lines[2])
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, tbl.Render(), tbl.String())
}

func TestTable_AlignRight(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("Metric", "Score").AlignRight(1, 7)
	tbl.AddRow("composite", "8.5")
	tbl.AddRow("accuracy", "100.0")

	lines := renderLines(t, tbl)
	assert.Equal(t, "composite    8.5", lines[2])
	assert.Equal(t, "accuracy   100.0", lines[3])
}

func TestTable_MaxWidth(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("Strategy", "h").MaxWidth(0, 8)
	tbl.AddRow("Spaced repetition of missed items", "1.5")

	lines := renderLines(t, tbl)
	assert.Equal(t, "Spaced …  1.5", lines[2])
}

func TestTable_EmptyText(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	lines := renderLines(t, NewTable("Time", "Kind").EmptyText("  no records"))
	require.Len(t, lines, 3)
	assert.Equal(t, "  no records", lines[2])

	assert.Len(t, renderLines(t, NewTable("Time")), 2)
	assert.Empty(t, NewTable().Render())
}

func TestTable_AlignsStyledCells(t *testing.T) {
	tbl := NewTable("Type", "Severity")
	tbl.AddRow("accuracy", "\x1b[31mCRITICAL\x1b[0m")
	tbl.AddRow("speed", "LOW")

	lines := renderLines(t, tbl)
	require.Len(t, lines, 4)
	assert.Equal(t, visualLen(lines[2]), visualLen(lines[3]))
}

func TestAddRow_Ragged(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	tbl := NewTable("A", "B")
	tbl.AddRow("only")
	tbl.AddRow("x", "y", "dropped")

	out := tbl.Render()
	assert.NotContains(t, out, "dropped")
	assert.Equal(t, "only  ", renderLines(t, tbl)[2][:6])
}

func TestSetNoColor(t *testing.T) {
	SetNoColor(true)
	assert.NotContains(t, StyleHeader.Render("test"), "\x1b[")
	assert.True(t, IsNoColor())

	SetNoColor(false)
	assert.False(t, IsNoColor())
}
