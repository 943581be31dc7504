package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders aligned columns for terminal reports. Numeric columns can
// be right-aligned and free-text columns capped in width.
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
	right   []bool
	max     []int
	empty   string
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	t := &Table{
		headers: headers,
		widths:  make([]int, len(headers)),
		right:   make([]bool, len(headers)),
		max:     make([]int, len(headers)),
	}
	for i, h := range headers {
		t.widths[i] = visualLen(h)
	}
	return t
}

// AlignRight right-aligns the given columns. Out of range indexes are
// ignored.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		if c >= 0 && c < len(t.right) {
			t.right[c] = true
		}
	}
	return t
}

// MaxWidth caps the width of column col; longer plain cells end in "…".
func (t *Table) MaxWidth(col, width int) *Table {
	if col >= 0 && col < len(t.max) && width > 1 {
		t.max[col] = width
		if t.widths[col] > width {
			t.widths[col] = width
		}
	}
	return t
}

// EmptyText is printed under the header when the table has no rows.
func (t *Table) EmptyText(s string) *Table {
	t.empty = s
	return t
}

// AddRow adds a row. Missing values are blank and extra values are dropped.
func (t *Table) AddRow(values ...string) {
	row := make([]string, len(t.headers))
	for i := range t.headers {
		if i < len(values) {
			row[i] = truncate(values[i], t.max[i])
		}
		if n := visualLen(row[i]); n > t.widths[i] {
			t.widths[i] = n
		}
	}
	t.rows = append(t.rows, row)
}

// Len is the number of rows added.
func (t *Table) Len() int { return len(t.rows) }

// Render returns the formatted table.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}
	headerStyle := lipgloss.NewStyle()
	if !noColor {
		headerStyle = headerStyle.Bold(true).Foreground(ColorPrimary)
	}

	var sb strings.Builder
	t.writeRow(&sb, t.headers, func(s string) string { return headerStyle.Render(s) })

	for i, w := range t.widths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(StyleMuted.Render(strings.Repeat("─", w)))
	}
	sb.WriteString("\n")

	if len(t.rows) == 0 && t.empty != "" {
		sb.WriteString(StyleMuted.Render(t.empty))
		sb.WriteString("\n")
	}
	for _, row := range t.rows {
		t.writeRow(&sb, row, nil)
	}
	return sb.String()
}

func (t *Table) writeRow(sb *strings.Builder, cells []string, style func(string) string) {
	for i, cell := range cells {
		if i > 0 {
			sb.WriteString("  ")
		}
		cell = pad(cell, t.widths[i], t.right[i])
		if style != nil {
			cell = style(cell)
		}
		sb.WriteString(cell)
	}
	sb.WriteString("\n")
}

// String implements fmt.Stringer.
func (t *Table) String() string {
	return t.Render()
}

// Fprint writes the table to w.
func (t *Table) Fprint(w io.Writer) {
	fmt.Fprint(w, t.Render())
}

// visualLen is the printed width of s, ignoring ANSI escapes.
func visualLen(s string) int {
	return lipgloss.Width(s)
}

// pad fills s with spaces up to width on the left or right.
func pad(s string, width int, right bool) string {
	n := visualLen(s)
	if n >= width {
		return s
	}
	fill := strings.Repeat(" ", width-n)
	if right {
		return fill + s
	}
	return s + fill
}

// truncate shortens plain text to width runes. Styled cells pass through
// untouched.
func truncate(s string, width int) string {
	if width <= 0 || strings.Contains(s, "\x1b") {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
