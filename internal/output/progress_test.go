package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreBar(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	assert.Equal(t, "████████░░ 80/100", ScoreBar(80, 10))
	assert.Equal(t, "░░░░░░░░░░ 0/100", ScoreBar(-5, 10))
	assert.Equal(t, strings.Repeat("█", 20)+" 120/100", ScoreBar(120, 0))
	assert.Equal(t, "████████▌░ 85/100", ScoreBar(85, 10))
	assert.Equal(t, "▌░░░ 10/100", ScoreBar(10, 4))
}

func TestSection(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	lines := strings.Split(Section("Weaknesses (weekly)"), "\n")
	require.Len(t, lines, 3)
	assert.Empty(t, lines[0])
	assert.Equal(t, " Weaknesses (weekly)", lines[1])
	assert.Equal(t, " "+strings.Repeat("─", sectionWidth), lines[2])
}

func TestTrendArrow(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	assert.Equal(t, "▲ +2.5", TrendArrow(2.5, true))
	assert.Equal(t, "▼ -1.0", TrendArrow(-1, false))
	assert.Equal(t, "─", TrendArrow(0.01, true))
}

func TestSeverityAndGrade(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	assert.Equal(t, "CRITICAL", Severity("critical"))
	assert.Equal(t, "LOW", Severity("low"))
	assert.Equal(t, "B", Grade("B"))
}

func TestIsTerminal_Nil(t *testing.T) {
	assert.False(t, IsTerminal(nil))
}
