package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmd_SubcommandsRegistered(t *testing.T) {
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range []string{"log", "metrics", "trends", "weaknesses", "suggest", "plan", "track", "watch", "mcp", "doctor"} {
		assert.True(t, registered[name], "%s subcommand not registered on rootCmd", name)
	}
}

func TestLogCmd_SubcommandsRegistered(t *testing.T) {
	var names []string
	for _, cmd := range logCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"session", "assessment", "review", "list"}, names)
}

func TestTimeframeFlag(t *testing.T) {
	prev := flagTimeframe
	t.Cleanup(func() { flagTimeframe = prev })

	flagTimeframe = "Monthly"
	tf, err := timeframe()
	assert.NoError(t, err)
	assert.Equal(t, "monthly", string(tf))

	flagTimeframe = "yearly"
	_, err = timeframe()
	assert.Error(t, err)
}
