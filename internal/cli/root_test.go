package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rollcall", cmd.Use)
	assert.Contains(t, cmd.Long, "terminal")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "fetch", "export-users"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"device", "interval", "rollover-hour", "roster", "out", "db", "metrics-listen"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "flag %s should exist", name)
	}
}

func TestFetchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	fetchCmd, _, err := cmd.Find([]string{"fetch"})
	require.NoError(t, err)

	outFlag := fetchCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "attendance.csv", outFlag.DefValue)
}

func TestExportUsersCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	exportCmd, _, err := cmd.Find([]string{"export-users"})
	require.NoError(t, err)

	outFlag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "users.csv", outFlag.DefValue)
}
