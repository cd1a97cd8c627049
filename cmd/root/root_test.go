package root_test

import (
	"testing"

	"fjacquet/ledgerflow/cmd/root"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	root.Init()
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "ledgerflow", root.Cmd.Use)
	assert.Contains(t, root.Cmd.Short, "normalize payment exports")
	assert.Contains(t, root.Cmd.Long, "canonical")
	assert.NotNil(t, root.Cmd.PersistentPreRunE)
	assert.NotNil(t, root.Cmd.PersistentPostRun)
	assert.True(t, root.Cmd.SilenceUsage)
}

func TestRootCommand_Flags(t *testing.T) {
	flags := root.Cmd.PersistentFlags()

	configFlag := flags.Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "config.yaml", configFlag.DefValue)

	inputFlag := flags.Lookup("input")
	require.NotNil(t, inputFlag)
	assert.Equal(t, "i", inputFlag.Shorthand)

	outputFlag := flags.Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)

	assert.NotNil(t, flags.Lookup("log-level"))
	assert.NotNil(t, flags.Lookup("log-format"))
}

func TestFinish(t *testing.T) {
	logger := logging.NewMockLogger()
	previous := root.Log
	root.Log = logger
	t.Cleanup(func() { root.Log = previous })

	assert.Error(t, root.Finish(nil, assert.AnError))
	assert.Empty(t, logger.GetEntries())

	require.NoError(t, root.Finish(&pipeline.RunSummary{RunID: "abc", Stage: pipeline.StageReport}, nil))
	assert.True(t, logger.HasEntry("INFO", "Run complete"))
}
