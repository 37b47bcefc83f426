package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpCommandStructure(t *testing.T) {
	assert.NotNil(t, dumpCmd)
	assert.Equal(t, "dump", dumpCmd.Use)
	assert.NotEmpty(t, dumpCmd.Short)
	assert.NotEmpty(t, dumpCmd.Long)
	assert.NotNil(t, dumpCmd.RunE)
}

func TestDumpCommandFlags(t *testing.T) {
	flags := dumpCmd.Flags()

	jobFlag := flags.Lookup("job")
	assert.NotNil(t, jobFlag)
	assert.Equal(t, "j", jobFlag.Shorthand)
	assert.Equal(t, "", jobFlag.DefValue)

	binaryFlag := flags.Lookup("pg-dump-path")
	assert.NotNil(t, binaryFlag)
	assert.Equal(t, "", binaryFlag.DefValue)
}

func TestDumpIsAddedToRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "dump" {
			found = true
			break
		}
	}
	assert.True(t, found, "dump command should be added to root command")
}

func TestDumpMissingConfigFails(t *testing.T) {
	originalConfigFile, originalJob := cfgFile, dumpJob
	defer func() {
		cfgFile, dumpJob = originalConfigFile, originalJob
	}()

	cfgFile = "testdata/does-not-exist.yaml"
	dumpJob = "nightly_export"

	err := runDump(dumpCmd, nil)
	assert.Error(t, err)
}
