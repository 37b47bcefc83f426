package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommandStructure(t *testing.T) {
	assert.NotNil(t, validateCmd)
	assert.Equal(t, "validate", validateCmd.Use)
	assert.NotEmpty(t, validateCmd.Short)
	assert.NotEmpty(t, validateCmd.Long)
	assert.NotNil(t, validateCmd.RunE)
}

func TestValidateCommandFlags(t *testing.T) {
	flags := validateCmd.Flags()

	archiveFlag := flags.Lookup("archive")
	assert.NotNil(t, archiveFlag)
	assert.Equal(t, "a", archiveFlag.Shorthand)
	assert.Equal(t, "", archiveFlag.DefValue)
}

func TestValidateIsAddedToRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "validate" {
			found = true
			break
		}
	}
	assert.True(t, found, "validate command should be added to root command")
}

func TestValidateMissingConfigFails(t *testing.T) {
	originalConfigFile, originalArchive := cfgFile, validateArchivePath
	defer func() {
		cfgFile, validateArchivePath = originalConfigFile, originalArchive
	}()

	cfgFile = "testdata/does-not-exist.yaml"
	validateArchivePath = "/tmp/does-not-exist.zip"

	err := runValidate(validateCmd, nil)
	assert.Error(t, err)
}
