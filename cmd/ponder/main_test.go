package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitHelpSystem(t *testing.T) {
	cmd := &cobra.Command{Use: appName}

	helpSystem, err := initHelpSystem(cmd)
	require.NoError(t, err)

	for _, slug := range []string{"reasoning-runs", "configuration"} {
		section, err := helpSystem.GetSectionWithSlug(slug)
		require.NoError(t, err, slug)
		assert.NotEmpty(t, section.Title)
	}
}
