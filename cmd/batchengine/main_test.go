package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/batchengine/internal/cli"
	"github.com/rshade/batchengine/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		assert.NotNil(t, root)
		assert.Equal(t, "batchengine", root.Use)
	})
}

func TestRun(t *testing.T) {
	t.Setenv("BATCHENGINE_HOME", t.TempDir())
	t.Setenv("BATCHENGINE_STORE_DIR", filepath.Join(t.TempDir(), "data"))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "version", args: []string{"version"}, want: cli.ExitOK},
		{name: "unknown command", args: []string{"frobnicate"}, want: cli.ExitFailure},
		{name: "missing batch", args: []string{"batch", "get", "nope"}, want: cli.ExitNotFound},
		{name: "invalid batch", args: []string{"batch", "create", "--type", "noop", "--items", "-1"}, want: cli.ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(context.Background(), append(tt.args, "--env-file", filepath.Join(t.TempDir(), "none.env"))))
		})
	}
}
