package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\nliveness:\n  timeout: 30s\n"), 0o644))

	testCases := []struct {
		description string
		args        []string
		addr        string
		timeout     time.Duration
		level       string
		expectErr   bool
	}{
		{description: "defaults", addr: ":5000", timeout: 60 * time.Second, level: "info"},
		{description: "document", args: []string{"--config", path}, addr: ":7000", timeout: 30 * time.Second, level: "info"},
		{description: "flags override document", args: []string{"-c", path, "--addr", ":8000", "--log-level", "debug"}, addr: ":8000", timeout: 30 * time.Second, level: "debug"},
		{description: "liveness disabled", args: []string{"--liveness-timeout", "0s"}, addr: ":5000", timeout: 0, level: "info"},
		{description: "invalid workers", args: []string{"--recovery-workers", "0"}, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			opts := &options{}
			flags := pflag.NewFlagSet("fluxgrid", pflag.ContinueOnError)
			opts.install(flags)
			require.NoError(t, flags.Parse(testCase.args))

			cfg, err := opts.config(context.Background(), flags)
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.addr, cfg.Server.Addr)
			assert.Equal(t, testCase.timeout, cfg.Liveness.Timeout)
			assert.Equal(t, testCase.level, cfg.Log.Level)
		})
	}
}

func TestRootCommand_Version(t *testing.T) {
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "fluxgrid version")
}
