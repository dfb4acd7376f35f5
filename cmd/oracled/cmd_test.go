package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GPTx-global/oracle-relayer/oracle/config"
	"github.com/GPTx-global/oracle-relayer/oracle/log"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	log.InitLogger(log.Options{Level: "error"})

	rootCmd := NewRootCmd()
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigInitCmd(t *testing.T) {
	home := t.TempDir()

	_, err := run(t, "config", "init", fmt.Sprintf("--%s=%s", flagHome, home))
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(home, config.FileName))
	require.NoError(t, err)
	require.Equal(t, config.Default().Networks[0].ID, cfg.Networks[0].ID)
}

func TestConfigInitCmd_RefusesToOverwrite(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, config.FileName)
	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0o644))

	_, err := run(t, "config", "init", fmt.Sprintf("--%s=%s", flagHome, home))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# mine\n", string(data))

	_, err = run(t, "config", "init", fmt.Sprintf("--%s=%s", flagHome, home), "--"+flagOverwrite)
	require.NoError(t, err)
}

func TestConfigInitCmd_HomeFromEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORACLED_HOME", home)

	_, err := run(t, "config", "init")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(home, config.FileName))
}

func TestConfigShowCmd(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, "config", "show", fmt.Sprintf("--%s=%s", flagHome, home), fmt.Sprintf("--%s=%s", flagLogLevel, "debug"))
	require.NoError(t, err)
	require.Contains(t, out, "[relayer]")
	require.Contains(t, out, "debug")
}

func TestConfigShowCmd_InvalidConfig(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, config.FileName), []byte("not = [valid"), 0o644))

	_, err := run(t, "config", "show", fmt.Sprintf("--%s=%s", flagHome, home))
	require.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Equal(t, Version+"\n", out)
}
