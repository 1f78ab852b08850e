package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionSkipsConfig(t *testing.T) {
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"version", "--config", "/does/not/exist.yaml"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "oracled dev"))
}

func TestReadMetricArg(t *testing.T) {
	cmd := &cobra.Command{}
	t.Cleanup(func() { postFile = "" })

	got, err := readMetricArg(cmd, []string{`{"key":"k"}`})
	require.NoError(t, err)
	assert.Equal(t, `{"key":"k"}`, got)

	_, err = readMetricArg(cmd, nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "metric.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"key":"f"}`), 0o644))
	postFile = path
	got, err = readMetricArg(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"key":"f"}`, got)

	_, err = readMetricArg(cmd, []string{"{}"})
	assert.Error(t, err, "argument and --file are exclusive")

	postFile = "-"
	cmd.SetIn(strings.NewReader(`{"key":"stdin"}`))
	got, err = readMetricArg(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"key":"stdin"}`, got)
}
