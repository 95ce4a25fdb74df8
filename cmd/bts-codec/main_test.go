package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--config", writeQuietConfig(t)))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeQuietConfig keeps the engine log lines out of the test output.
func writeQuietConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\n"), 0644))
	return path
}

func TestSchemesCommand(t *testing.T) {
	out, err := execute(t, "", "schemes")
	require.NoError(t, err)
	assert.Contains(t, out, "MCS-9")
	assert.Contains(t, out, "AHS7.95")

	out, err = execute(t, "", "schemes", "--format", "yaml")
	require.NoError(t, err)
	var schemes []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &schemes))
	assert.Equal(t, "xCCH", schemes[0]["name"])

	_, err = execute(t, "", "schemes", "--format", "xml")
	assert.ErrorIs(t, err, errBadFormat)
}

func TestEncodeDecodeCommands(t *testing.T) {
	payload := strings.Repeat("2b", 23)
	out, err := execute(t, "", "encode", "--channel", "xcch", "--hex", payload, "--format", "bits")
	require.NoError(t, err)
	lines := strings.Fields(out)
	require.Len(t, lines, 4)
	assert.Len(t, lines[0], 116)

	out, err = execute(t, out, "decode", "--channel", "xcch", "--bursts-file", "-", "--hard")
	require.NoError(t, err)
	assert.Contains(t, out, payload)
	assert.Contains(t, out, "ok:")

	path := filepath.Join(t.TempDir(), "bursts.txt")
	bitsOut, err := execute(t, "", "encode", "--channel", "rach", "--hex", "5a", "--bsic", "9", "--format", "bits")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(bitsOut), 0644))

	out, err = execute(t, "", "decode", "--channel", "rach", "--bursts-file", path, "--hard", "--bsic", "9", "--format", "yaml")
	require.NoError(t, err)
	var res map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &res))
	assert.Equal(t, "5a", res["data"])
	assert.Equal(t, true, res["ok"])

	// Wrong BSIC: the result is still printed, the command fails.
	out, err = execute(t, "", "decode", "--channel", "rach", "--bursts-file", path, "--hard", "--bsic", "10")
	assert.Error(t, err)
	assert.Contains(t, out, "bit errors:")
}

func TestEncodeErrors(t *testing.T) {
	_, err := execute(t, "", "encode", "--channel", "bcch", "--hex", "00")
	assert.Error(t, err)

	_, err = execute(t, "", "encode", "--channel", "xcch", "--hex", "xyz")
	assert.Error(t, err)

	_, err = execute(t, "", "encode", "--channel", "rach", "--hex", "00", "--bsic", "64")
	assert.Error(t, err)

	_, err = execute(t, "", "encode", "--channel", "xcch")
	assert.Error(t, err)
}

func TestParseBursts(t *testing.T) {
	soft, err := parseBursts(strings.NewReader("127, -127\n0 -5"), false)
	require.NoError(t, err)
	assert.Equal(t, []int8{127, -127, 0, -5}, soft)

	_, err = parseBursts(strings.NewReader("300"), false)
	assert.Error(t, err)

	hard, err := parseBursts(strings.NewReader("01\n1 0"), true)
	require.NoError(t, err)
	require.Len(t, hard, 4)
	assert.Positive(t, hard[0])
	assert.Negative(t, hard[1])

	_, err = parseBursts(strings.NewReader("012"), true)
	assert.Error(t, err)
}

func TestSelfTestCommand(t *testing.T) {
	out, err := execute(t, "", "selftest", "--snr", "30", "--blocks", "2", "--schemes", "CS-1,AFS12.2", "--format", "yaml")
	require.NoError(t, err)

	var report struct {
		SNRdB   float64 `yaml:"snr_db"`
		Schemes []struct {
			Scheme string `yaml:"scheme"`
			Passed int    `yaml:"passed"`
		} `yaml:"schemes"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, 30.0, report.SNRdB)
	require.Len(t, report.Schemes, 2)
	assert.Equal(t, "CS-1", report.Schemes[0].Scheme)
	assert.Equal(t, 2, report.Schemes[1].Passed)

	out, err = execute(t, "", "selftest", "--snr", "30", "--blocks", "1", "--schemes", "SCH")
	require.NoError(t, err)
	assert.Contains(t, out, "0 failed blocks")

	_, err = execute(t, "", "selftest", "--schemes", "CS-7")
	assert.Error(t, err)
}
