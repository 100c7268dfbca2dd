package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepwise/internal/curriculum"
	"stepwise/internal/progress"
	"stepwise/internal/server"
)

// fixture lays out tests/ with the given artifacts and an optional pointer.
func fixture(t *testing.T, pointer string, files map[string]string) (root, testsDir, pointerPath string) {
	t.Helper()
	root = t.TempDir()
	testsDir = filepath.Join(root, "tests")
	require.NoError(t, os.Mkdir(testsDir, 0755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(testsDir, name), []byte(body), 0644))
	}
	pointerPath = filepath.Join(root, "progress.yaml")
	if pointer != "" {
		require.NoError(t, os.WriteFile(pointerPath, []byte("current: "+pointer+"\n"), 0644))
	}
	return root, testsDir, pointerPath
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func decodeReport(t *testing.T, s string) progress.Report {
	t.Helper()
	var r progress.Report
	require.NoError(t, json.Unmarshal([]byte(s), &r), s)
	return r
}

func baseArgs(root, testsDir, pointer string) []string {
	return []string{
		"--config", filepath.Join(root, "stepwise.yaml"),
		"--tests-dir", testsDir,
		"--pointer", pointer,
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stepwise "+version)
}

func TestReport_Declared(t *testing.T) {
	root, testsDir, pointer := fixture(t, "2.test.js", map[string]string{
		"1.test.js": "", "2.test.js": "", "3.test.js": "", "notes.md": "",
	})

	args := append([]string{"report", "--format", "json"}, baseArgs(root, testsDir, pointer)...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Equal(t, progress.ModeDeclared, r.Mode)
	assert.Equal(t, "2.test.js", *r.Current)
	assert.Equal(t, []string{"1.test.js"}, r.Passed)
	assert.Equal(t, []string{"3.test.js"}, r.Locked)
	assert.Equal(t, 3, r.Total)
}

func TestReport_TextFormat(t *testing.T) {
	root, testsDir, pointer := fixture(t, "1.test.js", map[string]string{"1.test.js": "", "2.test.js": ""})

	args := append([]string{"report"}, baseArgs(root, testsDir, pointer)...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "1.test.js")
	assert.Contains(t, out, "Next:")
}

func TestReport_MissingPointer(t *testing.T) {
	root, testsDir, pointer := fixture(t, "", map[string]string{"1.test.js": ""})

	args := append([]string{"report", "--format", "json"}, baseArgs(root, testsDir, pointer)...)
	out, stderr, err := execute(t, args...)
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, exitCode(err))

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(stderr), &body), stderr)
	assert.Equal(t, string(curriculum.CategoryConfigurationMissing), body["error"])
	assert.NotEmpty(t, body["message"])

	var final bytes.Buffer
	printError(&final, err)
	assert.Empty(t, final.String(), "the JSON error is the only report")
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, assert.AnError)
	assert.Equal(t, "Error: "+assert.AnError.Error()+"\n", buf.String())

	buf.Reset()
	wrapped := reportedError{&curriculum.Error{Category: curriculum.CategoryInternal, Message: "boom"}}
	printError(&buf, wrapped)
	assert.Empty(t, buf.String())
	assert.Equal(t, 2, exitCode(wrapped))
}

func TestReport_BadFormat(t *testing.T) {
	root, testsDir, pointer := fixture(t, "1.test.js", map[string]string{"1.test.js": ""})

	args := append([]string{"report", "--format", "xml"}, baseArgs(root, testsDir, pointer)...)
	_, _, err := execute(t, args...)
	assert.Error(t, err)
}

func TestReport_BadMode(t *testing.T) {
	root, testsDir, pointer := fixture(t, "1.test.js", map[string]string{"1.test.js": ""})

	args := append([]string{"report", "--mode", "both"}, baseArgs(root, testsDir, pointer)...)
	_, _, err := execute(t, args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestReport_FlagBeatsEnv(t *testing.T) {
	root, testsDir, pointer := fixture(t, "2.test.js", map[string]string{"1.test.js": "", "2.test.js": ""})
	t.Setenv("STEPWISE_MODE", "executed")

	args := append([]string{"report", "--format", "json", "--mode", "declared"}, baseArgs(root, testsDir, pointer)...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, progress.ModeDeclared, decodeReport(t, out).Mode)
}

func TestReport_EnvForcePass(t *testing.T) {
	root, testsDir, pointer := fixture(t, "", map[string]string{"1.test.js": "", "2.test.js": ""})
	t.Setenv("STEPWISE_FORCE_PASS", "true")

	args := append([]string{"report", "--format", "json"}, baseArgs(root, testsDir, pointer)...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Equal(t, []string{"1.test.js", "2.test.js"}, r.Passed)
	assert.Empty(t, r.Locked)
	assert.Nil(t, r.Next)
	assert.Equal(t, 100, r.PassedPercent)
}

func TestReport_ConfigFile(t *testing.T) {
	root, testsDir, _ := fixture(t, "", map[string]string{"1.test.js": "", "2.test.js": ""})
	cfgPath := filepath.Join(root, "stepwise.yaml")
	cfg := "curriculum:\n  tests_dir: " + testsDir + "\nprogress:\n  mode: declared\n  force_pass: true\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	out, _, err := execute(t, "report", "--format", "json", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 2, decodeReport(t, out).PassedCount)
}

func TestReport_Executed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	root, testsDir, pointer := fixture(t, "", map[string]string{
		"1.test.sh": "exit 0\n",
		"2.test.sh": "echo 'expected 2, got 3' >&2\nexit 1\n",
		"3.test.sh": "exit 0\n",
	})

	args := append([]string{"report", "--format", "json", "--mode", "executed"}, baseArgs(root, testsDir, pointer)...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Equal(t, progress.ModeExecuted, r.Mode)
	assert.Equal(t, "1.test.sh", *r.Current)
	assert.Equal(t, []string{"1.test.sh"}, r.Passed)
	assert.Empty(t, r.Locked)
	assert.Equal(t, "2.test.sh", *r.Next)
	require.NotNil(t, r.Execution)
	assert.True(t, r.Execution.Passed)
	assert.Equal(t, "1.test.sh", r.Execution.File)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(&curriculum.Error{Category: curriculum.CategoryConfigurationMissing}))
	assert.Equal(t, 2, exitCode(&curriculum.Error{Category: curriculum.CategoryInternal}))
	assert.Equal(t, 1, exitCode(assert.AnError))
}

func TestServe_StopsOnCancel(t *testing.T) {
	_, testsDir, pointer := fixture(t, "1.test.js", map[string]string{"1.test.js": ""})
	svc := progress.NewService(testsDir, pointer, nil, progress.Options{Mode: progress.ModeDeclared})
	srv := server.NewServer(server.Settings{Host: "127.0.0.1", Port: 0}, svc)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- serve(ctx, srv) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	require.Eventually(t, func() bool {
		if srv.Addr() == "" {
			return false
		}
		resp, err := client.Get(srv.BaseURL() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.Empty(t, srv.Addr())
}
