package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neurodesk/texttemplate/pkg/texttemplate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	err := rootCmd.Execute()
	return out.String(), err
}

const testConfig = `
default_filter: html
cache_dir: cache
filters:
  shout: upper_bang
filter_scripts: [filters.star]
`

const testScript = `
def upper_bang(v):
    return v.upper() + "!"
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadConfig(filepath.Join(dir, "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, &cliConfig{}, cfg)

	_, err = loadConfig(filepath.Join(dir, "absent.yaml"), true)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "texttemplate.yaml")
	writeFile(t, path, testConfig)
	cfg, err = loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "html", cfg.DefaultFilter)
	assert.Equal(t, []string{filepath.Join(dir, "filters.star")}, cfg.FilterScripts)

	writeFile(t, path, "")
	_, err = loadConfig(path, true)
	assert.NoError(t, err)

	writeFile(t, path, "colour: red\n")
	_, err = loadConfig(path, true)
	assert.ErrorContains(t, err, "field colour not found")

	writeFile(t, path, "max_depth: -2\n")
	_, err = loadConfig(path, true)
	assert.ErrorContains(t, err, "max_depth must not be negative")
}

func TestNewEngine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "filters.star"), testScript)

	cfg := &cliConfig{
		DefaultFilter: "html",
		Filters:       map[string]string{"shout": "upper_bang", "tag": "shout|fixedLength:3"},
		FilterScripts: []string{filepath.Join(dir, "filters.star")},
	}
	e, err := newEngine(cfg, slog.Default())
	require.NoError(t, err)

	ctx := texttemplate.NewContextFromAny(map[string]any{"v": "<b>"})
	out, err := e.Render("{=v|shout} {=v|tag} {=v}", ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "&lt;B&gt;! &lt;B&gt; &lt;b&gt;", out)

	cfg.DefaultFilter = "nope"
	_, err = newEngine(cfg, slog.Default())
	assert.ErrorContains(t, err, "default filter")

	cfg.DefaultFilter = ""
	cfg.FilterScripts = []string{filepath.Join(dir, "missing.star")}
	_, err = newEngine(cfg, slog.Default())
	assert.ErrorContains(t, err, "loading filter script")
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	config := filepath.Join(dir, "texttemplate.yaml")
	writeFile(t, config, testConfig)
	writeFile(t, filepath.Join(dir, "filters.star"), testScript)
	writeFile(t, filepath.Join(dir, "data.yaml"), "name: <a>\ncount: 1\n")
	writeFile(t, filepath.Join(dir, "page.tpl"), "{=name|shout} {=count}{if count > 2} many{/if}")

	out, err := runCLI(t, "", "render", "--config", config,
		"--data", filepath.Join(dir, "data.yaml"),
		"--set", "count=3",
		filepath.Join(dir, "page.tpl"))
	require.NoError(t, err)
	assert.Equal(t, "&lt;A&gt;! 3 many", out)
}

// Flag values persist on the package-level commands between runs, so every
// run passes --config and the flags it depends on explicitly.
func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "texttemplate.yaml")
	writeFile(t, path, "cache_dir: cache\n")
	return path
}

func TestTagCommandReadsStdin(t *testing.T) {
	config := emptyConfig(t)
	src := "{if a}1{elseif b}2{else}3{/if}"

	out, err := runCLI(t, src, "tag", "--config", config, "--no-rewrite=true", "-")
	require.NoError(t, err)
	assert.Equal(t, "{if0 a}1{elseif0 b}2{else0}3{/if0}", out)

	out, err = runCLI(t, src, "tag", "--config", config, "--no-rewrite=false", "-")
	require.NoError(t, err)
	assert.NotEqual(t, "{if0 a}1{elseif0 b}2{else0}3{/if0}", out)
	assert.Contains(t, out, texttemplate.ElseMarker)
}

func TestTreeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.tpl")
	writeFile(t, path, "{for x in xs}{=x}{/for}")
	out, err := runCLI(t, "", "tree", "--config", emptyConfig(t), path)
	require.NoError(t, err)
	assert.Contains(t, out, "For#0(x in xs)")
	assert.Contains(t, out, "Variable(x)")
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := runCLI(t, "", "tree", "--config", filepath.Join(t.TempDir(), "none.yaml"), "-")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBatchCommandDryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "page.tpl"), "{=title}")
	writeFile(t, filepath.Join(dir, "jobs.yaml"), `
jobs:
  - name: one
    template: page.tpl
    vars: {title: hi}
    output: out/one.txt
`)
	out, err := runCLI(t, "", "batch", "--config", emptyConfig(t), "--dry-run=true", filepath.Join(dir, "jobs.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "one\t"+filepath.Join(dir, "out", "one.txt")+"\t2 bytes\n", out)
	assert.NoFileExists(t, filepath.Join(dir, "out", "one.txt"))
}
