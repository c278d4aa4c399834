package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/components/internal/component"
	"github.com/roach88/components/internal/handler"
	"github.com/roach88/components/internal/ir"
)

// writeProject lays out files under a fresh project directory.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

const echoTemplate = `app: acme/shop
name: site
component: echo
inputs:
  greeting: hello
  region: ${env.COMPONENTS_TEST_REGION}
`

// localMethod runs method in process against the project in dir.
func localMethod(t *testing.T, dir, format, method string, reg *component.Registry, args ...string) (string, string, error) {
	t.Helper()
	off := false
	opts := &MethodOptions{
		RootOptions: &RootOptions{Format: format, Dir: dir},
		Registry:    reg,
		Interactive: &off,
	}

	cmd := newRunCommand(opts)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{method, "--local"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeData returns the data of a JSON success response.
func decodeData(t *testing.T, out string) map[string]any {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestRunLocal_DeployEcho(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"serverless.yml": echoTemplate,
		".env":           "COMPONENTS_TEST_REGION=eu-west-1\n",
	})

	out, errOut, err := localMethod(t, dir, "json", "deploy", nil)
	require.NoError(t, err, errOut)
	assert.Equal(t, map[string]any{"greeting": "hello", "region": "eu-west-1"}, decodeData(t, out))
	assert.Contains(t, errOut, "› site › Connecting")
	assert.Contains(t, errOut, "› site › Deploying")
	assert.Contains(t, errOut, "› site › Deployed")

	// State from the deploy is visible to the next invocation.
	out, errOut, err = localMethod(t, dir, "json", "info", nil)
	require.NoError(t, err, errOut)
	assert.Equal(t, map[string]any{
		"inputs": map[string]any{"greeting": "hello", "region": "eu-west-1"},
	}, decodeData(t, out))
	assert.Contains(t, errOut, "› site › Done")
	assert.DirExists(t, filepath.Join(dir, ".serverless"))
}

func TestRunLocal_InputsFlagOverridesTemplate(t *testing.T) {
	dir := writeProject(t, map[string]string{"serverless.yml": echoTemplate})

	out, errOut, err := localMethod(t, dir, "json", "deploy", nil, "--inputs", `{"greeting":"bonjour","extra":1}`)
	require.NoError(t, err, errOut)
	assert.Equal(t, map[string]any{
		"greeting": "bonjour",
		"region":   nil,
		"extra":    float64(1),
	}, decodeData(t, out))
}

func TestRunLocal_StagesSourceThroughBucket(t *testing.T) {
	withoutColor(t)
	dir := writeProject(t, map[string]string{
		"serverless.yml": "app: acme/shop\nname: site\ncomponent: files\ninputs:\n  src: ./site\n",
		"site/index.html": "hello",
		"site/css/a.css":  "ab",
	})

	out, errOut, err := localMethod(t, dir, "text", "deploy", nil)
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "  files: 2\n")
	assert.Contains(t, out, "  bytes: 7\n")
	assert.Contains(t, out, "    - css/a.css\n")
	assert.Contains(t, errOut, "› site › Packaging")
	assert.Contains(t, errOut, "› site › Uploading")
	assert.Contains(t, errOut, "› site › Scanning")
}

func TestRunLocal_MethodNotFound(t *testing.T) {
	withoutColor(t)
	dir := writeProject(t, map[string]string{"serverless.yml": echoTemplate})

	_, errOut, err := localMethod(t, dir, "text", "migrate", nil)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var notFound *handler.MethodNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "migrate", notFound.Method)
	assert.Contains(t, errOut, `method "migrate" does not exist in component "echo@dev"`)
}

func TestRunLocal_DevFlagSelectsDevVersion(t *testing.T) {
	reg := component.NewRegistry()
	probe := func(rt *component.Runtime) (component.Component, error) {
		return component.Methods{
			"deploy": func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
				return ir.IRObject{"version": ir.IRString(rt.Identity().ComponentVersion)}, nil
			},
		}, nil
	}
	reg.MustRegister("probe@1.0.0", probe)
	reg.MustRegister("probe@dev", probe)

	dir := writeProject(t, map[string]string{
		"serverless.yml": "app: acme/shop\nname: site\ncomponent: probe@1.0.0\n",
	})

	out, errOut, err := localMethod(t, dir, "json", "deploy", reg)
	require.NoError(t, err, errOut)
	assert.Equal(t, "1.0.0", decodeData(t, out)["version"])

	out, errOut, err = localMethod(t, dir, "json", "deploy", reg, "--dev")
	require.NoError(t, err, errOut)
	assert.Equal(t, "dev", decodeData(t, out)["version"])
}

func TestRunLocal_InvalidTemplate(t *testing.T) {
	dir := writeProject(t, map[string]string{"serverless.yml": "name: site\ncomponent: echo\n"})

	_, _, err := localMethod(t, dir, "text", "deploy", nil)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `missing "app" property`)
}

func TestAnchorSource(t *testing.T) {
	dir := filepath.Join("/", "proj")

	got := anchorSource(ir.IRObject{"src": ir.IRString("./site")}, dir)
	assert.Equal(t, ir.IRString(filepath.Join(dir, "site")), got["src"])

	got = anchorSource(ir.IRObject{"src": ir.IRObject{"src": ir.IRString("app"), "hook": ir.IRString("make")}}, dir)
	assert.Equal(t, ir.IRObject{"src": ir.IRString(filepath.Join(dir, "app")), "hook": ir.IRString("make")}, got["src"])

	for _, keep := range []string{"/abs/site", "https://bucket.example/pkg.zip", "${web.dir}"} {
		got = anchorSource(ir.IRObject{"src": ir.IRString(keep)}, dir)
		assert.Equal(t, ir.IRString(keep), got["src"])
	}

	got = anchorSource(ir.IRObject{"components": ir.IRObject{
		"web": ir.IRObject{"component": ir.IRString("files"), "inputs": ir.IRObject{"src": ir.IRString("web")}},
		"db":  ir.IRObject{"component": ir.IRString("echo")},
	}}, dir)
	web := got["components"].(ir.IRObject)["web"].(ir.IRObject)["inputs"].(ir.IRObject)
	assert.Equal(t, ir.IRString(filepath.Join(dir, "web")), web["src"])
}

const stackTemplate = `app: acme/shop
name: app
component: stack

db:
  component: echo
  inputs:
    name: orders
    region: ${env.COMPONENTS_TEST_REGION}

site:
  component: files
  inputs:
    src: ./site

api:
  component: echo
  inputs:
    table: ${db.name}
    region: ${db.region}
    pages: ${site.files}
`

func TestRunLocal_StackDeploysDeclarationsInOrder(t *testing.T) {
	t.Setenv("COMPONENTS_TEST_REGION", "eu-west-1")
	dir := writeProject(t, map[string]string{
		"serverless.yml": stackTemplate,
		"site/index.html": "<h1>hi</h1>",
	})

	out, errOut, err := localMethod(t, dir, "json", "deploy", nil)
	require.NoError(t, err, errOut)
	data := decodeData(t, out)
	assert.Equal(t, map[string]any{"name": "orders", "region": "eu-west-1"}, data["db"])
	assert.Equal(t, map[string]any{"table": "orders", "region": "eu-west-1", "pages": float64(1)}, data["api"])
	site, ok := data["site"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"index.html"}, site["names"])

	_, errOut, err = localMethod(t, dir, "json", "remove", nil)
	require.NoError(t, err, errOut)
	assert.Contains(t, errOut, "› app › Removed")
}

func TestProgress(t *testing.T) {
	for _, tc := range []struct{ method, running, done string }{
		{"deploy", "Deploying", "Deployed"},
		{"remove", "Removing", "Removed"},
		{"info", "Running info", "Done"},
	} {
		running, done := progress(tc.method)
		assert.Equal(t, tc.running, running)
		assert.Equal(t, tc.done, done)
	}
}
