package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/components/internal/ir"
)

// TestLoadFile_GoldenResolution loads the same template in every supported
// format and checks the resolved output against one golden file.
//
// To regenerate: go test ./internal/template -update
func TestLoadFile_GoldenResolution(t *testing.T) {
	for _, file := range []string{"scenario.yml", "scenario.json", "scenario.cue"} {
		t.Run(file, func(t *testing.T) {
			tree, err := LoadFile(filepath.Join("testdata", file))
			require.NoError(t, err)

			resolved, err := Resolve(tree, noEnv())
			require.NoError(t, err)

			out, err := ir.MarshalCanonical(resolved.Object())
			require.NoError(t, err)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, "scenario", out)
		})
	}
}

func TestLoadFile_KeyOrder(t *testing.T) {
	tree, err := LoadFile(filepath.Join("testdata", "scenario.yml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"org", "app", "stage", "name", "component", "settings", "db", "inputs"}, tree.Keys())
	assert.Equal(t, []string{"db"}, tree.Declarations())

	cueTree, err := LoadFile(filepath.Join("testdata", "scenario.cue"))
	require.NoError(t, err)
	assert.Equal(t, tree.Keys(), cueTree.Keys())
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("a: [unterminated"), 0o644))
	scalar := filepath.Join(dir, "scalar.yml")
	require.NoError(t, os.WriteFile(scalar, []byte("just a string"), 0o644))
	toml := filepath.Join(dir, "serverless.toml")
	require.NoError(t, os.WriteFile(toml, []byte("a = 1"), 0o644))

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", filepath.Join(dir, "nope.yml"), ErrCodeNotFound},
		{"malformed", bad, ErrCodeParseFailed},
		{"not a mapping", scalar, ErrCodeParseFailed},
		{"unsupported", toml, ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(tt.path)
			require.Error(t, err)

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadDir(t *testing.T) {
	tree, path, err := LoadDir(filepath.Join("testdata", "project"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "project", "serverless.yaml"), path)
	assert.Equal(t, 4, tree.Len())

	_, _, err = LoadDir(t.TempDir())
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestFindFile_Priority(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"serverless.json", "serverless.yml", "serverless.cue"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	assert.Equal(t, filepath.Join(dir, "serverless.yml"), FindFile(dir, DefaultBaseName))
	assert.Equal(t, "", FindFile(dir, "serverless.component"))
}

// =============================================================================
// InstanceData
// =============================================================================

func TestInstanceData(t *testing.T) {
	tree, err := LoadFile(filepath.Join("testdata", "scenario.yml"))
	require.NoError(t, err)
	resolved, err := Resolve(tree, noEnv())
	require.NoError(t, err)

	inst, err := InstanceData(resolved, "")
	require.NoError(t, err)

	assert.Equal(t, ir.Identity{
		Org:              "acme",
		App:              "shop",
		Stage:            "dev",
		Name:             "api",
		ComponentName:    "compute",
		ComponentVersion: "1.0.0",
	}, inst.Identity())
	assert.Equal(t, ir.IRInt(512), inst.Inputs["memory"])
	assert.Equal(t, ir.IRString("${db.name}"), inst.Inputs["table"])

	// Top-level declarations travel to the root as inputs.components.
	components, ok := inst.Inputs[ir.ComponentsKey].(ir.IRObject)
	require.True(t, ok)
	assert.Equal(t, []string{"db"}, components.SortedKeys())
	db := components["db"].(ir.IRObject)
	assert.Equal(t, ir.IRString("storage@1.0.0"), db["component"])
	assert.Equal(t, ir.IRString("us-east-1"), db["inputs"].(ir.IRObject)["region"])
}

func TestInstanceData_ComponentsConflict(t *testing.T) {
	tree := Parse(ir.IRObject{
		"app":       ir.IRString("shop"),
		"name":      ir.IRString("api"),
		"component": ir.IRString("stack"),
		"db":        ir.IRObject{"component": ir.IRString("echo")},
		"inputs":    ir.IRObject{"components": ir.IRObject{}},
	})

	_, err := InstanceData(tree, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts")
}

func TestInstanceData_OrgAppSplitAndDefaults(t *testing.T) {
	tree, _, err := LoadDir(filepath.Join("testdata", "project"))
	require.NoError(t, err)

	inst, err := InstanceData(tree, "")
	require.NoError(t, err)
	assert.Equal(t, "acme", inst.Org)
	assert.Equal(t, "shop", inst.App)
	assert.Equal(t, ir.DefaultStage, inst.Stage)
	assert.Equal(t, ir.ComponentRef{Name: "website", Version: ir.DefaultVersion}, inst.Component)

	inst, err = InstanceData(tree, "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", inst.Stage)
}

func TestInstanceData_Errors(t *testing.T) {
	base := func() ir.IRObject {
		return ir.IRObject{
			"app":       ir.IRString("shop"),
			"name":      ir.IRString("api"),
			"component": ir.IRString("compute"),
		}
	}

	tests := []struct {
		name   string
		mutate func(ir.IRObject)
		want   string
	}{
		{"missing app", func(o ir.IRObject) { delete(o, "app") }, `missing "app"`},
		{"bad org/app", func(o ir.IRObject) { o["app"] = ir.IRString("a/b/c") }, "not a valid org/app"},
		{"missing name", func(o ir.IRObject) { delete(o, "name") }, `missing "name"`},
		{"missing component", func(o ir.IRObject) { delete(o, "component") }, `missing "component"`},
		{"bad component", func(o ir.IRObject) { o["component"] = ir.IRString("a@b@c") }, "invalid"},
		{"inputs not object", func(o ir.IRObject) { o["inputs"] = ir.IRString("x") }, `"inputs" must be an object`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := base()
			tt.mutate(obj)

			_, err := InstanceData(Parse(obj), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
