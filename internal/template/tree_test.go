package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/components/internal/ir"
)

func TestParse_Classification(t *testing.T) {
	tree := Parse(ir.IRObject{
		"db": ir.IRObject{
			"component": ir.IRString("storage@1.0.0"),
			"inputs":    ir.IRObject{"name": ir.IRString("x")},
			"extra":     ir.IRBool(true),
		},
		// Non-string component field: plain value.
		"meta": ir.IRObject{"component": ir.IRInt(3)},
		// Nested declarations are plain values.
		"group": ir.IRObject{"inner": ir.IRObject{"component": ir.IRString("x")}},
		"name":  ir.IRString("api"),
	})

	n, ok := tree.Get("db")
	require.True(t, ok)
	decl, ok := n.(*ComponentDecl)
	require.True(t, ok)
	assert.Equal(t, "storage@1.0.0", decl.Component)
	assert.Equal(t, ir.IRObject{"name": ir.IRString("x")}, decl.Inputs)
	assert.Equal(t, ir.IRObject{"extra": ir.IRBool(true)}, decl.Fields)

	for _, key := range []string{"meta", "group", "name"} {
		n, ok := tree.Get(key)
		require.True(t, ok)
		_, isValue := n.(Value)
		assert.True(t, isValue, "%s should be a plain value", key)
	}
	assert.Equal(t, []string{"db"}, tree.Declarations())
}

func TestComponentDecl_ObjectRoundTrip(t *testing.T) {
	body := ir.IRObject{
		"component": ir.IRString("storage"),
		"inputs":    ir.IRObject{"a": ir.IRInt(1)},
		"extra":     ir.IRString("x"),
	}

	tree := Parse(ir.IRObject{"db": body})
	assert.True(t, ir.Equal(body, tree.Object()["db"]))
}

func TestTree_SetOutputs(t *testing.T) {
	tree := Parse(ir.IRObject{
		"db":   ir.IRObject{"component": ir.IRString("storage")},
		"name": ir.IRString("api"),
	})

	require.Error(t, tree.SetOutputs("missing", ir.IRObject{}))
	require.Error(t, tree.SetOutputs("name", ir.IRObject{}))

	outputs := ir.IRObject{"arn": ir.IRString("arn:1")}
	require.NoError(t, tree.SetOutputs("db", outputs))

	outputs["arn"] = ir.IRString("mutated")
	n, _ := tree.Get("db")
	assert.Equal(t, Value{V: ir.IRObject{"arn": ir.IRString("arn:1")}}, n)
	assert.Empty(t, tree.Declarations())
}

func TestTree_WaitingOnAndDeferred(t *testing.T) {
	tree := Parse(ir.IRObject{
		"db":  ir.IRObject{"component": ir.IRString("storage"), "inputs": ir.IRObject{"name": ir.IRString("orders")}},
		"web": ir.IRObject{"component": ir.IRString("files")},
		"api": ir.IRObject{"component": ir.IRString("compute"), "inputs": ir.IRObject{
			"table": ir.IRString("${db.name}"),
			"url":   ir.IRString("https://${web.host}/${db.name}"),
			"home":  ir.IRString("${env.HOME}"),
		}},
	})

	assert.Equal(t, []string{"db", "web"}, tree.WaitingOn("api"))
	assert.Empty(t, tree.WaitingOn("db"))
	assert.Nil(t, tree.WaitingOn("missing"))
	assert.Equal(t, map[string][]string{
		"db":  {"${db.name}"},
		"web": {"${web.host}"},
	}, tree.Deferred())

	require.NoError(t, tree.SetOutputs("db", ir.IRObject{"name": ir.IRString("orders")}))
	assert.Equal(t, []string{"web"}, tree.WaitingOn("api"))
}

func TestTree_CloneIsDeep(t *testing.T) {
	tree := Parse(ir.IRObject{
		"db":  ir.IRObject{"component": ir.IRString("storage"), "inputs": ir.IRObject{"a": ir.IRInt(1)}},
		"cfg": ir.IRObject{"k": ir.IRString("v")},
	})

	cp := tree.Clone()
	n, _ := cp.Get("db")
	n.(*ComponentDecl).Inputs["a"] = ir.IRInt(2)
	cp.Set("new", Value{V: ir.IRNull{}})

	orig, _ := tree.Get("db")
	assert.Equal(t, ir.IRInt(1), orig.(*ComponentDecl).Inputs["a"])
	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, 3, cp.Len())
}

func TestParsePlaceholders(t *testing.T) {
	tests := []struct {
		in   string
		want []Segment
	}{
		{"plain", nil},
		{"${a.b}", []Segment{Reference{Text: "${a.b}", Path: []string{"a", "b"}}}},
		{"${env.HOME}", []Segment{Reference{Text: "${env.HOME}", Path: []string{"env", "HOME"}, Env: true}}},
		{"x-${a}-y", []Segment{
			Literal("x-"),
			Reference{Text: "${a}", Path: []string{"a"}},
			Literal("-y"),
		}},
		{"${a}${b}", []Segment{
			Reference{Text: "${a}", Path: []string{"a"}},
			Reference{Text: "${b}", Path: []string{"b"}},
		}},
		// "env" alone is a top-level reference, not an env lookup.
		{"${env}", []Segment{Reference{Text: "${env}", Path: []string{"env"}}}},
		{"${ spaced }", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePlaceholders(tt.in))
		})
	}
}

func TestReferenceVar(t *testing.T) {
	segs := parsePlaceholders("${env.DB_URL}")
	require.Len(t, segs, 1)
	assert.Equal(t, "DB_URL", segs[0].(Reference).Var())
	assert.Equal(t, "", Reference{Path: []string{"a", "b"}}.Var())
}
