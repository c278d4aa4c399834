package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/components/internal/ir"
)

// Outputs prints a component's outputs: the standard JSON response in json
// format, indented key/value lines otherwise.
func (f *OutputFormatter) Outputs(outputs ir.IRObject) error {
	if f.Format == "json" {
		if outputs == nil {
			outputs = ir.IRObject{}
		}
		return f.Success(outputs)
	}
	if len(outputs) == 0 {
		return nil
	}
	fmt.Fprintln(f.Writer)
	RenderOutputs(f.Writer, outputs)
	fmt.Fprintln(f.Writer)
	return nil
}

// RenderOutputs writes obj as indented "key: value" lines with keys
// sorted. Nested objects indent one level per depth; array items are
// listed with "- ".
func RenderOutputs(w io.Writer, obj ir.IRObject) {
	renderObject(w, obj, 1)
}

func renderObject(w io.Writer, obj ir.IRObject, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, k := range obj.SortedKeys() {
		key := grey.Sprint(k + ":")
		switch v := obj[k].(type) {
		case ir.IRObject:
			if len(v) == 0 {
				fmt.Fprintf(w, "%s%s {}\n", indent, key)
				continue
			}
			fmt.Fprintf(w, "%s%s\n", indent, key)
			renderObject(w, v, depth+1)
		case ir.IRArray:
			if len(v) == 0 {
				fmt.Fprintf(w, "%s%s []\n", indent, key)
				continue
			}
			fmt.Fprintf(w, "%s%s\n", indent, key)
			for _, item := range v {
				fmt.Fprintf(w, "%s  - %s\n", indent, scalar(item))
			}
		default:
			fmt.Fprintf(w, "%s%s %s\n", indent, key, scalar(v))
		}
	}
}

// scalar renders a leaf value. Containers inside arrays print as compact
// JSON.
func scalar(v ir.IRValue) string {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return "null"
	case ir.IRString:
		return string(val)
	case ir.IRBool:
		return strconv.FormatBool(bool(val))
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10)
	case ir.IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	default:
		data, err := ir.MarshalIRValue(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
