package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/components/internal/ir"
)

// marshalState converts state to canonical JSON TEXT for storage, so equal
// states always produce identical rows.
func marshalState(state ir.IRObject) (string, error) {
	if state == nil {
		state = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(data), nil
}

// unmarshalState parses stored JSON TEXT. Integers keep full int64 precision.
func unmarshalState(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return obj, nil
}
