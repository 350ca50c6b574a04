package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/roach88/livequery/internal/ir"
)

// marshalFields converts record fields to canonical JSON TEXT for storage.
func marshalFields(fields ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses stored JSON TEXT back into record fields.
// Goes through ir.IRObject.UnmarshalJSON so large integer ids survive.
func unmarshalFields(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return obj, nil
}

// EncodeCursor renders a keyset position as an opaque URL-safe token.
func EncodeCursor(position []ir.IRValue) (string, error) {
	data, err := ir.MarshalCanonical(ir.IRArray(position))
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(cursor string) ([]ir.IRValue, error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("decode cursor: not a position tuple")
	}
	return arr, nil
}
