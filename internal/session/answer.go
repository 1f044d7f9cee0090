package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/abhisek/adaptest/internal/store"
)

// CheckAnswer compares a submitted answer against the item's stored correct
// answer. Both are JSON values.
//
// Multiple choice items whose correct answer is a list are multi-select:
// the submission must contain the same options in any order. Every other
// case requires the decoded values to be equal, so ordering and matching
// answers are order sensitive.
func CheckAnswer(typ store.ItemType, correct, given json.RawMessage) (bool, error) {
	want, err := decodeValue(correct)
	if err != nil {
		return false, fmt.Errorf("decode correct answer: %w", err)
	}
	got, err := decodeValue(given)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}

	if typ == store.MultipleChoice {
		if options, ok := want.([]any); ok {
			picked, ok := got.([]any)
			if !ok {
				return false, nil
			}
			return sameSet(options, picked), nil
		}
	}
	return reflect.DeepEqual(want, got), nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// sameSet reports whether a and b hold the same distinct values.
func sameSet(a, b []any) bool {
	as, err := keySet(a)
	if err != nil {
		return false
	}
	bs, err := keySet(b)
	if err != nil {
		return false
	}
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if _, ok := bs[k]; !ok {
			return false
		}
	}
	return true
}

func keySet(vs []any) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		// Re-marshalling yields a canonical key: map keys are sorted.
		k, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[string(k)] = struct{}{}
	}
	return out, nil
}
