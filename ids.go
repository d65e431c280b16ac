package hnf

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeID converts an application-level neuron identifier into the
// string key its group is stored under. Reader and writer apply the same
// rule:
//
//   - strings are used as is; they must be non-empty, must not contain
//     '/' and must not start with '.'
//   - integers of any width are formatted in base 10
//   - fmt.Stringer values are formatted with String and checked as strings
//
// Everything else, floats and bools included, returns ErrInvalidID.
func NormalizeID(v any) (string, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case int:
		s = strconv.FormatInt(int64(x), 10)
	case int8:
		s = strconv.FormatInt(int64(x), 10)
	case int16:
		s = strconv.FormatInt(int64(x), 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int64:
		s = strconv.FormatInt(x, 10)
	case uint:
		s = strconv.FormatUint(uint64(x), 10)
	case uint8:
		s = strconv.FormatUint(uint64(x), 10)
	case uint16:
		s = strconv.FormatUint(uint64(x), 10)
	case uint32:
		s = strconv.FormatUint(uint64(x), 10)
	case uint64:
		s = strconv.FormatUint(x, 10)
	case fmt.Stringer:
		s = x.String()
	default:
		return "", fmt.Errorf("%w: %v (%T)", ErrInvalidID, v, v)
	}

	if s == "" || strings.Contains(s, "/") || strings.HasPrefix(s, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return s, nil
}

// normalizeIDs normalizes a subset, dropping duplicates but keeping the
// first-seen order.
func normalizeIDs(ids []any) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		id, err := NormalizeID(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
