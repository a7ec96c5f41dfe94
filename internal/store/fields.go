// ABOUTME: Document field map with typed accessors and JSON encoding
// ABOUTME: Normalizes time values to a fixed-width UTC layout so they sort as strings

package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// TimeLayout is the storage layout for time values. Fixed-width fractional
// seconds keep lexical order equal to chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Fields holds the body of a document
type Fields map[string]any

// String returns the string value stored under key, or "" if absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Time returns the time value stored under key. Values written by this
// package use TimeLayout; RFC3339 strings are accepted as well. Returns the
// zero time when the field is missing or unparseable.
func (f Fields) Time(key string) time.Time {
	switch v := f[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(TimeLayout, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// normalize returns a copy with time values converted to TimeLayout strings.
func normalize(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		switch tv := v.(type) {
		case time.Time:
			out[k] = tv.UTC().Format(TimeLayout)
		case *time.Time:
			if tv == nil {
				out[k] = nil
			} else {
				out[k] = tv.UTC().Format(TimeLayout)
			}
		default:
			out[k] = v
		}
	}
	return out
}

// encodeFields serializes normalized fields to a JSON object.
func encodeFields(f Fields) (string, error) {
	data, err := json.Marshal(normalize(f))
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}
	return string(data), nil
}

// decodeFields parses a JSON object produced by encodeFields.
func decodeFields(data string) (Fields, error) {
	var f Fields
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

// mergeFields applies patch on top of the stored JSON body and re-encodes it.
func mergeFields(stored string, patch Fields) (string, error) {
	current, err := decodeFields(stored)
	if err != nil {
		return "", err
	}
	maps.Copy(current, normalize(patch))
	return encodeFields(current)
}
