// Package document holds the JSON value model shared by the record reader,
// the time-shift engine, and the write-back driver.
//
// Objects are *orderedmap.OrderedMap so key order survives a read-shift-write
// cycle. Objects nested inside a decoded value may surface as
// orderedmap.OrderedMap values; AsObject accepts both forms.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/iancoleman/orderedmap"
)

// NewObject returns an empty object that does not HTML-escape on encode.
func NewObject() *orderedmap.OrderedMap {
	o := orderedmap.New()
	o.SetEscapeHTML(false)
	return o
}

// Decode parses one JSON value. Numbers decode as json.Number so their
// literal text, and with it every digit, survives re-encoding.
func Decode(b []byte) (any, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.New("empty JSON value")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		o := NewObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", kt)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			o.Set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return o, nil
	case '[':
		out := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected %q", delim)
	}
}

// Encode renders v as compact JSON without HTML escaping and without a
// trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// AsObject returns v as an ordered object when it is one.
func AsObject(v any) (*orderedmap.OrderedMap, bool) {
	switch x := v.(type) {
	case *orderedmap.OrderedMap:
		return x, x != nil
	case orderedmap.OrderedMap:
		return &x, true
	default:
		return nil, false
	}
}

// StringField returns the string value stored under key in obj.
func StringField(obj any, key string) (string, bool) {
	o, ok := AsObject(obj)
	if !ok {
		return "", false
	}
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Equal reports deep equality of two JSON values. Object key order is not
// significant, matching JSON object semantics.
func Equal(a, b any) bool {
	if ao, ok := AsObject(a); ok {
		bo, ok := AsObject(b)
		if !ok || len(ao.Keys()) != len(bo.Keys()) {
			return false
		}
		for _, k := range ao.Keys() {
			bv, ok := bo.Get(k)
			if !ok {
				return false
			}
			av, _ := ao.Get(k)
			if !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	if _, ok := AsObject(b); ok {
		return false
	}
	if as, ok := a.([]any); ok {
		bs, ok := b.([]any)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}
