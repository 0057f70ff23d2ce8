// Package value converts native arrow values into the semi-structured row
// representation handed to the relational caller as jsonb.
package value

import (
	"bytes"
	"encoding/json"
)

// Pair is a single named field of an Object.
type Pair struct {
	Name string
	Val  any
}

// Object is an ordered name to value mapping, one per output row or nested
// struct. It marshals to a JSON object preserving source field order, which
// a plain Go map would not.
type Object []Pair

// MarshalJSON implements json.Marshaler keeping insertion order.
func (o Object) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(p.Val)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value of the named field and whether it is present.
func (o Object) Get(name string) (any, bool) {
	for _, p := range o {
		if p.Name == name {
			return p.Val, true
		}
	}
	return nil, false
}

// Names returns field names in source order.
func (o Object) Names() []string {
	names := make([]string, len(o))
	for i, p := range o {
		names[i] = p.Name
	}
	return names
}
