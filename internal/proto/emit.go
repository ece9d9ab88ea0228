package proto

import "strconv"

// Object builds a JSON object incrementally. String values are
// escaped; integers, booleans, and nested objects pass through.
type Object struct {
	buf     []byte
	members int
}

// NewObject starts an empty object.
func NewObject() *Object {
	return &Object{buf: []byte{'{'}}
}

func (o *Object) key(k string) {
	if o.members > 0 {
		o.buf = append(o.buf, ',')
	}
	o.members++
	o.buf = append(o.buf, '"')
	o.buf = append(o.buf, EscapeString(k)...)
	o.buf = append(o.buf, '"', ':')
}

// Str adds a string member.
func (o *Object) Str(k, v string) *Object {
	o.key(k)
	o.buf = append(o.buf, '"')
	o.buf = append(o.buf, EscapeString(v)...)
	o.buf = append(o.buf, '"')
	return o
}

// Int adds an integer member.
func (o *Object) Int(k string, v int64) *Object {
	o.key(k)
	o.buf = strconv.AppendInt(o.buf, v, 10)
	return o
}

// Bool adds a boolean member.
func (o *Object) Bool(k string, v bool) *Object {
	o.key(k)
	o.buf = strconv.AppendBool(o.buf, v)
	return o
}

// Obj adds a nested object member.
func (o *Object) Obj(k string, v *Object) *Object {
	o.key(k)
	o.buf = append(o.buf, v.JSON()...)
	return o
}

// Objects adds an array-of-objects member.
func (o *Object) Objects(k string, items []*Object) *Object {
	o.key(k)
	o.buf = append(o.buf, '[')
	for i, item := range items {
		if i > 0 {
			o.buf = append(o.buf, ',')
		}
		o.buf = append(o.buf, item.JSON()...)
	}
	o.buf = append(o.buf, ']')
	return o
}

// JSON finalizes and returns the encoded object. The builder can
// still be extended afterwards; JSON renders the current state.
func (o *Object) JSON() []byte {
	out := make([]byte, 0, len(o.buf)+1)
	out = append(out, o.buf...)
	return append(out, '}')
}
