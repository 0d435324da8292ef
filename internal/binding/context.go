package binding

import (
	"strings"
)

// Context holds the values available to one device's stickers, keyed by
// lowercase prefix and field.
type Context struct {
	values map[string]map[string]string
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{values: make(map[string]map[string]string)}
}

// Set stores a value. Keys are normalized here so lookups never fold case.
func (c *Context) Set(prefix, field, value string) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	field = strings.ToLower(strings.TrimSpace(field))
	if prefix == "" || field == "" {
		return
	}
	fields, ok := c.values[prefix]
	if !ok {
		fields = make(map[string]string)
		c.values[prefix] = fields
	}
	fields[field] = value
}

// Lookup returns the value for a reference.
func (c *Context) Lookup(ref Reference) (string, bool) {
	fields, ok := c.values[strings.ToLower(ref.Prefix)]
	if !ok {
		return "", false
	}
	v, ok := fields[strings.ToLower(ref.Field)]
	return v, ok
}

// Get is Lookup for a "prefix.field" string.
func (c *Context) Get(ref string) (string, bool) {
	r, ok := ParseReference(ref)
	if !ok {
		return "", false
	}
	return c.Lookup(r)
}

// Fields returns a copy of the values stored under prefix.
func (c *Context) Fields(prefix string) map[string]string {
	fields := c.values[strings.ToLower(prefix)]
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Len returns the number of stored values.
func (c *Context) Len() int {
	n := 0
	for _, fields := range c.values {
		n += len(fields)
	}
	return n
}
