package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vango-dev/trackstate/internal/errors"
)

// Key addresses one step into a container: a field of a keyed object or an
// index of an array. Indices are stored in canonical decimal form, so
// Index(1) and Field("1") are the same key.
type Key string

// Field returns the key for an object field.
func Field(name string) Key {
	return Key(name)
}

// Index returns the key for an array element.
func Index(i int) Key {
	return Key(strconv.Itoa(i))
}

// Index returns the key as an array index.
// The second result is false if the key is not a non-negative decimal integer.
func (k Key) Index() (int, bool) {
	if k == "" || k[0] == '+' || (len(k) > 1 && k[0] == '0') {
		return 0, false
	}
	i, err := strconv.Atoi(string(k))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// IsIndex reports whether the key can address an array element.
func (k Key) IsIndex() bool {
	_, ok := k.Index()
	return ok
}

// String returns the key as written in a dotted path.
func (k Key) String() string {
	return string(k)
}

// Path is an ordered sequence of keys identifying a location in the value tree.
// The empty path addresses the root.
type Path []Key

// Root is the path of the whole value.
var Root = Path{}

// P builds a path from strings, ints and Keys.
// It panics on any other key type; use ParsePath for untrusted input.
//
// Example:
//
//	state.P("users", 0, "name")
func P(keys ...any) Path {
	p := make(Path, 0, len(keys))
	for _, k := range keys {
		switch v := k.(type) {
		case Key:
			p = append(p, v)
		case string:
			p = append(p, Field(v))
		case int:
			p = append(p, Index(v))
		default:
			panic(fmt.Sprintf("state: unsupported path key type %T", k))
		}
	}
	return p
}

// ParsePath parses a dotted path such as "users.0.name".
// The empty string is the root path.
func ParsePath(s string) (Path, error) {
	s = strings.TrimPrefix(s, "/")
	if s == "" || s == "." {
		return Root, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, errors.New("E111").WithPath(s)
		}
		p = append(p, Key(part))
	}
	return p, nil
}

// Append returns a new path with keys appended. The receiver is not modified.
func (p Path) Append(keys ...Key) Path {
	out := make(Path, len(p), len(p)+len(keys))
	copy(out, p)
	return append(out, keys...)
}

// Parent returns the path one level up. The root is its own parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Root
	}
	return p[: len(p)-1 : len(p)-1]
}

// Last returns the final key of the path.
func (p Path) Last() (Key, bool) {
	if len(p) == 0 {
		return "", false
	}
	return p[len(p)-1], true
}

// Equal reports whether both paths address the same location.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of, or equal to, p.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}

// String returns the dotted form of the path. The root is "".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, k := range p {
		parts[i] = string(k)
	}
	return strings.Join(parts, ".")
}

// display is the path as shown in error messages.
func (p Path) display() string {
	if len(p) == 0 {
		return "<root>"
	}
	return p.String()
}
