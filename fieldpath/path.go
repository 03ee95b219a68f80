// Package fieldpath converts field names such as "bookmarks[0].url" to path
// segments and back, and reads and writes nested form values addressed by them.
package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidPath     = errors.New("invalid field path")
	ErrReservedSegment = errors.New("reserved path segment")
	ErrTypeMismatch    = errors.New("type mismatch")
)

var reservedKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// PathError reports a structural problem with a field name or a tree access.
type PathError struct {
	Name string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("field path %q: %v", e.Name, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Segment is a single step of a path: a mapping key or a sequence index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func Key(key string) Segment {
	return Segment{Key: key}
}

func Index(index int) Segment {
	return Segment{Index: index, IsIndex: true}
}

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

type Path []Segment

func (p Path) String() string {
	return Format(p)
}

// HasPrefix reports whether prefix addresses p itself or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, seg := range prefix {
		if p[i] != seg {
			return false
		}
	}
	return true
}

func (p Path) Equal(other Path) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}

// Append returns a new path; p is never modified.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Parse splits a field name on "." and "[n]". The empty name is the root.
func Parse(name string) (Path, error) {
	path := Path{}
	i := 0
	for i < len(name) {
		switch name[i] {
		case '[':
			end := strings.IndexByte(name[i:], ']')
			if end < 0 {
				return nil, invalid(name, "unterminated index")
			}
			index, ok := parseIndex(name[i+1 : i+end])
			if !ok {
				return nil, invalid(name, fmt.Sprintf("bad index %q", name[i+1:i+end]))
			}
			path = append(path, Index(index))
			i += end + 1
		case '.':
			if len(path) == 0 {
				return nil, invalid(name, "leading dot")
			}
			key, n := readKey(name[i+1:])
			if key == "" {
				return nil, invalid(name, "empty key")
			}
			if reservedKeys[key] {
				return nil, &PathError{Name: name, Err: fmt.Errorf("%w: %s", ErrReservedSegment, key)}
			}
			path = append(path, Key(key))
			i += n + 1
		default:
			if len(path) != 0 {
				return nil, invalid(name, fmt.Sprintf("unexpected %q at offset %d", name[i], i))
			}
			key, n := readKey(name)
			if key == "" {
				return nil, invalid(name, "empty key")
			}
			if reservedKeys[key] {
				return nil, &PathError{Name: name, Err: fmt.Errorf("%w: %s", ErrReservedSegment, key)}
			}
			path = append(path, Key(key))
			i += n
		}
	}
	return path, nil
}

// MustParse is like Parse but panics on malformed names.
func MustParse(name string) Path {
	path, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return path
}

// Format is the inverse of Parse.
func Format(path Path) string {
	var sb strings.Builder
	for _, seg := range path {
		if seg.IsIndex {
			sb.WriteString(seg.String())
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.Key)
	}
	return sb.String()
}

// IsPrefix reports whether prefix names name itself or one of its ancestors.
// Malformed names never match.
func IsPrefix(name, prefix string) bool {
	path, err := Parse(name)
	if err != nil {
		return false
	}
	prefixPath, err := Parse(prefix)
	if err != nil {
		return false
	}
	return path.HasPrefix(prefixPath)
}

func readKey(s string) (string, int) {
	n := strings.IndexAny(s, ".[]")
	if n < 0 {
		n = len(s)
	}
	return s[:n], n
}

func parseIndex(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, false
		}
	}
	index, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return index, true
}

func invalid(name, reason string) error {
	return &PathError{Name: name, Err: fmt.Errorf("%w: %s", ErrInvalidPath, reason)}
}
