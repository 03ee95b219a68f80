package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tbxark/formstate/fieldpath"
)

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// Pointer renders a field path as a JSON pointer.
func Pointer(path fieldpath.Path) string {
	var sb strings.Builder
	for _, seg := range path {
		sb.WriteByte('/')
		if seg.IsIndex {
			sb.WriteString(strconv.Itoa(seg.Index))
			continue
		}
		sb.WriteString(pointerEscaper.Replace(seg.Key))
	}
	return sb.String()
}

func splitPointer(pointer string) ([]string, error) {
	if pointer == "" {
		return nil, nil
	}
	if pointer[0] != '/' {
		return nil, fmt.Errorf("json pointer %q must start with /", pointer)
	}
	tokens := strings.Split(pointer[1:], "/")
	for i, token := range tokens {
		tokens[i] = pointerUnescaper.Replace(token)
	}
	return tokens, nil
}

// ToPath resolves pointer against doc. A numeric token is an index when the
// node it applies to is a list, or when the node is absent; "-" addresses the
// slot after the last item.
func ToPath(doc any, pointer string) (fieldpath.Path, error) {
	tokens, err := splitPointer(pointer)
	if err != nil {
		return nil, err
	}
	path := make(fieldpath.Path, 0, len(tokens))
	cur := doc
	for _, token := range tokens {
		switch node := cur.(type) {
		case []any:
			index := len(node)
			if token != "-" {
				index, err = strconv.Atoi(token)
				if err != nil || index < 0 {
					return nil, fmt.Errorf("json pointer %q: bad index %q", pointer, token)
				}
			}
			path = append(path, fieldpath.Index(index))
			cur = nil
			if index < len(node) {
				cur = node[index]
			}
		case map[string]any:
			path = append(path, fieldpath.Key(token))
			cur = node[token]
		default:
			if index, err := strconv.Atoi(token); err == nil && index >= 0 && cur == nil && strconv.Itoa(index) == token {
				path = append(path, fieldpath.Index(index))
			} else {
				path = append(path, fieldpath.Key(token))
			}
			cur = nil
		}
	}
	return path, nil
}

// Names returns the field names written or removed by ops, in op order and
// without repeats. Pointers resolve against doc, the value before the patch.
func Names(doc any, ops []Operation) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	add := func(pointer string) error {
		path, err := ToPath(doc, pointer)
		if err != nil {
			return err
		}
		name := fieldpath.Format(path)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return nil
	}
	for _, op := range ops {
		if op.Op == OperationTest {
			continue
		}
		if op.Op == OperationMove {
			if err := add(op.From); err != nil {
				return nil, err
			}
		}
		if err := add(op.Path); err != nil {
			return nil, err
		}
	}
	return names, nil
}
