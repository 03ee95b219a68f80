package patch

import (
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Apply runs ops against value and returns the patched copy. Missing parents
// of an added path are created, a replace of an absent path becomes an add and
// removing an absent path is dropped.
func Apply(value map[string]any, ops []Operation) (map[string]any, error) {
	if len(ops) == 0 {
		return value, nil
	}
	if value == nil {
		value = map[string]any{}
	}

	currentJSON, err := sonic.Marshal(value)
	if err != nil {
		return value, fmt.Errorf("failed to marshal form value: %w", err)
	}

	ops = FixOperation(value, ops)

	patchJSON, err := sonic.Marshal(ops)
	if err != nil {
		return value, fmt.Errorf("failed to marshal patch operations: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return value, fmt.Errorf("failed to decode patch: %w", err)
	}

	options := jsonpatch.NewApplyOptions()
	options.EnsurePathExistsOnAdd = true
	modifiedJSON, err := p.ApplyWithOptions(currentJSON, options)
	if err != nil {
		return value, fmt.Errorf("failed to apply patch: %w", err)
	}

	var result map[string]any
	if err := sonic.Unmarshal(modifiedJSON, &result); err != nil {
		return value, fmt.Errorf("patch did not produce an object: %w", err)
	}
	return result, nil
}

func FixOperation(doc any, ops []Operation) []Operation {
	fixed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		switch op.Op {
		case OperationReplace:
			if !pathExists(doc, op.Path) {
				op.Op = OperationAdd
			}
			fixed = append(fixed, op)
		case OperationRemove:
			if pathExists(doc, op.Path) {
				fixed = append(fixed, op)
			}
		default:
			fixed = append(fixed, op)
		}
	}
	return fixed
}

func pathExists(doc any, pointer string) bool {
	tokens, err := splitPointer(pointer)
	if err != nil {
		return false
	}
	cur := doc
	for _, token := range tokens {
		switch node := cur.(type) {
		case map[string]any:
			value, ok := node[token]
			if !ok {
				return false
			}
			cur = value
		case []any:
			index, err := strconv.Atoi(token)
			if err != nil || index < 0 || index >= len(node) {
				return false
			}
			cur = node[index]
		default:
			return false
		}
	}
	return true
}
