package patch

import (
	"fmt"
	"strings"
)

// ValidatePatchOperations rejects operations whose path, or source path for
// move and copy, is not allowed. In allowedPaths a "-" or "*" segment matches
// any single segment. An empty set allows everything.
func ValidatePatchOperations(ops []Operation, allowedPaths map[string]bool) error {
	if len(ops) == 0 {
		return nil
	}
	for i, op := range ops {
		if err := validatePathAllowed(op.Path, allowedPaths); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		if op.Op == OperationMove || op.Op == OperationCopy {
			if err := validatePathAllowed(op.From, allowedPaths); err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}
		}
	}
	return nil
}

func validatePathAllowed(path string, allowedPaths map[string]bool) error {
	if len(allowedPaths) == 0 {
		return nil
	}
	if allowedPaths[path] {
		return nil
	}
	if isPathMatchedByWildcard(path, allowedPaths) {
		return nil
	}
	return fmt.Errorf("path %q is not in the allowed paths set", path)
}

func isPathMatchedByWildcard(path string, allowedPaths map[string]bool) bool {
	segments := strings.Split(path, "/")
	return matchWildcard(segments, 1, allowedPaths, false)
}

func matchWildcard(segments []string, index int, allowedPaths map[string]bool, hasWildcard bool) bool {
	if index >= len(segments) {
		return hasWildcard && allowedPaths[strings.Join(segments, "/")]
	}
	original := segments[index]
	defer func() { segments[index] = original }()

	for _, wildcard := range []string{"-", "*"} {
		segments[index] = wildcard
		if matchWildcard(segments, index+1, allowedPaths, true) {
			return true
		}
	}
	segments[index] = original
	return matchWildcard(segments, index+1, allowedPaths, hasWildcard)
}
