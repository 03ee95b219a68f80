// Package patch applies RFC6902 operations to form values. A host that edits
// inputs outside of a submission reports the change as operations.
package patch

const (
	OperationAdd     = "add"
	OperationRemove  = "remove"
	OperationReplace = "replace"
	OperationMove    = "move"
	OperationCopy    = "copy"
	OperationTest    = "test"
)

type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}
