package extensions

import (
	"github.com/m1gwings/treedrawer/tree"
	"go.uber.org/zap"

	dispose "github.com/disposable-fn/dispose-go"
)

// TreeDebugExtension logs a rendering of the live scope hierarchy when a
// teardown fails, so the shape of the unwind is visible next to the
// error.
//
// Usage:
//
//	logger, _ := zap.NewDevelopment()
//	s := dispose.NewScope(dispose.WithExtension(extensions.NewTreeDebugExtension(logger)))
type TreeDebugExtension struct {
	dispose.BaseExtension
	logger *zap.Logger
	root   *dispose.Scope
}

// NewTreeDebugExtension creates a new tree debug extension. A nil logger
// falls back to zap.NewNop.
func NewTreeDebugExtension(logger *zap.Logger) *TreeDebugExtension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeDebugExtension{
		BaseExtension: dispose.NewBaseExtension("tree-debug"),
		logger:        logger,
	}
}

// Init remembers the first scope the extension is registered to as the
// rendering root.
func (e *TreeDebugExtension) Init(s *dispose.Scope) error {
	if e.root == nil {
		e.root = s
	}
	return nil
}

// OnTeardownError logs the scope tree alongside the failure. The error
// is not handled and still aggregates.
func (e *TreeDebugExtension) OnTeardownError(err *dispose.TeardownError) bool {
	e.logger.Error("teardown failed",
		zap.String("label", err.Label),
		zap.String("phase", err.Phase),
		zap.Error(err.Err),
		zap.String("scope_tree", RenderScopeTree(e.root)),
	)
	return false
}

// RenderScopeTree draws the scope hierarchy rooted at s: one node per
// scope, one leaf per registered disposable.
func RenderScopeTree(s *dispose.Scope) string {
	if s == nil {
		return ""
	}
	t := tree.NewTree(tree.NodeString(scopeLabel(s)))
	addScope(t, s)
	return t.String()
}

func addScope(node *tree.Tree, s *dispose.Scope) {
	i := 0
	for _, d := range s.Entries() {
		node.AddChild(tree.NodeString(entryLabel(d)))
		i++
	}
	for _, child := range s.Children() {
		node.AddChild(tree.NodeString(scopeLabel(child)))
		childNode, err := node.Child(i)
		if err == nil {
			addScope(childNode, child)
		}
		i++
	}
}

func scopeLabel(s *dispose.Scope) string {
	kind := "scope"
	if s.IsAsync() {
		kind = "async scope"
	}
	return kind + " " + shortID(s.ID())
}

func entryLabel(d dispose.AnyDisposable) string {
	label := d.Label()
	if label == "" {
		label = "(unlabeled)"
	}
	return label + " [" + d.TeardownKind().String() + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
