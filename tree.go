package dispose

import (
	"sync"
)

// scopeTree tracks the parent/child relationships of a family of scopes
// with safe traversal. One tree is shared by a root scope and all of its
// descendants; the debug extensions walk it to render the live hierarchy.
type scopeTree struct {
	// Adjacency list representation: parent -> ordered children
	children map[*Scope][]*Scope
	parent   map[*Scope]*Scope
	mu       sync.RWMutex
}

func newScopeTree() *scopeTree {
	return &scopeTree{
		children: make(map[*Scope][]*Scope),
		parent:   make(map[*Scope]*Scope),
	}
}

// addChild records child under parent.
func (t *scopeTree) addChild(parent, child *Scope) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.children[parent] = appendUnique(t.children[parent], child)
	t.parent[child] = parent
}

// remove detaches a closed scope from the tree.
func (t *scopeTree) remove(s *Scope) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.parent[s]; ok {
		t.children[p] = removeElement(t.children[p], s)
		if len(t.children[p]) == 0 {
			delete(t.children, p)
		}
		delete(t.parent, s)
	}
	delete(t.children, s)
}

// descendants returns every scope below start, innermost entries last.
// Iterative traversal with an explicit stack, with a visited guard so a
// corrupted hierarchy cannot loop.
func (t *scopeTree) descendants(start *Scope) []*Scope {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stack := make([]*Scope, 0, 8)
	stack = append(stack, start)

	result := make([]*Scope, 0, 8)
	visited := make(map[*Scope]bool, 8)

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}
		visited[current] = true

		if current != start {
			result = append(result, current)
		}

		for _, child := range t.children[current] {
			if !visited[child] {
				stack = append(stack, child)
			}
		}
	}

	return result
}

// directChildren returns a copy of start's direct children, oldest first.
func (t *scopeTree) directChildren(start *Scope) []*Scope {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if kids, exists := t.children[start]; exists {
		result := make([]*Scope, len(kids))
		copy(result, kids)
		return result
	}
	return nil
}

func appendUnique[T comparable](slice []T, item T) []T {
	for _, existing := range slice {
		if existing == item {
			return slice
		}
	}
	return append(slice, item)
}

func removeElement[T comparable](slice []T, item T) []T {
	for i, existing := range slice {
		if existing == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
