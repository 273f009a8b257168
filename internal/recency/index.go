// Package recency tracks connection activity order so the service can
// answer "which connection has been idle longest".
package recency

import (
	"container/list"

	"parley/pkg/interfaces"
	"parley/pkg/types"
)

// Index keeps connections ordered from least to most recently active.
// Every operation is O(1) apart from Snapshot. The index is not safe for
// concurrent use; the multiplexer goroutine owns it.
type Index struct {
	elems map[types.ConnID]*list.Element
	order *list.List // front = least recent, back = most recent
}

var _ interfaces.RecencyIndex = (*Index)(nil)

// NewIndex creates an empty recency index.
func NewIndex() *Index {
	return &Index{
		elems: make(map[types.ConnID]*list.Element),
		order: list.New(),
	}
}

// Add registers a connection as the most recently active.
func (x *Index) Add(id types.ConnID) error {
	if _, exists := x.elems[id]; exists {
		return interfaces.ErrDuplicateConnection
	}
	x.elems[id] = x.order.PushBack(id)
	return nil
}

// Remove drops a connection from the index.
func (x *Index) Remove(id types.ConnID) error {
	elem, exists := x.elems[id]
	if !exists {
		return interfaces.ErrUnknownConnection
	}
	x.order.Remove(elem)
	delete(x.elems, id)
	return nil
}

// Touch marks a connection as the most recently active. The list element
// is reused, not reallocated.
func (x *Index) Touch(id types.ConnID) error {
	elem, exists := x.elems[id]
	if !exists {
		return interfaces.ErrUnknownConnection
	}
	x.order.MoveToBack(elem)
	return nil
}

// Oldest returns the least recently active connection. The second return
// is false when the index is empty.
func (x *Index) Oldest() (types.ConnID, bool) {
	front := x.order.Front()
	if front == nil {
		return 0, false
	}
	return front.Value.(types.ConnID), true
}

// Len reports the number of tracked connections.
func (x *Index) Len() int {
	return len(x.elems)
}

// Snapshot lists all connections from least to most recently active.
func (x *Index) Snapshot() []types.ConnID {
	ids := make([]types.ConnID, 0, x.order.Len())
	for elem := x.order.Front(); elem != nil; elem = elem.Next() {
		ids = append(ids, elem.Value.(types.ConnID))
	}
	return ids
}
