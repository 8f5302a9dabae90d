package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ironsheep/annodiff/internal/annotation"
)

// ErrItemNotFound is returned by Source.Item for unknown ids.
var ErrItemNotFound = errors.New("item not found")

// Source is a read-only view of one annotated dataset.
//
// Implementations must be safe for concurrent calls to Item: the comparator
// looks up items from several workers at once.
type Source interface {
	// Name identifies the dataset in logs and reports.
	Name() string

	// ItemIDs returns the ids of all items in the dataset.
	ItemIDs(ctx context.Context) ([]string, error)

	// Item returns one item with its ordered annotations.
	Item(ctx context.Context, id string) (*annotation.Item, error)

	// Labels returns the dataset's label vocabulary.
	Labels() annotation.Vocabulary
}

// Memory is an in-memory Source.
type Memory struct {
	name   string
	labels annotation.Vocabulary
	items  map[string]*annotation.Item
}

// NewMemory creates an in-memory dataset. Items with duplicate ids replace
// earlier ones.
func NewMemory(name string, labels annotation.Vocabulary, items ...annotation.Item) *Memory {
	m := &Memory{
		name:   name,
		labels: labels,
		items:  make(map[string]*annotation.Item, len(items)),
	}
	for i := range items {
		item := items[i]
		m.items[item.ID] = &item
	}
	return m
}

// Name implements Source.
func (m *Memory) Name() string { return m.name }

// Labels implements Source.
func (m *Memory) Labels() annotation.Vocabulary { return m.labels }

// ItemIDs implements Source. The ids are returned sorted.
func (m *Memory) ItemIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Item implements Source.
func (m *Memory) Item(ctx context.Context, id string) (*annotation.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", m.name, id, ErrItemNotFound)
	}
	return item, nil
}
