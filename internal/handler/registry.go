package handler

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTag = errors.New("duplicate handler tag")
	ErrInvalid      = errors.New("invalid handler")
)

// Registry holds handlers per category in registration order. It is built once
// and never changes afterwards.
type Registry struct {
	buckets [numCategories][]*Handler
	byTag   [numCategories]map[string]*Handler
}

// NewRegistry registers handlers in argument order.
func NewRegistry(handlers ...*Handler) (*Registry, error) {
	r := &Registry{}
	for c := range r.byTag {
		r.byTag[c] = make(map[string]*Handler)
	}
	for _, h := range handlers {
		if err := r.register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry for static handler tables; it panics on error.
func MustRegistry(handlers ...*Handler) *Registry {
	r, err := NewRegistry(handlers...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) register(h *Handler) error {
	switch {
	case h == nil:
		return fmt.Errorf("%w: nil handler", ErrInvalid)
	case h.Tag == "":
		return fmt.Errorf("%w: empty tag", ErrInvalid)
	case !h.Category.valid():
		return fmt.Errorf("%w: %s has unknown category", ErrInvalid, h.Tag)
	case h.Pattern == nil:
		return fmt.Errorf("%w: %s has no pattern", ErrInvalid, h)
	case h.Run == nil:
		return fmt.Errorf("%w: %s has no run func", ErrInvalid, h)
	case h.TriggerChance < 0 || h.TriggerChance > 100:
		return fmt.Errorf("%w: %s trigger chance %d outside 0..100", ErrInvalid, h, h.TriggerChance)
	}

	if _, ok := r.byTag[h.Category][h.Tag]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, h)
	}
	r.byTag[h.Category][h.Tag] = h
	r.buckets[h.Category] = append(r.buckets[h.Category], h)
	return nil
}

// Lookup returns the category's handlers in registration order.
func (r *Registry) Lookup(c Category) []*Handler {
	if !c.valid() {
		return nil
	}
	out := make([]*Handler, len(r.buckets[c]))
	copy(out, r.buckets[c])
	return out
}

// Get returns the handler with tag in category c.
func (r *Registry) Get(c Category, tag string) (*Handler, bool) {
	if !c.valid() {
		return nil, false
	}
	h, ok := r.byTag[c][tag]
	return h, ok
}

// Len returns the total number of handlers.
func (r *Registry) Len() int {
	n := 0
	for _, b := range r.buckets {
		n += len(b)
	}
	return n
}
