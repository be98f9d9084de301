package contract

import (
	"sort"
)

// State is the key/value store behind one DAO instance. Keys and values are
// opaque byte strings.
type State interface {
	Set(key, value string) error
	Get(key string) (*string, error)
	Delete(key string) error
}

// Batcher is implemented by backends that can apply a whole frame in one
// transaction. A nil value deletes the key.
type Batcher interface {
	Apply(writes map[string]*string) error
}

// overlay buffers the writes of one call frame on top of its parent. Reads fall
// through to the parent. The first backend error sticks and fails the frame.
type overlay struct {
	parent State
	writes map[string]*string
	err    error
}

func newOverlay(parent State) *overlay {
	return &overlay{parent: parent, writes: make(map[string]*string)}
}

func (o *overlay) Get(key string) (*string, error) {
	if v, ok := o.writes[key]; ok {
		if v == nil {
			return nil, nil
		}
		val := *v
		return &val, nil
	}
	return o.parent.Get(key)
}

func (o *overlay) Set(key, value string) error {
	o.writes[key] = &value
	return nil
}

func (o *overlay) Delete(key string) error {
	o.writes[key] = nil
	return nil
}

// get is the sticky-error read used by the domain code.
func (o *overlay) get(key string) *string {
	if o.err != nil {
		return nil
	}
	v, err := o.Get(key)
	if err != nil {
		o.err = err
		return nil
	}
	return v
}

func (o *overlay) set(key, value string) {
	o.writes[key] = &value
}

func (o *overlay) del(key string) {
	o.writes[key] = nil
}

// commit pushes the buffered writes into the parent. Nested frames merge into
// their parent overlay, the outermost frame writes to the backend.
func (o *overlay) commit() error {
	if o.err != nil {
		return o.err
	}
	if len(o.writes) == 0 {
		return nil
	}
	switch p := o.parent.(type) {
	case *overlay:
		for k, v := range o.writes {
			p.writes[k] = v
		}
		return nil
	case Batcher:
		return p.Apply(o.writes)
	}
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var err error
		if v := o.writes[k]; v == nil {
			err = o.parent.Delete(k)
		} else {
			err = o.parent.Set(k, *v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
