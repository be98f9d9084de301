package contract

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

const (
	factoryCountKey  = "factory:n"
	factoryEntryKey  = "factory:i:"
	factoryLookupKey = "factory:a:"
)

// PrefixState gives one instance its own namespace inside a shared backend.
type PrefixState struct {
	prefix string
	inner  State
}

func NewPrefixState(inner State, prefix string) *PrefixState {
	return &PrefixState{prefix: prefix, inner: inner}
}

func (p *PrefixState) Set(key, value string) error    { return p.inner.Set(p.prefix+key, value) }
func (p *PrefixState) Get(key string) (*string, error) { return p.inner.Get(p.prefix + key) }
func (p *PrefixState) Delete(key string) error         { return p.inner.Delete(p.prefix + key) }

// Apply keeps batch commits atomic when the backend supports them.
func (p *PrefixState) Apply(writes map[string]*string) error {
	b, ok := p.inner.(Batcher)
	if !ok {
		for k, v := range writes {
			var err error
			if v == nil {
				err = p.inner.Delete(p.prefix + k)
			} else {
				err = p.inner.Set(p.prefix+k, *v)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	prefixed := make(map[string]*string, len(writes))
	for k, v := range writes {
		prefixed[p.prefix+k] = v
	}
	return b.Apply(prefixed)
}

// Factory summons independent DAO instances over one backend. Instances share
// the host and the options but never state.
type Factory struct {
	self      sdk.Address
	store     State
	host      sdk.Host
	opts      []Option
	mu        sync.Mutex
	instances map[sdk.Address]*DAO
}

func NewFactory(self sdk.Address, store State, host sdk.Host, opts ...Option) *Factory {
	return &Factory{
		self:      self,
		store:     store,
		host:      host,
		opts:      opts,
		instances: make(map[sdk.Address]*DAO),
	}
}

func (f *Factory) open(addr sdk.Address) *DAO {
	if d, ok := f.instances[addr]; ok {
		return d
	}
	d := New(addr, NewPrefixState(f.store, "dao:"+addr.String()+":"), f.host, f.opts...)
	f.instances[addr] = d
	return d
}

// Summon derives the instance address from salt, initializes it and records it.
// A salt can be used once. An instance an earlier Summon initialized but failed
// to record is recorded without running Init again.
func (f *Factory) Summon(ctx context.Context, salt string, params InitParams) (*DAO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	addr := dao.DeriveAddress(f.self, salt)
	known, err := f.store.Get(factoryLookupKey + addr.String())
	if err != nil {
		return nil, err
	}
	if known != nil {
		return nil, fmt.Errorf("%w: %s already summoned", ErrInvalidState, addr)
	}
	d := f.open(addr)
	ready, err := d.Initialized(ctx)
	if err != nil {
		return nil, err
	}
	// a failed init leaves nothing behind, so the cached handle stays usable for a retry
	if !ready {
		if err := d.Init(ctx, params); err != nil {
			return nil, err
		}
	}
	if err := f.register(addr, salt); err != nil {
		return nil, fmt.Errorf("record %s: %w", addr, err)
	}
	return d, nil
}

// register writes the three registry keys of addr in one batch.
func (f *Factory) register(addr sdk.Address, salt string) error {
	n, err := f.count()
	if err != nil {
		return err
	}
	batch := newOverlay(f.store)
	batch.set(factoryEntryKey+strconv.FormatUint(n, 10), addr.String())
	batch.set(factoryLookupKey+addr.String(), salt)
	batch.set(factoryCountKey, strconv.FormatUint(n+1, 10))
	return batch.commit()
}

// Instance reopens a summoned DAO, also one summoned by an earlier process.
func (f *Factory) Instance(addr sdk.Address) (*DAO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	known, err := f.store.Get(factoryLookupKey + addr.String())
	if err != nil {
		return nil, err
	}
	if known == nil {
		return nil, fmt.Errorf("%w: unknown instance %s", ErrInvalidInput, addr)
	}
	return f.open(addr), nil
}

// Instances lists summoned addresses in summon order.
func (f *Factory) Instances() ([]sdk.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.count()
	if err != nil {
		return nil, err
	}
	out := make([]sdk.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		ptr, err := f.store.Get(factoryEntryKey + strconv.FormatUint(i, 10))
		if err != nil {
			return nil, err
		}
		if ptr != nil {
			out = append(out, sdk.Address(*ptr))
		}
	}
	return out, nil
}

func (f *Factory) count() (uint64, error) {
	ptr, err := f.store.Get(factoryCountKey)
	if err != nil || ptr == nil {
		return 0, err
	}
	return strconv.ParseUint(*ptr, 10, 64)
}
