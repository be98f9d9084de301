package contract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"okinoko_moloch/event"
	"okinoko_moloch/sdk"
)

// Publisher receives the events of every committed call, in commit order.
// *event.EventBus satisfies it.
type Publisher interface {
	Publish(eventType event.EventType, evt event.Event)
}

// DAO is one governance instance: its address, its own state namespace and the
// host it reaches the outside world through.
//
// Every exported mutating method runs as one atomic call frame. Outermost calls
// are serialized by mu. A host callback that re-enters the same DAO with the
// context it was handed runs as a nested frame on top of the caller's frame.
type DAO struct {
	self    sdk.Address
	store   State
	host    sdk.Host
	logger  *slog.Logger
	bus     Publisher
	metrics *daoMetrics
	mu      sync.Mutex
	guard   atomic.Bool
}

type Option func(*DAO)

// WithLogger sets the structured logger. Events are logged at info level.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DAO) { d.logger = logger }
}

// WithEventBus publishes committed events to p.
func WithEventBus(p Publisher) Option {
	return func(d *DAO) { d.bus = p }
}

// WithPromRegistry registers the DAO metrics on reg.
func WithPromRegistry(reg prometheus.Registerer) Option {
	return func(d *DAO) {
		if reg != nil {
			d.metrics = newDaoMetrics(reg, d.self)
		}
	}
}

// New wires a DAO at address self over store. It does not initialize it.
func New(self sdk.Address, store State, host sdk.Host, opts ...Option) *DAO {
	d := &DAO{
		self:  self,
		store: store,
		host:  host,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "dao", "dao", self.String())
	return d
}

// Address is the DAO's own account: its treasury and the caller of self-calls.
func (d *DAO) Address() sdk.Address {
	return d.self
}

// call is the state of one frame.
type call struct {
	d      *DAO
	ctx    context.Context
	env    sdk.Env
	kv     *overlay
	events []pendingEvent
	hooks  []func()
}

type frameKey struct {
	d *DAO
}

// onCommit defers fn until the outermost frame committed.
func (c *call) onCommit(fn func()) {
	c.hooks = append(c.hooks, fn)
}

func (c *call) self() sdk.Address   { return c.d.self }
func (c *call) caller() sdk.Address { return c.env.Caller }

// run executes fn as one atomic frame. Nothing fn wrote survives an error, and
// neither do host moves when the host keeps a journal.
func (d *DAO) run(ctx context.Context, op string, fn func(c *call) error) error {
	env, err := sdk.EnvFromContext(ctx)
	if err != nil {
		return err
	}
	parent, nested := ctx.Value(frameKey{d}).(*call)
	if !nested {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	c := &call{d: d, env: env}
	if nested {
		c.kv = newOverlay(parent.kv)
	} else {
		c.kv = newOverlay(d.store)
	}
	c.ctx = context.WithValue(ctx, frameKey{d}, c)
	revert := func() {}
	if j, ok := d.host.(sdk.Journal); ok {
		revert = j.Checkpoint()
	}

	start := time.Now()
	err = fn(c)
	if err == nil && c.kv.err != nil {
		err = fmt.Errorf("state: %w", c.kv.err)
	}
	if err == nil {
		if cerr := c.kv.commit(); cerr != nil {
			err = fmt.Errorf("commit: %w", cerr)
		}
	}
	d.metrics.observeCall(op, err, time.Since(start))
	if err != nil {
		revert()
		d.logger.Debug("call failed", "op", op, "caller", env.Caller.String(), "nested", nested, "err", err)
		return err
	}
	if nested {
		parent.events = append(parent.events, c.events...)
		parent.hooks = append(parent.hooks, c.hooks...)
		return nil
	}
	d.publish(c.events)
	for _, h := range c.hooks {
		h()
	}
	return nil
}

// view runs fn against the current state without committing. Views do not need
// a call environment; without one the wall clock stands in for the timestamp
// and history lookups fail as there is no current block.
func (d *DAO) view(ctx context.Context, fn func(c *call) error) error {
	env, err := sdk.EnvFromContext(ctx)
	if err != nil {
		env.Timestamp = time.Now().Unix()
	}
	c := &call{d: d, env: env}
	if parent, ok := ctx.Value(frameKey{d}).(*call); ok {
		c.kv = newOverlay(parent.kv)
	} else {
		d.mu.Lock()
		defer d.mu.Unlock()
		c.kv = newOverlay(d.store)
	}
	c.ctx = ctx
	if err := fn(c); err != nil {
		return err
	}
	if c.kv.err != nil {
		return fmt.Errorf("state: %w", c.kv.err)
	}
	return nil
}

// nonReentrant takes the DAO wide guard for the rest of the call. The release
// func must be deferred.
func (c *call) nonReentrant() (func(), error) {
	if !c.d.guard.CompareAndSwap(false, true) {
		return nil, ErrReentrancy
	}
	return func() { c.d.guard.Store(false) }, nil
}

// onlySelf restricts governance calls to the DAO itself.
func (c *call) onlySelf() error {
	if c.caller() != c.self() {
		return fmt.Errorf("%w: %s is not the dao", ErrUnauthorized, c.caller())
	}
	return nil
}
