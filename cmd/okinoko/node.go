package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"okinoko_moloch/contract"
	"okinoko_moloch/database/badger"
	"okinoko_moloch/event"
	"okinoko_moloch/indexer"
	"okinoko_moloch/internal/config"
	"okinoko_moloch/sdk"
)

const (
	heightKey    = "node:height"
	hostFileName = "host.yaml"
)

// node is one process worth of wiring: durable state, the local host ledger,
// the event bus with the indexer behind it and the factory on top.
type node struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	state    *badger.State
	host     *sdk.MemoryHost
	bus      *event.EventBus
	index    *indexer.Indexer
	factory  *contract.Factory
}

func openNode(cfg *config.Config, logger *slog.Logger) (*node, error) {
	n := &node{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		host:     sdk.NewMemoryHost(),
	}
	state, err := badger.New(
		badger.WithDataDir(cfg.DataDir),
		badger.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}
	n.state = state
	if err := n.loadHost(); err != nil {
		_ = state.Close()
		return nil, err
	}
	n.bus = event.NewEventBus(n.registry, logger)
	n.index, err = indexer.New(cfg.IndexDir(), logger)
	if err != nil {
		n.bus.Stop()
		_ = state.Close()
		return nil, fmt.Errorf("failed to open indexer: %w", err)
	}
	n.index.Attach(n.bus)
	n.factory = contract.NewFactory(
		sdk.Address(cfg.Factory),
		state,
		n.host,
		contract.WithLogger(logger),
		contract.WithEventBus(n.bus),
		contract.WithPromRegistry(n.registry),
	)
	return n, nil
}

// Close persists the host ledger and shuts everything down in reverse order.
func (n *node) Close() error {
	errs := []error{n.saveHost()}
	errs = append(errs, n.index.Shutdown())
	n.bus.Stop()
	errs = append(errs, n.state.Close())
	return errors.Join(errs...)
}

// instance resolves the --dao flag, falling back to the first summoned DAO.
func (n *node) instance() (*contract.DAO, error) {
	if globalFlags.dao != "" {
		return n.factory.Instance(sdk.Address(globalFlags.dao))
	}
	all, err := n.factory.Instances()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.New("no DAO summoned yet")
	}
	return n.factory.Instance(all[0])
}

func (n *node) height() (uint64, error) {
	ptr, err := n.state.Get(heightKey)
	if err != nil || ptr == nil {
		return 0, err
	}
	return strconv.ParseUint(*ptr, 10, 64)
}

func caller() (sdk.Address, error) {
	if globalFlags.as == "" {
		return "", errors.New("--as is required for this command")
	}
	return sdk.Address(globalFlags.as), nil
}

// mine moves the local chain one block ahead and returns the environment of a
// call made from the --as account in that block.
func (n *node) mine(ctx context.Context) (context.Context, error) {
	from, err := caller()
	if err != nil {
		return nil, err
	}
	return n.mineAs(ctx, from)
}

func (n *node) mineAs(ctx context.Context, from sdk.Address) (context.Context, error) {
	h, err := n.height()
	if err != nil {
		return nil, err
	}
	h++
	if err := n.state.Set(heightKey, strconv.FormatUint(h, 10)); err != nil {
		return nil, err
	}
	return sdk.WithEnv(ctx, sdk.Env{
		Caller:      from,
		BlockHeight: h,
		Timestamp:   time.Now().Unix(),
		TxID:        fmt.Sprintf("local-%d", h),
	}), nil
}

// viewAt returns an environment at the current block for read-only calls.
func (n *node) viewAt(ctx context.Context) (context.Context, error) {
	h, err := n.height()
	if err != nil {
		return nil, err
	}
	return sdk.WithEnv(ctx, sdk.Env{
		Caller:      sdk.Address(globalFlags.as),
		BlockHeight: h,
		Timestamp:   time.Now().Unix(),
	}), nil
}

// hostFile is the on-disk form of the local host ledger: asset, holder, decimal amount.
type hostFile map[string]map[string]string

func (n *node) hostPath() string {
	return filepath.Join(n.cfg.DataDir, hostFileName)
}

func (n *node) loadHost() error {
	buf, err := os.ReadFile(n.hostPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read host ledger: %w", err)
	}
	var hf hostFile
	if err := yaml.Unmarshal(buf, &hf); err != nil {
		return fmt.Errorf("failed to parse host ledger: %w", err)
	}
	for asset, byHolder := range hf {
		for holder, amount := range byHolder {
			v, err := uint256.FromDecimal(amount)
			if err != nil {
				return fmt.Errorf("host ledger %s/%s: %w", asset, holder, err)
			}
			n.host.Credit(sdk.Asset(asset), sdk.Address(holder), v)
		}
	}
	return nil
}

func (n *node) saveHost() error {
	hf := make(hostFile)
	for asset, byHolder := range n.host.Holdings() {
		m := make(map[string]string, len(byHolder))
		for holder, bal := range byHolder {
			m[holder.String()] = bal.Dec()
		}
		hf[asset.String()] = m
	}
	buf, err := yaml.Marshal(hf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(n.cfg.DataDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(n.hostPath(), buf, 0o644)
}

// withNode opens the node for one command and closes it afterwards.
func withNode(ctx context.Context, fn func(n *node) error) (err error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return errors.New("no config found in context")
	}
	n, err := openNode(cfg, commonRun(cfg))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, n.Close())
	}()
	return fn(n)
}
