// Package badger is the durable key/value backend of DAO instances.
package badger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const gcInterval = 5 * time.Minute

type StateOptionFunc func(*State)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) StateOptionFunc {
	return func(s *State) {
		s.logger = logger
	}
}

// WithDataDir stores data under dataDir. Without it the store lives in memory.
func WithDataDir(dataDir string) StateOptionFunc {
	return func(s *State) {
		s.dataDir = dataDir
	}
}

// WithGc toggles value log garbage collection
func WithGc(enabled bool) StateOptionFunc {
	return func(s *State) {
		s.gcEnabled = enabled
	}
}

// State implements contract.State and contract.Batcher on top of badger. A
// whole call frame is written in one transaction.
type State struct {
	db        *badger.DB
	logger    *slog.Logger
	dataDir   string
	gcEnabled bool
	gcStopCh  chan struct{}
	gcWg      sync.WaitGroup
}

func New(opts ...StateOptionFunc) (*State, error) {
	s := &State{gcEnabled: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
		s.gcEnabled = false
	} else {
		if _, err := os.Stat(s.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(filepath.Join(s.dataDir, "state")).
			WithCompression(options.Snappy)
	}
	badgerOpts = badgerOpts.
		WithLogger(&badgerLogger{logger: s.logger}).
		// the default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	s.db = db
	if s.gcEnabled {
		s.gcStopCh = make(chan struct{})
		s.gcWg.Add(1)
		go s.gc()
	}
	return s, nil
}

func (s *State) gc() {
	defer s.gcWg.Done()
	t := time.NewTicker(gcInterval)
	defer t.Stop()
	for {
		select {
		case <-s.gcStopCh:
			return
		case <-t.C:
			// one rewrite per tick until nothing is left to collect
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn("state GC failure", "component", "database", "err", err)
				}
				break
			}
		}
	}
}

func (s *State) Get(key string) (*string, error) {
	var out *string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		str := string(val)
		out = &str
		return nil
	})
	return out, err
}

func (s *State) Set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (s *State) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Apply writes a frame atomically. A frame too large for one transaction is
// rejected rather than split.
func (s *State) Apply(writes map[string]*string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for k, v := range writes {
			var err error
			if v == nil {
				err = txn.Delete([]byte(k))
			} else {
				err = txn.Set([]byte(k), []byte(*v))
			}
			if err != nil {
				return fmt.Errorf("apply %x: %w", k, err)
			}
		}
		return nil
	})
}

func (s *State) Close() error {
	if s.gcStopCh != nil {
		close(s.gcStopCh)
		s.gcWg.Wait()
		s.gcStopCh = nil
	}
	return s.db.Close()
}

// badgerLogger routes badger's printf logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...), "component", "badger")
}

func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Info(fmt.Sprintf(msg, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...), "component", "badger")
}
