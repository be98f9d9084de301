package contract

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"
)

// MemoryState is a map backed State for tests and the dev CLI. When a filename
// is set every committed batch is flushed to a JSON file.
type MemoryState struct {
	mu       sync.RWMutex
	db       map[string]string
	filename string
}

func NewMemoryState() *MemoryState {
	return &MemoryState{db: make(map[string]string)}
}

// NewFileState loads filename if it exists and persists to it on every write.
func NewFileState(filename string) (*MemoryState, error) {
	m := &MemoryState{db: make(map[string]string), filename: filename}
	if err := m.loadFromFile(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryState) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db[key] = value
	return m.saveToFile()
}

func (m *MemoryState) Get(key string) (*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.db[key]
	if !ok {
		return nil, nil
	}
	return &val, nil
}

func (m *MemoryState) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.db, key)
	return m.saveToFile()
}

// Apply writes a frame in one go, so the file is rewritten once per call.
func (m *MemoryState) Apply(writes map[string]*string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range writes {
		if v == nil {
			delete(m.db, k)
		} else {
			m.db[k] = *v
		}
	}
	return m.saveToFile()
}

// Len is the number of stored keys.
func (m *MemoryState) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.db)
}

// saveToFile writes the full map to a JSON file. Keys and values are binary,
// so both are hex encoded.
func (m *MemoryState) saveToFile() error {
	if m.filename == "" {
		return nil
	}
	out := make(map[string]string, len(m.db))
	for k, v := range m.db {
		out[hex.EncodeToString([]byte(k))] = hex.EncodeToString([]byte(v))
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(m.filename, data, 0o644)
}

func (m *MemoryState) loadFromFile() error {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var in map[string]string
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	for k, v := range in {
		key, err := hex.DecodeString(k)
		if err != nil {
			return err
		}
		val, err := hex.DecodeString(v)
		if err != nil {
			return err
		}
		m.db[string(key)] = string(val)
	}
	return nil
}
