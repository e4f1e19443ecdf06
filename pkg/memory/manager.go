package memory

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"weak"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager tracks the buffers registered with it and evicts unlocked ones
// to a Store according to its DumpPolicy. The policy is applied after
// every allocation and every time a buffer loses its last lock.
//
// The manager only keeps weak references: a buffer that is no longer
// reachable is forgotten and its dump file, if any, is removed.
type Manager struct {
	mu      sync.Mutex
	store   Store
	policy  DumpPolicy
	logger  *zap.Logger
	buffers map[weak.Pointer[BufferObject]]*bufferInfo
	clock   uint64

	dumps    int
	restores int
}

type bufferInfo struct {
	lastAccess uint64
	dumpKey    string
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the store dumped buffers are written to.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithDumpPolicy sets the eviction policy.
func WithDumpPolicy(p DumpPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a manager. Without options it never dumps.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		policy:  NeverDump{},
		logger:  zap.NewNop(),
		buffers: make(map[weak.Pointer[BufferObject]]*bufferInfo),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats is a snapshot of the manager bookkeeping.
type Stats struct {
	Buffers       int
	ResidentBytes int64
	DumpedBytes   int64
	Dumps         int
	Restores      int
}

// Stats returns the current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{Dumps: m.dumps, Restores: m.restores}
	for wp := range m.buffers {
		b := wp.Value()
		if b == nil {
			continue
		}
		s.Buffers++
		if b.dumped {
			s.DumpedBytes += int64(b.size)
		} else {
			s.ResidentBytes += int64(b.size)
		}
	}
	return s
}

// Policy returns the eviction policy.
func (m *Manager) Policy() DumpPolicy { return m.policy }

// Dump writes b to the store and releases its memory.
func (m *Manager) Dump(b *BufferObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dumpLocked(b)
}

// Restore reads a dumped buffer back into memory.
func (m *Manager) Restore(b *BufferObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restoreLocked(b)
}

// RestoreAll brings every dumped buffer back into memory.
func (m *Manager) RestoreAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for wp := range m.buffers {
		if b := wp.Value(); b != nil && b.dumped {
			if err := m.restoreLocked(b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) register(b *BufferObject) {
	wp := weak.Make(b)

	m.mu.Lock()
	m.clock++
	m.buffers[wp] = &bufferInfo{lastAccess: m.clock}
	m.mu.Unlock()

	runtime.AddCleanup(b, m.forget, wp)
}

func (m *Manager) forget(wp weak.Pointer[BufferObject]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info, ok := m.buffers[wp]; ok && info.dumpKey != "" && m.store != nil {
		if err := m.store.Remove(info.dumpKey); err != nil {
			m.logger.Warn("failed to remove dump of collected buffer",
				zap.String("key", info.dumpKey), zap.Error(err))
		}
	}
	delete(m.buffers, wp)
}

func (m *Manager) info(b *BufferObject) *bufferInfo {
	wp := weak.Make(b)
	info, ok := m.buffers[wp]
	if !ok {
		m.clock++
		info = &bufferInfo{lastAccess: m.clock}
		m.buffers[wp] = info
	}
	return info
}

func (m *Manager) touch(b *BufferObject) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock++
	m.info(b).lastAccess = m.clock
}

func (m *Manager) resized(b *BufferObject) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock++
	m.info(b).lastAccess = m.clock
	m.applyLocked()
}

func (m *Manager) unlocked(b *BufferObject) {
	if b.locks > 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked()
}

func (m *Manager) discard(b *BufferObject) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.info(b)
	if info.dumpKey != "" && m.store != nil {
		if err := m.store.Remove(info.dumpKey); err != nil {
			m.logger.Warn("failed to remove discarded dump", zap.String("key", info.dumpKey), zap.Error(err))
		}
	}
	info.dumpKey = ""
}

// applyLocked asks the policy which buffers to evict and dumps them.
func (m *Manager) applyLocked() {
	if m.store == nil {
		return
	}

	var (
		candidates []*BufferObject
		resident   int64
	)
	for wp := range m.buffers {
		b := wp.Value()
		if b == nil || b.dumped {
			continue
		}
		resident += int64(b.size)
		if b.locks == 0 && b.policy != nil && b.size > 0 {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return
	}

	// Least recently used first
	sort.Slice(candidates, func(i, j int) bool {
		return m.info(candidates[i]).lastAccess < m.info(candidates[j]).lastAccess
	})

	for _, b := range m.policy.Select(candidates, resident) {
		if err := m.dumpLocked(b); err != nil {
			m.logger.Warn("dump failed", zap.String("policy", m.policy.Name()), zap.Error(err))
		}
	}
}

func (m *Manager) dumpLocked(b *BufferObject) error {
	switch {
	case b.dumped:
		return nil
	case b.locks > 0:
		return fmt.Errorf("dump: %w", ErrLocked)
	case b.policy == nil:
		return fmt.Errorf("dump: %w", ErrNoPolicy)
	case m.store == nil:
		return fmt.Errorf("dump: %w", ErrNoStore)
	case b.size == 0:
		return nil
	}

	key := uuid.NewString()
	if err := m.store.Write(key, b.buf[:b.size]); err != nil {
		return fmt.Errorf("dump %s: %w", humanize.Bytes(uint64(b.size)), err)
	}

	b.policy.Destroy(b.buf)
	b.buf = nil
	b.dumped = true
	m.info(b).dumpKey = key
	m.dumps++

	m.logger.Debug("buffer dumped",
		zap.String("key", key),
		zap.String("size", humanize.Bytes(uint64(b.size))),
		zap.String("policy", m.policy.Name()))
	return nil
}

func (m *Manager) restoreLocked(b *BufferObject) error {
	if !b.dumped {
		return nil
	}
	info := m.info(b)
	if info.dumpKey == "" || m.store == nil {
		return fmt.Errorf("restore: %w", ErrNoStore)
	}

	buf, err := b.policy.Allocate(b.size)
	if err != nil {
		return fmt.Errorf("restore %s: %w", humanize.Bytes(uint64(b.size)), err)
	}
	if err := m.store.Read(info.dumpKey, buf); err != nil {
		b.policy.Destroy(buf)
		return fmt.Errorf("restore %s: %w", info.dumpKey, err)
	}
	if err := m.store.Remove(info.dumpKey); err != nil {
		m.logger.Warn("failed to remove restored dump", zap.String("key", info.dumpKey), zap.Error(err))
	}

	m.logger.Debug("buffer restored",
		zap.String("key", info.dumpKey),
		zap.String("size", humanize.Bytes(uint64(b.size))))

	b.buf = buf
	b.dumped = false
	info.dumpKey = ""
	m.clock++
	info.lastAccess = m.clock
	m.restores++
	return nil
}
