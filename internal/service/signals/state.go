package signals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/predictor"
)

var ErrVersionConflict = errors.New("signal state version conflict")

type Key struct {
	Pair      string
	Timeframe string
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.Pair, k.Timeframe)
}

// State 每个 (pair, timeframe) 最近一次观测到的信号
type State struct {
	Action     predictor.Action
	Confidence float64
	Timestamp  time.Time
	// Version 0 表示不存在
	Version int64
}

// StateStore 只有 Detector 写入, CompareAndSwap 保证同一 key 单写者
type StateStore interface {
	Get(ctx context.Context, key Key) (State, bool, error)
	// CompareAndSwap 当前版本等于 expected 时写入, 返回写入后的状态 (Version = expected+1)
	CompareAndSwap(ctx context.Context, key Key, expected int64, next State) (State, error)
}

type memoryStore struct {
	mu     sync.Mutex
	states map[Key]State
}

func NewMemoryStore() StateStore {
	return &memoryStore{
		states: make(map[Key]State),
	}
}

func (s *memoryStore) Get(ctx context.Context, key Key) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[key]
	return st, ok, nil
}

func (s *memoryStore) CompareAndSwap(ctx context.Context, key Key, expected int64, next State) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[key].Version != expected {
		return State{}, ErrVersionConflict
	}
	next.Version = expected + 1
	s.states[key] = next
	return next, nil
}
