package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"aitrade/internal/strategy"
)

// StrategyState is the persisted record of the last executed decision
// for one symbol and strategy. It is written after every executed
// (non-HOLD) action and read back on restart so the policy does not
// re-enter a position it already holds.
type StrategyState struct {
	LastAction     strategy.Action       `json:"last_action,omitempty"`
	Shares         int                   `json:"shares"`
	PositionType   strategy.PositionSide `json:"position_type"`
	LastSignalTime time.Time             `json:"last_signal_time"`
}

// Store reads and writes strategy state files under a single
// directory, one file per symbol+strategy, suffixed with the owning
// broker so paper and live runs never clobber each other.
type Store struct {
	mu     sync.Mutex
	dir    string
	broker string
}

func NewStore(dir, broker string) *Store {
	return &Store{dir: dir, broker: broker}
}

func (s *Store) path(symbol, strategyName string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.json", symbol, strategyName, s.broker))
}

func (s *Store) Save(symbol, strategyName string, st StrategyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(symbol, strategyName), data, 0o644)
}

// Load returns the persisted state and whether a record existed.
func (s *Store) Load(symbol, strategyName string) (StrategyState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(symbol, strategyName))
	if os.IsNotExist(err) {
		return StrategyState{}, false, nil
	}
	if err != nil {
		return StrategyState{}, false, err
	}

	var st StrategyState
	if err := json.Unmarshal(data, &st); err != nil {
		return StrategyState{}, false, err
	}
	return st, true, nil
}
