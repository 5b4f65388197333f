// Package datafeed provides the concurrency-safe bar store shared across
// backtest workers. Grounded on the mutex-guarded DataStore in
// original_source's forge/stores/data_store.cpp, in the teacher's
// sync.RWMutex-guarded state-struct idiom.
package datafeed

import (
	"fmt"
	"sort"
	"sync"

	"github.com/web3guy0/polyforge/models"
)

// Store holds bar series keyed by plugin (manifest) name and symbol. A
// single Store can be shared by a runner.Pool running several backtests
// concurrently, as long as they read disjoint or identical plugin keys.
type Store struct {
	mu   sync.RWMutex
	bars map[string]map[string][]models.Bar
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{bars: make(map[string]map[string][]models.Bar)}
}

// StoreBars appends bars for symbol under pluginName, keeping the stored
// series sorted by timestamp.
func (s *Store) StoreBars(pluginName, symbol string, bars []models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bars[pluginName] == nil {
		s.bars[pluginName] = make(map[string][]models.Bar)
	}
	s.bars[pluginName][symbol] = append(s.bars[pluginName][symbol], bars...)
	series := s.bars[pluginName][symbol]
	sort.Slice(series, func(i, j int) bool { return series[i].UnixTSNanos < series[j].UnixTSNanos })
}

// GetBars returns the stored bar series for one plugin/symbol pair.
func (s *Store) GetBars(pluginName, symbol string) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySymbol, ok := s.bars[pluginName]
	if !ok {
		return nil, fmt.Errorf("datafeed: no data for plugin %q", pluginName)
	}
	series, ok := bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("datafeed: no data for plugin %q symbol %q", pluginName, symbol)
	}
	out := make([]models.Bar, len(series))
	copy(out, series)
	return out, nil
}

// GetAllBarsForPlugin returns every symbol's bar series stored for a
// plugin, keyed by symbol.
func (s *Store) GetAllBarsForPlugin(pluginName string) map[string][]models.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]models.Bar)
	for symbol, series := range s.bars[pluginName] {
		cp := make([]models.Bar, len(series))
		copy(cp, series)
		out[symbol] = cp
	}
	return out
}

// GetSymbolsForPlugin returns the set of symbols with data stored for a
// plugin.
func (s *Store) GetSymbolsForPlugin(pluginName string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.bars[pluginName]))
	for symbol := range s.bars[pluginName] {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// HasPluginData reports whether any bars have been stored for pluginName.
func (s *Store) HasPluginData(pluginName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars[pluginName]) > 0
}

// Clear removes all stored data for pluginName.
func (s *Store) Clear(pluginName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bars, pluginName)
}

// BuildBatches interleaves every symbol's bars for a plugin into
// timestamp-ordered batches suitable for engine.Engine.Run, grouping bars
// that share an exact timestamp into one batch.
func (s *Store) BuildBatches(pluginName string) [][]models.Bar {
	bySymbol := s.GetAllBarsForPlugin(pluginName)

	byTimestamp := make(map[int64][]models.Bar)
	for _, series := range bySymbol {
		for _, bar := range series {
			byTimestamp[bar.UnixTSNanos] = append(byTimestamp[bar.UnixTSNanos], bar)
		}
	}

	timestamps := make([]int64, 0, len(byTimestamp))
	for ts := range byTimestamp {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	batches := make([][]models.Bar, 0, len(timestamps))
	for _, ts := range timestamps {
		batches = append(batches, byTimestamp[ts])
	}
	return batches
}
