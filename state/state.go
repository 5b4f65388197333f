// Package state holds the single mutable snapshot a running backtest
// carries: cash, open positions, the latest bar per symbol, and the
// append-only trade/equity history. One State belongs to exactly one
// Engine run; it is not shared across concurrent backtests (runner.Pool
// gives each worker its own State).
package state

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/money"
)

// State is guarded by an RWMutex so a ReportStore snapshot or a strategy's
// read-only introspection can run concurrently with the engine's own writes
// within a single backtest's lifetime (the engine itself is still logically
// single-threaded through one bar at a time).
type State struct {
	mu sync.RWMutex

	cash      money.Money
	positions map[string]models.Position

	currentPrices  map[string]money.Money
	currentVolumes map[string]int64
	currentTSNanos int64

	fills       []models.Fill
	equityCurve []models.EquitySnapshot

	activeBuyFills  map[string]struct{}
	activeSellFills map[string]struct{}
}

// New returns a State seeded with the given starting cash.
func New(initialCash money.Money) *State {
	return &State{
		cash:            initialCash,
		positions:       make(map[string]models.Position),
		currentPrices:   make(map[string]money.Money),
		currentVolumes:  make(map[string]int64),
		fills:           make([]models.Fill, 0),
		equityCurve:     make([]models.EquitySnapshot, 0),
		activeBuyFills:  make(map[string]struct{}),
		activeSellFills: make(map[string]struct{}),
	}
}

// Cash returns the current cash balance.
func (s *State) Cash() money.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cash
}

// SetCash overwrites the cash balance.
func (s *State) SetCash(c money.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash = c
}

// AddCash applies a cash delta (positive or negative).
func (s *State) AddCash(delta money.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash = s.cash.Add(delta)
}

// Position returns the position held in symbol, and whether one exists.
func (s *State) Position(symbol string) (models.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	return p, ok
}

// SetPosition upserts a position, or deletes the entry if it has gone flat.
func (s *State) SetPosition(p models.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.IsFlat() {
		delete(s.positions, p.Symbol)
		return
	}
	s.positions[p.Symbol] = p
}

// Positions returns a snapshot copy of all open positions.
func (s *State) Positions() map[string]models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Position, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out
}

// UpdateBar records the latest price and volume observed for symbol and
// advances the state's current timestamp to the bar's close time.
func (s *State) UpdateBar(bar models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPrices[bar.Symbol] = bar.Close
	s.currentVolumes[bar.Symbol] = bar.Volume
	if bar.UnixTSNanos > s.currentTSNanos {
		s.currentTSNanos = bar.UnixTSNanos
	}
}

// CurrentPrice returns the last observed close for symbol.
func (s *State) CurrentPrice(symbol string) (money.Money, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.currentPrices[symbol]
	return p, ok
}

// CurrentVolume returns the last observed bar volume for symbol.
func (s *State) CurrentVolume(symbol string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.currentVolumes[symbol]
	return v, ok
}

// CurrentTimestampNanos returns the timestamp of the most recently processed
// bar across all symbols.
func (s *State) CurrentTimestampNanos() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTSNanos
}

// AppendFill records a new fill in the append-only trade history.
func (s *State) AppendFill(f models.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, f)
}

// Fills returns a snapshot copy of the fill history.
func (s *State) Fills() []models.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Fill, len(s.fills))
	copy(out, s.fills)
	return out
}

// AppendEquitySnapshot records a new point on the equity curve.
func (s *State) AppendEquitySnapshot(e models.EquitySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equityCurve = append(s.equityCurve, e)
}

// EquityCurve returns a snapshot copy of the recorded equity curve.
func (s *State) EquityCurve() []models.EquitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EquitySnapshot, len(s.equityCurve))
	copy(out, s.equityCurve)
	return out
}

// ArmBuyFill marks a buy fill's UUID live, meaning an exit order whose
// SourceFillUUID matches it may still trigger.
func (s *State) ArmBuyFill(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeBuyFills[uuid] = struct{}{}
}

// ArmSellFill marks a sell fill's UUID live.
func (s *State) ArmSellFill(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSellFills[uuid] = struct{}{}
}

// DisarmBuyFill removes a buy fill's UUID from the live set, e.g. once the
// position it opened has been fully closed.
func (s *State) DisarmBuyFill(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeBuyFills, uuid)
}

// DisarmSellFill removes a sell fill's UUID from the live set.
func (s *State) DisarmSellFill(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeSellFills, uuid)
}

// IsBuyFillActive reports whether uuid still names a live long-opening fill.
func (s *State) IsBuyFillActive(uuid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.activeBuyFills[uuid]
	return ok
}

// IsSellFillActive reports whether uuid still names a live short-opening
// fill.
func (s *State) IsSellFillActive(uuid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.activeSellFills[uuid]
	return ok
}

// DisarmSymbolFills clears every active buy/sell fill UUID recorded against
// symbol. Called once a symbol's position returns to flat, so no exit order
// can go on referencing one of that symbol's now-closed opening fills.
func (s *State) DisarmSymbolFills(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.fills {
		if f.Symbol != symbol {
			continue
		}
		if f.Action == models.Buy {
			delete(s.activeBuyFills, f.UUID)
		} else {
			delete(s.activeSellFills, f.UUID)
		}
	}
}

// IsSourceFillActive reports whether the fill that armed an exit order is
// still live, checking the set that matches whether the exit order protects
// a short (its source was a sell) or a long (its source was a buy).
func (s *State) IsSourceFillActive(sourceFillUUID string, isShort bool) bool {
	if isShort {
		return s.IsSellFillActive(sourceFillUUID)
	}
	return s.IsBuyFillActive(sourceFillUUID)
}

// ZeroQuantity is the decimal zero value used throughout the engine for "no
// position"/"nothing filled yet" comparisons, re-exported here so callers
// don't need to import decimal solely for this constant.
var ZeroQuantity = decimal.Zero
