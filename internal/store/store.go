// Package store holds the display state of the exchange page: the open
// orders of the selected market, the market itself and the current account.
package store

import (
	"sync"

	"openorders/internal/common"

	"github.com/tidwall/btree"
)

// Orders sorted by ledger object id.
type Orders = btree.BTreeG[common.Order]

type Store struct {
	orders *Orders

	mu        sync.RWMutex
	base      common.Asset
	quote     common.Asset
	account   string
	listeners []func()
}

func New() *Store {
	return &Store{
		orders: btree.NewBTreeG(func(a, b common.Order) bool {
			return common.CompareObjectIDs(a.ID, b.ID) < 0
		}),
	}
}

// OnChange registers fn to run after every mutation of the store.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// UpdateData notifies listeners that the displayed data should be refreshed.
func (s *Store) UpdateData() {
	s.mu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// ---- Orders ----

// PutOrders inserts or replaces orders by id.
func (s *Store) PutOrders(orders ...common.Order) {
	for _, order := range orders {
		s.orders.Set(order)
	}
	s.UpdateData()
}

// RemoveOrder drops an order from the displayed list. Returns whether the
// order was present.
func (s *Store) RemoveOrder(orderID string) bool {
	_, ok := s.orders.Delete(common.Order{ID: orderID})
	if ok {
		s.UpdateData()
	}
	return ok
}

func (s *Store) Order(orderID string) (common.Order, bool) {
	return s.orders.Get(common.Order{ID: orderID})
}

// OpenOrders returns a snapshot of all open orders in id order.
func (s *Store) OpenOrders() []common.Order {
	return s.orders.Items()
}

// ---- Market & Account ----

func (s *Store) SetMarket(base, quote common.Asset) {
	s.mu.Lock()
	s.base, s.quote = base, quote
	s.mu.Unlock()
	s.UpdateData()
}

// Market returns the selected base and quote asset.
func (s *Store) Market() (common.Asset, common.Asset) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base, s.quote
}

// SetAccount selects the current account by name or id.
func (s *Store) SetAccount(account string) {
	s.mu.Lock()
	s.account = account
	s.mu.Unlock()
	s.UpdateData()
}

func (s *Store) CurrentAccount() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}
