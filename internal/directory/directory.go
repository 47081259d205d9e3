// Package directory resolves ledger accounts and assets.
package directory

import (
	"context"
	"errors"
	"sync"

	"openorders/internal/common"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAssetNotFound   = errors.New("asset not found")
)

// Memory is an in-memory directory. Accounts resolve by id or name, assets
// by id or symbol.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]common.Account
	assets   map[string]common.Asset
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]common.Account),
		assets:   make(map[string]common.Asset),
	}
}

func (d *Memory) AddAccounts(accounts ...common.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range accounts {
		d.accounts[account.ID] = account
		if account.Name != "" {
			d.accounts[account.Name] = account
		}
	}
}

func (d *Memory) AddAssets(assets ...common.Asset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, asset := range assets {
		d.assets[asset.ID] = asset
		if asset.Symbol != "" {
			d.assets[asset.Symbol] = asset
		}
	}
}

func (d *Memory) Account(ctx context.Context, nameOrID string) (common.Account, error) {
	if err := ctx.Err(); err != nil {
		return common.Account{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	account, ok := d.accounts[nameOrID]
	if !ok {
		return common.Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (d *Memory) Asset(ctx context.Context, idOrSymbol string) (common.Asset, error) {
	if err := ctx.Err(); err != nil {
		return common.Asset{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	asset, ok := d.assets[idOrSymbol]
	if !ok {
		return common.Asset{}, ErrAssetNotFound
	}
	return asset, nil
}
