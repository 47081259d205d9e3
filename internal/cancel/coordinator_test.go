package cancel

import (
	"context"
	"testing"
	"time"

	"openorders/internal/common"
	"openorders/internal/confirm"
	"openorders/internal/directory"
	"openorders/internal/ledger"
	"openorders/internal/loop"
	"openorders/internal/store"
	"openorders/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- Setup & Helpers --------------------------------------------------------

// inlineExecutor runs everything immediately on the calling goroutine.
type inlineExecutor struct{}

func (inlineExecutor) Post(fn func())                  { fn() }
func (inlineExecutor) Go(fn func(ctx context.Context)) { fn(context.Background()) }

type MockWallet struct {
	locked         bool
	promptOpen     bool
	promptRequests int
	subscriber     func(wallet.Event)
}

func (w *MockWallet) Locked() bool     { return w.locked }
func (w *MockWallet) PromptOpen() bool { return w.promptOpen }
func (w *MockWallet) OpenPrompt() {
	w.promptRequests++
	w.promptOpen = true
}
func (w *MockWallet) Subscribe(fn func(wallet.Event)) func() {
	w.subscriber = fn
	return func() { w.subscriber = nil }
}

// unlock emits an Unlocked event, whether or not the wallet was locked.
func (w *MockWallet) unlock() {
	w.locked = false
	w.promptOpen = false
	if w.subscriber != nil {
		w.subscriber(wallet.Event{Kind: wallet.Unlocked, Locked: false})
	}
}

type MockConfirmer struct {
	intents []confirm.Intent
}

func (c *MockConfirmer) Begin(intent confirm.Intent) {
	c.intents = append(c.intents, intent)
}

// operationlessLedger builds transactions that carry no operations.
type operationlessLedger struct{}

func (operationlessLedger) BuildCancelOrder(context.Context, common.Account, string) (*ledger.Transaction, error) {
	return &ledger.Transaction{}, nil
}
func (operationlessLedger) SetRequiredFees(context.Context, *ledger.Transaction) error { return nil }

var (
	alice           = common.Account{ID: "1.2.17", Name: "alice"}
	core            = common.Asset{ID: "1.3.0", Symbol: "BTS", Precision: 5}
	unknownFeeAsset = ledger.FeeSchedule{AssetID: "1.3.404", Fees: map[ledger.OperationType]int64{ledger.LimitOrderCancel: 1}}
	charged         = ledger.FeeSchedule{AssetID: core.ID, Fees: map[ledger.OperationType]int64{ledger.LimitOrderCancel: 50}}
)

type fixture struct {
	coordinator *Coordinator
	wallet      *MockWallet
	confirmer   *MockConfirmer
	display     *store.Store
	outcomes    []Outcome
}

func newFixture(t *testing.T, locked bool, fees ledger.FeeSchedule) *fixture {
	t.Helper()
	dir := directory.NewMemory()
	dir.AddAccounts(alice)
	dir.AddAssets(core)

	display := store.New()
	display.SetAccount(alice.Name)
	display.PutOrders(
		common.Order{ID: "1.7.1", Seller: alice.ID},
		common.Order{ID: "1.7.2", Seller: alice.ID},
	)

	f := &fixture{
		wallet:    &MockWallet{locked: locked},
		confirmer: &MockConfirmer{},
		display:   display,
	}
	f.coordinator = New(Config{
		Wallet:    f.wallet,
		Directory: dir,
		Ledger:    ledger.NewBuilder(fees, time.Minute),
		Confirmer: f.confirmer,
		Display:   display,
		Executor:  inlineExecutor{},
		Observer:  func(o Outcome) { f.outcomes = append(f.outcomes, o) },
	})
	return f
}

func (f *fixture) statuses() []Status {
	out := make([]Status, 0, len(f.outcomes))
	for _, o := range f.outcomes {
		out = append(out, o.Status)
	}
	return out
}

func (f *fixture) cancelledOrders() []string {
	out := make([]string, 0, len(f.confirmer.intents))
	for _, intent := range f.confirmer.intents {
		out = append(out, intent.OrderID)
	}
	return out
}

// --- Tests ------------------------------------------------------------------

func TestCancel_Unlocked_HandsOff(t *testing.T) {
	f := newFixture(t, false, charged)

	f.coordinator.Cancel("1.7.1")

	require.Len(t, f.confirmer.intents, 1)
	intent := f.confirmer.intents[0]
	assert.Equal(t, confirm.KindLimitOrderCancel, intent.Kind)
	assert.Equal(t, confirm.Fee{Amount: 50, AssetID: core.ID, Asset: core}, intent.Fee)
	assert.Equal(t, alice.ID, intent.FeePayingAccount)
	assert.Equal(t, "1.7.1", intent.OrderID)
	assert.Equal(t, "Cancel order 1.7.1", intent.Summary)
	require.NotNil(t, intent.Transaction)
	assert.Equal(t, "1.7.1", intent.Transaction.Operations[0].Order)
	assert.Equal(t, []Status{Submitted}, f.statuses())
	assert.Zero(t, f.wallet.promptRequests)

	// Completing the transaction removes the order from the page.
	intent.OnComplete()
	_, ok := f.display.Order("1.7.1")
	assert.False(t, ok)
	_, ok = f.display.Order("1.7.2")
	assert.True(t, ok)
}

func TestCancel_Unlocked_UnknownFeeAsset(t *testing.T) {
	f := newFixture(t, false, unknownFeeAsset)

	f.coordinator.Cancel("1.7.1")

	assert.Empty(t, f.confirmer.intents)
	require.Len(t, f.outcomes, 1)
	assert.Equal(t, Aborted, f.outcomes[0].Status)
	assert.ErrorIs(t, f.outcomes[0].Err, directory.ErrAssetNotFound)
}

func TestCancel_Unlocked_UnknownAccount(t *testing.T) {
	f := newFixture(t, false, charged)
	f.display.SetAccount("mallory")

	f.coordinator.Cancel("1.7.1")

	assert.Empty(t, f.confirmer.intents)
	require.Len(t, f.outcomes, 1)
	assert.ErrorIs(t, f.outcomes[0].Err, directory.ErrAccountNotFound)
}

func TestCancel_Unlocked_FeeFailure(t *testing.T) {
	f := newFixture(t, false, ledger.FeeSchedule{AssetID: core.ID})

	f.coordinator.Cancel("1.7.1")

	assert.Empty(t, f.confirmer.intents)
	require.Len(t, f.outcomes, 1)
	assert.ErrorIs(t, f.outcomes[0].Err, ledger.ErrNoFeeForOperation)
}

func TestCancel_Unlocked_EmptyTransaction(t *testing.T) {
	f := newFixture(t, false, charged)
	f.coordinator.ledger = operationlessLedger{}

	f.coordinator.Cancel("1.7.1")

	assert.Empty(t, f.confirmer.intents)
	require.Len(t, f.outcomes, 1)
	assert.Equal(t, Aborted, f.outcomes[0].Status)
	assert.ErrorIs(t, f.outcomes[0].Err, ledger.ErrEmptyTransaction)
}

func TestCancel_Locked_DefersUntilUnlock(t *testing.T) {
	f := newFixture(t, true, charged)

	// 1. Request while locked: one pending callback, one prompt.
	f.coordinator.Cancel("1.7.1")
	orderID, ok := f.coordinator.Pending()
	assert.True(t, ok)
	assert.Equal(t, "1.7.1", orderID)
	assert.Equal(t, 1, f.wallet.promptRequests)
	assert.Empty(t, f.confirmer.intents)

	// 2. Unlock fires it.
	f.wallet.unlock()
	assert.Equal(t, []string{"1.7.1"}, f.cancelledOrders())
	_, ok = f.coordinator.Pending()
	assert.False(t, ok)
	assert.Equal(t, []Status{Deferred, Submitted}, f.statuses())
}

func TestCancel_Locked_LastRequestWins(t *testing.T) {
	f := newFixture(t, true, charged)

	f.coordinator.Cancel("1.7.1")
	f.coordinator.Cancel("1.7.2")

	orderID, ok := f.coordinator.Pending()
	assert.True(t, ok)
	assert.Equal(t, "1.7.2", orderID)
	assert.Equal(t, 1, f.wallet.promptRequests)

	f.wallet.unlock()
	assert.Equal(t, []string{"1.7.2"}, f.cancelledOrders())
}

func TestCancel_Locked_PromptAlreadyOpen(t *testing.T) {
	f := newFixture(t, true, charged)
	f.wallet.promptOpen = true

	f.coordinator.Cancel("1.7.1")

	assert.Zero(t, f.wallet.promptRequests)
	_, ok := f.coordinator.Pending()
	assert.True(t, ok)
}

func TestCancel_SecondUnlockFiresNothing(t *testing.T) {
	f := newFixture(t, true, charged)

	f.coordinator.Cancel("1.7.1")
	f.wallet.unlock()
	f.wallet.unlock()

	assert.Len(t, f.confirmer.intents, 1)
}

func TestCancel_IgnoresOtherWalletEvents(t *testing.T) {
	f := newFixture(t, true, charged)

	f.coordinator.Cancel("1.7.1")
	f.wallet.subscriber(wallet.Event{Kind: wallet.PromptClosed, Locked: true})
	f.wallet.subscriber(wallet.Event{Kind: wallet.Locked, Locked: true})

	assert.Empty(t, f.confirmer.intents)
	_, ok := f.coordinator.Pending()
	assert.True(t, ok)
}

func TestCancel_GuardWhileLocked(t *testing.T) {
	f := newFixture(t, true, charged)

	f.coordinator.Cancel("1.7.1")
	// An unlock notification that still reports the wallet locked.
	f.wallet.subscriber(wallet.Event{Kind: wallet.Unlocked, Locked: true})

	assert.Empty(t, f.confirmer.intents)
	assert.Equal(t, []Status{Deferred, Skipped}, f.statuses())
	_, ok := f.coordinator.Pending()
	assert.False(t, ok)
}

func TestCancel_Close(t *testing.T) {
	f := newFixture(t, true, charged)

	f.coordinator.Close()
	assert.Nil(t, f.wallet.subscriber)
}

func TestCancel_WithLoopAndWallet(t *testing.T) {
	// 1. Real loop and wallet.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := loop.New(2)
	go func() { _ = l.Run(ctx) }()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	w := wallet.New(hash)

	dir := directory.NewMemory()
	dir.AddAccounts(alice)
	dir.AddAssets(core)
	display := store.New()
	display.SetAccount(alice.Name)

	confirmer := &MockConfirmer{}
	outcomes := make(chan Outcome, 4)
	c := New(Config{
		Wallet:    w,
		Directory: dir,
		Ledger:    ledger.NewBuilder(charged, time.Minute),
		Confirmer: confirmer,
		Display:   display,
		Executor:  l,
		Observer:  func(o Outcome) { outcomes <- o },
	})
	defer c.Close()

	next := func() Outcome {
		select {
		case o := <-outcomes:
			return o
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for outcome")
		}
		return Outcome{}
	}

	// 2. Locked: deferred and the prompt is open.
	c.Cancel("1.7.9")
	assert.Equal(t, Deferred, next().Status)
	assert.True(t, w.PromptOpen())

	// 3. Unlocking submits it.
	require.NoError(t, w.Unlock("secret"))
	assert.Equal(t, Outcome{OrderID: "1.7.9", Status: Submitted}, next())
}
