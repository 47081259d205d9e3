// Package wallet tracks whether the signing keys of the user are unlocked
// and drives the unlock prompt.
package wallet

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword = errors.New("invalid wallet password")
)

type EventKind int

const (
	Locked EventKind = iota
	Unlocked
	PromptOpened
	PromptClosed
)

func (k EventKind) String() string {
	switch k {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	case PromptOpened:
		return "prompt opened"
	case PromptClosed:
		return "prompt closed"
	}
	return "unknown"
}

// Event is a discrete wallet state change. Locked carries the lock state
// after the change.
type Event struct {
	Kind   EventKind
	Locked bool
}

type Wallet struct {
	mu           sync.Mutex
	passwordHash []byte
	locked       bool
	promptOpen   bool
	nextSub      int
	subscribers  map[int]func(Event)
}

// New returns a locked wallet guarded by a bcrypt password hash.
func New(passwordHash []byte) *Wallet {
	return &Wallet{
		passwordHash: passwordHash,
		locked:       true,
		subscribers:  make(map[int]func(Event)),
	}
}

// HashPassword produces the hash New expects.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func (w *Wallet) Locked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locked
}

func (w *Wallet) PromptOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.promptOpen
}

// Subscribe registers fn for every subsequent event. Events are delivered
// on the goroutine that caused them, outside of the wallet lock.
func (w *Wallet) Subscribe(fn func(Event)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSub
	w.nextSub++
	w.subscribers[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subscribers, id)
	}
}

// OpenPrompt asks for the unlock prompt to be shown. It is a no-op while
// the prompt is open or the wallet is unlocked.
func (w *Wallet) OpenPrompt() {
	w.mu.Lock()
	if w.promptOpen || !w.locked {
		w.mu.Unlock()
		return
	}
	w.promptOpen = true
	w.mu.Unlock()

	w.emit(Event{Kind: PromptOpened, Locked: true})
}

// ClosePrompt dismisses the prompt without unlocking.
func (w *Wallet) ClosePrompt() {
	w.mu.Lock()
	if !w.promptOpen {
		w.mu.Unlock()
		return
	}
	w.promptOpen = false
	locked := w.locked
	w.mu.Unlock()

	w.emit(Event{Kind: PromptClosed, Locked: locked})
}

// Unlock decrypts the wallet. Unlocked is emitted only on the transition
// from locked.
func (w *Wallet) Unlock(password string) error {
	w.mu.Lock()
	if err := bcrypt.CompareHashAndPassword(w.passwordHash, []byte(password)); err != nil {
		w.mu.Unlock()
		log.Debug().Err(err).Msg("wallet unlock rejected")
		return ErrInvalidPassword
	}
	wasLocked := w.locked
	w.locked = false
	w.promptOpen = false
	w.mu.Unlock()

	if wasLocked {
		log.Info().Msg("wallet unlocked")
		w.emit(Event{Kind: Unlocked, Locked: false})
	}
	return nil
}

// Lock discards the decrypted keys.
func (w *Wallet) Lock() {
	w.mu.Lock()
	wasLocked := w.locked
	w.locked = true
	w.mu.Unlock()

	if !wasLocked {
		log.Info().Msg("wallet locked")
		w.emit(Event{Kind: Locked, Locked: true})
	}
}

func (w *Wallet) emit(ev Event) {
	w.mu.Lock()
	subscribers := make([]func(Event), 0, len(w.subscribers))
	for _, fn := range w.subscribers {
		subscribers = append(subscribers, fn)
	}
	w.mu.Unlock()

	for _, fn := range subscribers {
		fn(ev)
	}
}
