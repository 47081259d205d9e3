package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"openorders/internal/cancel"
	"openorders/internal/common"
	"openorders/internal/config"
	"openorders/internal/confirm"
	"openorders/internal/directory"
	"openorders/internal/ledger"
	"openorders/internal/loop"
	"openorders/internal/net"
	"openorders/internal/openorders"
	"openorders/internal/store"
	"openorders/internal/wallet"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `commands:
  list               show the open orders of the current account
  cancel <order id>  cancel an open order
  unlock <password>  unlock the wallet
  lock               lock the wallet
  dismiss            close the unlock prompt
  pending            show the transaction awaiting confirmation
  confirm            broadcast the pending transaction
  reject             drop the pending transaction
  quit`

type app struct {
	cfg         *config.Config
	store       *store.Store
	directory   *directory.Memory
	wallet      *wallet.Wallet
	workflow    *confirm.Workflow
	coordinator *cancel.Coordinator
}

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration")
	hash := flag.String("hash", "", "Print the bcrypt hash of a wallet password and exit")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *hash != "" {
		h, err := wallet.HashPassword(*hash)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to hash password")
		}
		fmt.Println(string(h))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	events := loop.New(cfg.Workers)
	go func() {
		if err := events.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event loop stopped")
		}
	}()

	a, err := setup(ctx, cfg, events)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to start")
	}
	defer a.coordinator.Close()

	fmt.Println(usage)
	a.repl(ctx, bufio.NewScanner(os.Stdin))
}

func setup(ctx context.Context, cfg *config.Config, events *loop.Loop) (*app, error) {
	a := &app{
		cfg:       cfg,
		store:     store.New(),
		directory: directory.NewMemory(),
		wallet:    wallet.New([]byte(cfg.Wallet.PasswordHash)),
		workflow:  confirm.NewWorkflow(net.NewClient(cfg.NodeAddress(), cfg.Node.Timeout)),
	}
	a.directory.AddAssets(cfg.SeedAssets()...)
	a.directory.AddAccounts(cfg.SeedAccounts()...)

	base, err := a.directory.Asset(ctx, cfg.Market.Base)
	if err != nil {
		return nil, fmt.Errorf("market base: %w", err)
	}
	quote, err := a.directory.Asset(ctx, cfg.Market.Quote)
	if err != nil {
		return nil, fmt.Errorf("market quote: %w", err)
	}
	orders, err := cfg.SeedOrders()
	if err != nil {
		return nil, err
	}
	a.store.SetMarket(base, quote)
	a.store.SetAccount(cfg.Account)
	a.store.PutOrders(orders...)
	a.store.OnChange(func() {
		log.Debug().Int("orders", len(a.store.OpenOrders())).Msg("open orders changed")
	})

	a.wallet.Subscribe(func(ev wallet.Event) {
		switch ev.Kind {
		case wallet.PromptOpened:
			fmt.Println("wallet is locked: type 'unlock <password>' to continue")
		case wallet.Unlocked:
			fmt.Println("wallet unlocked")
		case wallet.Locked:
			fmt.Println("wallet locked")
		}
	})
	a.workflow.OnBegin(func(intent confirm.Intent) {
		fmt.Printf("confirm? %s ('confirm' or 'reject')\n", intent)
	})

	a.coordinator = cancel.New(cancel.Config{
		Wallet:    a.wallet,
		Directory: a.directory,
		Ledger:    ledger.NewBuilder(cfg.FeeSchedule(), cfg.Fees.Expiration),
		Confirmer: a.workflow,
		Display:   a.store,
		Executor:  events,
		Observer: func(outcome cancel.Outcome) {
			log.Debug().
				Err(outcome.Err).
				Str("order", outcome.OrderID).
				Stringer("status", outcome.Status).
				Msg("cancel request")
		},
	})
	return a, nil
}

func (a *app) repl(ctx context.Context, in *bufio.Scanner) {
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		switch strings.ToLower(fields[0]) {
		case "list", "ls":
			a.table(ctx).WriteTo(os.Stdout)
		case "cancel":
			a.cancel(ctx, arg)
		case "unlock":
			if err := a.wallet.Unlock(arg); err != nil {
				fmt.Println(err)
			}
		case "lock":
			a.wallet.Lock()
		case "dismiss":
			a.wallet.ClosePrompt()
		case "pending":
			if intent, ok := a.workflow.Pending(); ok {
				fmt.Println(intent)
			} else {
				fmt.Println("nothing pending")
			}
		case "confirm":
			if err := a.workflow.Confirm(ctx); err != nil {
				fmt.Println(err)
			}
		case "reject":
			if err := a.workflow.Reject(); err != nil {
				fmt.Println(err)
			}
		case "help":
			fmt.Println(usage)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// table renders the current account's open orders with cancel handlers
// bound to the coordinator.
func (a *app) table(ctx context.Context) openorders.Table {
	var account *common.Account
	if acc, err := a.directory.Account(ctx, a.store.CurrentAccount()); err == nil {
		account = &acc
	}
	base, quote := a.store.Market()
	return openorders.Render(account, a.store.OpenOrders(), base, quote, a.coordinator.Cancel)
}

func (a *app) cancel(ctx context.Context, orderID string) {
	for _, row := range a.table(ctx).Rows {
		if row.OrderID == orderID {
			row.Cancel()
			return
		}
	}
	fmt.Printf("no open order %q\n", orderID)
}
