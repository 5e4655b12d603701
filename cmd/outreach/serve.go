package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"warm-outreach/internal/events"
	"warm-outreach/internal/httpapi"
	"warm-outreach/internal/scheduler"
	"warm-outreach/internal/sheet"
)

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg()

	g, err := a.newGate()
	if err != nil {
		return err
	}
	hub := events.NewHub()

	deps := httpapi.Deps{
		Hub:         hub,
		CfgVal:      a.cfgVal,
		UserCfgPath: a.userCfgPath,
		LoadCfg:     a.loadCfg,
		Leads:       a.store,
		Merger:      a.merger,
		Outcomes:    a.ledger,
		Gate:        g,
		Events:      a.ledger,
	}
	if cp, ok := a.ledger.(httpapi.Checkpointer); ok {
		deps.Ledger = cp
	}
	token := os.Getenv("OUTREACH_SHUTDOWN_TOKEN")
	if token == "" {
		if token, err = randomToken(16); err != nil {
			return err
		}
		fmt.Printf("SHUTDOWN_TOKEN=%s\n", token)
	}
	deps.AdminToken = token
	mux := httpapi.NewMux(deps)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	if host := os.Getenv("OUTREACH_BIND"); host != "" {
		addr = net.JoinHostPort(host, fmt.Sprint(cfg.App.Port))
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           httpapi.Stack(mux, cfg.App.BaseURL),
		ReadHeaderTimeout: 5 * time.Second,
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	mux.HandleFunc("/shutdown", shutdownHandler(&token, stop))

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Printf("[serve] listening on http://%s (store=%s trigger=%s)", addr, a.store.Path(), g.Trigger())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	eg.Go(func() error {
		scheduler.Every(ctx, cfg.TickInterval(), "gate", func(ctx context.Context, now time.Time) error {
			res, err := g.Tick(ctx, now)
			if res.Ran {
				hub.Emit("", events.TypePassCompleted, events.PassCompleted{
					PassID: res.PassID, Day: res.Day, Sent: res.Summary.Sent, Failed: res.Summary.Failed,
				})
			}
			return err
		})
		return nil
	})

	eg.Go(func() error {
		err := sheet.Watch(ctx, a.store.Path(), func() {
			hub.Emit("", events.TypeStoreChanged, events.StoreChanged{Path: a.store.Path()})
		})
		if err != nil {
			// Live refresh is optional; the API keeps working without it.
			log.Printf("[serve] store watch disabled: %v", err)
		}
		return nil
	})

	return eg.Wait()
}
