package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"warm-outreach/internal/config"
	"warm-outreach/internal/gate"
	"warm-outreach/internal/ledger"
	"warm-outreach/internal/merge"
	"warm-outreach/internal/notify"
	"warm-outreach/internal/notify/archive"
	"warm-outreach/internal/notify/smtpx"
	"warm-outreach/internal/secrets"
	"warm-outreach/internal/sheet"
)

// app holds everything one process needs, built once from the user config.
type app struct {
	cfgVal      *atomic.Value // stores config.Config
	userCfgPath string
	loadCfg     func() (config.Config, error)

	store  *sheet.Store
	ledger ledger.Ledger
	merger *merge.Merger
}

func (a *app) cfg() config.Config { return a.cfgVal.Load().(config.Config) }

func (a *app) Close() {
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
}

func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	// Data dir: use env if provided, else local folder.
	if d := os.Getenv(config.EnvDataDir); d != "" {
		return d
	}
	return "."
}

func loadApp() (*app, error) {
	config.LoadDotEnv()

	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	_, userCfgPath, err := loadRawConfig()
	if err != nil {
		return nil, err
	}

	// Load config and keep it reloadable
	loadCfg := func() (config.Config, error) {
		cfg, _, err := loadRawConfig()
		if err != nil {
			return cfg, err
		}
		norm, v := config.NormalizeAndValidate(cfg)
		for _, w := range v.Warnings {
			log.Printf("[config] warning: %s", w)
		}
		return norm, v.Err()
	}
	cfg, err := loadCfg()
	if err != nil {
		return nil, err
	}

	a := &app{cfgVal: &atomic.Value{}, userCfgPath: userCfgPath, loadCfg: loadCfg}
	a.cfgVal.Store(cfg)

	a.store, err = sheet.NewStore(sheet.Options{
		Path:        cfg.Resolve(cfg.Store.Path),
		Sheet:       cfg.Store.Sheet,
		Columns:     cfg.Store.Columns,
		LockTimeout: cfg.LockTimeout(),
	})
	if err != nil {
		return nil, err
	}

	a.ledger, err = ledger.Open(cfg.Ledger.Driver, cfg.Resolve(cfg.Ledger.Path), cfg.Ledger.DSN)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	a.merger = &merge.Merger{Store: a.store, OptionsFunc: func() merge.Options {
		return merge.OptionsFrom(a.cfg())
	}}
	return a, nil
}

func (a *app) trigger() (gate.Trigger, error) {
	cfg := a.cfg()
	if cfg.Schedule.Cron != "" {
		return gate.NewCron(cfg.Schedule.Cron, cfg.Location())
	}
	return gate.NewWeekly(cfg.Schedule.Weekday, cfg.Schedule.Time, cfg.Location())
}

func (a *app) marker() gate.Marker {
	cfg := a.cfg()
	if cfg.Marker.Kind == "file" {
		return gate.FileMarker{Path: cfg.Resolve(cfg.Marker.Path)}
	}
	return gate.LedgerMarker{Ledger: a.ledger}
}

func (a *app) dispatcher() (*notify.Dispatcher, error) {
	cfg := a.cfg()

	password := ""
	if cfg.SMTP.Username != "" {
		pw, err := secrets.GetSMTPPassword(secrets.SMTPKeyringAccount(cfg))
		if err != nil {
			return nil, err
		}
		password = pw
	}
	transport, err := smtpx.New(smtpx.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: password,
		Timeout:  cfg.SMTPTimeout(),
	})
	if err != nil {
		return nil, err
	}

	d := &notify.Dispatcher{
		Composer:  notify.Composer{BaseURL: cfg.App.BaseURL, From: cfg.SMTP.From, Subject: cfg.SMTP.Subject},
		Transport: transport,
		Limiter:   notify.NewDomainLimiter(cfg.SMTP.MaxPerSecond, 1),
	}

	if cfg.Archive.Enabled {
		pw, err := secrets.GetIMAPPassword(cfg)
		if err != nil {
			return nil, err
		}
		arch, err := archive.NewIMAPArchiver(archive.Config{
			Host:     cfg.Archive.IMAPHost,
			Port:     cfg.Archive.IMAPPort,
			Username: cfg.SMTP.Username,
			Password: pw,
			Mailbox:  cfg.Archive.Mailbox,
		})
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		d.Archiver = arch
	}
	return d, nil
}

func (a *app) pass(dryRun bool) (*notify.Pass, error) {
	p := &notify.Pass{
		Leads:    a.store,
		Log:      notify.OutcomeLog{Path: a.cfg().Resolve(a.cfg().Outcomes.LogPath)},
		Recorder: a.ledger,
		DryRun:   dryRun,
	}
	if dryRun {
		return p, nil
	}
	d, err := a.dispatcher()
	if err != nil {
		return nil, err
	}
	p.Dispatcher = d
	return p, nil
}

func (a *app) newGate() (*gate.Gate, error) {
	tr, err := a.trigger()
	if err != nil {
		return nil, err
	}
	p, err := a.pass(false)
	if err != nil {
		return nil, err
	}
	lockPath := filepath.Join(a.cfg().App.DataDir, "outreach.gate.lock")
	return gate.New(tr, a.marker(), p.Run, gate.WithLockFile(lockPath, a.cfg().LockTimeout())), nil
}
