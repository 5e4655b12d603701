package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"warm-outreach/internal/config"
	"warm-outreach/internal/domain"
	"warm-outreach/internal/group"
	"warm-outreach/internal/secrets"
	"warm-outreach/internal/sheet"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runNotify(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if notifyDryRun {
		p, err := a.pass(true)
		if err != nil {
			return err
		}
		leads, err := a.store.Read(ctx)
		if err != nil {
			return err
		}
		if _, err := p.Run(ctx, "dry-run"); err != nil {
			return err
		}
		return printGroups(group.ByStakeholder(leads))
	}

	g, err := a.newGate()
	if err != nil {
		return err
	}
	res, err := g.RunNow(ctx, time.Now(), notifyForce)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(res)
	}
	if !res.Ran {
		fmt.Printf("Nothing sent for %s (%s). Use --force to send again.\n", res.Day, res.Reason)
		return nil
	}
	fmt.Printf("Pass %s for %s: %d stakeholders, %d sent, %d failed\n",
		res.PassID, res.Day, res.Summary.Stakeholders, res.Summary.Sent, res.Summary.Failed)
	return showOutcomes(ctx, a, res.PassID)
}

func printGroups(groups []group.Group) error {
	if outputJSON {
		out := make([]map[string]any, 0, len(groups))
		for _, g := range groups {
			out = append(out, map[string]any{"email": g.Email, "leads": g.LeadNames()})
		}
		return printJSON(out)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Stakeholder", "Pending", "Leads"})
	for _, g := range groups {
		table.Append([]string{g.Email, fmt.Sprintf("%d", len(g.Leads)), strings.Join(g.LeadNames(), ", ")})
	}
	table.Render()
	return nil
}

func runPending(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	leads, err := a.store.Read(cmd.Context())
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return printGroups(group.ByStakeholder(leads))
	}

	mine := group.ForStakeholder(leads, args[0], group.ParseMode(a.cfg().Grouping.Match))
	if outputJSON {
		return printJSON(mine)
	}
	if len(mine) == 0 {
		fmt.Println("You have no pending leads. All caught up!")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Row", "Lead", "Profile"})
	for _, l := range mine {
		table.Append([]string{fmt.Sprintf("%d", l.Row), l.Name, l.ProfileURL})
	}
	table.Render()
	return nil
}

func runOutcomes(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if outcomesEvents {
		return showEvents(cmd.Context(), a, outcomesDay)
	}
	return showOutcomes(cmd.Context(), a, outcomesPass)
}

func showEvents(ctx context.Context, a *app, day string) error {
	evs, err := a.ledger.Events(ctx, day)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(evs)
	}
	if len(evs) == 0 {
		fmt.Println("No passes recorded.")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Day", "Pass", "Event", "Sent", "Failed", "At"})
	for _, e := range evs {
		table.Append([]string{
			e.Day,
			e.PassID,
			string(e.Kind),
			fmt.Sprintf("%d", e.Sent),
			fmt.Sprintf("%d", e.Failed),
			e.At.Local().Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	return nil
}

func showOutcomes(ctx context.Context, a *app, passID string) error {
	outcomes, err := a.ledger.Outcomes(ctx, passID)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(outcomes)
	}
	if len(outcomes) == 0 {
		fmt.Println("No outcomes recorded.")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Email", "Pending", "Leads", "Status", "Timestamp"})
	for _, o := range outcomes {
		table.Append([]string{
			o.Email,
			fmt.Sprintf("%d", o.PendingCount),
			strings.Join(o.LeadNames, ", "),
			o.StatusText(),
			o.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}
	table.Render()
	s := domain.Summarize(outcomes)
	fmt.Printf("pass %s: sent=%d failed=%d\n", outcomes[0].PassID, s.Sent, s.Failed)
	return nil
}

func runSetSMTP(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()
	cfg, _, err := loadRawConfig()
	if err != nil {
		return err
	}
	if cfg.SMTP.Username == "" {
		return fmt.Errorf("smtp.username is not set in %s", cfgPathForDisplay())
	}

	pw := smtpPassword
	if pw == "" {
		fmt.Fprintf(os.Stderr, "SMTP password for %s: ", cfg.SMTP.Username)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	acct := secrets.SMTPKeyringAccount(cfg)
	if err := secrets.SetSMTPPassword(acct, pw); err != nil {
		return err
	}
	fmt.Printf("Stored password for %s\n", acct)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()
	cfg, path, err := loadRawConfig()
	if err != nil {
		return err
	}
	_, v := config.NormalizeAndValidate(cfg)
	if outputJSON {
		if err := printJSON(v); err != nil {
			return err
		}
		return v.Err()
	}
	fmt.Printf("config: %s\n", path)
	for _, e := range v.Errors {
		fmt.Printf("  error:   %s\n", e)
	}
	for _, w := range v.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if v.OK() {
		fmt.Println("  ok")
	}
	return v.Err()
}

func runStoreInit(cmd *cobra.Command, args []string) error {
	config.LoadDotEnv()
	cfg, _, err := loadRawConfig()
	if err != nil {
		return err
	}
	path := cfg.Resolve(cfg.Store.Path)
	cols := cfg.Store.Columns
	header := []string{cols.Name, cols.ProfileURL, cols.Recipients, cols.Status}
	if err := sheet.Create(path, cfg.Store.Sheet, header, nil); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

// loadRawConfig reads the user config with env overrides but without failing
// on validation errors.
func loadRawConfig() (config.Config, string, error) {
	dir := resolveDataDir()
	path := cfgFile
	if path == "" {
		p, err := config.EnsureUserConfig(dir, filepath.Join("config", "config.yml"))
		if err != nil {
			return config.Config{}, "", fmt.Errorf("config bootstrap failed: %w", err)
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, path, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg.App.DataDir = dir
	config.OverlayEnv(&cfg)
	return cfg, path, nil
}

func cfgPathForDisplay() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(resolveDataDir(), "config.yml")
}
