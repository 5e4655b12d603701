// Package archive appends a copy of each sent reminder to an IMAP mailbox.
package archive

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	Timeout  time.Duration
}

type IMAPArchiver struct {
	cfg Config
}

func NewIMAPArchiver(cfg Config) (*IMAPArchiver, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("imap host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "Sent"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &IMAPArchiver{cfg: cfg}, nil
}

func (a *IMAPArchiver) addr() string {
	h := strings.TrimSpace(a.cfg.Host)
	if strings.Contains(h, ":") {
		return h
	}
	return net.JoinHostPort(h, strconv.Itoa(a.cfg.Port))
}

// Archive stores msg in the configured mailbox flagged \Seen.
func (a *IMAPArchiver) Archive(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	c, err := dialAndLogin(ctx, a.addr(), a.cfg.Username, a.cfg.Password)
	if err != nil {
		return err
	}
	defer logoutAndClose(c)

	cmd := c.Append(a.cfg.Mailbox, int64(len(msg)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  time.Now(),
	})
	if _, err := cmd.Write(msg); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("imap append %q: %w", a.cfg.Mailbox, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap append %q: %w", a.cfg.Mailbox, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("imap append %q: %w", a.cfg.Mailbox, err)
	}
	return nil
}

func dialAndLogin(ctx context.Context, addr, username, password string) (*imapclient.Client, error) {
	host, _, _ := net.SplitHostPort(addr)
	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

func logoutAndClose(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[archive] imap logout: %v", err)
	}
	_ = c.Close()
}
