// Package smtpx delivers composed messages over SMTP submission.
package smtpx

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// Client opens one connection per Send. Passes are small and weekly, so
// there is no pooling.
type Client struct {
	cfg Config
	tls *tls.Config
}

func New(cfg Config) (*Client, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		tls: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host},
	}, nil
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// implicitTLS reports whether the port speaks TLS from the first byte (465)
// rather than upgrading with STARTTLS.
func (c *Client) implicitTLS() bool { return c.cfg.Port == 465 }

func (c *Client) Send(ctx context.Context, from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		sc  *smtp.Client
		err error
	)
	if c.implicitTLS() {
		sc, err = smtp.DialTLS(c.Addr(), c.tls)
	} else {
		sc, err = smtp.DialStartTLS(c.Addr(), c.tls)
	}
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", c.Addr(), err)
	}
	defer sc.Close()
	sc.CommandTimeout = c.cfg.Timeout
	sc.SubmissionTimeout = c.cfg.Timeout

	// Best-effort close on context cancel.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = sc.Close()
		case <-done:
		}
	}()

	if c.cfg.Username != "" {
		if c.cfg.Password == "" {
			return errors.New("smtp password is not set")
		}
		if err := sc.Auth(sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := sc.SendMail(from, to, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return sc.Quit()
}
