package config

import (
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"warm-outreach/internal/sheet"
)

type Config struct {
	App struct {
		Port     int    `yaml:"port" json:"port"`
		DataDir  string `yaml:"data_dir" json:"data_dir"`
		BaseURL  string `yaml:"base_url" json:"base_url"`
		Timezone string `yaml:"timezone" json:"timezone"`
	} `yaml:"app" json:"app"`

	Store struct {
		Path               string        `yaml:"path" json:"path"`
		Sheet              string        `yaml:"sheet" json:"sheet"`
		LockTimeoutSeconds int           `yaml:"lock_timeout_seconds" json:"lock_timeout_seconds"`
		Columns            sheet.Columns `yaml:"columns" json:"columns"`
	} `yaml:"store" json:"store"`

	Schedule struct {
		Weekday     string `yaml:"weekday" json:"weekday"`
		Time        string `yaml:"time" json:"time"`
		Cron        string `yaml:"cron" json:"cron"`
		TickSeconds int    `yaml:"tick_seconds" json:"tick_seconds"`
	} `yaml:"schedule" json:"schedule"`

	Marker struct {
		Kind string `yaml:"kind" json:"kind"` // ledger | file
		Path string `yaml:"path" json:"path"`
	} `yaml:"marker" json:"marker"`

	Ledger struct {
		Driver string `yaml:"driver" json:"driver"` // sqlite | postgres
		Path   string `yaml:"path" json:"path"`
		// DSN may carry a password; it is never served over the API.
		DSN string `yaml:"dsn" json:"-"`
	} `yaml:"ledger" json:"ledger"`

	Grouping struct {
		Match string `yaml:"match" json:"match"`
	} `yaml:"grouping" json:"grouping"`

	Merge struct {
		ClosePolicy      string `yaml:"close_policy" json:"close_policy"`
		RequireNameMatch bool   `yaml:"require_name_match" json:"require_name_match"`
	} `yaml:"merge" json:"merge"`

	SMTP struct {
		Host           string  `yaml:"host" json:"host"`
		Port           int     `yaml:"port" json:"port"`
		Username       string  `yaml:"username" json:"username"`
		From           string  `yaml:"from" json:"from"`
		Subject        string  `yaml:"subject" json:"subject"`
		MaxPerSecond   float64 `yaml:"max_per_second" json:"max_per_second"`
		TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`

		// Password never comes from YAML; see secrets.
		Password string `yaml:"-" json:"-"`
	} `yaml:"smtp" json:"smtp"`

	Archive struct {
		Enabled  bool   `yaml:"enabled" json:"enabled"`
		IMAPHost string `yaml:"imap_host" json:"imap_host"`
		IMAPPort int    `yaml:"imap_port" json:"imap_port"`
		Mailbox  string `yaml:"mailbox" json:"mailbox"`
	} `yaml:"archive" json:"archive"`

	Outcomes struct {
		LogPath string `yaml:"log_path" json:"log_path"`
	} `yaml:"outcomes" json:"outcomes"`
}

// Default returns the built-in settings used for any field the YAML omits.
func Default() Config {
	var c Config
	c.App.Port = 38471
	c.App.DataDir = "."
	c.App.BaseURL = "http://localhost:38471"
	c.App.Timezone = "Asia/Kolkata"

	c.Store.Path = "leads.xlsx"
	c.Store.Sheet = "Sheet1"
	c.Store.LockTimeoutSeconds = 10
	c.Store.Columns = sheet.DefaultColumns()

	c.Schedule.Weekday = "Tuesday"
	c.Schedule.Time = "23:40"
	c.Schedule.TickSeconds = 60

	c.Marker.Kind = "ledger"
	c.Marker.Path = "last_notification_sent.txt"

	c.Ledger.Driver = "sqlite"
	c.Ledger.Path = "outreach.db"

	c.Grouping.Match = "exact"
	c.Merge.ClosePolicy = "first_response"
	c.Merge.RequireNameMatch = true

	c.SMTP.Host = "smtp.gmail.com"
	c.SMTP.Port = 587
	c.SMTP.TimeoutSeconds = 30
	c.SMTP.MaxPerSecond = 2

	c.Archive.IMAPPort = 993
	c.Archive.Mailbox = "Sent"

	c.Outcomes.LogPath = "email_log.csv"
	return c
}

// Load reads path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.Store.LockTimeoutSeconds) * time.Second
}

func (c Config) TickInterval() time.Duration {
	if c.Schedule.TickSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Schedule.TickSeconds) * time.Second
}

func (c Config) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTP.TimeoutSeconds) * time.Second
}
