// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/masterstat/internal/logger"
	"github.com/woozymasta/masterstat/internal/masterstat"
	"github.com/woozymasta/masterstat/internal/vars"
	"golang.org/x/time/rate"
)

// DefaultMasters are queried when no master is given.
var DefaultMasters = []string{
	"master.quakeworld.nu:27000",
	"master.quakeservers.net:27000",
	"qwmaster.fodquake.net:27000",
}

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Query   Query         `group:"Query Options" env-namespace:"MASTERSTAT"`
	Output  Output        `group:"Output Options" env-namespace:"MASTERSTAT_OUTPUT"`
	Storage Storage       `group:"Storage Options" namespace:"db" env-namespace:"MASTERSTAT_DB"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MASTERSTAT_GEOIP"`
	Server  Server        `group:"Server Options" namespace:"server" env-namespace:"MASTERSTAT_SERVER"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MASTERSTAT_LOG"`

	Args struct {
		Masters []string `positional-arg-name:"MASTER" description:"Master server address (host:port)"`
	} `positional-args:"yes"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Query holds master server query options.
type Query struct {
	// betteralign:ignore

	Masters     []string      `short:"m" long:"master" env:"MASTERS" env-delim:"," description:"Master server address (host:port), repeatable"`
	Timeout     time.Duration `short:"t" long:"timeout" env:"TIMEOUT" description:"Per-master response timeout" default:"2s"`
	NoTimeout   bool          `long:"no-timeout" env:"NO_TIMEOUT" description:"Wait for responses without a timeout"`
	Concurrency int           `short:"c" long:"concurrency" env:"CONCURRENCY" description:"Max masters queried at once, 0 is unlimited" default:"0"`
	Rate        float64       `long:"rate" env:"RATE" description:"Max master queries dispatched per second, 0 is unlimited" default:"0"`
	FakeMaster  int           `long:"fake-master" hidden:"true"`
}

// Output holds result rendering options.
type Output struct {
	// betteralign:ignore

	Format  string `short:"f" long:"format" env:"FORMAT" description:"Output format" choice:"text" choice:"json" choice:"summary" default:"text"`
	Raw     bool   `long:"raw" env:"RAW" description:"Keep master order and duplicates instead of a sorted unique list"`
	Country bool   `long:"country" env:"COUNTRY" description:"Annotate servers with GeoIP country code"`
}

// Storage holds query history database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite history database, empty disables history"`
	SkipUnchanged bool          `long:"skip-unchanged" env:"SKIP_UNCHANGED" description:"Do not store a run if its server set equals the latest run"`
	PruneOlder    time.Duration `long:"prune-older" env:"PRUNE_OLDER" description:"Delete runs older than duration and exit"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"masterstat.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Server holds HTTP API configuration.
type Server struct {
	// betteralign:ignore

	Address        string        `short:"l" long:"listen" env:"LISTEN_ADDRESS" description:"Serve HTTP API on address instead of printing results"`
	AuthToken      string        `long:"auth-token" env:"AUTH_TOKEN" description:"Bearer token for history endpoints, empty disables them"`
	TrustProxy     bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	HardLimitCount int           `long:"rate-count" env:"RATE_COUNT" description:"Per-IP limit: requests count" default:"10"`
	HardLimitWin   time.Duration `long:"rate-window" env:"RATE_WINDOW" description:"Per-IP limit: window duration" default:"1m"`
	PollInterval   time.Duration `long:"poll-interval" env:"POLL_INTERVAL" description:"Query masters in background and store runs, 0 disables (requires --db-path)" default:"0"`
}

// ParseArgs parses args (without the program name) and environment variables.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Fprint(os.Stdout)
		os.Exit(0)
	}

	return cfg
}

func (c *Config) validate() error {
	if c.Query.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Query.Concurrency)
	}
	if c.Query.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %g", c.Query.Rate)
	}
	if c.Server.Address != "" && (c.Server.HardLimitCount <= 0 || c.Server.HardLimitWin <= 0) {
		return fmt.Errorf("server rate limit must be positive, got %d per %s", c.Server.HardLimitCount, c.Server.HardLimitWin)
	}
	if c.Server.PollInterval > 0 && c.Storage.Path == "" {
		return errors.New("poll-interval requires a history database (--db-path)")
	}

	return nil
}

// Masters returns masters from flags and positional arguments, or DefaultMasters if none.
func (c *Config) Masters() []string {
	masters := slices.Concat(c.Query.Masters, c.Args.Masters)
	if len(masters) == 0 {
		return slices.Clone(DefaultMasters)
	}

	return masters
}

// QueryTimeout returns the per-master query timeout.
func (q Query) QueryTimeout() masterstat.Timeout {
	if q.NoTimeout {
		return masterstat.NoTimeout()
	}

	return masterstat.WithTimeout(q.Timeout)
}

// NewClient builds a query client from the options.
func (q Query) NewClient() *masterstat.Client {
	client := masterstat.New(q.QueryTimeout())
	client.Concurrency = q.Concurrency
	if q.Rate > 0 {
		client.Limiter = rate.NewLimiter(rate.Limit(q.Rate), 1)
	}

	return client
}
