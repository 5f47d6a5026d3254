package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jessevdk/go-flags"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"yanderss/internal/feed"
)

const (
	indexFileName = "index.csv"
	dbFileName    = "keywords.sqlite"
	logFileName   = "logs.log"
)

// ErrHelp is returned by Load when usage was printed and the program
// should exit without doing anything else.
var ErrHelp = errors.New("help requested")

// Config is built once at start-up and never mutated afterwards.
type Config struct {
	SaveDir        string        `env:"SAVE_DIR"         envDefault:"save_folder"`
	ConfigDir      string        `env:"CONFIG_DIR"       envDefault:"config_folder"`
	IndexPath      string        `env:"INDEX_PATH"`
	DBPath         string        `env:"DB_PATH"`
	LogPath        string        `env:"LOG_PATH"`
	Site           string        `env:"SITE"             envDefault:"yande.re"`
	UserAgent      string        `env:"USER_AGENT"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"  envDefault:"30s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL"    envDefault:"6h"`
	Cooldown       time.Duration `env:"COOLDOWN"         envDefault:"1m"`
	Schedule       string        `env:"SCHEDULE"`
	TiersFile      string        `env:"TIERS_FILE"`
	TelegramToken  string        `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64         `env:"TELEGRAM_CHAT_ID"`
	Debug          bool          `env:"DEBUG"`

	Tiers []TierConfig `env:"-"`
}

// Options are the command-line flags. Set flags override the environment.
type Options struct {
	SaveDir   string   `short:"d" long:"save-dir"   description:"Directory for downloaded images"`
	ConfigDir string   `short:"c" long:"config-dir" description:"Directory for the index, keyword database and log file"`
	Add       []string `short:"a" long:"add"        description:"Add a keyword (repeatable)"`
	Remove    []string `short:"r" long:"remove"     description:"Remove a keyword (repeatable)"`
	List      bool     `short:"l" long:"list"       description:"List keywords"`
	Interval  int      `short:"i" long:"interval"   description:"Seconds between poll cycles"`
	Schedule  string   `long:"schedule"             description:"Cron expression for poll cycles, overrides --interval"`
	TiersFile string   `long:"tiers"                description:"YAML file with the ordered asset tier list"`
	Once      bool     `long:"once"                 description:"Run a single poll cycle and exit"`
	Debug     bool     `long:"debug"                description:"Enable debug logging"`
}

// Command reports whether the options ask for keyword management instead
// of polling.
func (o Options) Command() bool {
	return len(o.Add) > 0 || len(o.Remove) > 0 || o.List
}

type TierConfig struct {
	Label    string `yaml:"label"`
	Pattern  string `yaml:"pattern"`
	Selector string `yaml:"selector"`
}

type tiersFile struct {
	Tiers []TierConfig `yaml:"tiers"`
}

// Load reads the environment, then applies the command-line args on top.
func Load(args []string) (Config, Options, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, Options{}, fmt.Errorf("parse env: %w", err)
	}

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err = parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return Config{}, Options{}, ErrHelp
		}

		return Config{}, Options{}, fmt.Errorf("parse args: %w", err)
	}

	cfg = apply(cfg, opts)

	if cfg.TiersFile != "" {
		if cfg.Tiers, err = LoadTiers(cfg.TiersFile); err != nil {
			return Config{}, Options{}, err
		}
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, Options{}, err
	}

	return cfg, opts, nil
}

func apply(cfg Config, opts Options) Config {
	if opts.SaveDir != "" {
		cfg.SaveDir = opts.SaveDir
	}
	if opts.ConfigDir != "" {
		cfg.ConfigDir = opts.ConfigDir
	}
	if opts.Interval > 0 {
		cfg.PollInterval = time.Duration(opts.Interval) * time.Second
	}
	if opts.Schedule != "" {
		cfg.Schedule = opts.Schedule
	}
	if opts.TiersFile != "" {
		cfg.TiersFile = opts.TiersFile
	}
	if opts.Debug {
		cfg.Debug = true
	}

	cfg.SaveDir = strings.TrimSpace(cfg.SaveDir)
	cfg.ConfigDir = strings.TrimSpace(cfg.ConfigDir)

	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(cfg.ConfigDir, indexFileName)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.ConfigDir, dbFileName)
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(cfg.ConfigDir, logFileName)
	}

	return cfg
}

func (c Config) Validate() error {
	var errs []error

	if c.SaveDir == "" {
		errs = append(errs, errors.New("save dir is empty"))
	}
	if c.ConfigDir == "" {
		errs = append(errs, errors.New("config dir is empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must be non-negative, got %s", c.Cooldown))
	}
	if _, err := c.CronSchedule(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BuildTiers(); err != nil {
		errs = append(errs, err)
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set"))
	}

	return errors.Join(errs...)
}

// CronSchedule returns the activation schedule of poll cycles.
func (c Config) CronSchedule() (cron.Schedule, error) {
	if c.Schedule == "" {
		return cron.Every(c.PollInterval), nil
	}

	s, err := cron.ParseStandard(c.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", c.Schedule, err)
	}

	return s, nil
}

// BuildTiers compiles the configured tiers, keeping their order. No
// configured tiers means the built-in ones.
func (c Config) BuildTiers() ([]feed.Tier, error) {
	if len(c.Tiers) == 0 {
		return feed.DefaultTiers(), nil
	}

	tiers := make([]feed.Tier, 0, len(c.Tiers))
	for i, tc := range c.Tiers {
		label := strings.TrimSpace(tc.Label)
		if label == "" {
			return nil, fmt.Errorf("tier %d: label is empty", i)
		}

		var (
			m   feed.Matcher
			err error
		)

		switch {
		case tc.Pattern != "" && tc.Selector != "":
			return nil, fmt.Errorf("tier %s: pattern and selector are mutually exclusive", label)
		case tc.Pattern != "":
			m, err = feed.NewRegexpMatcher(tc.Pattern)
		case tc.Selector != "":
			m, err = feed.NewSelectorMatcher(tc.Selector)
		default:
			return nil, fmt.Errorf("tier %s: pattern or selector is required", label)
		}

		if err != nil {
			return nil, fmt.Errorf("tier %s: %w", label, err)
		}

		tiers = append(tiers, feed.Tier{Label: label, Matcher: m})
	}

	return tiers, nil
}

// LoadTiers reads an ordered tier list from a YAML file.
func LoadTiers(path string) ([]TierConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}

	var f tiersFile
	if err = yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tiers file: %w", err)
	}

	if len(f.Tiers) == 0 {
		return nil, fmt.Errorf("tiers file %s lists no tiers", path)
	}

	return f.Tiers, nil
}
