// Package config resolves the settings of each meme-etl command.
//
// Values are layered: built-in defaults, then environment variables (a
// local .env file can supply them, without replacing variables already set),
// then command-line flags.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variables.
const (
	EnvLogLevel       = "MEME_ETL_LOG_LEVEL"
	EnvFormat         = "MEME_ETL_FORMAT"
	EnvItemTimeout    = "MEME_ETL_ITEM_TIMEOUT"
	EnvLanguage       = "MEME_ETL_LANG"
	EnvAddr           = "MEME_ETL_ADDR"
	EnvTessdataPrefix = "TESSDATA_PREFIX"
	EnvWarehouseDSN   = "WAREHOUSE_DSN"
)

// Paths locates the inputs and output of one ETL run.
type Paths struct {
	Images string
	Labels string
	Output string
}

// Dataset locations.
var (
	ProductionPaths = Paths{
		Images: "data/raw/images",
		Labels: "data/raw/labels.csv",
		Output: "data/processed",
	}
	TestPaths = Paths{
		Images: "data/raw_test/images",
		Labels: "data/raw_test/labels_test.csv",
		Output: "data/processed_test",
	}
)

// Other defaults.
const (
	DefaultAnalysisDir = "data/analysis"
	TestAnalysisDir    = "data/test_analysis"
	DefaultCollection  = "processed_data"
	DefaultAddr        = ":8081"
	DefaultFormat      = "parquet"
	DefaultLanguage    = "eng"
	DefaultItemTimeout = 2 * time.Minute

	// EstimatedSecondsPerImage is used to predict pipeline duration.
	EstimatedSecondsPerImage = 0.5
)

// Run configures the run command.
type Run struct {
	Paths

	// Test selects the test dataset for paths not given explicitly.
	Test bool

	// Sample limits the run to the first Sample images and label rows.
	// Negative means no limit.
	Sample int

	Format         string
	JoinKey        string
	ItemTimeout    time.Duration
	Language       string
	TessdataPrefix string
}

// Analyze configures the analyze command.
type Analyze struct {
	DataPath   string
	OutputPath string
}

// Warehouse configures the warehouse command.
type Warehouse struct {
	DataPath   string
	Collection string
	DSN        string
}

// Serve configures the serve command.
type Serve struct {
	Addr string
	DSN  string
}

// ParseRun parses the run command's flags. Usage and parse errors go to
// output.
func ParseRun(args []string, output io.Writer) (*Run, error) {
	cfg := &Run{}
	fs := newFlagSet("run", output)
	fs.BoolVar(&cfg.Test, "test", false, "use the test dataset ("+TestPaths.Images+", "+TestPaths.Labels+" -> "+TestPaths.Output+")")
	fs.IntVar(&cfg.Sample, "sample", -1, "process only the first N images and label rows")
	fs.StringVar(&cfg.Images, "images", ProductionPaths.Images, "image directory")
	fs.StringVar(&cfg.Labels, "labels", ProductionPaths.Labels, "label CSV file")
	fs.StringVar(&cfg.Output, "out", ProductionPaths.Output, "output directory")
	fs.StringVar(&cfg.Format, "format", envOr(EnvFormat, DefaultFormat), "table format: parquet or csv")
	fs.StringVar(&cfg.JoinKey, "join-key", "", "label column holding the image file name; joins by key instead of position")
	fs.StringVar(&cfg.Language, "lang", envOr(EnvLanguage, DefaultLanguage), "tesseract language")
	fs.StringVar(&cfg.TessdataPrefix, "tessdata", os.Getenv(EnvTessdataPrefix), "tessdata directory")

	timeout, err := envDuration(EnvItemTimeout, DefaultItemTimeout)
	if err != nil {
		return nil, err
	}
	fs.DurationVar(&cfg.ItemTimeout, "item-timeout", timeout, "per-image processing bound (0 disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if cfg.Test {
		set := setFlags(fs)
		if !set["images"] {
			cfg.Images = TestPaths.Images
		}
		if !set["labels"] {
			cfg.Labels = TestPaths.Labels
		}
		if !set["out"] {
			cfg.Output = TestPaths.Output
		}
	}
	if cfg.ItemTimeout < 0 {
		return nil, errors.New("item-timeout must not be negative")
	}
	return cfg, nil
}

// ParseAnalyze parses the analyze command's flags.
func ParseAnalyze(args []string, output io.Writer) (*Analyze, error) {
	cfg := &Analyze{}
	fs := newFlagSet("analyze", output)
	fs.StringVar(&cfg.DataPath, "data-path", ProductionPaths.Output, "processed data directory")
	fs.StringVar(&cfg.OutputPath, "output-path", DefaultAnalysisDir, "analysis output directory")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseWarehouse parses the warehouse command's flags.
func ParseWarehouse(args []string, output io.Writer) (*Warehouse, error) {
	cfg := &Warehouse{}
	fs := newFlagSet("warehouse", output)
	fs.StringVar(&cfg.DataPath, "data-path", ProductionPaths.Output, "processed data directory")
	fs.StringVar(&cfg.Collection, "collection", DefaultCollection, "warehouse collection name")
	fs.StringVar(&cfg.DSN, "dsn", os.Getenv(EnvWarehouseDSN), "Postgres DSN (default $"+EnvWarehouseDSN+")")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseServe parses the serve command's flags.
func ParseServe(args []string, output io.Writer) (*Serve, error) {
	cfg := &Serve{}
	fs := newFlagSet("serve", output)
	fs.StringVar(&cfg.Addr, "addr", envOr(EnvAddr, DefaultAddr), "listen address")
	fs.StringVar(&cfg.DSN, "dsn", os.Getenv(EnvWarehouseDSN), "Postgres DSN (default $"+EnvWarehouseDSN+")")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Debug reports whether debug logging is enabled.
func Debug() bool {
	return strings.EqualFold(os.Getenv(EnvLogLevel), "debug")
}

// LoadDotEnv loads key=value pairs from the file at path into the
// environment without overwriting variables that are already set. Blank
// lines and lines starting with # are ignored, as is a missing file.
// Surrounding quotes on values are removed.
func LoadDotEnv(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := unquote(strings.TrimSpace(line[eq+1:]))
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, val); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func newFlagSet(name string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	return fs
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
