// Package config resolves the loader settings from the environment, an
// optional .env file and command line flags, in increasing precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

type Elastic struct {
	Addresses      []string
	Username       string
	Password       string
	Index          string
	VerifyCerts    bool
	RequestTimeout time.Duration
	MaxRetries     int
	Trace          bool
}

type Filter struct {
	SalaryField string
	MinSalary   float64
	MaxSalary   float64
	HeightField string
	MinHeight   float64
}

type Config struct {
	Elastic     Elastic
	Filter      Filter
	MappingPath string
	DataPath    string
	LogLevel    string
	StrictExit  bool
}

const (
	DefaultHost        = "http://localhost:9200"
	DefaultUser        = "elastic"
	DefaultPassword    = "changeme"
	DefaultIndex       = "workers_matveeva"
	DefaultMappingPath = "config/index_mapping.json"
	DefaultDataPath    = "data/job.json"
	DefaultEnvFile     = ".env"
)

func Default() Config {
	return Config{
		Elastic: Elastic{
			Addresses:      []string{DefaultHost},
			Username:       DefaultUser,
			Password:       DefaultPassword,
			Index:          DefaultIndex,
			RequestTimeout: 30 * time.Second,
		},
		Filter: Filter{
			SalaryField: "Зарплата",
			MinSalary:   50_000,
			MaxSalary:   200_000,
			HeightField: "Рост",
			MinHeight:   160,
		},
		MappingPath: DefaultMappingPath,
		DataPath:    DefaultDataPath,
		LogLevel:    "info",
	}
}

// Load parses args (without the program name), loads the env file the
// flags point at and then applies the environment and the flags on top of
// Default(). Variables already set in the process env win over the file.
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("loadData", pflag.ContinueOnError)
	envFile := fs.String("env-file", DefaultEnvFile, "dotenv file to load before reading the environment")
	host := fs.String("host", "", "Elasticsearch URL(s), comma separated (ES_HOST)")
	index := fs.String("index", "", "target index name (ES_INDEX)")
	mapping := fs.String("mapping", "", "index mapping JSON file (MAPPING_PATH)")
	data := fs.String("data", "", "data JSON file (DATA_PATH)")
	level := fs.String("log-level", "", "log level: debug, info, warning, error (LOG_LEVEL)")
	strict := fs.Bool("strict-exit", false, "exit with status 1 when the run aborts (LOADER_STRICT_EXIT)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil {
		// the default file is optional, an explicit one is not
		if fs.Changed("env-file") || !errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "load env file %s", *envFile)
		}
	}

	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}

	if fs.Changed("host") {
		cfg.Elastic.Addresses = splitList(*host)
	}
	if fs.Changed("index") {
		cfg.Elastic.Index = *index
	}
	if fs.Changed("mapping") {
		cfg.MappingPath = *mapping
	}
	if fs.Changed("data") {
		cfg.DataPath = *data
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *level
	}
	if fs.Changed("strict-exit") {
		cfg.StrictExit = *strict
	}
	return cfg, nil
}

// FromEnv applies the variables visible through lookup on top of Default().
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var err error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	parse := func(key string, fn func(string) error) {
		if err != nil {
			return
		}
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			if perr := fn(strings.TrimSpace(v)); perr != nil {
				err = errors.Wrapf(perr, "invalid %s", key)
			}
		}
	}
	float := func(key string, dst *float64) {
		parse(key, func(v string) (e error) {
			*dst, e = cast.ToFloat64E(v)
			return
		})
	}
	boolean := func(key string, dst *bool) {
		parse(key, func(v string) (e error) {
			*dst, e = cast.ToBoolE(v)
			return
		})
	}

	if v, ok := lookup("ES_HOST"); ok && v != "" {
		cfg.Elastic.Addresses = splitList(v)
	}
	str("ES_USER", &cfg.Elastic.Username)
	str("ES_PASSWORD", &cfg.Elastic.Password)
	str("ES_INDEX", &cfg.Elastic.Index)
	str("MAPPING_PATH", &cfg.MappingPath)
	str("DATA_PATH", &cfg.DataPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("FILTER_SALARY_FIELD", &cfg.Filter.SalaryField)
	str("FILTER_HEIGHT_FIELD", &cfg.Filter.HeightField)

	boolean("ES_VERIFY_CERTS", &cfg.Elastic.VerifyCerts)
	boolean("ES_TRACE", &cfg.Elastic.Trace)
	boolean("LOADER_STRICT_EXIT", &cfg.StrictExit)
	parse("ES_REQUEST_TIMEOUT", func(v string) (e error) {
		// bare numbers are seconds
		if secs, ferr := cast.ToFloat64E(v); ferr == nil {
			cfg.Elastic.RequestTimeout = time.Duration(secs * float64(time.Second))
			return nil
		}
		cfg.Elastic.RequestTimeout, e = cast.ToDurationE(v)
		return
	})
	parse("ES_MAX_RETRIES", func(v string) (e error) {
		cfg.Elastic.MaxRetries, e = cast.ToIntE(v)
		if e == nil && cfg.Elastic.MaxRetries < 0 {
			e = errors.New("must not be negative")
		}
		return
	})
	float("FILTER_SALARY_MIN", &cfg.Filter.MinSalary)
	float("FILTER_SALARY_MAX", &cfg.Filter.MaxSalary)
	float("FILTER_HEIGHT_MIN", &cfg.Filter.MinHeight)
	if err != nil {
		return Config{}, err
	}

	if cfg.Filter.MinSalary > cfg.Filter.MaxSalary {
		return Config{}, errors.Errorf("FILTER_SALARY_MIN %v is greater than FILTER_SALARY_MAX %v",
			cfg.Filter.MinSalary, cfg.Filter.MaxSalary)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
