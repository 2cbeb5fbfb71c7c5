// Package config loads the settings of selfmon from a YAML file, environment variables, and command line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/selfmon/selfmon/internal/incident"
	"github.com/selfmon/selfmon/internal/monerr"
	"github.com/selfmon/selfmon/internal/schedule"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is the prefix of environment variables, like SELFMON_TARGET_URL.
const EnvPrefix = "SELFMON_"

// Config is the settings of selfmon.
type Config struct {
	TargetURL       string        `koanf:"target_url" validate:"required,url"`
	CheckInterval   string        `koanf:"check_interval" validate:"required"`
	ResolveInterval string        `koanf:"resolve_interval" validate:"required"`
	MergeWindow     time.Duration `koanf:"merge_window" validate:"gt=0"`
	MergeFrom       string        `koanf:"merge_from" validate:"oneof=start last_seen"`
	Retention       time.Duration `koanf:"retention" validate:"gt=0"`
	ProbeTimeout    time.Duration `koanf:"probe_timeout" validate:"gt=0"`
	VerifyTLS       bool          `koanf:"verify_tls"`
	StorageTimeout  time.Duration `koanf:"storage_timeout" validate:"gt=0"`
	Store           string        `koanf:"store" validate:"required"`
	Listen          string        `koanf:"listen" validate:"required"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	PasswordHash    string        `koanf:"password_hash"`
	Timezone        string        `koanf:"timezone"`
	LogLevel        string        `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `koanf:"log_format" validate:"oneof=auto json console"`

	// Parsed values. They are set by Load.
	CheckSchedule   schedule.Schedule  `koanf:"-"`
	ResolveSchedule schedule.Schedule  `koanf:"-"`
	MergeReference  incident.MergeFrom `koanf:"-"`
	Location        *time.Location     `koanf:"-"`
}

// Default returns the default settings.
// TargetURL has no default.
func Default() Config {
	return Config{
		CheckInterval:   "5m",
		ResolveInterval: "5m",
		MergeWindow:     incident.DefaultMergeWindow,
		MergeFrom:       "start",
		Retention:       30 * 24 * time.Hour,
		ProbeTimeout:    30 * time.Second,
		StorageTimeout:  5 * time.Second,
		Store:           "./selfmon-data",
		Listen:          "0.0.0.0:9000",
		LogLevel:        "info",
		LogFormat:       "auto",
	}
}

// Source is where Load reads settings from.
type Source struct {
	// ConfigFile is the path to the YAML file. It is optional.
	ConfigFile string

	// EnvFile is the path to the dotenv file.
	// It is skipped if not exists. The variables already set in the environment take precedence.
	EnvFile string

	// Flags overrides other sources if a flag is set.
	// A flag "target-url" sets "target_url".
	Flags *pflag.FlagSet
}

// Load reads settings in order of defaults, the YAML file, the environment, and the flags.
// The later one has precedence.
//
// The returned error is a monerr.ErrConfig error.
func Load(src Source) (*Config, error) {
	k := koanf.New(".")

	if src.ConfigFile != "" {
		if err := k.Load(file.Provider(src.ConfigFile), yaml.Parser()); err != nil {
			return nil, monerr.New(monerr.ErrConfig, err, "failed to read %s", src.ConfigFile)
		}
	}

	if src.EnvFile != "" {
		if _, err := os.Stat(src.EnvFile); err == nil {
			if err := godotenv.Load(src.EnvFile); err != nil {
				return nil, monerr.New(monerr.ErrConfig, err, "failed to read %s", src.EnvFile)
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, monerr.New(monerr.ErrConfig, err, "failed to read environment variables")
	}

	if src.Flags != nil {
		var ferr error
		src.Flags.Visit(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !isKnownKey(key) {
				return
			}
			if err := k.Set(key, f.Value.String()); err != nil && ferr == nil {
				ferr = err
			}
		})
		if ferr != nil {
			return nil, monerr.New(monerr.ErrConfig, ferr, "failed to read flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, monerr.New(monerr.ErrConfig, err, "")
	}

	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isKnownKey(key string) bool {
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("koanf") == key {
			return true
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})
	return v
}

// prepare validates settings and fills parsed values.
func (c *Config) prepare() error {
	errs := &monerr.FieldsBuilder{What: monerr.ErrConfig}

	if err := validate.Struct(c); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			for _, e := range ves {
				errs.Add(e.Field(), "%s", describe(e))
			}
		} else {
			errs.Add("config", "%s", err)
		}
	}

	var err error

	if c.CheckSchedule, err = schedule.Parse(c.CheckInterval); err != nil {
		errs.Add("check_interval", "%s", err)
	}
	if c.ResolveSchedule, err = schedule.Parse(c.ResolveInterval); err != nil {
		errs.Add("resolve_interval", "%s", err)
	}
	if c.MergeReference, err = incident.ParseMergeFrom(c.MergeFrom); err != nil {
		errs.Add("merge_from", "%s", err)
	}

	c.Location = time.Local
	if c.Timezone != "" {
		if c.Location, err = time.LoadLocation(c.Timezone); err != nil {
			errs.Add("timezone", "%s", err)
		}
	}

	if _, _, err := net.SplitHostPort(c.Listen); c.Listen != "" && err != nil {
		errs.Add("listen", "%s", err)
	}

	if c.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
		if err != nil {
			errs.Add("password", "%s", err)
		}
		c.PasswordHash = string(hash)
		c.Password = ""
	} else if c.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.PasswordHash)); err != nil {
			errs.Add("password_hash", "%s", err)
		}
	}
	if c.User != "" && c.PasswordHash == "" {
		errs.Add("password", "required when user is set")
	}

	return errs.Build()
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "required"
	case "url":
		return "must be a valid URL"
	case "gt":
		return "must be positive"
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(e.Param()), ", ")
	default:
		return fmt.Sprintf("failed on %s", e.Tag())
	}
}

// ForceCheckProtected reports the force check endpoint requires credentials.
func (c *Config) ForceCheckProtected() bool {
	return c.User != "" && c.PasswordHash != ""
}
