package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"hackmd-go/internal/scheduler"
)

// Config holds application configuration values.
type Config struct {
	Env    string `validate:"required,oneof=dev prod"`
	HackMD struct {
		Token          string `validate:"required"`
		Endpoint       string `validate:"required,url"`
		Timeout        time.Duration
		OverallTimeout time.Duration `validate:"gte=0"`
		MaxAttempts    int           `validate:"gte=1,lte=10"`
		RetryBaseDelay time.Duration `validate:"gt=0"`
		WrapErrors     bool
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Mirror struct {
		Driver string `validate:"required,oneof=sqlite postgres"`
		DSN    string `validate:"required"`
	}
	Sync struct {
		Schedule string        `validate:"required,schedule"`
		Timeout  time.Duration `validate:"gt=0"`
		Overlap  string        `validate:"oneof=allow skip delay"`
	}
	Telegram struct {
		Token  string
		ChatID int64
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("schedule", func(fl validator.FieldLevel) bool {
		return scheduler.ValidateSchedule(fl.Field().String()) == nil
	})
	return v
}

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	var c Config
	var errs []error

	c.Env = get("ENV", "prod")

	c.HackMD.Token = getenv("HACKMD_ACCESS_TOKEN")
	c.HackMD.Endpoint = get("HACKMD_API_ENDPOINT", "https://api.hackmd.io/v1")
	c.HackMD.Timeout = parseDuration(get("HACKMD_TIMEOUT", "30s"), "HACKMD_TIMEOUT", &errs)
	c.HackMD.OverallTimeout = parseDuration(get("HACKMD_OVERALL_TIMEOUT", "0s"), "HACKMD_OVERALL_TIMEOUT", &errs)
	c.HackMD.MaxAttempts = parseInt(get("HACKMD_MAX_ATTEMPTS", "3"), "HACKMD_MAX_ATTEMPTS", &errs)
	c.HackMD.RetryBaseDelay = parseDuration(get("HACKMD_RETRY_BASE_DELAY", "100ms"), "HACKMD_RETRY_BASE_DELAY", &errs)
	c.HackMD.WrapErrors = parseBool(get("HACKMD_WRAP_ERRORS", "true"), "HACKMD_WRAP_ERRORS", &errs)

	c.Log.ConsoleLevel = strings.ToLower(get("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(get("LOG_FILE_LEVEL", "debug"))
	c.Log.File = get("LOG_FILE", "")

	c.Mirror.Driver = strings.ToLower(get("MIRROR_DRIVER", "sqlite"))
	c.Mirror.DSN = get("MIRROR_DSN", "data/mirror.db")
	c.Sync.Schedule = get("SYNC_SCHEDULE", "@every 15m")
	c.Sync.Timeout = parseDuration(get("SYNC_TIMEOUT", "5m"), "SYNC_TIMEOUT", &errs)
	c.Sync.Overlap = strings.ToLower(get("SYNC_OVERLAP", "skip"))

	c.Telegram.Token = getenv("TELEGRAM_BOT_TOKEN")
	if v := get("TELEGRAM_CHAT_ID", ""); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err))
		}
		c.Telegram.ChatID = id
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if (c.Telegram.Token == "") != (c.Telegram.ChatID == 0) {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}
	return c, nil
}

func parseDuration(v, key string, errs *[]error) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
	}
	return d
}

func parseInt(v, key string, errs *[]error) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
	}
	return n
}

func parseBool(v, key string, errs *[]error) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
	}
	return b
}
