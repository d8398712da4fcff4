package config

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config represents the server configuration
type Config struct {
	// Server settings
	Server struct {
		Name     string `yaml:"name" toml:"name" json:"name" env:"IRCD_SERVER_NAME" validate:"required,max=63"`
		Network  string `yaml:"network" toml:"network" json:"network" env:"IRCD_NETWORK" validate:"required"`
		Host     string `yaml:"host" toml:"host" json:"host" env:"IRCD_HOST"`
		Port     int    `yaml:"port" toml:"port" json:"port" env:"IRCD_PORT" validate:"min=0,max=65535"`
		Password string `yaml:"password" toml:"password" json:"password" env:"IRCD_PASSWORD" validate:"required"`
		MOTD     string `yaml:"motd" toml:"motd" json:"motd" env:"IRCD_MOTD"`
	} `yaml:"server" toml:"server" json:"server"`

	// Protocol and buffering limits
	Limits struct {
		NickLength    int           `yaml:"nick_length" toml:"nick_length" json:"nick_length" env:"IRCD_NICK_LENGTH" validate:"min=1,max=64"`
		ChannelLength int           `yaml:"channel_length" toml:"channel_length" json:"channel_length" env:"IRCD_CHANNEL_LENGTH" validate:"min=2,max=200"`
		MaxLineLength int           `yaml:"max_line_length" toml:"max_line_length" json:"max_line_length" env:"IRCD_MAX_LINE_LENGTH" validate:"min=512"`
		MaxSendQ      int           `yaml:"max_sendq" toml:"max_sendq" json:"max_sendq" env:"IRCD_MAX_SENDQ" validate:"min=0"`
		WriteTimeout  time.Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" env:"IRCD_WRITE_TIMEOUT" validate:"min=0"`
	} `yaml:"limits" toml:"limits" json:"limits"`

	// Admin HTTP settings
	Admin struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_ADMIN_ENABLED"`
		Host    string `yaml:"host" toml:"host" json:"host" env:"IRCD_ADMIN_HOST"`
		Port    int    `yaml:"port" toml:"port" json:"port" env:"IRCD_ADMIN_PORT" validate:"min=0,max=65535"`

		// Bearer tokens accepted by the send endpoint; none disables it
		Tokens []string `yaml:"tokens" toml:"tokens" json:"tokens" env:"IRCD_ADMIN_TOKENS" envSeparator:","`
	} `yaml:"admin" toml:"admin" json:"admin"`

	// Logging settings
	Log struct {
		Level  string `yaml:"level" toml:"level" json:"level" env:"IRCD_LOG_LEVEL" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" toml:"format" json:"format" env:"IRCD_LOG_FORMAT" validate:"oneof=text json"`
	} `yaml:"log" toml:"log" json:"log"`

	// Configuration source
	Source string `yaml:"-" toml:"-" json:"-"`
}

// Default returns a configuration holding every default value. The password is
// left empty and must be supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "ft_irc"
	cfg.Server.Network = "RelayNet"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 6667
	cfg.Limits.NickLength = 9
	cfg.Limits.ChannelLength = 50
	cfg.Limits.MaxLineLength = 4096
	cfg.Limits.MaxSendQ = 1 << 20
	cfg.Limits.WriteTimeout = 10 * time.Second
	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8080
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load loads configuration from a file or URL and applies environment
// overrides. An empty source yields defaults plus environment. Callers run
// Validate once any command-line overrides are applied.
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFromSource(source); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment failed")
	}

	return cfg, nil
}

// loadFromSource loads configuration from a file or URL
func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	// Check if the source is a URL
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return errors.Wrap(err, "load config from URL failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("load config from URL failed, status: %s", resp.Status)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "read config from URL failed")
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return errors.Wrap(err, "read config file failed")
		}
	}

	// Determine the format based on file extension
	switch {
	case strings.HasSuffix(source, ".yaml") || strings.HasSuffix(source, ".yml"):
		err = yaml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}

	if err != nil {
		return errors.Wrap(err, "parse config failed")
	}

	c.Source = source
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// CheckPassword compares a PASS argument with the connection password. A
// configured bcrypt hash is verified with bcrypt, anything else by constant-time
// equality.
func (c *Config) CheckPassword(candidate string) bool {
	if isBcryptHash(c.Server.Password) {
		return bcrypt.CompareHashAndPassword([]byte(c.Server.Password), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(c.Server.Password), []byte(candidate)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// GetListenAddress returns the formatted listen address for the server
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetAdminListenAddress returns the formatted listen address for the admin server
func (c *Config) GetAdminListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// LoadDotEnv loads every .env file found from the working directory up to the
// filesystem root. Files closer to the working directory win, and variables
// already present in the environment are never overwritten.
func LoadDotEnv() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "get working directory failed")
	}

	var files []string
	for {
		path := filepath.Join(cwd, ".env")
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	if len(files) == 0 {
		return nil, nil
	}
	if err := godotenv.Load(files...); err != nil {
		return nil, errors.Wrap(err, "load env files failed")
	}
	return files, nil
}
