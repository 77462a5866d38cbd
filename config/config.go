package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment variables override the config file, e.g. KWIL_PROVIDER.
const envPrefix = "KWIL"

type config struct {
	// Provider is the node or gateway url.
	Provider string
	// ChainID is asked from the node when empty.
	ChainID string `mapstructure:"chainid"`
	// Gateway signs in to a KGW gateway before calls.
	Gateway bool
	Timeout time.Duration

	PrivateKey string `mapstructure:"privatekey"`
	SignerType string `mapstructure:"signertype"`

	// Debug indicates if in debug mode.
	Debug bool

	// Label is used as prefix in log output, e.g., mainnet, testnet.
	Label   string
	LogPath string `mapstructure:"logpath"`

	SchemaCacheTTL time.Duration `mapstructure:"schemacachettl"`

	// MySQL configs of the transaction journal.
	User     string
	Password string
	Hostname string
	Port     string
	Database string

	// WatchInterval is how often journaled transactions are checked.
	WatchInterval time.Duration `mapstructure:"watchinterval"`
}

var cfg config

var defaults = map[string]interface{}{
	"provider":       "http://localhost:8080",
	"chainid":        "",
	"gateway":        false,
	"timeout":        "30s",
	"privatekey":     "",
	"signertype":     "secp256k1_ep",
	"debug":          false,
	"label":          "",
	"logpath":        "./logs",
	"schemacachettl": "10m",
	"user":           "",
	"password":       "",
	"hostname":       "",
	"port":           "3306",
	"database":       "",
	"watchinterval":  "5s",
}

// Load reads ./config/config.* for the tx-watch daemon, which also
// needs the journal database. It panics on invalid configs.
func Load(display bool) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	// Incase test cases require loading configs
	v.AddConfigPath("../config")

	if err := v.ReadInConfig(); err != nil {
		panic(err)
	}
	if err := load(v, display); err != nil {
		panic(err)
	}
	if err := validateConfig(true); err != nil {
		panic(err)
	}
}

// LoadClient reads the config for command line use. The file is optional:
// without it only defaults and KWIL_* environment variables apply.
func LoadClient(file string) error {
	v := newViper()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}

	if err := load(v, false); err != nil {
		return err
	}
	return validateConfig(false)
}

/* ------------------------------
        `Get` functions
------------------------------ */

// DebugMode tells if running in debug mode.
func DebugMode() bool {
	return cfg.Debug
}

// GetLabel returns custome label as part of the log output prefix.
func GetLabel() string {
	return cfg.Label
}

// GetLogPath returns the log directory.
func GetLogPath() string {
	return cfg.LogPath
}

// GetProvider returns the node url.
func GetProvider() string {
	return cfg.Provider
}

// GetChainID returns the configured chain id, or "".
func GetChainID() string {
	return cfg.ChainID
}

// GatewayMode tells if the provider is a KGW gateway.
func GatewayMode() bool {
	return cfg.Gateway
}

// GetTimeout returns the request timeout.
func GetTimeout() time.Duration {
	return cfg.Timeout
}

// GetPrivateKey returns the hex private key of the signer.
func GetPrivateKey() string {
	return cfg.PrivateKey
}

// GetSignerType returns the signature type of the private key.
func GetSignerType() string {
	return cfg.SignerType
}

// GetSchemaCacheTTL returns how long fetched schemas are reused.
func GetSchemaCacheTTL() time.Duration {
	return cfg.SchemaCacheTTL
}

// GetWatchInterval returns the tx-watch polling interval.
func GetWatchInterval() time.Duration {
	return cfg.WatchInterval
}

// JournalEnabled tells if a journal database is configured.
func JournalEnabled() bool {
	return cfg.Hostname != "" && cfg.Database != ""
}

// GetDbConnStr returns db connection string.
func GetDbConnStr() string {
	str := fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s",
		cfg.User,
		cfg.Password,
		cfg.Hostname,
		cfg.Port,
		cfg.Database,
	)

	return str
}

// GetDBInfo returns the connecting DB info.
func GetDBInfo() string {
	return fmt.Sprintf("(%s:%s)/%s", cfg.Hostname, cfg.Port, cfg.Database)
}

/* ------------------------------
         Utility Functions
------------------------------ */

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

func load(v *viper.Viper, display bool) error {
	var c config
	if err := v.Unmarshal(&c); err != nil {
		return err
	}

	c.Provider = attachHTTPScheme(c.Provider)
	cfg = c

	if display {
		masked := cfg
		if len(masked.Password) != 0 {
			masked.Password = "******"
		}
		if len(masked.PrivateKey) != 0 {
			masked.PrivateKey = "******"
		}

		configContent, err := json.MarshalIndent(masked, "", "    ")
		if err != nil {
			return err
		}

		log.Println(string(configContent))
	}

	return nil
}

func attachHTTPScheme(provider string) string {
	provider = strings.TrimSpace(provider)
	if provider != "" && !strings.HasPrefix(provider, "http") {
		provider = "http://" + provider
	}
	return strings.TrimRight(provider, "/")
}

func validateConfig(journal bool) error {
	if err := checkProvider(); err != nil {
		return err
	}

	if cfg.Timeout <= 0 {
		return errors.New("timeout must be great than 0")
	}

	switch cfg.SignerType {
	case "secp256k1_ep", "secp256k1", "ed25519":
	default:
		return fmt.Errorf("unknown signer type %q", cfg.SignerType)
	}

	if !journal {
		return nil
	}

	if !JournalEnabled() {
		return errors.New("hostname and database of the journal must be set")
	}
	if cfg.WatchInterval <= 0 {
		return errors.New("watchinterval must be great than 0")
	}

	return nil
}

func checkProvider() error {
	if cfg.Provider == "" {
		return errors.New("provider url must be set")
	}

	u, err := url.Parse(cfg.Provider)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("provider %q has no host", cfg.Provider)
	}

	return nil
}
