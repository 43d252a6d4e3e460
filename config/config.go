package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DE-labtory/hbbft"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Identity struct {
	Address         string
	ExternalAddress string
}

type HoneyBadger struct {
	NetworkSize     int
	Byzantine       int
	BatchSize       int
	ProposeInterval time.Duration
	MaxFutureEpochs int
	RetainedEpochs  int
}

type Members struct {
	Addresses []string
}

type Tpke struct {
	Scheme  string
	KeyFile string
}

type Api struct {
	Address string
}

type Log struct {
	Level string
	File  string
}

type Config struct {
	Identity    Identity
	HoneyBadger HoneyBadger
	Members     Members
	Tpke        Tpke
	Api         Api
	Log         Log
}

var defaultConfig = &Config{
	Identity: Identity{
		Address:         "127.0.0.1:5000",
		ExternalAddress: "",
	},
	HoneyBadger: HoneyBadger{
		NetworkSize:     4,
		Byzantine:       1,
		BatchSize:       4,
		ProposeInterval: 1 * time.Second,
		MaxFutureEpochs: 3,
		RetainedEpochs:  1,
	},
	Members: Members{
		Addresses: []string{
			"127.0.0.1:5000",
			"127.0.0.1:5001",
			"127.0.0.1:5002",
			"127.0.0.1:5003",
		},
	},
	Tpke: Tpke{
		Scheme:  "elgamal",
		KeyFile: filepath.Join(os.Getenv("HOME"), ".hbbft", "key.json"),
	},
	Api: Api{
		Address: "127.0.0.1:8000",
	},
	Log: Log{
		Level: "info",
	},
}

var once sync.Once
var loaded *Config

var configPath = filepath.Join(os.Getenv("HOME"), ".hbbft", "config.yml")

func Path() string {
	return configPath
}

func SetPath(path string) {
	configPath = path
}

func Default() *Config {
	conf := *defaultConfig
	conf.Members.Addresses = append([]string{}, defaultConfig.Members.Addresses...)
	return &conf
}

// Get reads config file once, it panics when config is not readable
func Get() *Config {
	once.Do(func() {
		conf, err := Load(configPath)
		if err != nil {
			panic(fmt.Sprintf("error in read config, err: %s", err))
		}
		loaded = conf
	})
	return loaded
}

// Load reads config of path on top of default values
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	conf := Default()
	if v.IsSet("members.addresses") {
		// decoded slice is merged into existing one
		conf.Members.Addresses = nil
	}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(conf, hook); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks network size can tolerate byzantine nodes. When Byzantine
// is zero, maximum tolerable number is used.
func (c *Config) Validate() error {
	hb := &c.HoneyBadger
	if hb.NetworkSize <= 0 {
		return errors.New("network size must be positive")
	}
	if hb.Byzantine == 0 {
		hb.Byzantine = hbbft.MaxFaulty(hb.NetworkSize)
	}
	if hb.NetworkSize < 3*hb.Byzantine+1 {
		return fmt.Errorf("network size %d can not tolerate %d byzantine nodes", hb.NetworkSize, hb.Byzantine)
	}
	if len(c.Members.Addresses) != hb.NetworkSize {
		return fmt.Errorf("expected %d member addresses, but got %d", hb.NetworkSize, len(c.Members.Addresses))
	}
	for _, addr := range append([]string{c.Identity.Address}, c.Members.Addresses...) {
		if _, err := hbbft.ToAddress(addr); err != nil {
			return fmt.Errorf("invalid address %s: %s", addr, err)
		}
	}
	if hb.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	if hb.ProposeInterval <= 0 {
		return errors.New("propose interval must be positive")
	}
	if hb.MaxFutureEpochs < 0 || hb.RetainedEpochs < 0 {
		return errors.New("epoch window must not be negative")
	}
	return nil
}
