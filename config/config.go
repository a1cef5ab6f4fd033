package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/multiformats/go-multiaddr"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"ephemera/logger"
)

const (
	nodeDirName    = ".ephemera"
	configFileName = "ephemera.toml"
)

var (
	// ErrConfigExists is returned by Create when the node already has a
	// configuration file.
	ErrConfigExists = errors.New("configuration file exists")
	// ErrConfigNotFound is returned when the expected configuration file is
	// missing.
	ErrConfigNotFound = errors.New("configuration file does not exist")
)

type (
	Configuration struct {
		Node    NodeConfig              `mapstructure:"node" toml:"node"`
		Storage StorageConfig           `mapstructure:"storage" toml:"storage"`
		Libp2p  Libp2pConfig            `mapstructure:"libp2p" toml:"libp2p"`
		Log     logger.LogConfiguration `mapstructure:"log" toml:"log"`
	}

	NodeConfig struct {
		Address string `mapstructure:"address" toml:"address"`
		PubKey  string `mapstructure:"pub_key" toml:"pub_key"`
		PrivKey string `mapstructure:"priv_key" toml:"priv_key"`
	}

	StorageConfig struct {
		// SqlitePath is the file of the SQLite database.
		SqlitePath string `mapstructure:"sqlite_path" toml:"sqlite_path"`
		// BoltPath is the file of the bbolt database.
		BoltPath string `mapstructure:"bolt_path" toml:"bolt_path"`
	}

	Libp2pConfig struct {
		TopicName            string        `mapstructure:"topic_name" toml:"topic_name"`
		HeartbeatIntervalSec uint64        `mapstructure:"heartbeat_interval_sec" toml:"heartbeat_interval_sec"`
		Peers                []PeerSetting `mapstructure:"peers" toml:"peers"`
	}

	PeerSetting struct {
		Name string `mapstructure:"name" toml:"name"`
		// Address of the peer in multiaddr format.
		Address string `mapstructure:"address" toml:"address"`
		PubKey  string `mapstructure:"pub_key" toml:"pub_key"`
	}
)

// mapstructure tags above drive viper unmarshaling, toml tags drive writing.

// Load reads the configuration from the given file.
func Load(file string) (Configuration, error) {
	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return Configuration{}, fmt.Errorf("%w: %s", ErrConfigNotFound, file)
		}
		return Configuration{}, fmt.Errorf("reading configuration: %w", err)
	}
	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return Configuration{}, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// LoadNode reads the configuration of the named node from the home directory.
func LoadNode(nodeName string) (Configuration, error) {
	file, err := ConfigFile(nodeName)
	if err != nil {
		return Configuration{}, err
	}
	return Load(file)
}

// Create writes the configuration of a new node, ErrConfigExists when the
// node is already configured.
func (c Configuration) Create(nodeName string) error {
	dir, err := NodeDir(nodeName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating node directory: %w", err)
	}
	file := filepath.Join(dir, configFileName)
	if _, err := os.Stat(file); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, file)
	}
	return c.write(file)
}

// Update overwrites an existing configuration, ErrConfigNotFound when the
// node has not been configured yet.
func (c Configuration) Update(nodeName string) error {
	file, err := ConfigFile(nodeName)
	if err != nil {
		return err
	}
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, file)
	}
	return c.write(file)
}

// Validate checks that peer addresses are valid multiaddrs.
func (c Configuration) Validate() error {
	for _, p := range c.Libp2p.Peers {
		if _, err := multiaddr.NewMultiaddr(p.Address); err != nil {
			return fmt.Errorf("peer %q address %q: %w", p.Name, p.Address, err)
		}
	}
	return nil
}

func (c Configuration) write(file string) error {
	buf, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}
	content := append([]byte("# Generated file, overwritten on every configuration update.\n"), buf...)
	if err := os.WriteFile(file, content, 0600); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}
	return nil
}

// RootDir is the directory holding per node configuration, ~/.ephemera.
func RootDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, nodeDirName), nil
}

// NodeDir is the directory of the named node.
func NodeDir(nodeName string) (string, error) {
	root, err := RootDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, nodeName), nil
}

// ConfigFile is the configuration file of the named node.
func ConfigFile(nodeName string) (string, error) {
	dir, err := NodeDir(nodeName)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}
