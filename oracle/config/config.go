package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"sigs.k8s.io/yaml"

	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

const (
	FileName = "config.toml"

	DefaultGasLimit = 500_000

	FailureModeDrop  = "drop"
	FailureModeRetry = "retry"
)

type Config struct {
	Relayer          RelayerConfig     `toml:"relayer" json:"relayer"`
	Log              LogConfig         `toml:"log" json:"log"`
	Networks         []Network         `toml:"networks" json:"networks"`
	RequestListeners []RequestListener `toml:"request_listeners" json:"request_listeners"`
	Batches          []types.Batch     `toml:"batches" json:"batches"`
	Pairs            []types.PushJob   `toml:"pairs" json:"pairs"`
}

type RelayerConfig struct {
	QueueInterval  Duration      `toml:"queue_interval" json:"queue_interval"`
	StatusAddr     string        `toml:"status_addr" json:"status_addr"`
	HealthInterval Duration      `toml:"health_interval" json:"health_interval"`
	Failure        FailureConfig `toml:"failure" json:"failure"`
}

// FailureConfig decides what a queue does with an item whose provider call failed.
type FailureConfig struct {
	Mode        string   `toml:"mode" json:"mode"`
	MaxAttempts int      `toml:"max_attempts" json:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay" json:"base_delay"`
	MaxDelay    Duration `toml:"max_delay" json:"max_delay"`
}

type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   bool   `toml:"file" json:"file"`
}

// Network is one configured chain and the connection parameters of its adapter.
type Network struct {
	ID                    string              `toml:"id" json:"id"`
	Type                  types.NetworkType   `toml:"type" json:"type"`
	BridgeChainID         types.BridgeChainID `toml:"bridge_chain_id" json:"bridge_chain_id"`
	OracleContractAddress string              `toml:"oracle_contract_address" json:"oracle_contract_address"`

	RPC                  string   `toml:"rpc" json:"rpc"`
	ChainID              uint64   `toml:"chain_id,omitempty" json:"chain_id,omitempty"`
	PrivateKeyEnvKey     string   `toml:"private_key_env_key,omitempty" json:"private_key_env_key,omitempty"`
	MnemonicEnvKey       string   `toml:"mnemonic_env_key,omitempty" json:"mnemonic_env_key,omitempty"`
	DerivationPath       string   `toml:"derivation_path,omitempty" json:"derivation_path,omitempty"`
	BlockPollingInterval Duration `toml:"block_polling_interval" json:"block_polling_interval"`
	// GasLimit is used for every transaction the adapter sends.
	GasLimit uint64 `toml:"gas_limit,omitempty" json:"gas_limit,omitempty"`
	// StartBlock is where request detection begins; zero means the current head.
	StartBlock uint64 `toml:"start_block,omitempty" json:"start_block,omitempty"`

	AccountID string `toml:"account_id,omitempty" json:"account_id,omitempty"`
}

// Descriptor is what requests use to address this network.
func (n Network) Descriptor() types.Network {
	return types.Network{BridgeChainID: n.BridgeChainID, Type: n.Type}
}

type RequestListener struct {
	NetworkID       string   `toml:"network_id" json:"network_id"`
	ContractAddress string   `toml:"contract_address" json:"contract_address"`
	Interval        Duration `toml:"interval" json:"interval"`
}

// Default returns the config written on first run.
func Default() *Config {
	return &Config{
		Relayer: RelayerConfig{
			QueueInterval:  Duration(100 * time.Millisecond),
			StatusAddr:     "127.0.0.1:8080",
			HealthInterval: Duration(30 * time.Second),
			Failure: FailureConfig{
				Mode:        FailureModeDrop,
				MaxAttempts: 3,
				BaseDelay:   Duration(time.Second),
				MaxDelay:    Duration(30 * time.Second),
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Networks: []Network{
			{
				ID:                    "local",
				Type:                  types.NetworkEVM,
				BridgeChainID:         1,
				OracleContractAddress: "0x0000000000000000000000000000000000000000",
				RPC:                   "http://localhost:8545",
				PrivateKeyEnvKey:      "LOCAL_PRIVATE_KEY",
				BlockPollingInterval:  Duration(5 * time.Second),
			},
		},
	}
}

// LoadHome reads <home>/config.toml, writing the default config first if it is missing.
// It also loads <home>/.env and ./.env so wallet secrets can be kept out of the config.
func LoadHome(home string) (*Config, error) {
	path := filepath.Join(home, FileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WriteDefault(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		log.Infof("Wrote default config to %s", path)
	}

	if err := loadDotEnv(filepath.Join(home, ".env"), ".env"); err != nil {
		return nil, err
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	log.Infof("Loaded config from %s", path)
	return cfg, nil
}

// Load reads a TOML, YAML or JSON config file, applies env overrides and defaults, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := new(Config)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "failed to parse %s: %v", path, err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "failed to parse %s: %v", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalizeDurations()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// WriteDefault writes Default() to path, creating the directory.
func WriteDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := Default().Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal renders the config as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TOML: %w", err)
	}
	return data, nil
}

func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// normalizeDurations rescales bare TOML integers, which decode as nanoseconds,
// to the milliseconds the config format uses.
func (c *Config) normalizeDurations() {
	fix := func(d *Duration) {
		if *d > 0 && *d < Duration(time.Millisecond) {
			*d *= Duration(time.Millisecond)
		}
	}

	fix(&c.Relayer.QueueInterval)
	fix(&c.Relayer.HealthInterval)
	fix(&c.Relayer.Failure.BaseDelay)
	fix(&c.Relayer.Failure.MaxDelay)
	for i := range c.Networks {
		fix(&c.Networks[i].BlockPollingInterval)
	}
	for i := range c.RequestListeners {
		fix(&c.RequestListeners[i].Interval)
	}
}

func (c *Config) applyDefaults() {
	def := Default()

	if c.Relayer.QueueInterval == 0 {
		c.Relayer.QueueInterval = def.Relayer.QueueInterval
	}
	if c.Relayer.HealthInterval == 0 {
		c.Relayer.HealthInterval = def.Relayer.HealthInterval
	}
	if c.Relayer.Failure.Mode == "" {
		c.Relayer.Failure.Mode = FailureModeDrop
	}
	if c.Relayer.Failure.MaxAttempts == 0 {
		c.Relayer.Failure.MaxAttempts = def.Relayer.Failure.MaxAttempts
	}
	if c.Relayer.Failure.BaseDelay == 0 {
		c.Relayer.Failure.BaseDelay = def.Relayer.Failure.BaseDelay
	}
	if c.Relayer.Failure.MaxDelay == 0 {
		c.Relayer.Failure.MaxDelay = def.Relayer.Failure.MaxDelay
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	for i := range c.Networks {
		if c.Networks[i].BlockPollingInterval == 0 {
			c.Networks[i].BlockPollingInterval = Duration(5 * time.Second)
		}
		if c.Networks[i].Type == types.NetworkEVM && c.Networks[i].GasLimit == 0 {
			c.Networks[i].GasLimit = DefaultGasLimit
		}
	}

	for i := range c.Batches {
		for j := range c.Batches[i].Pairs {
			job := &c.Batches[i].Pairs[j]
			if job.NetworkID == "" {
				job.NetworkID = c.Batches[i].NetworkID
			}
			if job.Interval == 0 {
				job.Interval = c.Batches[i].Interval
			}
			if job.Description == "" {
				job.Description = c.Batches[i].Description
			}
		}
	}
}

// Validate returns the first problem found in the config.
func (c *Config) Validate() error {
	if c.Relayer.QueueInterval <= 0 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "queue interval must be positive")
	}

	switch c.Relayer.Failure.Mode {
	case FailureModeDrop, FailureModeRetry:
	default:
		return errorsmod.Wrapf(types.ErrInvalidConfig, "unknown failure mode %q", c.Relayer.Failure.Mode)
	}

	if c.Relayer.Failure.Mode == FailureModeRetry && c.Relayer.Failure.MaxAttempts < 1 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "failure max attempts must be at least 1")
	}

	if len(c.Networks) == 0 {
		return errorsmod.Wrap(types.ErrInvalidConfig, "at least one network is required")
	}

	ids := make(map[string]struct{}, len(c.Networks))
	for i, n := range c.Networks {
		if err := n.validate(); err != nil {
			return errorsmod.Wrapf(err, "networks[%d]", i)
		}
		if _, ok := ids[n.ID]; ok {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "duplicate network id %q", n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	for i, l := range c.RequestListeners {
		if l.NetworkID == "" {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "request_listeners[%d]: network id is required", i)
		}
		if l.ContractAddress == "" {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "request_listeners[%d]: contract address is required", i)
		}
		if l.Interval <= 0 {
			return errorsmod.Wrapf(types.ErrInvalidConfig, "request_listeners[%d]: interval must be positive", i)
		}
	}

	for i, b := range c.Batches {
		if err := validateBatch(b, ids); err != nil {
			return errorsmod.Wrapf(err, "batches[%d]", i)
		}
	}

	for i, p := range c.Pairs {
		if err := validatePushJob(p, ids); err != nil {
			return errorsmod.Wrapf(err, "pairs[%d]", i)
		}
	}

	return nil
}

func (n Network) validate() error {
	if n.ID == "" {
		return errorsmod.Wrap(types.ErrInvalidConfig, "network id is required")
	}

	switch n.Type {
	case types.NetworkEVM, types.NetworkNear:
	default:
		return errorsmod.Wrapf(types.ErrInvalidConfig, "network %s: unknown type %q", n.ID, n.Type)
	}

	if n.OracleContractAddress == "" {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "network %s: oracle contract address is required", n.ID)
	}

	if n.RPC == "" {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "network %s: rpc is required", n.ID)
	}

	if n.Type == types.NetworkEVM && n.PrivateKeyEnvKey == "" && n.MnemonicEnvKey == "" {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "network %s: private key or mnemonic env key is required", n.ID)
	}

	if n.BlockPollingInterval <= 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "network %s: block polling interval must be positive", n.ID)
	}

	return nil
}

func validateBatch(b types.Batch, networks map[string]struct{}) error {
	if _, ok := networks[b.NetworkID]; !ok {
		return errorsmod.Wrapf(types.ErrUnknownNetwork, "batch %q references network %q", b.Description, b.NetworkID)
	}
	if len(b.Pairs) == 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "batch %q has no pairs", b.Description)
	}
	if b.Interval <= 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "batch %q: interval must be positive", b.Description)
	}
	for _, p := range b.Pairs {
		if err := validatePushJob(p, networks); err != nil {
			return err
		}
	}
	return nil
}

func validatePushJob(p types.PushJob, networks map[string]struct{}) error {
	if _, ok := networks[p.NetworkID]; !ok {
		return errorsmod.Wrapf(types.ErrUnknownNetwork, "pair %q references network %q", p.Pair, p.NetworkID)
	}
	if p.Pair == "" {
		return errorsmod.Wrap(types.ErrInvalidConfig, "pair label is required")
	}
	if p.ContractAddress == "" {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "pair %q: contract address is required", p.Pair)
	}
	if len(p.Sources) == 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "pair %q: at least one source is required", p.Pair)
	}
	if p.Interval <= 0 {
		return errorsmod.Wrapf(types.ErrInvalidConfig, "pair %q: interval must be positive", p.Pair)
	}
	return nil
}

// Network looks up a configured network by id.
func (c *Config) Network(id string) (Network, bool) {
	for _, n := range c.Networks {
		if n.ID == id {
			return n, true
		}
	}
	return Network{}, false
}

// Print logs the effective settings.
func (c *Config) Print(home string) {
	log.Infof("%-15s: %s", "Home", home)
	log.Infof("%-15s: %s", "Queue Interval", c.Relayer.QueueInterval)
	log.Infof("%-15s: %s", "Failure Mode", c.Relayer.Failure.Mode)
	log.Infof("%-15s: %s", "Status Addr", c.Relayer.StatusAddr)
	for _, n := range c.Networks {
		log.Infof("%-15s: %s (%s) rpc=%s oracle=%s", "Network", n.ID, n.Descriptor(), n.RPC, n.OracleContractAddress)
	}
	log.Infof("%-15s: %d", "Listeners", len(c.RequestListeners))
	log.Infof("%-15s: %d", "Batches", len(c.Batches)+len(c.Pairs))
}
