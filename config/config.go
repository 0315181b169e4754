package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// ProviderBaseURL is the bridge provider's API root
	ProviderBaseURL string

	// Chains maps numeric chain ids to RPC endpoints. A chain missing from
	// this table is a fatal configuration error at execution time.
	Chains map[uint64]string

	// CandidateChains are the source chains quoted during funding preflight
	CandidateChains []uint64

	// DestinationChain is the chain whose balance the preflight gate checks
	DestinationChain uint64

	// PrivateKey signs source-chain transactions (hex, optional until live
	// execution is requested)
	PrivateKey string

	// RecordFile overrides the execution record storage path
	RecordFile string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".bridgefund")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("provider_base_url", "https://li.quest/v1")
	viper.SetDefault("destination_chain", 421614)
	viper.SetDefault("candidate_chains", []string{"11155111", "11155420"})

	// Read from environment variables
	viper.SetEnvPrefix("BRIDGEFUND")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		ProviderBaseURL:  viper.GetString("provider_base_url"),
		DestinationChain: viper.GetUint64("destination_chain"),
		PrivateKey:       viper.GetString("private_key"),
		RecordFile:       viper.GetString("record_file"),
	}

	chains, err := parseChains(viper.GetStringMapString("chains"))
	if err != nil {
		return nil, err
	}
	cfg.Chains = chains

	candidates, err := parseChainList(viper.GetStringSlice("candidate_chains"))
	if err != nil {
		return nil, err
	}
	cfg.CandidateChains = candidates

	globalConfig = cfg
	return cfg, nil
}

// parseChains converts the raw chains table into a chain id keyed map
func parseChains(raw map[string]string) (map[uint64]string, error) {
	chains := make(map[uint64]string, len(raw))
	for key, rpcURL := range raw {
		chainID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id '%s' in chains config: %w", key, err)
		}
		chains[chainID] = rpcURL
	}
	return chains, nil
}

func parseChainList(raw []string) ([]uint64, error) {
	chains := make([]uint64, 0, len(raw))
	for _, item := range raw {
		chainID, err := strconv.ParseUint(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id '%s' in candidate_chains: %w", item, err)
		}
		chains = append(chains, chainID)
	}
	return chains, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
