// Package nodecfg holds the merged node configuration: compiled-in
// defaults, overridden by an optional TOML file, overridden in turn by CLI
// flags (flags win), mirroring the teacher family's config-loading idiom.
package nodecfg

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"

	"github.com/rubinchain/chaind/mempool"
)

// Config is the full set of knobs the chaind binary needs to construct its
// object store, chain store, engine, and RPC server.
type Config struct {
	DataDir          string
	RPCAddr          string
	LogLevel         string
	MempoolSize      int
	MaxBlockTxs      int
	RPCJWTSecretFile string
}

// DefaultConfig returns the compiled-in defaults documented at the RPC/CLI
// boundary.
func DefaultConfig() Config {
	return Config{
		DataDir:     ".blockchain_data",
		RPCAddr:     "127.0.0.1:8000",
		LogLevel:    "info",
		MempoolSize: mempool.DefaultCapacity,
		MaxBlockTxs: 100,
	}
}

// Validate rejects configurations that cannot be used to start the node.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("nodecfg: data-dir must not be empty")
	}
	if c.RPCAddr == "" {
		return errors.New("nodecfg: rpc-addr must not be empty")
	}
	if c.MempoolSize <= 0 {
		return errors.New("nodecfg: mempool-size must be positive")
	}
	if c.MaxBlockTxs <= 0 {
		return errors.New("nodecfg: max-block-txs must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("nodecfg: unknown log-level %q", c.LogLevel)
	}
	return nil
}

// tomlSettings mirrors the teacher's convention of keeping Go field names
// as the TOML key names verbatim.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) {
			link = fmt.Sprintf(", see %s for available fields", rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// LoadFile decodes a TOML config file into cfg, overriding only the fields
// present in the file.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = fmt.Errorf("%s, %w", path, err)
	}
	return err
}
