package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "BLADERF_ADSB_"

// FlagKeys maps command line flag names onto config file keys. Environment
// variables use the flag name as well: --remote-port is BLADERF_ADSB_REMOTE_PORT.
var FlagKeys = map[string]string{
	"driver":        "radio.driver",
	"frequency":     "radio.frequency",
	"sample-rate":   "radio.sample_rate",
	"bandwidth":     "radio.bandwidth",
	"gain-mode":     "radio.gain_mode",
	"gain":          "radio.gain",
	"bias-tee":      "radio.bias_tee",
	"fpga-path":     "radio.fpga_path",
	"timeout":       "radio.timeout",
	"remote":        "remote.enabled",
	"remote-ip":     "remote.ip",
	"remote-port":   "remote.port",
	"dial-timeout":  "remote.dial_timeout",
	"write-timeout": "remote.write_timeout",
	"queue-size":    "stream.queue_size",
	"replay":        "stream.replay",
	"capture":       "stream.capture",
	"tui":           "tui.enabled",
	"refresh":       "tui.refresh",
	"log-level":     "log.level",
	"log-style":     "log.style",
	"log-format":    "log.format",
	"addr":          "listen.addr",
}

func ConfigPath() string {
	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	paths := []string{"/etc/adsbtuner/config.hcl", "~/.config/adsbtuner/config.hcl", "./config.hcl"}
	for _, path := range paths {
		if rest, ok := strings.CutPrefix(path, "~/"); ok {
			home, err := os.UserHomeDir()
			if err != nil {
				continue
			}
			path = filepath.Join(home, rest)
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			log.Debugf("Found config file: %s", path)
			return path
		}
	}
	log.Debug("Config file not found, using flags and environment only")
	return ""
}

func envKey(k, v string) (string, any) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, EnvPrefix)), "_", "-")
	key, ok := FlagKeys[name]
	if !ok {
		return "", nil
	}
	log.Debugf("Found config env var: %s=%v", key, v)
	return key, v
}

// Load reads the config file at path, if any, and overlays BLADERF_ADSB_*
// environment variables on top of it.
func Load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), hcl.Parser(true)); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("could not read environment: %w", err)
	}
	return k, nil
}

// Resolver feeds values from k to kong for every flag that was not given on
// the command line.
func Resolver(k *koanf.Koanf) kong.Resolver {
	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		key, ok := FlagKeys[flag.Name]
		if !ok || !k.Exists(key) {
			return nil, nil
		}
		return k.String(key), nil
	})
}
