package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

type GainMode string

const (
	GainDefault GainMode = "default"
	GainManual  GainMode = "manual"
	GainFast    GainMode = "fast"
	GainSlow    GainMode = "slow"
	GainHybrid  GainMode = "hybrid"
)

var GainModes = []GainMode{GainDefault, GainManual, GainFast, GainSlow, GainHybrid}

func ParseGainMode(s string) (GainMode, error) {
	for _, m := range GainModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown gain mode %q", s)
}

// RadioConf holds the tunables applied to the radio once before streaming
// starts. Nothing changes them for the rest of the run.
type RadioConf struct {
	Driver     string        `koanf:"driver"`
	Frequency  uint32        `koanf:"frequency"`
	SampleRate uint32        `koanf:"sample_rate"`
	Bandwidth  uint32        `koanf:"bandwidth"`
	GainMode   GainMode      `koanf:"gain_mode"`
	Gain       int           `koanf:"gain"`
	BiasTee    bool          `koanf:"bias_tee"`
	FPGAPath   string        `koanf:"fpga_path"`
	Timeout    time.Duration `koanf:"timeout"`
}

type RemoteConf struct {
	Enabled      bool          `koanf:"enabled"`
	IP           string        `koanf:"ip"`
	Port         uint16        `koanf:"port"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

func (r RemoteConf) Addr() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(int(r.Port)))
}

type StreamConf struct {
	QueueSize int    `koanf:"queue_size"`
	Replay    string `koanf:"replay"`
	Capture   string `koanf:"capture"`
}

type TuiConf struct {
	Enabled bool          `koanf:"enabled"`
	Refresh time.Duration `koanf:"refresh"`
}

type LogConf struct {
	Level  string `koanf:"level"`
	Style  string `koanf:"style"`
	Format string `koanf:"format"`
}

type Conf struct {
	Radio  RadioConf
	Remote RemoteConf
	Stream StreamConf
	Tui    TuiConf
}

// Validate rejects tunables that would only fail once the radio is open.
func (c Conf) Validate() error {
	var errs []error
	if c.Radio.Frequency == 0 {
		errs = append(errs, errors.New("frequency must be non-zero"))
	}
	if c.Radio.SampleRate == 0 {
		errs = append(errs, errors.New("sample rate must be non-zero"))
	}
	if c.Radio.Bandwidth == 0 {
		errs = append(errs, errors.New("bandwidth must be non-zero"))
	}
	if _, err := ParseGainMode(string(c.Radio.GainMode)); err != nil {
		errs = append(errs, err)
	}
	if c.Radio.Timeout <= 0 {
		errs = append(errs, errors.New("read timeout must be positive"))
	}
	if c.Stream.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue size must be at least 1, got %d", c.Stream.QueueSize))
	}
	if c.Tui.Enabled && c.Tui.Refresh <= 0 {
		errs = append(errs, errors.New("tui refresh must be positive"))
	}
	if c.Remote.Enabled {
		if net.ParseIP(c.Remote.IP) == nil {
			errs = append(errs, fmt.Errorf("remote ip %q is not an IP address", c.Remote.IP))
		}
		if c.Remote.Port == 0 {
			errs = append(errs, errors.New("remote port must be non-zero"))
		}
	}
	return errors.Join(errs...)
}

var fpgaImages = map[string]string{
	"40":  "/usr/share/Nuand/bladeRF/adsbx40.rbf",
	"115": "/usr/share/Nuand/bladeRF/adsbx115.rbf",
	"A4":  "/usr/share/Nuand/bladeRF/adsbxA4.rbf",
	"A5":  "/usr/share/Nuand/bladeRF/adsbxA5.rbf",
	"A9":  "/usr/share/Nuand/bladeRF/adsbxA9.rbf",
}

// DefaultFPGAImage returns the Nuand ADS-B image for an FPGA size as reported
// by the device ("40", "115", "A4", "A5" or "A9").
func DefaultFPGAImage(size string) (string, error) {
	if path, ok := fpgaImages[size]; ok {
		return path, nil
	}
	return "", fmt.Errorf("unable to determine FPGA image for size %q", size)
}
