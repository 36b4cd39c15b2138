package main

import (
	"time"

	"github.com/jrwynneiii/adsbtuner/config"
)

type receiveCmd struct {
	Bandwidth    uint32        `short:"b" default:"14000000" placeholder:"VALUE" help:"Bandwidth"`
	FPGAPath     string        `name:"fpga-path" aliases:"fpgapath" placeholder:"PATH" help:"FPGA path"`
	Frequency    uint32        `default:"1086000000" placeholder:"hz" help:"Frequency"`
	GainMode     string        `name:"gain-mode" aliases:"lnagain" default:"default" enum:"default,manual,fast,slow,hybrid" placeholder:"mode" help:"Gain mode"`
	Gain         int           `default:"35" placeholder:"db" help:"Gain in dB, used with --gain-mode=manual"`
	SampleRate   uint32        `short:"u" name:"sample-rate" aliases:"samplerate" default:"16000000" placeholder:"RATE" help:"Sample rate"`
	Remote       bool          `default:"true" negatable:"" help:"Send data to remote server"`
	RemoteIP     string        `name:"remote-ip" default:"127.0.0.1" help:"Remote IP"`
	RemotePort   uint16        `short:"p" name:"remote-port" default:"30001" help:"Remote port (matches readsb --net-ri-port)"`
	BiasTee      bool          `name:"bias-tee" aliases:"biastee" help:"State of bias tee"`
	Driver       string        `default:"bladerf" help:"SoapySDR driver"`
	Timeout      time.Duration `default:"5s" help:"Timeout for reading one burst from the radio"`
	DialTimeout  time.Duration `name:"dial-timeout" default:"10s" help:"Timeout for connecting to the remote server"`
	WriteTimeout time.Duration `name:"write-timeout" default:"0s" help:"Timeout for writing one record, 0 waits forever"`
	QueueSize    int           `name:"queue-size" default:"1024" help:"Records buffered between the radio and the network"`
	Replay       string        `type:"path" placeholder:"FILE" help:"Read bursts from a capture file instead of the radio"`
	Capture      string        `type:"path" placeholder:"FILE" help:"Write every raw burst to a file"`
	TUI          bool          `name:"tui" help:"Show the terminal UI instead of log progress"`
	Refresh      time.Duration `default:"500ms" help:"Terminal UI refresh interval"`
}

func (c *receiveCmd) conf() config.Conf {
	return config.Conf{
		Radio: config.RadioConf{
			Driver:     c.Driver,
			Frequency:  c.Frequency,
			SampleRate: c.SampleRate,
			Bandwidth:  c.Bandwidth,
			GainMode:   config.GainMode(c.GainMode),
			Gain:       c.Gain,
			BiasTee:    c.BiasTee,
			FPGAPath:   c.FPGAPath,
			Timeout:    c.Timeout,
		},
		Remote: config.RemoteConf{
			Enabled:      c.Remote,
			IP:           c.RemoteIP,
			Port:         c.RemotePort,
			DialTimeout:  c.DialTimeout,
			WriteTimeout: c.WriteTimeout,
		},
		Stream: config.StreamConf{
			QueueSize: c.QueueSize,
			Replay:    c.Replay,
			Capture:   c.Capture,
		},
		Tui: config.TuiConf{
			Enabled: c.TUI,
			Refresh: c.Refresh,
		},
	}
}

var cli struct {
	LogLevel  string `short:"v" name:"log-level" aliases:"loglevel" default:"info" enum:"off,error,warn,info,debug,trace" help:"Log level"`
	LogStyle  string `name:"log-style" aliases:"logstyle" default:"auto" enum:"auto,always,never" help:"Manage color for log messages"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json,logfmt" help:"Log line format"`
	Profile   bool   `help:"Output a pprof profile"`

	Receive receiveCmd `cmd:"" default:"withargs" help:"Tune the radio and forward ADS-B frames to the remote server"`
	Probe   struct {
	} `cmd:"" help:"List the available radios and SoapySDR configuration"`
	Listen struct {
		Addr string `default:":30001" help:"Address to accept record streams on"`
	} `cmd:"" help:"Accept record streams and log every frame"`
}
