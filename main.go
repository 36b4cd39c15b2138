package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/adsbtuner/acquire"
	"github.com/jrwynneiii/adsbtuner/config"
	"github.com/jrwynneiii/adsbtuner/deliver"
	"github.com/jrwynneiii/adsbtuner/pipeline"
	"github.com/jrwynneiii/adsbtuner/radio"
	"github.com/jrwynneiii/adsbtuner/replay"
	"github.com/jrwynneiii/adsbtuner/sink"
	"github.com/jrwynneiii/adsbtuner/tui"
)

func main() {
	if err := run(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run() error {
	configFile, err := config.Load(config.ConfigPath())
	if err != nil {
		return err
	}

	flags := kong.Parse(&cli,
		kong.Name("adsbtuner"),
		kong.Description("Stream ADS-B frames from a bladeRF to a Mode-S decoder"),
		kong.UsageOnError(),
		kong.Resolvers(config.Resolver(configFile)),
	)

	logConf := config.LogConf{Level: cli.LogLevel, Style: cli.LogStyle, Format: cli.LogFormat}
	if err := config.SetupLogging(logConf, os.Stderr); err != nil {
		return err
	}
	log.Info("Starting adsbtuner")

	if cli.Profile {
		prof, err := os.Create("./cpu.pprof")
		if err != nil {
			return fmt.Errorf("could not create profile: %w", err)
		}
		defer prof.Close()
		if err := pprof.StartCPUProfile(prof); err != nil {
			return fmt.Errorf("could not start profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch flags.Command() {
	case "probe":
		return radio.LogAllSoapySDRDevices()
	case "listen":
		ln, err := net.Listen("tcp", cli.Listen.Addr)
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", cli.Listen.Addr, err)
		}
		return sink.Serve(ctx, ln, sink.LogFrame)
	case "receive":
		return receive(ctx, cli.Receive.conf())
	default:
		log.Info("Command not recognized")
	}
	return nil
}

func receive(ctx context.Context, conf config.Conf) error {
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.Debugf("Found radio definition: %##v", conf.Radio)

	var w io.Writer
	remote := "disabled"
	if conf.Remote.Enabled {
		conn, err := deliver.Dial(ctx, conf.Remote)
		if err != nil {
			return err
		}
		defer conn.Close()
		w = conn
		remote = conf.Remote.Addr()
	}

	var opts pipeline.Options
	if conf.Stream.Capture != "" {
		f, err := os.Create(conf.Stream.Capture)
		if err != nil {
			return fmt.Errorf("could not create capture file: %w", err)
		}
		defer f.Close()
		opts.Capture = f
	}
	if !conf.Tui.Enabled {
		opts.Reporter = acquire.NewLogReporter(time.Second)
	}

	dev, err := openDevice(conf)
	if err != nil {
		return err
	}
	p := pipeline.New(dev, w, conf, opts)

	if !conf.Tui.Enabled {
		return p.Run(ctx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(runCtx)
		cancel()
	}()
	if err := tui.StartUI(runCtx, p, conf.Radio, remote, conf.Tui, cancel); err != nil {
		cancel()
		<-done
		return err
	}
	return <-done
}

// openDevice returns a configured, streaming sample source.
func openDevice(conf config.Conf) (acquire.Device, error) {
	var dev acquire.Device
	if conf.Stream.Replay != "" {
		src, err := replay.Open(conf.Stream.Replay)
		if err != nil {
			return nil, err
		}
		dev = src
	} else {
		log.Debug("Starting init of SDR")
		dev = radio.New(conf.Radio.Driver)
	}

	if err := dev.Configure(conf.Radio); err != nil {
		dev.Close()
		return nil, err
	}
	if err := dev.Enable(); err != nil {
		dev.Close()
		return nil, err
	}
	return dev, nil
}
