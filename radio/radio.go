package radio

// #cgo CFLAGS: -g -Wall
// #cgo LDFLAGS: -lSoapySDR
import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/adsbtuner/config"

	"github.com/pothosware/go-soapy-sdr/pkg/device"
	"github.com/pothosware/go-soapy-sdr/pkg/modules"
	"github.com/pothosware/go-soapy-sdr/pkg/sdrlogger"
	"github.com/pothosware/go-soapy-sdr/pkg/version"
)

// Each CS16 element is an I and a Q int16. The ADS-B FPGA image reuses the
// sample stream to carry its message slots, so elements are only a transport
// unit here.
const bytesPerElem = 4

var ErrNotConfigured = errors.New("radio not configured")

// Radio is a bladeRF running the ADS-B FPGA image, driven through SoapySDR.
type Radio struct {
	Driver string
	//Private:
	args    map[string]string
	device  *device.SDRDevice
	stream  *device.SDRStreamCS16
	samples [][]int16
	flags   []int
}

func InitSoapySDR() {
	log.Debugf("Using SoapySDR versions: ABI: %s API: %s Lib: %s", version.GetABIVersion(), version.GetAPIVersion(), version.GetLibVersion())
	log.Debugf("SoapySDR modules root path: %v", modules.GetRootPath())

	searchPaths := modules.ListSearchPaths()
	if len(searchPaths) > 0 {
		for i, searchPath := range searchPaths {
			log.Debugf("Search path #%d: %v", i, searchPath)
		}
	} else {
		log.Debug("Search paths: [none]")
	}

	modulesFound := modules.ListModules()
	if len(modulesFound) > 0 {
		for _, module := range modulesFound {
			moduleVersion := modules.GetModuleVersion(module)
			if len(moduleVersion) == 0 {
				moduleVersion = "[None]"
			}
			log.Debugf("Found SoapySDR module: %v, version: %v", module, moduleVersion)
		}
	} else {
		log.Debug("No SoapySDR modules found")
	}
	sdrlogger.SetLogLevel(sdrlogger.Error)
}

// LogAllSoapySDRDevices backs the probe command.
func LogAllSoapySDRDevices() error {
	log.Infof("Using SoapySDR versions: ABI: %s API: %s Lib: %s", version.GetABIVersion(), version.GetAPIVersion(), version.GetLibVersion())
	log.Infof("SoapySDR modules root path: %v", modules.GetRootPath())

	modulesFound := modules.ListModules()
	if len(modulesFound) > 0 {
		for _, module := range modulesFound {
			moduleVersion := modules.GetModuleVersion(module)
			if len(moduleVersion) == 0 {
				moduleVersion = "[None]"
			}
			log.Infof("Found SoapySDR module: %v, version: %v", module, moduleVersion)
		}
	} else {
		log.Info("No SoapySDR modules found")
	}

	sdrlogger.SetLogLevel(sdrlogger.Error)

	devices := device.Enumerate(nil)
	log.Infof("Found %d devices", len(devices))
	args := make([]map[string]string, len(devices))
	for idx, dev := range devices {
		args[idx] = map[string]string{"driver": dev["driver"]}
	}
	devs, err := device.MakeList(args)
	if err != nil {
		return fmt.Errorf("SoapySDR could not open devices: %w", err)
	}
	for idx, dev := range devs {
		log.Infof("Driver: %s", args[idx]["driver"])
		for k, v := range dev.GetHardwareInfo() {
			log.Infof("\t%s: %s", k, v)
		}
		LogAvailSettings(dev)
	}
	// UnmakeList double frees in the cgo bindings, the OS reclaims the
	// devices on exit.
	return nil
}

func LogAvailSettings(dev *device.SDRDevice) {
	log.Infof("Current settings:")
	settings := dev.GetSettingInfo()
	for _, setting := range settings {
		log.Infof("\t- %s: %v", setting.Key, setting.Value)
	}

	numChannels := dev.GetNumChannels(device.DirectionRX)
	log.Info("Channel info:")
	for channel := uint(0); channel < numChannels; channel++ {
		log.Infof("Channel %d:", channel)
		log.Infof("\tAvailable sample rates:")
		for _, sampleRateRange := range dev.GetSampleRateRange(device.DirectionRX, channel) {
			log.Infof("\t\t- %v", sampleRateRange.ToString())
		}
		log.Infof("\tIQ Sample Types: %v", dev.GetStreamFormats(device.DirectionRX, channel))
	}
}

func New(driver string) *Radio {
	log.Debug("Initing SoapySDR")
	InitSoapySDR()

	return &Radio{
		Driver: driver,
		args:   map[string]string{"driver": driver},
		flags:  make([]int, 1),
	}
}

func (r *Radio) open() error {
	var err error
	if r.device, err = device.Make(r.args); err != nil {
		return fmt.Errorf("could not create SoapySDR device: %w", err)
	}
	log.Infof("Successfully loaded %s device", r.Driver)
	return nil
}

func (r *Radio) loadFPGA(path string) error {
	if path == "" {
		log.Info("FPGA path not specified. Falling back to default value.")
		size := r.device.GetHardwareInfo()["fpga_size"]
		log.Infof("FPGA size is %q", size)
		var err error
		if path, err = config.DefaultFPGAImage(size); err != nil {
			return fmt.Errorf("%w, set --fpga-path", err)
		}
	}

	log.Infof("Loading FPGA image: %s", path)
	if err := r.device.WriteSetting("load_fpga", path); err != nil {
		return fmt.Errorf("could not load FPGA image %s: %w", path, err)
	}
	log.Info("Successfully loaded image")

	log.Info("Closing and opening device for new FPGA image")
	if err := r.device.Unmake(); err != nil {
		return fmt.Errorf("could not close device: %w", err)
	}
	r.device = nil
	return r.open()
}

// Configure opens the device and applies the tunables. It leaves the RX
// stream set up but not active.
func (r *Radio) Configure(conf config.RadioConf) error {
	if r.device == nil {
		if err := r.open(); err != nil {
			return err
		}
	}

	if r.Driver == "bladerf" {
		if err := r.loadFPGA(conf.FPGAPath); err != nil {
			return err
		}
	} else {
		log.Warnf("Driver %s is not bladerf, skipping FPGA image", r.Driver)
	}

	log.Debug("Configure module")
	if err := r.device.WriteSetting("biastee_rx", strconv.FormatBool(conf.BiasTee)); err != nil {
		return fmt.Errorf("could not set bias tee: %w", err)
	}

	log.Debugf("Setting sample rate to %d", conf.SampleRate)
	if err := r.device.SetSampleRate(device.DirectionRX, 0, float64(conf.SampleRate)); err != nil {
		return fmt.Errorf("could not set sample rate: %w", err)
	}

	log.Debugf("Setting bandwidth to %d", conf.Bandwidth)
	if err := r.device.SetBandwidth(device.DirectionRX, 0, float64(conf.Bandwidth)); err != nil {
		return fmt.Errorf("could not set bandwidth: %w", err)
	}

	log.Debugf("Setting frequency to %d", conf.Frequency)
	if err := r.device.SetFrequency(device.DirectionRX, 0, float64(conf.Frequency), nil); err != nil {
		return fmt.Errorf("could not set frequency: %w", err)
	}

	if err := r.setGain(conf); err != nil {
		return err
	}

	log.Debug("Creating the IQ stream")
	var err error
	if r.stream, err = r.device.SetupSDRStreamCS16(device.DirectionRX, []uint{0}, nil); err != nil {
		return fmt.Errorf("could not setup SDR stream: %w", err)
	}

	r.logSummary()
	return nil
}

// SoapySDR only knows AGC on or off, so every AGC flavour turns it on and the
// firmware picks its default attack.
func (r *Radio) setGain(conf config.RadioConf) error {
	manual := conf.GainMode == config.GainManual
	log.Infof("Setting gain mode to %s", conf.GainMode)
	if err := r.device.SetGainMode(device.DirectionRX, 0, !manual); err != nil {
		return fmt.Errorf("could not set gain mode: %w", err)
	}
	if manual {
		log.Infof("Setting LNA gain to %ddB", conf.Gain)
		if err := r.device.SetGain(device.DirectionRX, 0, float64(conf.Gain)); err != nil {
			return fmt.Errorf("could not set gain: %w", err)
		}
	}
	return nil
}

func (r *Radio) logSummary() {
	log.Infof("%s: sampling rate:    %.1f MHz", r.Driver, r.device.GetSampleRate(device.DirectionRX, 0)/1e6)
	log.Infof("%s: frequency:        %.1f MHz", r.Driver, r.device.GetFrequency(device.DirectionRX, 0)/1e6)
	log.Infof("%s: bandwidth:        %.1f MHz", r.Driver, r.device.GetBandwidth(device.DirectionRX, 0)/1e6)
	log.Infof("%s: automatic gain:   %v", r.Driver, r.device.GetGainMode(device.DirectionRX, 0))
	log.Infof("%s: gain:             %.0fdB", r.Driver, r.device.GetGain(device.DirectionRX, 0))
	for k, v := range r.device.GetHardwareInfo() {
		log.Debugf("%s: %-17s %s", r.Driver, k+":", v)
	}
}

func (r *Radio) Enable() error {
	if r.stream == nil {
		return ErrNotConfigured
	}
	log.Debug("Activating IQ stream")
	if err := r.stream.Activate(0, 0, 0); err != nil {
		return fmt.Errorf("could not activate the IQ stream: %w", err)
	}
	return nil
}

func (r *Radio) Disable() error {
	if r.stream == nil {
		return nil
	}
	log.Debug("Deactivating IQ stream...")
	if err := r.stream.Deactivate(0, 0); err != nil {
		return fmt.Errorf("could not deactivate the IQ stream: %w", err)
	}
	return nil
}

// Read fills buf with one burst, looping over short reads from the driver.
func (r *Radio) Read(buf []byte, timeout time.Duration) error {
	if r.stream == nil {
		return ErrNotConfigured
	}
	elems := uint(len(buf) / bytesPerElem)
	if len(r.samples) == 0 || len(r.samples[0]) < int(2*elems) {
		r.samples = [][]int16{make([]int16, 2*elems)}
	}

	var got uint
	for got < elems {
		chunk := [][]int16{r.samples[0][2*got : 2*elems]}
		_, n, err := r.stream.Read(chunk, elems-got, r.flags, uint(timeout.Microseconds()))
		if err != nil {
			return fmt.Errorf("stream read failed after %d/%d samples: %w", got, elems, err)
		}
		got += uint(n)
	}

	for i, v := range r.samples[0][:2*elems] {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	return nil
}

func (r *Radio) Close() error {
	var errs []error
	if r.stream != nil {
		log.Debug("Closing IQ stream...")
		if err := r.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close the IQ stream: %w", err))
		}
		r.stream = nil
	}
	if r.device != nil {
		if err := r.device.Unmake(); err != nil {
			errs = append(errs, fmt.Errorf("could not close device: %w", err))
		}
		r.device = nil
	}
	return errors.Join(errs...)
}
