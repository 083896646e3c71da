package serial

import (
	"github.com/pkg/errors"
	tarm "github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

var ErrNilConfig = errors.New("config cannot be nil")

// Open opens cfg.Device with the configured driver
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	switch cfg.Driver {
	case DriverBugST:
		return openBugST(cfg)
	case DriverTarm, "":
		return openTarm(cfg)
	default:
		return nil, errors.Errorf("unknown serial driver %q", cfg.Driver)
	}
}

// ListPorts returns the serial devices present on the system
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate serial ports")
	}
	return ports, nil
}

// tarmPort wraps github.com/tarm/serial
type tarmPort struct {
	*tarm.Port
}

func openTarm(cfg *Config) (Port, error) {
	p, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", cfg.Device)
	}
	return tarmPort{p}, nil
}

// bugstPort wraps go.bug.st/serial
type bugstPort struct {
	bugst.Port
}

func openBugST(cfg *Config) (Port, error) {
	p, err := bugst.Open(cfg.Device, &bugst.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", cfg.Device)
	}
	if cfg.ReadTimeout > 0 {
		if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
			p.Close()
			return nil, errors.Wrap(err, "set read timeout")
		}
	}
	return bugstPort{p}, nil
}

func (p bugstPort) Flush() error {
	return p.ResetInputBuffer()
}
