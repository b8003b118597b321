package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// Kind selects how receipts reach the printer
type Kind string

const (
	KindUSB     Kind = "usb"
	KindNetwork Kind = "network"
	KindNone    Kind = "none"
)

// ErrNotConfigured is returned by the no-op printer
var ErrNotConfigured = errors.New("printer: no printer configured")

// Printer sends raw ESC/POS bytes to a thermal printer.
type Printer interface {
	Print(ctx context.Context, data []byte) error
	// Connected reports whether the device is reachable right now.
	Connected(ctx context.Context) bool
	Kind() Kind
	Close() error
}

// usbPrinter writes to a device file such as /dev/usb/lp0. The file is
// opened per job and jobs are serialized.
type usbPrinter struct {
	path string
	mu   sync.Mutex
}

func NewUSBPrinter(devicePath string) Printer {
	return &usbPrinter{path: devicePath}
}

func (p *usbPrinter) Print(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("printer: open %s: %w", p.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.path, err)
	}
	return nil
}

func (p *usbPrinter) Connected(context.Context) bool {
	_, err := os.Stat(p.path)
	return err == nil
}

func (p *usbPrinter) Kind() Kind   { return KindUSB }
func (p *usbPrinter) Close() error { return nil }

// networkPrinter speaks raw TCP, usually port 9100
type networkPrinter struct {
	address string
	dialer  net.Dialer
}

func NewNetworkPrinter(address string) Printer {
	return &networkPrinter{address: address, dialer: net.Dialer{Timeout: 5 * time.Second}}
}

func (p *networkPrinter) Print(ctx context.Context, data []byte) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("printer: connect %s: %w", p.address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.address, err)
	}
	return nil
}

func (p *networkPrinter) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (p *networkPrinter) Kind() Kind   { return KindNetwork }
func (p *networkPrinter) Close() error { return nil }

type nullPrinter struct{}

// NewNullPrinter returns a printer that accepts nothing. Receipts can still be
// rendered and returned to the caller.
func NewNullPrinter() Printer {
	return nullPrinter{}
}

func (nullPrinter) Print(context.Context, []byte) error { return ErrNotConfigured }
func (nullPrinter) Connected(context.Context) bool      { return false }
func (nullPrinter) Kind() Kind                          { return KindNone }
func (nullPrinter) Close() error                        { return nil }

// New builds the printer for kind. target is the device path for usb and
// host:port for network.
func New(kind Kind, target string) (Printer, error) {
	switch kind {
	case KindUSB:
		if target == "" {
			return nil, errors.New("printer: device path is required for a usb printer")
		}
		return NewUSBPrinter(target), nil
	case KindNetwork:
		if target == "" {
			return nil, errors.New("printer: address is required for a network printer")
		}
		return NewNetworkPrinter(target), nil
	case KindNone, "":
		return NewNullPrinter(), nil
	default:
		return nil, fmt.Errorf("printer: unknown printer type %q (use usb, network, or none)", kind)
	}
}
