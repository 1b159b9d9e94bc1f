package serialreader

import (
	"context"
	"github.com/albenik/go-serial/v2"
	"time"
)

const (
	// BaudRate is the only supported line speed.
	BaudRate = 9600

	// DefaultBootDelay gives boards that reset on DTR time to come back up.
	DefaultBootDelay = 1500 * time.Millisecond

	// Port reads time out so a blocked Read can notice cancellation.
	readTimeoutMillis = 250
)

type Config struct {
	Device    string
	BootDelay time.Duration
}

// Open opens the device, waits out the board reset, then configures 9600 8-N-1
// and drops whatever arrived during boot. Cancelling ctx during the wait
// closes the port and returns ctx.Err().
func Open(ctx context.Context, cfg Config) (*Reader, error) {
	port, err := serial.Open(cfg.Device, serial.WithReadTimeout(readTimeoutMillis))
	if err != nil {
		return nil, &OpenError{Device: cfg.Device, Err: err}
	}

	if err := sleep(ctx, cfg.BootDelay); err != nil {
		port.Close()
		return nil, err
	}

	err = port.Reconfigure(
		serial.WithBaudrate(BaudRate),
		serial.WithDataBits(8),
		serial.WithParity(serial.NoParity),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithReadTimeout(readTimeoutMillis),
	)
	if err != nil {
		port.Close()
		return nil, &ConfigError{Device: cfg.Device, Err: err}
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, &ConfigError{Device: cfg.Device, Err: err}
	}

	return NewReader(cfg.Device, port), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
