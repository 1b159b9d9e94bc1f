package bridge

import (
	"context"
	"errors"
	"fmt"
	"github.com/dancavallaro/serial2influx/pkg/lineproto"
	"github.com/dancavallaro/serial2influx/pkg/logging"
	"github.com/dancavallaro/serial2influx/pkg/publish"
	"sync"
	"sync/atomic"
)

// Source yields one reading per call. *serialreader.Reader satisfies it.
type Source interface {
	Read(ctx context.Context) (float64, error)
	Close() error
}

// Publisher sends one line protocol body per call. *publish.Session satisfies it.
type Publisher interface {
	Send(ctx context.Context, body string, url string) error
	Close() error
}

type Options struct {
	Port        string
	Measurement string
	URL         string
	// Num bounds the number of readings; 0 means run until stopped.
	Num int

	OpenSource    func(ctx context.Context, port string) (Source, error)
	InitPublisher func() (Publisher, error)
	// InitMirrors is optional.
	InitMirrors func(ctx context.Context) ([]publish.Mirror, error)

	Logger *logging.Logger
}

// Loop moves readings from the serial source to the publisher until it has
// sent Num points, a publish fails, or it is stopped.
//
// Resources are owned by the goroutine calling Run and released exactly once
// when Run returns: publisher first, then mirrors, then the serial source.
// Stop only requests cancellation, so it is safe from a signal handler or any
// other goroutine.
type Loop struct {
	opts Options
	log  *logging.Logger

	state   atomic.Int32
	sent    atomic.Int64
	started atomic.Bool

	mu            sync.Mutex
	cancel        context.CancelFunc
	stopRequested bool

	source      Source
	publisher   Publisher
	mirrors     []publish.Mirror
	releaseOnce sync.Once
}

func New(opts Options) *Loop {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Loop{opts: opts, log: log.With("component", "bridge")}
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

// Sent is the number of points the primary publisher accepted.
func (l *Loop) Sent() int {
	return int(l.sent.Load())
}

// Stop requests shutdown. Run returns nil once it notices, after releasing
// everything it acquired.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopRequested = true
	if l.cancel != nil {
		l.cancel()
	}
}

// Run drives the loop to completion. It returns nil after Num readings or when
// stopped (by Stop or ctx), and the first error otherwise: *ArgumentError,
// a serial open/config error, *publish.InitError, or *publish.TransportError.
func (l *Loop) Run(parent context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("bridge: loop already run")
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	l.mu.Lock()
	l.cancel = cancel
	if l.stopRequested {
		cancel()
	}
	l.mu.Unlock()

	defer l.release()

	if err := l.start(ctx); err != nil {
		if ctx.Err() != nil {
			l.log.Info("interrupted during startup")
			return nil
		}
		return err
	}

	l.state.Store(int32(Running))
	l.log.Info("bridge running", "port", l.opts.Port, "url", publish.RedactURL(l.opts.URL), "num", l.opts.Num)

	for i := 0; l.opts.Num == 0 || i < l.opts.Num; i++ {
		if err := l.step(ctx); err != nil {
			if ctx.Err() != nil {
				l.log.Info("interrupted", "sent", l.Sent())
				return nil
			}
			l.log.Error("stopping after failure", "error", err, "sent", l.Sent())
			return err
		}
	}

	l.log.Info("completed", "sent", l.Sent())
	return nil
}

func (l *Loop) start(ctx context.Context) error {
	if err := l.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	source, err := l.opts.OpenSource(ctx, l.opts.Port)
	if err != nil {
		return err
	}
	l.source = source
	l.log.Info("serial port opened", "port", l.opts.Port)

	publisher, err := l.opts.InitPublisher()
	if err != nil {
		return err
	}
	l.publisher = publisher

	if l.opts.InitMirrors != nil {
		mirrors, err := l.opts.InitMirrors(ctx)
		l.mirrors = mirrors
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (l *Loop) validate() error {
	var missing []string
	if l.opts.Port == "" {
		missing = append(missing, "port")
	}
	if l.opts.Measurement == "" {
		missing = append(missing, "measurement")
	}
	if l.opts.URL == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return &ArgumentError{Missing: missing}
	}
	if l.opts.Num < 0 {
		return fmt.Errorf("bridge: negative reading count %d", l.opts.Num)
	}
	return nil
}

// step performs one read and one publish.
func (l *Loop) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	reading, err := l.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading %s: %w", l.opts.Port, err)
	}

	point := lineproto.NewPoint(l.opts.Measurement, reading)
	l.log.Debug("reading", "value", reading)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.publisher.Send(ctx, point.String(), l.opts.URL); err != nil {
		return err
	}
	l.sent.Add(1)

	for _, m := range l.mirrors {
		if err := m.Mirror(ctx, point); err != nil {
			return err
		}
	}
	return nil
}

// release tears down in a fixed order and tolerates resources that were never
// acquired.
func (l *Loop) release() {
	l.releaseOnce.Do(func() {
		if l.publisher != nil {
			if err := l.publisher.Close(); err != nil {
				l.log.Warn("closing publisher", "error", err)
			}
		}
		for _, m := range l.mirrors {
			if m == nil {
				continue
			}
			if err := m.Close(); err != nil {
				l.log.Warn("closing mirror", "mirror", m.Name(), "error", err)
			}
		}
		if l.source != nil {
			if err := l.source.Close(); err != nil {
				l.log.Warn("closing serial port", "error", err)
			}
		}
		l.state.Store(int32(Stopped))
	})
}
