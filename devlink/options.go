package devlink

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-devlink/logger"
	"github.com/arloliu/go-devlink/transport"
	"github.com/arloliu/go-devlink/transport/ble"
	"github.com/arloliu/go-devlink/transport/serial"
)

// Default values of the manager options.
const (
	DefaultWarmup           = serial.DefaultWarmup
	DefaultReadTimeout      = serial.DefaultReadTimeout
	DefaultPollInterval     = serial.DefaultPollInterval
	DefaultConnectTimeout   = ble.DefaultConnectTimeout
	DefaultScanDuration     = ble.DefaultScanDuration
	DefaultIdleInterval     = time.Duration(0)
	DefaultFailureQueueSize = 8
)

// Range limits of the manager options.
const (
	MaxWarmup         = time.Minute
	MaxIdleInterval   = time.Second
	MinScanDuration   = 100 * time.Millisecond
	MaxScanDuration   = 2 * time.Minute
	MinFailureQueue   = 1
	MaxFailureQueue   = 1024
	MinReadTimeout    = 10 * time.Millisecond
	MaxReadTimeout    = serial.MaxReadTimeout
	MinPollInterval   = serial.MinPollInterval
	MinConnectTimeout = ble.MinConnectTimeout
	MaxConnectTimeout = ble.MaxConnectTimeout
)

// FailureHandler is invoked with the error that terminated the worker of dev.
type FailureHandler func(dev *Device, err error)

// TransportFactory creates the link of a device. A new transport is created on every Start.
type TransportFactory func(dev *Device) (transport.Transport, error)

type config struct {
	logger           logger.Logger
	executor         func(func())
	skipMalformed    bool
	warmup           time.Duration
	readTimeout      time.Duration
	pollInterval     time.Duration
	connectTimeout   time.Duration
	idleInterval     time.Duration
	scanDuration     time.Duration
	failureQueueSize int
	sendTerminator   string
	failureHandlers  []FailureHandler
	transportFactory TransportFactory
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		logger:           logger.GetLogger(),
		warmup:           DefaultWarmup,
		readTimeout:      DefaultReadTimeout,
		pollInterval:     DefaultPollInterval,
		connectTimeout:   DefaultConnectTimeout,
		idleInterval:     DefaultIdleInterval,
		scanDuration:     DefaultScanDuration,
		failureQueueSize: DefaultFailureQueueSize,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for NewManager.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithLogger sets the logger of the manager and its transports.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("devlink: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithExecutor sets the function used to run consumer, connection state and failure
// callbacks, e.g. one that posts them onto a UI event loop. By default callbacks run
// on the goroutine that produced them.
func WithExecutor(exec func(func())) Option {
	return optFunc(func(cfg *config) error {
		if exec == nil {
			return errors.New("devlink: executor must not be nil")
		}
		cfg.executor = exec

		return nil
	})
}

// WithSkipMalformedLines makes the worker log and skip lines that fail to decode instead
// of failing the connection. Disabled by default.
func WithSkipMalformedLines(enabled bool) Option {
	return optFunc(func(cfg *config) error {
		cfg.skipMalformed = enabled
		return nil
	})
}

// WithWarmup sets the delay between opening a serial port and the first I/O.
func WithWarmup(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 || d > MaxWarmup {
			return fmt.Errorf("devlink: warmup %v out of range [0, %v]", d, MaxWarmup)
		}
		cfg.warmup = d

		return nil
	})
}

// WithReadTimeout sets how long a started serial line may take to complete.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("devlink: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithPollInterval sets how long a serial read waits for the first byte of a line.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < MinPollInterval || d > MaxReadTimeout {
			return fmt.Errorf("devlink: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxReadTimeout)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithConnectTimeout sets how long a BLE connection attempt may take.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < MinConnectTimeout || d > MaxConnectTimeout {
			return fmt.Errorf("devlink: connect timeout %v out of range [%v, %v]", d, MinConnectTimeout, MaxConnectTimeout)
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithIdleInterval sets the pause of the worker after an iteration that neither sent nor
// received anything. The worker polls back to back by default.
func WithIdleInterval(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 || d > MaxIdleInterval {
			return fmt.Errorf("devlink: idle interval %v out of range [0, %v]", d, MaxIdleInterval)
		}
		cfg.idleInterval = d

		return nil
	})
}

// WithScanDuration sets the BLE scan window used by ListDevices.
func WithScanDuration(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < MinScanDuration || d > MaxScanDuration {
			return fmt.Errorf("devlink: scan duration %v out of range [%v, %v]", d, MinScanDuration, MaxScanDuration)
		}
		cfg.scanDuration = d

		return nil
	})
}

// WithFailureQueueSize sets the buffer size of the Failures channel.
func WithFailureQueueSize(size int) Option {
	return optFunc(func(cfg *config) error {
		if size < MinFailureQueue || size > MaxFailureQueue {
			return fmt.Errorf("devlink: failure queue size %d out of range [%d, %d]", size, MinFailureQueue, MaxFailureQueue)
		}
		cfg.failureQueueSize = size

		return nil
	})
}

// WithFailureHandler adds handlers invoked when the worker fails.
func WithFailureHandler(handlers ...FailureHandler) Option {
	return optFunc(func(cfg *config) error {
		for _, h := range handlers {
			if h == nil {
				return errors.New("devlink: failure handler must not be nil")
			}
		}
		cfg.failureHandlers = append(cfg.failureHandlers, handlers...)

		return nil
	})
}

// WithSendTerminator sets a suffix appended to every line written to the device, e.g. "\n".
// Lines are written as given by default.
func WithSendTerminator(term string) Option {
	return optFunc(func(cfg *config) error {
		cfg.sendTerminator = term
		return nil
	})
}

// WithTransportFactory replaces the serial and BLE transports, e.g. with a simulator.
func WithTransportFactory(f TransportFactory) Option {
	return optFunc(func(cfg *config) error {
		if f == nil {
			return errors.New("devlink: transport factory must not be nil")
		}
		cfg.transportFactory = f

		return nil
	})
}
