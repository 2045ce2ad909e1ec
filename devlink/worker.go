package devlink

import (
	"context"

	"github.com/arloliu/go-devlink/internal/pool"
	"github.com/arloliu/go-devlink/internal/task"
	"github.com/arloliu/go-devlink/transport"
	"github.com/arloliu/go-devlink/transport/ble"
	"github.com/arloliu/go-devlink/transport/serial"
	"github.com/arloliu/go-devlink/wire"
)

// allow tests to observe idle pauses
var idleSleep = pool.Sleep

// newTransport creates the link for the device kind.
func (m *Manager) newTransport() (transport.Transport, error) {
	if m.cfg.transportFactory != nil {
		return m.cfg.transportFactory(m.dev)
	}

	switch m.dev.kind {
	case SerialTransport:
		return serial.New(m.dev.address, m.dev.baudRate,
			serial.WithWarmup(m.cfg.warmup),
			serial.WithReadTimeout(m.cfg.readTimeout),
			serial.WithPollInterval(m.cfg.pollInterval),
			serial.WithLogger(m.logger),
		)
	case BLETransport:
		return ble.New(m.dev.address,
			ble.WithConnectTimeout(m.cfg.connectTimeout),
			ble.WithLogger(m.logger),
		)
	default:
		return nil, ErrUnknownTransport
	}
}

// runWorker is the body of the worker task. It returns nil when the worker was stopped
// and the error that ended it otherwise.
func (m *Manager) runWorker(ctx context.Context, gen uint64, prev *task.Task) error {
	// the previous worker may still hold the port
	if prev != nil {
		select {
		case <-prev.Done():
		case <-ctx.Done():
			return nil
		}
	}

	tr, err := m.newTransport()
	if err != nil {
		return err
	}

	m.logger.Debug("open transport", "transport", tr.String())
	if err := tr.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return err
	}

	defer func() {
		if err := tr.Close(); err != nil {
			m.logger.Warn("failed to close transport", "transport", tr.String(), "error", err)
		}
	}()

	for m.isActive(ctx, gen) {
		if err := m.workerIteration(ctx, tr); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}
	}

	return nil
}

// isActive reports whether the worker of generation gen should keep looping.
func (m *Manager) isActive(ctx context.Context, gen uint64) bool {
	return ctx.Err() == nil && m.gen.Load() == gen && m.stateMgr.State().IsConnected()
}

// workerIteration writes at most one queued line, then reads at most one inbound line and
// dispatches it.
func (m *Manager) workerIteration(ctx context.Context, tr transport.Transport) error {
	sent := false
	if text, ok := m.queue.Dequeue(); ok {
		m.metrics.setQueueLen(m.queue.Len())
		m.logger.Debug("data send", "line", text)

		if err := tr.Write(ctx, []byte(text+m.cfg.sendTerminator)); err != nil {
			return err
		}
		m.metrics.incLineSendCount()
		sent = true
	}

	raw, err := tr.ReadLine(ctx)
	if err != nil {
		return err
	}

	line := wire.StripLine(raw)
	if line == "" {
		if !sent && m.cfg.idleInterval > 0 {
			_ = idleSleep(ctx, m.cfg.idleInterval)
		}

		return nil
	}

	m.logger.Debug("data recv", "line", line)
	m.metrics.incLineRecvCount()

	msg, err := wire.Decode(line)
	if err != nil {
		m.metrics.incDecodeErrCount()
		if m.cfg.skipMalformed {
			m.logger.Warn("skip malformed line", "line", line, "error", err)
			return nil
		}

		return err
	}

	m.invoke(func() { m.dispatcher.Dispatch(msg) })

	return nil
}
