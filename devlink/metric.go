package devlink

import "sync/atomic"

// LinkMetrics contains atomic metrics of a device link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type LinkMetrics struct {
	// StartCount indicates the number of successful Start calls.
	StartCount atomic.Uint64
	// LineSendCount indicates the number of lines written to the device.
	LineSendCount atomic.Uint64
	// LineRecvCount indicates the number of non-empty lines received from the device.
	LineRecvCount atomic.Uint64
	// DecodeErrCount indicates the number of received lines that failed to decode.
	DecodeErrCount atomic.Uint64
	// SendDropCount indicates the number of Send calls dropped while disconnected.
	SendDropCount atomic.Uint64
	// FailureCount indicates the number of worker failures.
	FailureCount atomic.Uint64
	// QueueLenGauge indicates the number of lines waiting in the outbound queue.
	QueueLenGauge atomic.Int64
}

func (m *LinkMetrics) incStartCount() {
	m.StartCount.Add(1)
}

func (m *LinkMetrics) incLineSendCount() {
	m.LineSendCount.Add(1)
}

func (m *LinkMetrics) incLineRecvCount() {
	m.LineRecvCount.Add(1)
}

func (m *LinkMetrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}

func (m *LinkMetrics) incSendDropCount() {
	m.SendDropCount.Add(1)
}

func (m *LinkMetrics) incFailureCount() {
	m.FailureCount.Add(1)
}

func (m *LinkMetrics) setQueueLen(n int) {
	m.QueueLenGauge.Store(int64(n))
}
