package devlink

import "errors"

var (
	// ErrAlreadyConnected is returned by Start when the manager is already connected.
	ErrAlreadyConnected = errors.New("devlink: already connected")
	// ErrWorkerPanic is wrapped by the failure reported for a worker or consumer that panicked.
	ErrWorkerPanic = errors.New("devlink: worker panicked")
	// ErrHandlerPanic is returned by Start when a connection state handler panicked.
	ErrHandlerPanic = errors.New("devlink: connection state handler panicked")
	// ErrUnknownTransport indicates a transport kind other than serial or BLE.
	ErrUnknownTransport = errors.New("devlink: unknown transport kind")
	// ErrInvalidDevice indicates a nil or incomplete device descriptor.
	ErrInvalidDevice = errors.New("devlink: invalid device")
)
