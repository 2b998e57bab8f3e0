package signalcore

import "context"

// Transport is the abstract bidirectional binary frame channel the engine
// drives. Implementations must preserve frame boundaries: one Send call
// corresponds to exactly one Receive on the peer's side. Establishing and
// retrying the underlying connection is the caller's responsibility.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close(code CloseCode) error
}

// CloseCode mirrors the 16-bit close codes the relay and the engine use to
// explain why a connection ended. None of them are retried internally.
type CloseCode uint16

const (
	CloseGoingAway        CloseCode = 1001
	CloseSubprotocolError CloseCode = 1002
	ClosePathFull         CloseCode = 3000
	CloseProtocolError    CloseCode = 3001
	CloseInternalError    CloseCode = 3002
	CloseHandover         CloseCode = 3003
	CloseDropped          CloseCode = 3004
)

// Subprotocol is the sub-protocol identifier negotiated out-of-band on the
// transport.
const Subprotocol = "saltyrtc-1.0"

// Notifier receives coarse lifecycle notifications from the engine. The
// engine never retries on error; the host decides whether to re-drive a
// fresh connection.
type Notifier interface {
	OnConnected()
	OnConnectionClosed(code CloseCode)
	OnConnectionError(err error)
}

// NopNotifier is a Notifier that does nothing, useful in tests and for
// callers that only care about the return value of Engine.Run.
type NopNotifier struct{}

func (NopNotifier) OnConnected()                   {}
func (NopNotifier) OnConnectionClosed(CloseCode)   {}
func (NopNotifier) OnConnectionError(error)        {}
