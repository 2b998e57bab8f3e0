package signalcore

import (
	"context"
	"errors"
)

// serverStep tracks progress through the server handshake, independent of
// the coarse State exposed to the host.
type serverStep int

const (
	serverStepHello serverStep = iota
	serverStepAuth
	serverStepDone
)

// Engine drives one side of the signaling handshake over a Transport. It is
// single-owner: exactly one goroutine should call Run, and no method is
// safe to call concurrently with it.
type Engine struct {
	role      Role
	transport Transport
	notifier  Notifier
	permanent *KeyStore

	state      State
	serverStep serverStep

	serverPublic [KeySize]byte
	address      Address
	haveAddress  bool
	ours, theirs Cookie
	serverCSN    *CombinedSequence

	// initiator-only.
	authToken *AuthToken
	peers     map[Address]*Peer
	chosen    *Peer

	// responder-only.
	initiatorPermanentPub [KeySize]byte
	initiatorSessionPub   [KeySize]byte
	initiatorCSN          *CombinedSequence
	session               *KeyStore
	subState              responderSubState
	initiatorConnected    bool
}

// NewInitiator constructs an Engine that drives the initiator's side of the
// handshake. authToken must be the same secret conveyed to the responder
// out-of-band.
func NewInitiator(transport Transport, permanent *KeyStore, authToken *AuthToken, notifier Notifier) (*Engine, error) {
	serverCSN, err := NewCombinedSequence()
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		role:      RoleInitiator,
		transport: transport,
		notifier:  notifier,
		permanent: permanent,
		address:   AddressInitiator,
		haveAddress: true,
		serverCSN: serverCSN,
		authToken: authToken,
		peers:     make(map[Address]*Peer),
	}, nil
}

// NewResponder constructs an Engine that drives the responder's side of the
// handshake. initiatorPermanentPub is learned out-of-band, typically from
// the path component of the relay URL the responder connects to.
func NewResponder(transport Transport, permanent *KeyStore, authToken *AuthToken, initiatorPermanentPub [KeySize]byte, notifier Notifier) (*Engine, error) {
	serverCSN, err := NewCombinedSequence()
	if err != nil {
		return nil, err
	}
	initiatorCSN, err := NewCombinedSequence()
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		role:                  RoleResponder,
		transport:             transport,
		notifier:              notifier,
		permanent:             permanent,
		serverCSN:             serverCSN,
		authToken:             authToken,
		initiatorPermanentPub: initiatorPermanentPub,
		initiatorCSN:          initiatorCSN,
	}, nil
}

// State returns the current coarse signaling state.
func (e *Engine) State() State { return e.state }

// Address returns the address assigned to this endpoint, valid once the
// server handshake has progressed past server-auth.
func (e *Engine) Address() Address { return e.address }

// Run drives the handshake to completion: it blocks receiving and
// processing frames until the connection reaches StateOpen or an error
// occurs. On success it calls Notifier.OnConnected and returns nil,
// leaving the transport in the caller's hands for application data. An
// error while handling a frame is fatal: Run wraps it in a *ProtocolError
// (unless it already is one), reports it through
// Notifier.OnConnectionError, tears the transport down, resets the engine
// to StateNew and returns it. An error from Transport.Receive is reported
// through Notifier.OnConnectionError and returned as is, without closing
// the transport or changing the state.
func (e *Engine) Run(ctx context.Context) error {
	e.state = StateServerHandshake
	for {
		frame, err := e.transport.Receive(ctx)
		if err != nil {
			e.notifier.OnConnectionError(err)
			return err
		}
		if err := e.handleFrame(ctx, frame); err != nil {
			var pe *ProtocolError
			if !errors.As(err, &pe) {
				err = protoErr(err, "")
			}
			e.abort(err)
			return err
		}
		if e.state == StateOpen {
			e.notifier.OnConnected()
			return nil
		}
	}
}

func (e *Engine) handleFrame(ctx context.Context, frame []byte) error {
	nonce, err := ParseNonce(frame)
	if err != nil {
		return err
	}
	if e.haveAddress && nonce.Destination != e.address {
		return protoErr(ErrBadNonceDestination, "frame not addressed to us")
	}
	switch {
	case nonce.Source == AddressServer:
		return e.handleServerFrame(ctx, nonce, frame)
	case e.role == RoleResponder && nonce.Source == AddressInitiator:
		return e.handleInitiatorFrame(ctx, nonce, frame)
	case e.role == RoleInitiator && nonce.Source.IsResponder():
		return e.handleResponderFrame(ctx, nonce, frame)
	default:
		return protoErr(ErrBadNonceSource, "unexpected sender for role")
	}
}

// abort tears the connection down after a fatal error: notify, close,
// reset to New.
func (e *Engine) abort(err error) {
	e.notifier.OnConnectionError(err)
	_ = e.transport.Close(CloseProtocolError)
	e.reset()
}

// Close is an idempotent shutdown: it transitions to Closed, closes the
// transport, drops key material references and clears peer maps.
func (e *Engine) Close(code CloseCode) error {
	if e.state == StateClosed {
		return nil
	}
	e.state = StateClosing
	err := e.transport.Close(code)
	e.notifier.OnConnectionClosed(code)
	e.reset()
	e.state = StateClosed
	return err
}

func (e *Engine) reset() {
	e.state = StateNew
	e.serverStep = serverStepHello
	e.peers = make(map[Address]*Peer)
	e.chosen = nil
	e.session = nil
	e.subState = subNew
	e.initiatorConnected = false
}
