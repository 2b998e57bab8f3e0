package signalcore

import "context"

// handleServerFrame dispatches an inbound frame whose nonce source is the
// server, routing by how far the server handshake has progressed.
func (e *Engine) handleServerFrame(ctx context.Context, nonce Nonce, frame []byte) error {
	switch e.serverStep {
	case serverStepHello:
		return e.handleServerHello(ctx, nonce, frame)
	case serverStepAuth:
		return e.handleServerAuth(ctx, nonce, frame)
	default:
		return e.handleServerMessage(ctx, frame)
	}
}

// handleServerHello processes the unencrypted server-hello frame, learns
// the server's public key, picks a fresh cookie and replies with
// client-hello (responder only) and client-auth.
func (e *Engine) handleServerHello(ctx context.Context, nonce Nonce, frame []byte) error {
	if len(frame) < NonceSize {
		return ErrBadMessageLength
	}
	plaintext := frame[NonceSize:]
	msgType, err := PeekType(plaintext)
	if err != nil {
		return err
	}
	if msgType != TypeServerHello {
		return protoErr(ErrBadMessageType, "expected server-hello")
	}
	var msg ServerHelloMsg
	if err := DecodeMessage(plaintext, &msg); err != nil {
		return err
	}
	e.serverPublic = msg.Key

	ours, err := freshCookie(nonce.Cookie)
	if err != nil {
		return err
	}
	e.ours = ours
	e.theirs = nonce.Cookie
	e.serverStep = serverStepAuth

	if e.role == RoleResponder {
		if err := e.sendClientHello(ctx); err != nil {
			return err
		}
	}
	return e.sendClientAuth(ctx)
}

func (e *Engine) sendClientHello(ctx context.Context) error {
	msg := ClientHelloMsg{Type: TypeClientHello, Key: e.permanent.PublicKey()}
	n, err := buildNonce(e.ours, e.address, AddressServer, e.serverCSN)
	if err != nil {
		return err
	}
	pt, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	nb := n.Bytes()
	frame := append(nb[:], pt...)
	return e.transport.Send(ctx, frame)
}

func (e *Engine) sendClientAuth(ctx context.Context) error {
	msg := ClientAuthMsg{Type: TypeClientAuth, YourCookie: e.theirs}
	return e.sendToServer(ctx, msg)
}

// handleServerAuth processes the encrypted server-auth reply: it confirms
// the cookie we sent, learns (or for the initiator, confirms) our address
// and transitions into the peer handshake.
func (e *Engine) handleServerAuth(ctx context.Context, nonce Nonce, frame []byte) error {
	box, err := ParseBox(frame)
	if err != nil {
		return err
	}
	plaintext, err := e.permanent.Decrypt(box, e.serverPublic)
	if err != nil {
		return err
	}
	switch e.role {
	case RoleInitiator:
		if nonce.Destination != AddressInitiator || nonce.Source != AddressServer {
			return protoErr(ErrBadNonceDestination, "server-auth misrouted")
		}
	case RoleResponder:
		if nonce.Source != AddressServer {
			return protoErr(ErrBadNonceSource, "server-auth not from server")
		}
		if nonce.Destination < AddressResponderMin {
			return protoErr(ErrBadNonceDestination, "server did not assign a responder slot")
		}
		e.address = nonce.Destination
		e.haveAddress = true
	}

	msgType, err := PeekType(plaintext)
	if err != nil {
		return err
	}
	if msgType != TypeServerAuth {
		return protoErr(ErrBadMessageType, "expected server-auth")
	}
	var msg ServerAuthMsg
	if err := DecodeMessage(plaintext, &msg); err != nil {
		return err
	}
	if !Cookie(msg.YourCookie).Equal(e.ours) {
		return ErrBadCookie
	}

	switch e.role {
	case RoleInitiator:
		for _, id := range msg.Responders {
			p, err := newPeer(Address(id))
			if err != nil {
				return err
			}
			e.peers[Address(id)] = p
		}
	case RoleResponder:
		e.initiatorConnected = msg.InitiatorConnected
	}

	e.serverStep = serverStepDone
	e.state = StatePeerHandshake
	if e.role == RoleResponder {
		e.subState = subNew
		if e.initiatorConnected {
			if err := e.sendToken(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleServerMessage processes server-originated messages received while
// in the peer handshake: new-responder and new-initiator. Anything else is
// ignored.
func (e *Engine) handleServerMessage(ctx context.Context, frame []byte) error {
	box, err := ParseBox(frame)
	if err != nil {
		return err
	}
	plaintext, err := e.permanent.Decrypt(box, e.serverPublic)
	if err != nil {
		return err
	}
	msgType, err := PeekType(plaintext)
	if err != nil {
		return err
	}
	switch {
	case e.role == RoleInitiator && msgType == TypeNewResponder:
		var msg NewResponderMsg
		if err := DecodeMessage(plaintext, &msg); err != nil {
			return err
		}
		id := Address(msg.ID)
		if _, exists := e.peers[id]; !exists {
			p, err := newPeer(id)
			if err != nil {
				return err
			}
			e.peers[id] = p
		}
		return nil
	case e.role == RoleResponder && msgType == TypeNewInitiator:
		e.initiatorConnected = true
		if e.subState == subNew {
			return e.sendToken(ctx)
		}
		return nil
	default:
		return nil
	}
}

func (e *Engine) sendToServer(ctx context.Context, msg interface{}) error {
	return e.sendEncrypted(ctx, AddressServer, msg, func(pt []byte, nb [NonceSize]byte) Box {
		return e.permanent.Encrypt(pt, nb, e.serverPublic)
	})
}

// csnFor selects which combined sequence counts outbound messages to dest,
// per the receiver mapping of §4.5: the server has one counter, each
// responder has its own on the initiator side, and the initiator has one
// on the responder side. Any other destination is a programmer error.
func (e *Engine) csnFor(dest Address) (*CombinedSequence, error) {
	switch {
	case dest == AddressServer:
		return e.serverCSN, nil
	case e.role == RoleResponder && dest == AddressInitiator:
		return e.initiatorCSN, nil
	case e.role == RoleInitiator && dest.IsResponder():
		if peer, ok := e.peers[dest]; ok {
			return peer.csn, nil
		}
		if e.chosen != nil && e.chosen.ID == dest {
			return e.chosen.csn, nil
		}
		return nil, ErrBadReceiver
	default:
		return nil, ErrBadReceiver
	}
}

func (e *Engine) sendEncrypted(ctx context.Context, dest Address, msg interface{}, seal func([]byte, [NonceSize]byte) Box) error {
	csn, err := e.csnFor(dest)
	if err != nil {
		return err
	}
	n, err := buildNonce(e.ours, e.address, dest, csn)
	if err != nil {
		return err
	}
	pt, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	box := seal(pt, n.Bytes())
	return e.transport.Send(ctx, box.Bytes())
}
