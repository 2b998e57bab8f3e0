package signalcore

import "context"

// sendToken sends the responder's token message, authenticated with the
// shared out-of-band secret, and advances the sub-state.
func (e *Engine) sendToken(ctx context.Context) error {
	msg := TokenMsg{Type: TypeToken, Key: e.permanent.PublicKey()}
	if err := e.sendEncrypted(ctx, AddressInitiator, msg, func(pt []byte, nb [NonceSize]byte) Box {
		return e.authToken.Encrypt(pt, nb)
	}); err != nil {
		return err
	}
	e.subState = subTokenSent
	return nil
}

// handleInitiatorFrame processes an inbound frame from the initiator on the
// responder side, dispatching by sub-state.
func (e *Engine) handleInitiatorFrame(ctx context.Context, nonce Nonce, frame []byte) error {
	switch e.subState {
	case subTokenSent:
		box, err := ParseBox(frame)
		if err != nil {
			return err
		}
		plaintext, err := e.permanent.Decrypt(box, e.initiatorPermanentPub)
		if err != nil {
			return err
		}
		msgType, err := PeekType(plaintext)
		if err != nil {
			return err
		}
		if msgType != TypeKey {
			return protoErr(ErrBadMessageType, "expected key")
		}
		var msg KeyMsg
		if err := DecodeMessage(plaintext, &msg); err != nil {
			return err
		}
		e.initiatorSessionPub = msg.Key
		session, err := GenerateKeyStore()
		if err != nil {
			return err
		}
		e.session = session
		reply := KeyMsg{Type: TypeKey, Key: e.session.PublicKey()}
		if err := e.sendEncrypted(ctx, AddressInitiator, reply, func(pt []byte, nb [NonceSize]byte) Box {
			return e.permanent.Encrypt(pt, nb, e.initiatorPermanentPub)
		}); err != nil {
			return err
		}
		e.subState = subKeySent
		return nil

	case subKeySent:
		box, err := ParseBox(frame)
		if err != nil {
			return err
		}
		plaintext, err := e.session.Decrypt(box, e.initiatorSessionPub)
		if err != nil {
			return err
		}
		msgType, err := PeekType(plaintext)
		if err != nil {
			return err
		}
		if msgType != TypeAuth {
			return protoErr(ErrBadMessageType, "expected auth")
		}
		var msg AuthMsg
		if err := DecodeMessage(plaintext, &msg); err != nil {
			return err
		}
		if !Cookie(msg.YourCookie).Equal(e.ours) {
			return ErrBadCookie
		}
		if Cookie(nonce.Cookie).Equal(e.ours) {
			return protoErr(ErrBadCookie, "peer echoed our own cookie back as theirs")
		}
		reply := AuthMsg{Type: TypeAuth, YourCookie: nonce.Cookie}
		if err := e.sendEncrypted(ctx, AddressInitiator, reply, func(pt []byte, nb [NonceSize]byte) Box {
			return e.session.Encrypt(pt, nb, e.initiatorSessionPub)
		}); err != nil {
			return err
		}
		e.subState = subAuthReceived
		e.state = StateOpen
		return nil

	default:
		return protoErr(ErrBadMessageType, "unexpected message from initiator")
	}
}

// handleResponderFrame processes an inbound frame from responder s on the
// initiator side, dispatching by that peer's handshake state.
func (e *Engine) handleResponderFrame(ctx context.Context, nonce Nonce, frame []byte) error {
	s := nonce.Source
	peer, ok := e.peers[s]
	if !ok {
		// Unknown responder: skipped, not fatal.
		return nil
	}

	switch peer.state {
	case peerNew:
		box, err := ParseBox(frame)
		if err != nil {
			return err
		}
		plaintext, err := e.authToken.Decrypt(box)
		if err != nil {
			return err
		}
		msgType, err := PeekType(plaintext)
		if err != nil {
			return err
		}
		if msgType != TypeToken {
			return protoErr(ErrBadMessageType, "expected token")
		}
		var msg TokenMsg
		if err := DecodeMessage(plaintext, &msg); err != nil {
			return err
		}
		key := msg.Key
		peer.PermanentPub = &key
		peer.state = peerTokenReceived

		session, err := peer.session()
		if err != nil {
			return err
		}
		reply := KeyMsg{Type: TypeKey, Key: session.PublicKey()}
		return e.sendEncrypted(ctx, s, reply, func(pt []byte, nb [NonceSize]byte) Box {
			return e.permanent.Encrypt(pt, nb, *peer.PermanentPub)
		})

	case peerTokenReceived:
		box, err := ParseBox(frame)
		if err != nil {
			return err
		}
		plaintext, err := e.permanent.Decrypt(box, *peer.PermanentPub)
		if err != nil {
			return err
		}
		msgType, err := PeekType(plaintext)
		if err != nil {
			return err
		}
		if msgType != TypeKey {
			return protoErr(ErrBadMessageType, "expected key")
		}
		var msg KeyMsg
		if err := DecodeMessage(plaintext, &msg); err != nil {
			return err
		}
		key := msg.Key
		peer.SessionPub = &key
		peer.state = peerKeyReceived

		if Cookie(nonce.Cookie).Equal(e.ours) {
			return protoErr(ErrBadCookie, "peer echoed our own cookie back as theirs")
		}
		session, err := peer.session()
		if err != nil {
			return err
		}
		reply := AuthMsg{Type: TypeAuth, YourCookie: nonce.Cookie}
		return e.sendEncrypted(ctx, s, reply, func(pt []byte, nb [NonceSize]byte) Box {
			return session.Encrypt(pt, nb, *peer.SessionPub)
		})

	case peerKeyReceived:
		box, err := ParseBox(frame)
		if err != nil {
			return err
		}
		session, err := peer.session()
		if err != nil {
			return err
		}
		plaintext, err := session.Decrypt(box, *peer.SessionPub)
		if err != nil {
			return err
		}
		msgType, err := PeekType(plaintext)
		if err != nil {
			return err
		}
		if msgType != TypeAuth {
			return protoErr(ErrBadMessageType, "expected auth")
		}
		var msg AuthMsg
		if err := DecodeMessage(plaintext, &msg); err != nil {
			return err
		}
		if !Cookie(msg.YourCookie).Equal(e.ours) {
			return ErrBadCookie
		}
		return e.electResponder(ctx, s, peer)

	default:
		return protoErr(ErrBadMessageType, "unexpected peer state")
	}
}

// electResponder selects s as the chosen responder, drops every other
// pending candidate and moves the engine to StateOpen.
func (e *Engine) electResponder(ctx context.Context, s Address, peer *Peer) error {
	e.chosen = peer
	delete(e.peers, s)
	for id := range e.peers {
		msg := DropResponderMsg{Type: TypeDropResponder, ID: uint8(id)}
		if err := e.sendToServer(ctx, msg); err != nil {
			return err
		}
		delete(e.peers, id)
	}
	e.state = StateOpen
	return nil
}
