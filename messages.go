package signalcore

import "github.com/vmihailenco/msgpack/v5"

// Message type discriminators, carried in the "type" field of every
// structured message on the signaling channel. Exported so that external
// implementations of the relay's server side (see services/relay) can
// speak the same wire format without importing engine internals.
const (
	TypeServerHello   = "server-hello"
	TypeClientHello   = "client-hello"
	TypeClientAuth    = "client-auth"
	TypeServerAuth    = "server-auth"
	TypeNewResponder  = "new-responder"
	TypeNewInitiator  = "new-initiator"
	TypeDropResponder = "drop-responder"
	TypeToken         = "token"
	TypeKey           = "key"
	TypeAuth          = "auth"
)

type ServerHelloMsg struct {
	Type string   `msgpack:"type"`
	Key  [32]byte `msgpack:"key"`
}

type ClientHelloMsg struct {
	Type string   `msgpack:"type"`
	Key  [32]byte `msgpack:"key"`
}

type ClientAuthMsg struct {
	Type       string   `msgpack:"type"`
	YourCookie [16]byte `msgpack:"your_cookie"`
}

type ServerAuthMsg struct {
	Type               string   `msgpack:"type"`
	YourCookie         [16]byte `msgpack:"your_cookie"`
	Responders         []uint8  `msgpack:"responders,omitempty"`
	InitiatorConnected bool     `msgpack:"initiator_connected,omitempty"`
}

type NewResponderMsg struct {
	Type string `msgpack:"type"`
	ID   uint8  `msgpack:"id"`
}

type NewInitiatorMsg struct {
	Type string `msgpack:"type"`
}

type DropResponderMsg struct {
	Type string `msgpack:"type"`
	ID   uint8  `msgpack:"id"`
}

type TokenMsg struct {
	Type string   `msgpack:"type"`
	Key  [32]byte `msgpack:"key"`
}

type KeyMsg struct {
	Type string   `msgpack:"type"`
	Key  [32]byte `msgpack:"key"`
}

type AuthMsg struct {
	Type       string   `msgpack:"type"`
	YourCookie [16]byte `msgpack:"your_cookie"`
}

// typeTag is used to peek the discriminator of an inbound message before
// picking the concrete type to decode into.
type typeTag struct {
	Type string `msgpack:"type"`
}

// PeekType decodes only the "type" discriminator of plaintext, without
// committing to a concrete message shape.
func PeekType(plaintext []byte) (string, error) {
	var tag typeTag
	if err := msgpack.Unmarshal(plaintext, &tag); err != nil {
		return "", ErrBadMessage
	}
	if tag.Type == "" {
		return "", ErrBadMessage
	}
	return tag.Type, nil
}

// EncodeMessage serializes v to its MessagePack wire form.
func EncodeMessage(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, ErrBadMessage
	}
	return b, nil
}

// DecodeMessage deserializes plaintext into v, a pointer to one of the
// concrete message types above.
func DecodeMessage(plaintext []byte, v interface{}) error {
	if err := msgpack.Unmarshal(plaintext, v); err != nil {
		return ErrBadMessage
	}
	return nil
}
