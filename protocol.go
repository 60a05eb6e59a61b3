package wavechan

import "encoding/json"

// Protocol names the frame types the channel handles itself. Inbound frames of
// type AuthOK, AuthFailed or HeartbeatReply are never delivered to subscribers.
type Protocol struct {
	// Auth is the type of the outbound authentication frame.
	Auth string
	// AuthTokenField is the field of the authentication frame holding the token.
	AuthTokenField string
	// AuthOK acknowledges a successful authentication.
	AuthOK string
	// AuthFailed rejects the credential.
	AuthFailed string
	// Heartbeat is the type of the outbound keep-alive frame.
	Heartbeat string
	// HeartbeatReply is the server's answer to a heartbeat.
	HeartbeatReply string
}

func DefaultProtocol() Protocol {
	return Protocol{
		Auth:           "auth",
		AuthTokenField: "token",
		AuthOK:         "auth_success",
		AuthFailed:     "auth_error",
		Heartbeat:      "ping",
		HeartbeatReply: "pong",
	}
}

// IsReserved reports whether inbound frames of type t are consumed internally.
func (p Protocol) IsReserved(t string) bool {
	switch t {
	case p.AuthOK, p.AuthFailed, p.HeartbeatReply:
		return true
	}
	return false
}

func (p Protocol) authFrame(token string) Message {
	bts, _ := json.Marshal(map[string]string{
		"type":           p.Auth,
		p.AuthTokenField: token,
	})
	return NewDataMessage(bts)
}

func (p Protocol) heartbeatFrame() Message {
	bts, _ := json.Marshal(map[string]string{"type": p.Heartbeat})
	return NewDataMessage(bts)
}
