package wavechan

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Event is an inbound application frame. Type is the value of the frame's
// `type` field, Raw the frame as received.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the whole frame into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Raw, v)
}

func (e Event) String() string {
	return "Event{type=" + e.Type + ",raw=" + string(e.Raw) + "}"
}

type envelope struct {
	Type *string `json:"type"`
}

// ParseEvent decodes a text frame into an Event. Frames that are not JSON
// objects, or that lack a string `type`, are rejected.
func ParseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, errors.Wrap(ErrMalformedFrame, err.Error())
	}
	if env.Type == nil || *env.Type == "" {
		return Event{}, errors.Wrap(ErrMalformedFrame, "missing type")
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	return Event{Type: *env.Type, Raw: raw}, nil
}

// EncodeFrame marshals v and checks the result carries a non-empty `type`.
// It returns the encoded frame together with that type.
func EncodeFrame(v any) ([]byte, string, error) {
	if raw, ok := v.(json.RawMessage); ok {
		ev, err := ParseEvent(raw)
		if err != nil {
			return nil, "", err
		}
		return raw, ev.Type, nil
	}

	bts, err := json.Marshal(v)
	if err != nil {
		return nil, "", errors.Wrap(ErrMalformedFrame, err.Error())
	}

	ev, err := ParseEvent(bts)
	if err != nil {
		return nil, "", err
	}

	return bts, ev.Type, nil
}
