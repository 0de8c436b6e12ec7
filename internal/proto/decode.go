package proto

import (
	"bytes"
	"encoding/json"
)

// Frame is a decoded server frame as seen by a client. Exactly one of Event,
// Response or Text is set; Text holds payloads that are not valid frames and
// must be displayed literally.
type Frame struct {
	Event    *Event
	Response *Response
	Text     string
}

// Decode classifies a server frame. It never fails: anything that is not a
// well-formed event or response comes back as literal text.
func Decode(data []byte) Frame {
	trimmed := bytes.TrimSpace(data)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Frame{Text: string(data)}
	}

	if _, ok := probe["code"]; ok {
		var resp Response
		if err := json.Unmarshal(trimmed, &resp); err == nil {
			return Frame{Response: &resp}
		}
		// Some peers send numeric codes.
		var alt struct {
			Code      json.Number `json:"code"`
			Message   string      `json:"message"`
			Timestamp int64       `json:"timestamp"`
		}
		if err := json.Unmarshal(trimmed, &alt); err == nil {
			return Frame{Response: &Response{Code: alt.Code.String(), Message: alt.Message, Timestamp: alt.Timestamp}}
		}
		return Frame{Text: string(data)}
	}

	if _, ok := probe["type"]; ok {
		var ev Event
		if err := json.Unmarshal(trimmed, &ev); err == nil {
			return Frame{Event: &ev}
		}
	}
	return Frame{Text: string(data)}
}
