package chat

import (
	"encoding/json"
	"fmt"
)

// Message is a chat message in transit through the hub. It only ever
// exists in memory; nothing is persisted. Its JSON form is the outbound
// frame written to clients.
type Message struct {
	Author string `json:"author"`
	Body   string `json:"message"`
}

// Signal is one decoded inbound client frame. It is a closed union of
// Authorize and Post; the session's transition logic switches exhaustively
// over the two.
type Signal interface {
	isSignal()
}

// Authorize carries the token string a client presents to authenticate.
type Authorize struct {
	Token string
}

// Post carries the text of a message the client wants broadcast.
type Post struct {
	Text string
}

func (Authorize) isSignal() {}
func (Post) isSignal()      {}

const (
	frameTypeAuthorization = "authorization"
	frameTypeMessage       = "message"
)

// inboundFrame is the wire shape of a client frame.
type inboundFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
	Text  string `json:"text"`
}

// DecodeSignal parses an inbound frame into a Signal. Frames that are not
// valid JSON or do not carry a known type are reported as an error; the
// session drops those silently and keeps reading.
func DecodeSignal(raw []byte) (Signal, error) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch f.Type {
	case frameTypeAuthorization:
		return Authorize{Token: f.Token}, nil
	case frameTypeMessage:
		return Post{Text: f.Text}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}
