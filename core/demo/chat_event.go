package demo

import (
	"github.com/pkg/errors"

	"github.com/ventosilenzioso/netrelay/source/events"
	"github.com/ventosilenzioso/netrelay/source/protocol"
)

// ChatEventID is this demo's sole event variant, standing in for the
// broadcast chat line a gamemode sends on player join/say.
const ChatEventID events.NaiaID = 1

// ChatEvent is a plain text line, reliably delivered in both directions.
type ChatEvent struct {
	Text string
}

func (e ChatEvent) NaiaID() events.NaiaID { return ChatEventID }

func (e ChatEvent) Encode(w *protocol.ByteWriter) { w.WriteString(e.Text) }

func decodeChatEvent(r *protocol.ByteReader) (events.Event, error) {
	text, err := r.ReadString()
	if err != nil {
		return nil, errors.Wrap(err, "chat event: decode text")
	}
	return ChatEvent{Text: text}, nil
}

// NewEventManifest registers every event variant this demo knows about.
func NewEventManifest() *events.Manifest {
	m := events.NewManifest()
	m.Register(ChatEventID, decodeChatEvent)
	return m
}
