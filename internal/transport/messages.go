package transport

import "github.com/waveslice/retrig/internal/event"

// Inbound command types.
const (
	CmdLoadSequence = "load_sequence"
	CmdPlay         = "play"
	CmdPause        = "pause"
	CmdStop         = "stop"
	CmdSeek         = "seek"
	CmdSetBPM       = "set_bpm"
	CmdPing         = "ping"
)

// Command is one inbound control message from the playback client.
type Command struct {
	Type   string               `json:"type"`
	Events []event.TriggerEvent `json:"events,omitempty"` // load_sequence
	BPM    float64              `json:"bpm,omitempty"`    // load_sequence, set_bpm
	Beat   float64              `json:"beat,omitempty"`   // seek
}

// Outbound message types.
const (
	MsgState   = "state"
	MsgLoaded  = "loaded"
	MsgTrigger = "trigger"
	MsgBeat    = "beat"
	MsgPong    = "pong"
	MsgError   = "error"
)

// Message is one outbound message to the playback client.
//
// Emission order is part of the protocol: all trigger messages for a
// tick precede the beat message that covers them, and the channel
// never reorders or drops.
type Message struct {
	Type      string              `json:"type"`
	Event     *event.TriggerEvent `json:"event,omitempty"` // trigger
	Beat      float64             `json:"beat"`
	IsPlaying bool                `json:"is_playing,omitempty"` // state
	NumEvents int                 `json:"num_events,omitempty"` // loaded
	Error     string              `json:"error,omitempty"`      // error
}
