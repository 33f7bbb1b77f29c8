package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/talkroom/internal/domain"
)

type EventName string

// Client to server.
const (
	EventJoinRoom      EventName = "join-room"
	EventLeaveRoom     EventName = "leave-room"
	EventAudioChunk    EventName = "audio-chunk"
	EventStartSpeaking EventName = "start-speaking"
	EventStopSpeaking  EventName = "stop-speaking"
	EventPing          EventName = "ping"
	EventWhoAmI        EventName = "whoami"
)

// Server to client.
const (
	EventUserJoinedRoom      EventName = "user-joined-room"
	EventUserLeftRoom        EventName = "user-left-room"
	EventAudioData           EventName = "audio-data"
	EventUserStartedSpeaking EventName = "user-started-speaking"
	EventUserStoppedSpeaking EventName = "user-stopped-speaking"
	EventUserOffline         EventName = "user-offline"
	EventAck                 EventName = "ack"
)

// Inbound is one decoded client event.
type Inbound interface {
	Event() EventName
}

type JoinRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

type LeaveRoom struct {
	RoomID domain.RoomID `json:"roomId"`
}

// AudioChunk carries an opaque payload; the relay never looks inside it.
type AudioChunk struct {
	RoomID    domain.RoomID   `json:"roomId"`
	AudioData json.RawMessage `json:"audioData"`
}

type StartSpeaking struct {
	RoomID domain.RoomID `json:"roomId"`
}

type StopSpeaking struct {
	RoomID domain.RoomID `json:"roomId"`
}

type Ping struct{}

type WhoAmI struct{}

func (JoinRoom) Event() EventName      { return EventJoinRoom }
func (LeaveRoom) Event() EventName     { return EventLeaveRoom }
func (AudioChunk) Event() EventName    { return EventAudioChunk }
func (StartSpeaking) Event() EventName { return EventStartSpeaking }
func (StopSpeaking) Event() EventName  { return EventStopSpeaking }
func (Ping) Event() EventName          { return EventPing }
func (WhoAmI) Event() EventName        { return EventWhoAmI }

// inboundKinds is the dispatch table of accepted client events.
// "audio-data" is accepted as an alias of "audio-chunk" for older clients.
var inboundKinds = map[EventName]func() Inbound{
	EventJoinRoom:      func() Inbound { return &JoinRoom{} },
	EventLeaveRoom:     func() Inbound { return &LeaveRoom{} },
	EventAudioChunk:    func() Inbound { return &AudioChunk{} },
	EventAudioData:     func() Inbound { return &AudioChunk{} },
	EventStartSpeaking: func() Inbound { return &StartSpeaking{} },
	EventStopSpeaking:  func() Inbound { return &StopSpeaking{} },
	EventPing:          func() Inbound { return &Ping{} },
	EventWhoAmI:        func() Inbound { return &WhoAmI{} },
}

// DecodeInbound parses data into the typed message registered for name.
func DecodeInbound(name EventName, data json.RawMessage) (Inbound, error) {
	mk, ok := inboundKinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, name)
	}
	msg := mk()
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, msg); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
	}
	if r, ok := msg.(interface{ room() domain.RoomID }); ok && r.room() == "" {
		return nil, fmt.Errorf("%w: roomId required", domain.ErrBadPayload)
	}
	return deref(msg), nil
}

func (m *JoinRoom) room() domain.RoomID      { return m.RoomID }
func (m *LeaveRoom) room() domain.RoomID     { return m.RoomID }
func (m *AudioChunk) room() domain.RoomID    { return m.RoomID }
func (m *StartSpeaking) room() domain.RoomID { return m.RoomID }
func (m *StopSpeaking) room() domain.RoomID  { return m.RoomID }

func deref(msg Inbound) Inbound {
	switch m := msg.(type) {
	case *JoinRoom:
		return *m
	case *LeaveRoom:
		return *m
	case *AudioChunk:
		return *m
	case *StartSpeaking:
		return *m
	case *StopSpeaking:
		return *m
	case *Ping:
		return *m
	case *WhoAmI:
		return *m
	}
	return msg
}

// RoomUserEvent is the payload of user-joined-room, user-left-room and the
// speaking notifications.
type RoomUserEvent struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	RoomID   domain.RoomID `json:"roomId"`
}

type AudioData struct {
	RoomID    domain.RoomID   `json:"roomId"`
	UserID    domain.UserID   `json:"userId"`
	Username  string          `json:"username"`
	AudioData json.RawMessage `json:"audioData"`
	Timestamp string          `json:"timestamp"`
}

type UserOffline struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

// Ack is the direct response to one client event.
type Ack struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func OK() Ack { return Ack{Success: true} }

func OKWith(v any) Ack { return Ack{Success: true, Data: v} }

func Fail(err error) Ack { return Ack{Error: domain.PublicMessage(err)} }

type envelope struct {
	Event EventName `json:"event"`
	ID    *uint64   `json:"id,omitempty"`
	Data  any       `json:"data"`
}

// EncodeEvent builds the wire frame for a server event.
func EncodeEvent(name EventName, payload any) (Frame, error) {
	return json.Marshal(envelope{Event: name, Data: payload})
}

// EncodeAck builds the wire frame answering the client event with the given id.
func EncodeAck(id *uint64, ack Ack) (Frame, error) {
	return json.Marshal(envelope{Event: EventAck, ID: id, Data: ack})
}

// RawEnvelope is an inbound frame before its data is decoded.
type RawEnvelope struct {
	Event EventName       `json:"event"`
	ID    *uint64         `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}
