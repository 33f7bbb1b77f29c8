package orch

import (
	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
)

// RoomPresence is the live view of one room: who is connected and who is
// currently speaking.
type RoomPresence struct {
	RoomID    domain.RoomID    `json:"roomId"`
	Connected []core.MemberDTO `json:"connected"`
	Speaking  []domain.UserID  `json:"speaking"`
}

func (o *Orchestrator) RoomPresence(room domain.RoomID) RoomPresence {
	return RoomPresence{
		RoomID:    room,
		Connected: o.Registry.MembersOfRoom(room),
		Speaking:  o.Speaking.Speaking(room),
	}
}

func (o *Orchestrator) ActiveRooms() []core.GroupInfo {
	return o.Registry.ActiveGroups()
}
