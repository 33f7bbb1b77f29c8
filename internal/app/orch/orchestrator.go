package orch

import (
	"context"
	"time"

	"github.com/dkeye/talkroom/internal/app"
	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Limiter bounds how often one user may relay audio.
type Limiter interface {
	Allow(uid domain.UserID) bool
}

// Orchestrator is the presence and relay engine. Calls for one session must
// be made sequentially; calls for different sessions may run concurrently.
type Orchestrator struct {
	Registry *app.Registry
	Store    core.MembershipStore
	Presence core.PresenceStore
	Speaking *app.SpeakingTracker
	Policy   app.Policy
	Limiter  Limiter
	Now      func() time.Time
}

// Dispatch routes one decoded client event to its handler and returns the
// direct response for the issuing client.
func (o *Orchestrator) Dispatch(ctx context.Context, sid core.SessionID, msg core.Inbound) core.Ack {
	var err error
	switch m := msg.(type) {
	case core.JoinRoom:
		err = o.JoinRoom(ctx, sid, m.RoomID)
	case core.LeaveRoom:
		err = o.LeaveRoom(ctx, sid, m.RoomID)
	case core.AudioChunk:
		err = o.AudioChunk(ctx, sid, m.RoomID, m.AudioData)
	case core.StartSpeaking:
		err = o.StartSpeaking(sid, m.RoomID)
	case core.StopSpeaking:
		err = o.StopSpeaking(sid, m.RoomID)
	case core.Ping:
		return core.OKWith(map[string]string{"type": "pong"})
	case core.WhoAmI:
		return o.whoAmI(sid)
	default:
		err = domain.ErrUnknownEvent
	}
	if err != nil {
		return core.Fail(err)
	}
	return core.OK()
}

type whoAmIResponse struct {
	domain.Identity
	Rooms []domain.RoomID `json:"rooms"`
}

func (o *Orchestrator) whoAmI(sid core.SessionID) core.Ack {
	id, err := o.Registry.Identity(sid)
	if err != nil {
		return core.Fail(err)
	}
	return core.OKWith(whoAmIResponse{Identity: id, Rooms: o.Registry.Groups(sid)})
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// emitToRoom sends an event to the group of room, excluding the issuer.
func (o *Orchestrator) emitToRoom(room domain.RoomID, from core.SessionID, name core.EventName, payload any) {
	frame, err := core.EncodeEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", string(name)).Msg("encode event")
		return
	}
	group, res := o.Registry.Broadcast(room, frame, from)
	o.onDropped(group, res)
}

// emitToAll sends an event to every live session except the issuer.
func (o *Orchestrator) emitToAll(from core.SessionID, name core.EventName, payload any) {
	frame, err := core.EncodeEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", string(name)).Msg("encode event")
		return
	}
	o.onDropped(nil, o.Registry.BroadcastAll(frame, from))
}

func (o *Orchestrator) onDropped(group core.Group, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(group, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow.SID())).Msg("kicking slow session")
			o.Registry.Cancel(slow.SID())
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

func roomUser(id domain.Identity, room domain.RoomID) core.RoomUserEvent {
	return core.RoomUserEvent{UserID: id.ID, Username: id.Username, RoomID: room}
}
