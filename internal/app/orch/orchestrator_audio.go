package orch

import (
	"context"
	"encoding/json"

	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
	"github.com/rs/zerolog/log"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// AudioChunk relays payload to the rest of the group. Membership is checked
// against the store, not the group.
func (o *Orchestrator) AudioChunk(ctx context.Context, sid core.SessionID, roomID domain.RoomID, payload json.RawMessage) error {
	id, err := o.Registry.Identity(sid)
	if err != nil {
		return err
	}
	if o.Limiter != nil && !o.Limiter.Allow(id.ID) {
		return domain.ErrRateLimited
	}
	room, err := o.Store.Get(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("audio: get room")
		return err
	}
	if !room.HasMember(id.ID) {
		log.Warn().Str("module", "orch").Str("user", string(id.ID)).Str("room", string(roomID)).Msg("audio from non-member")
		return domain.ErrForbidden
	}

	o.emitToRoom(roomID, sid, core.EventAudioData, core.AudioData{
		RoomID:    roomID,
		UserID:    id.ID,
		Username:  id.Username,
		AudioData: payload,
		Timestamp: o.now().UTC().Format(timestampLayout),
	})
	log.Debug().Str("module", "orch").Str("user", string(id.ID)).Str("room", string(roomID)).Int("bytes", len(payload)).Msg("audio relayed")
	return nil
}

// StartSpeaking performs no membership check.
func (o *Orchestrator) StartSpeaking(sid core.SessionID, room domain.RoomID) error {
	return o.setSpeaking(sid, room, true)
}

func (o *Orchestrator) StopSpeaking(sid core.SessionID, room domain.RoomID) error {
	return o.setSpeaking(sid, room, false)
}

func (o *Orchestrator) setSpeaking(sid core.SessionID, room domain.RoomID, speaking bool) error {
	id, err := o.Registry.Identity(sid)
	if err != nil {
		return err
	}
	o.Speaking.Set(room, id.ID, speaking)
	name := core.EventUserStoppedSpeaking
	if speaking {
		name = core.EventUserStartedSpeaking
	}
	o.emitToRoom(room, sid, name, roomUser(id, room))
	log.Debug().Str("module", "orch").Str("user", string(id.ID)).Str("room", string(room)).Bool("speaking", speaking).Msg("speaking state")
	return nil
}
