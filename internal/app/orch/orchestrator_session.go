package orch

import (
	"context"

	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect records a new transport connection in the unauthenticated state.
func (o *Orchestrator) Connect(sess core.MemberSession, cancel context.CancelFunc) {
	o.Registry.Bind(sess, cancel)
}

// Attach binds the verified identity to sid and marks the user online.
// A presence failure is logged and does not fail the attach.
func (o *Orchestrator) Attach(ctx context.Context, sid core.SessionID, id domain.Identity) error {
	if err := o.Registry.Attach(sid, id); err != nil {
		return err
	}
	if o.Presence != nil {
		if err := o.Presence.SetOnline(ctx, id.ID, true); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("user", string(id.ID)).Msg("set online")
		}
	}
	return nil
}

// Disconnect evicts sid from every group, clears its speaking state, marks
// the user offline and tells every remaining session. No per-room
// user-left-room is sent and no stop-speaking is synthesized.
func (o *Orchestrator) Disconnect(ctx context.Context, sid core.SessionID) {
	id, rooms := o.Registry.Unbind(sid)
	if id == nil {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("unauthenticated session closed")
		return
	}
	logger := log.With().Str("module", "orch").Str("sid", string(sid)).Str("user", string(id.ID)).Logger()

	if cleared := o.Speaking.ClearUser(id.ID); len(cleared) > 0 {
		logger.Debug().Int("rooms", len(cleared)).Msg("cleared speaking state")
	}
	if o.Presence != nil {
		if err := o.Presence.SetOnline(ctx, id.ID, false); err != nil {
			logger.Error().Err(err).Msg("set offline")
		}
	}
	o.emitToAll(sid, core.EventUserOffline, core.UserOffline{UserID: id.ID, Username: id.Username})
	logger.Info().Int("groups", len(rooms)).Msg("disconnected")
}
