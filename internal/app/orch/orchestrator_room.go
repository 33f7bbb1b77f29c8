package orch

import (
	"context"
	"errors"

	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinRoom subscribes sid to room and records the membership at the store.
// A session already in the group short-circuits with no side effects. The
// group join is kept even if the store rejects the membership, and the room
// still hears about it unless the room is unknown or access was refused.
func (o *Orchestrator) JoinRoom(ctx context.Context, sid core.SessionID, room domain.RoomID) error {
	id, err := o.Registry.Identity(sid)
	if err != nil {
		return err
	}
	joined, err := o.Registry.JoinGroup(sid, room)
	if err != nil {
		return err
	}
	logger := log.With().Str("module", "orch").Str("sid", string(sid)).Str("user", string(id.ID)).Str("room", string(room)).Logger()
	if !joined {
		logger.Debug().Msg("already in group, skipping join")
		return nil
	}

	// The mutation outlives a kicked or closing session.
	_, storeErr := o.Store.AddMember(context.WithoutCancel(ctx), room, id.ID)
	switch {
	case storeErr == nil:
	case errors.Is(storeErr, domain.ErrAlreadyMember):
		logger.Debug().Msg("already a store member")
		storeErr = nil
	case withholdsBroadcast(storeErr):
		logger.Error().Err(storeErr).Msg("store add member")
		return storeErr
	default:
		logger.Error().Err(storeErr).Msg("store add member")
	}

	if _, ok := o.Registry.GetSession(sid); !ok {
		logger.Debug().Msg("session gone before join completed")
		return storeErr
	}
	o.emitToRoom(room, sid, core.EventUserJoinedRoom, roomUser(id, room))
	logger.Info().Msg("joined room")
	return storeErr
}

// withholdsBroadcast reports store failures after which the room must not be
// told about the join: the room is unknown or the user was refused.
func withholdsBroadcast(err error) bool {
	return errors.Is(err, domain.ErrRoomNotFound) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrForbidden)
}

// LeaveRoom is the mirror of JoinRoom. Leaving also clears the speaking flag
// of the user in that room, without notifying anyone.
func (o *Orchestrator) LeaveRoom(ctx context.Context, sid core.SessionID, room domain.RoomID) error {
	id, err := o.Registry.Identity(sid)
	if err != nil {
		return err
	}
	if _, err := o.Registry.LeaveGroup(sid, room); err != nil {
		return err
	}
	logger := log.With().Str("module", "orch").Str("sid", string(sid)).Str("user", string(id.ID)).Str("room", string(room)).Logger()
	o.Speaking.Set(room, id.ID, false)

	if _, err := o.Store.RemoveMember(context.WithoutCancel(ctx), room, id.ID); err != nil {
		if !errors.Is(err, domain.ErrNotMember) {
			logger.Error().Err(err).Msg("store remove member")
			return err
		}
		logger.Debug().Msg("already not a store member")
	}

	o.emitToRoom(room, sid, core.EventUserLeftRoom, roomUser(id, room))
	logger.Info().Msg("left room")
	return nil
}
