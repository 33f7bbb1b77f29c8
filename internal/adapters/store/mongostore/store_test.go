package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/talkroom/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestRoomDocToDomain(t *testing.T) {
	rid := primitive.NewObjectID()
	u1, u2 := primitive.NewObjectID(), primitive.NewObjectID()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	doc := roomDoc{
		ID:           rid,
		Name:         "general",
		Members:      []primitive.ObjectID{u1, u2},
		Admins:       []primitive.ObjectID{u1},
		IsActive:     true,
		LastActivity: at,
	}
	r := doc.toDomain()

	if r.ID != domain.RoomID(rid.Hex()) {
		t.Fatalf("id = %s", r.ID)
	}
	if !r.HasMember(domain.UserID(u2.Hex())) || !r.IsAdmin(domain.UserID(u1.Hex())) {
		t.Fatalf("members/admins not converted: %+v", r)
	}
	if r.MaxMembers != domain.DefaultMaxMembers {
		t.Fatalf("missing capacity should default, got %d", r.MaxMembers)
	}
	if !r.LastActivity.Equal(at) {
		t.Fatalf("last activity = %v", r.LastActivity)
	}
}

func TestInvalidIDsShortCircuit(t *testing.T) {
	// A store with no client is enough: invalid ids never reach the driver.
	ds := &DBStore{timeout: time.Second, now: time.Now}
	ctx := context.Background()
	valid := domain.UserID(primitive.NewObjectID().Hex())

	if _, err := ds.Get(ctx, "not-hex"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("Get: %v", err)
	}
	if _, err := ds.AddMember(ctx, "not-hex", valid); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("AddMember bad room: %v", err)
	}
	if _, err := ds.AddMember(ctx, domain.RoomID(primitive.NewObjectID().Hex()), "x"); !errors.Is(err, domain.ErrBadPayload) {
		t.Fatalf("AddMember bad user: %v", err)
	}
	if _, err := ds.RemoveMember(ctx, "not-hex", valid); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("RemoveMember bad room: %v", err)
	}
	if _, err := ds.RemoveMember(ctx, domain.RoomID(primitive.NewObjectID().Hex()), "x"); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("RemoveMember bad user: %v", err)
	}
	if err := ds.SetOnline(ctx, "x", false); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("SetOnline: %v", err)
	}
}

const roomsNS = "talkroom.rooms"

func roomBSON(id primitive.ObjectID, maxMembers int, members ...primitive.ObjectID) bson.D {
	ms := bson.A{}
	for _, m := range members {
		ms = append(ms, m)
	}
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "general"},
		{Key: "members", Value: ms},
		{Key: "admins", Value: bson.A{}},
		{Key: "maxMembers", Value: maxMembers},
		{Key: "isActive", Value: true},
	}
}

// updated is a findAndModify reply; a nil doc means the filter matched nothing.
func updated(doc bson.D) bson.D {
	if doc == nil {
		return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil})
	}
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc})
}

func found(docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, roomsNS, mtest.FirstBatch, docs...)
}

func mockStore(mt *mtest.T) *DBStore {
	ds := New(mt.Client, "talkroom", time.Second)
	ds.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return ds
}

func commandNames(mt *mtest.T) []string {
	var names []string
	for _, ev := range mt.GetAllStartedEvents() {
		names = append(names, ev.CommandName)
	}
	return names
}

func TestAddMemberAgainstMockDeployment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	rid, uid, other := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	roomID, userID := domain.RoomID(rid.Hex()), domain.UserID(uid.Hex())

	mt.Run("adds with a guarded update", func(mt *mtest.T) {
		mt.AddMockResponses(updated(roomBSON(rid, 10, other, uid)))

		room, err := mockStore(mt).AddMember(ctx, roomID, userID)
		if err != nil {
			mt.Fatal(err)
		}
		if !room.HasMember(userID) || len(room.Members) != 2 {
			mt.Fatalf("room = %+v", room)
		}

		ev := mt.GetStartedEvent()
		if ev == nil || ev.CommandName != "findAndModify" {
			mt.Fatalf("command = %v", ev)
		}
		query := ev.Command.Lookup("query").Document()
		if got := query.Lookup("members", "$ne").ObjectID(); got != uid {
			mt.Fatalf("members filter = %v", got)
		}
		lt, err := query.Lookup("$expr", "$lt").Array().Values()
		if err != nil || len(lt) != 2 {
			mt.Fatalf("$lt = %v %v", lt, err)
		}
		cond, err := lt[1].Document().Lookup("$cond").Array().Values()
		if err != nil || len(cond) != 3 {
			mt.Fatalf("capacity = %v %v", lt[1], err)
		}
		if cond[1].StringValue() != "$maxMembers" || cond[2].AsInt64() != domain.DefaultMaxMembers {
			mt.Fatalf("capacity branches = %v", cond)
		}
	})

	mt.Run("already a member", func(mt *mtest.T) {
		mt.AddMockResponses(updated(nil), found(roomBSON(rid, 10, uid)))
		if _, err := mockStore(mt).AddMember(ctx, roomID, userID); !errors.Is(err, domain.ErrAlreadyMember) {
			mt.Fatalf("err = %v", err)
		}
	})

	mt.Run("full", func(mt *mtest.T) {
		mt.AddMockResponses(updated(nil), found(roomBSON(rid, 1, other)))
		if _, err := mockStore(mt).AddMember(ctx, roomID, userID); !errors.Is(err, domain.ErrRoomFull) {
			mt.Fatalf("err = %v", err)
		}
	})

	mt.Run("zero capacity means the default", func(mt *mtest.T) {
		members := make([]primitive.ObjectID, domain.DefaultMaxMembers)
		for i := range members {
			members[i] = primitive.NewObjectID()
		}
		mt.AddMockResponses(updated(nil), found(roomBSON(rid, 0, members...)))
		if _, err := mockStore(mt).AddMember(ctx, roomID, userID); !errors.Is(err, domain.ErrRoomFull) {
			mt.Fatalf("err = %v", err)
		}
	})

	mt.Run("room gone", func(mt *mtest.T) {
		mt.AddMockResponses(updated(nil), found())
		if _, err := mockStore(mt).AddMember(ctx, roomID, userID); !errors.Is(err, domain.ErrRoomNotFound) {
			mt.Fatalf("err = %v", err)
		}
	})

	mt.Run("retries a lost race", func(mt *mtest.T) {
		mt.AddMockResponses(
			updated(nil),
			found(roomBSON(rid, 3, other)),
			updated(roomBSON(rid, 3, other, uid)),
		)
		room, err := mockStore(mt).AddMember(ctx, roomID, userID)
		if err != nil {
			mt.Fatal(err)
		}
		if !room.HasMember(userID) {
			mt.Fatalf("room = %+v", room)
		}
		want := []string{"findAndModify", "find", "findAndModify"}
		if got := commandNames(mt); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
			mt.Fatalf("commands = %v", got)
		}
	})

	mt.Run("gives up under contention", func(mt *mtest.T) {
		for i := 0; i < maxAddAttempts; i++ {
			mt.AddMockResponses(updated(nil), found(roomBSON(rid, 3, other)))
		}
		_, err := mockStore(mt).AddMember(ctx, roomID, userID)
		if err == nil || errors.Is(err, domain.ErrRoomFull) || errors.Is(err, domain.ErrAlreadyMember) {
			mt.Fatalf("err = %v", err)
		}
		if n := len(commandNames(mt)); n != 2*maxAddAttempts {
			mt.Fatalf("%d commands sent", n)
		}
	})

	mt.Run("driver error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))
		_, err := mockStore(mt).AddMember(ctx, roomID, userID)
		if err == nil || errors.Is(err, domain.ErrRoomNotFound) {
			mt.Fatalf("err = %v", err)
		}
	})
}

func TestRemoveMemberAgainstMockDeployment(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	rid, uid, other := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	roomID, userID := domain.RoomID(rid.Hex()), domain.UserID(uid.Hex())

	mt.Run("removes", func(mt *mtest.T) {
		mt.AddMockResponses(updated(roomBSON(rid, 10, other)))
		room, err := mockStore(mt).RemoveMember(ctx, roomID, userID)
		if err != nil {
			mt.Fatal(err)
		}
		if room.HasMember(userID) {
			mt.Fatalf("room = %+v", room)
		}
	})

	mt.Run("not a member", func(mt *mtest.T) {
		mt.AddMockResponses(updated(nil), found(roomBSON(rid, 10, other)))
		if _, err := mockStore(mt).RemoveMember(ctx, roomID, userID); !errors.Is(err, domain.ErrNotMember) {
			mt.Fatalf("err = %v", err)
		}
	})

	mt.Run("room gone", func(mt *mtest.T) {
		mt.AddMockResponses(updated(nil), found())
		if _, err := mockStore(mt).RemoveMember(ctx, roomID, userID); !errors.Is(err, domain.ErrRoomNotFound) {
			mt.Fatalf("err = %v", err)
		}
	})
}
