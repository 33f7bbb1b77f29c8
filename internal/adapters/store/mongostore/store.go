// Package mongostore keeps room rosters and user presence in MongoDB, in the
// "rooms" and "users" collections shared with the account service.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/talkroom/internal/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RoomCollectionName = "rooms"
	UserCollectionName = "users"

	defaultOperationTimeout = 5 * time.Second
	maxAddAttempts          = 3
)

var ErrInvalidUserID = fmt.Errorf("%w: invalid user id", domain.ErrBadPayload)

type Config struct {
	URI              string
	Database         string
	AppName          string
	OperationTimeout time.Duration
}

type roomDoc struct {
	ID           primitive.ObjectID   `bson:"_id"`
	Name         string               `bson:"name"`
	Members      []primitive.ObjectID `bson:"members"`
	Admins       []primitive.ObjectID `bson:"admins"`
	MaxMembers   int                  `bson:"maxMembers"`
	IsActive     bool                 `bson:"isActive"`
	LastActivity time.Time            `bson:"lastActivity"`
}

func (d *roomDoc) toDomain() *domain.Room {
	r := &domain.Room{
		ID:           domain.RoomID(d.ID.Hex()),
		Name:         d.Name,
		Members:      make([]domain.UserID, 0, len(d.Members)),
		Admins:       make([]domain.UserID, 0, len(d.Admins)),
		MaxMembers:   d.MaxMembers,
		IsActive:     d.IsActive,
		LastActivity: d.LastActivity,
	}
	if r.MaxMembers <= 0 {
		r.MaxMembers = domain.DefaultMaxMembers
	}
	for _, m := range d.Members {
		r.Members = append(r.Members, domain.UserID(m.Hex()))
	}
	for _, a := range d.Admins {
		r.Admins = append(r.Admins, domain.UserID(a.Hex()))
	}
	return r
}

type DBStore struct {
	client  *mongo.Client
	rooms   *mongo.Collection
	users   *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, cfg Config) (*DBStore, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("error occured while connecting to database: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error occured while pinging database: %w", err)
	}
	log.Info().Str("module", "store.mongo").Str("database", cfg.Database).Msg("connected")
	return New(client, cfg.Database, cfg.OperationTimeout), nil
}

func New(client *mongo.Client, database string, timeout time.Duration) *DBStore {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	db := client.Database(database)
	return &DBStore{
		client:  client,
		rooms:   db.Collection(RoomCollectionName),
		users:   db.Collection(UserCollectionName),
		timeout: timeout,
		now:     time.Now,
	}
}

func (ds *DBStore) Close(ctx context.Context) error {
	log.Info().Str("module", "store.mongo").Msg("closing database connection")
	return ds.client.Disconnect(ctx)
}

// AddMember pushes user into members only if it is absent and the room has
// room left, in a single atomic update. When nothing matches, the room is
// re-read to tell the caller why.
func (ds *DBStore) AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Room, error) {
	rid, ok := objectID(string(roomID))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	uid, ok := objectID(string(userID))
	if !ok {
		return nil, ErrInvalidUserID
	}

	for attempt := 0; attempt < maxAddAttempts; attempt++ {
		room, err := ds.tryAdd(ctx, rid, uid)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, dbError(err)
		}
		current, err := ds.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		switch {
		case current.HasMember(userID):
			return nil, domain.ErrAlreadyMember
		case current.IsFull():
			return nil, domain.ErrRoomFull
		}
		log.Debug().Str("module", "store.mongo").Str("room", string(roomID)).Int("attempt", attempt).Msg("add member raced, retrying")
	}
	return nil, fmt.Errorf("database operation failed: add member to %s: too much contention", roomID)
}

func (ds *DBStore) tryAdd(ctx context.Context, rid, uid primitive.ObjectID) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, ds.timeout)
	defer cancel()

	filter := bson.M{
		"_id":     rid,
		"members": bson.M{"$ne": uid},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$members", bson.A{}}}},
			capacityExpr(),
		}},
	}
	update := bson.M{
		"$addToSet": bson.M{"members": uid},
		"$set":      bson.M{"lastActivity": ds.now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc roomDoc
	if err := ds.rooms.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

// capacityExpr mirrors toDomain: a missing or non-positive maxMembers means
// the default capacity.
func capacityExpr() bson.M {
	return bson.M{"$cond": bson.A{
		bson.M{"$gt": bson.A{bson.M{"$ifNull": bson.A{"$maxMembers", 0}}, 0}},
		"$maxMembers",
		domain.DefaultMaxMembers,
	}}
}

func (ds *DBStore) RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Room, error) {
	rid, ok := objectID(string(roomID))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	uid, ok := objectID(string(userID))
	if !ok {
		return nil, domain.ErrNotMember
	}

	opCtx, cancel := context.WithTimeout(ctx, ds.timeout)
	defer cancel()

	filter := bson.M{"_id": rid, "members": uid}
	update := bson.M{
		"$pull": bson.M{"members": uid, "admins": uid},
		"$set":  bson.M{"lastActivity": ds.now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc roomDoc
	err := ds.rooms.FindOneAndUpdate(opCtx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, dbError(err)
	}
	if _, err := ds.Get(ctx, roomID); err != nil {
		return nil, err
	}
	return nil, domain.ErrNotMember
}

func (ds *DBStore) Get(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	rid, ok := objectID(string(roomID))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, ds.timeout)
	defer cancel()

	startTime := time.Now()
	var doc roomDoc
	err := ds.rooms.FindOne(ctx, bson.M{"_id": rid}).Decode(&doc)
	log.Debug().Str("module", "store.mongo").Dur("cost", time.Since(startTime)).Msg("room query")
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, dbError(err)
	}
	return doc.toDomain(), nil
}

// SetOnline updates isOnline and lastSeen of the user document. A user that
// does not exist is logged and ignored.
func (ds *DBStore) SetOnline(ctx context.Context, userID domain.UserID, online bool) error {
	uid, ok := objectID(string(userID))
	if !ok {
		return ErrInvalidUserID
	}
	ctx, cancel := context.WithTimeout(ctx, ds.timeout)
	defer cancel()

	res, err := ds.users.UpdateByID(ctx, uid, bson.M{"$set": bson.M{"isOnline": online, "lastSeen": ds.now()}})
	if err != nil {
		return dbError(err)
	}
	if res.MatchedCount == 0 {
		log.Warn().Str("module", "store.mongo").Str("user", string(userID)).Msg("online status for unknown user")
	}
	return nil
}

func objectID(s string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(s)
	return id, err == nil
}

func dbError(err error) error {
	return fmt.Errorf("database operation failed: %w", err)
}
