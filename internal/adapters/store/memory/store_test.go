package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/dkeye/talkroom/internal/domain"
)

func TestAddMember(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore()
	ms.PutRoom(domain.Room{ID: "r1", MaxMembers: 2, Members: []domain.UserID{"1"}, Admins: []domain.UserID{"1"}})

	if _, err := ms.AddMember(ctx, "nope", "2"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := ms.AddMember(ctx, "r1", "1"); !errors.Is(err, domain.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	room, err := ms.AddMember(ctx, "r1", "2")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !room.HasMember("2") || len(room.Members) != 2 {
		t.Fatalf("unexpected members %v", room.Members)
	}
	if _, err := ms.AddMember(ctx, "r1", "3"); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	got, _ := ms.Get(ctx, "r1")
	if got.HasMember("3") {
		t.Fatal("full room was mutated")
	}
}

func TestRemoveMemberDropsAdmin(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore()
	ms.PutRoom(domain.Room{ID: "r1", Members: []domain.UserID{"1", "2"}, Admins: []domain.UserID{"1"}})

	room, err := ms.RemoveMember(ctx, "r1", "1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if room.HasMember("1") || room.IsAdmin("1") {
		t.Fatalf("user still present: %+v", room)
	}
	if _, err := ms.RemoveMember(ctx, "r1", "1"); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if _, err := ms.RemoveMember(ctx, "nope", "1"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore()
	ms.PutRoom(domain.Room{ID: "r1", Members: []domain.UserID{"1"}})

	room, _ := ms.Get(ctx, "r1")
	room.Members[0] = "tampered"
	again, _ := ms.Get(ctx, "r1")
	if !again.HasMember("1") {
		t.Fatal("store record shares memory with returned snapshot")
	}
	if again.MaxMembers != domain.DefaultMaxMembers {
		t.Fatalf("default capacity not applied: %d", again.MaxMembers)
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	ms := NewMemStore()
	ms.PutRoom(domain.Room{ID: "r1", MaxMembers: 5})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = ms.AddMember(ctx, "r1", domain.UserID(strconv.Itoa(i)))
		}(i)
	}
	wg.Wait()
	room, _ := ms.Get(ctx, "r1")
	if len(room.Members) != 5 {
		t.Fatalf("expected 5 members, got %d", len(room.Members))
	}
}

func TestSetOnline(t *testing.T) {
	ms := NewMemStore()
	_ = ms.SetOnline(context.Background(), "1", true)
	if on, at := ms.Online("1"); !on || at.IsZero() {
		t.Fatalf("expected online with timestamp, got %v %v", on, at)
	}
	_ = ms.SetOnline(context.Background(), "1", false)
	if on, _ := ms.Online("1"); on {
		t.Fatal("expected offline")
	}
}
