package app

import (
	"sort"
	"sync"

	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
)

type GroupManagerImpl struct {
	mu     sync.RWMutex
	groups map[domain.RoomID]core.Group
}

func NewGroupManager() core.GroupManager {
	return &GroupManagerImpl{groups: make(map[domain.RoomID]core.Group)}
}

func (f *GroupManagerImpl) GetOrCreate(id domain.RoomID) core.Group {
	f.mu.RLock()
	g, ok := f.groups[id]
	f.mu.RUnlock()
	if ok {
		return g
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok = f.groups[id]; ok {
		return g
	}
	g = core.NewGroup(id)
	f.groups[id] = g
	return g
}

func (f *GroupManagerImpl) Get(id domain.RoomID) (core.Group, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	g, ok := f.groups[id]
	return g, ok
}

func (f *GroupManagerImpl) Release(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.groups[id]; ok && g.Size() == 0 {
		delete(f.groups, id)
	}
}

func (f *GroupManagerImpl) List() []core.GroupInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.GroupInfo, 0, len(f.groups))
	for id, g := range f.groups {
		out = append(out, core.GroupInfo{RoomID: id, MemberCount: g.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
