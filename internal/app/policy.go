package app

import "github.com/dkeye/talkroom/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose outbound queue is full.
type Policy interface {
	OnBackPressure(room core.Group, member core.MemberSession) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.Group, member core.MemberSession) BackpressureAction {
	return KickMember
}

// DropPolicy only loses the frame; the slow connection stays.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.Group, core.MemberSession) BackpressureAction {
	return DropFrame
}
