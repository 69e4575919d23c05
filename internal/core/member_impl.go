package core

import "github.com/dkeye/Presence/internal/domain"

type memberSession struct {
	meta   domain.Member
	signal SignalConnection
}

func NewMemberSession(meta domain.Member, signal SignalConnection) MemberSession {
	return &memberSession{meta: meta, signal: signal}
}

func (m *memberSession) Meta() domain.Member      { return m.meta }
func (m *memberSession) Signal() SignalConnection { return m.signal }
