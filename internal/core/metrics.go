package core

// Metrics receives coordinator counters. Implementations must be safe for concurrent use.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	SessionCreated(recovered bool)
	MemberJoined()
	MemberRejoined()
	MemberLeft()
	NameRequested()
	Broadcast(delivered, superseded int)
	SessionsEvicted(n int)
	SessionsLive(n int)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()   {}
func (nopMetrics) ConnectionClosed()   {}
func (nopMetrics) SessionCreated(bool) {}
func (nopMetrics) MemberJoined()       {}
func (nopMetrics) MemberRejoined()     {}
func (nopMetrics) MemberLeft()         {}
func (nopMetrics) NameRequested()      {}
func (nopMetrics) Broadcast(int, int)  {}
func (nopMetrics) SessionsEvicted(int) {}
func (nopMetrics) SessionsLive(int)    {}
