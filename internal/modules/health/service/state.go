package service

import (
	"sync/atomic"
	"time"
)

// State — process-level health signals, written from the fan-in and the
// warmup path, read by the HTTP probes.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnections atomic.Int64
	lastTickUnix  atomic.Int64 // unix seconds
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) ConnOpened()        { s.wsConnections.Add(1) }
func (s *State) ConnClosed()        { s.wsConnections.Add(-1) }
func (s *State) Connections() int64 { return s.wsConnections.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
