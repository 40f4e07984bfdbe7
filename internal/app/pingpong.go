// internal/app/pingpong.go

package app

import (
	"fmt"

	"rtkern/internal/kernel"
)

const (
	pingPriority kernel.Priority = 8
	pingIdle     kernel.Priority = 10
	pingPeriod                   = 50
	pingWork                     = 3
)

// PingPong is the two task round robin demo: Ping and Pong share a priority,
// each works for a few ticks and then sleeps.
type PingPong struct {
	failures
	Pings int
	Pongs int
}

func NewPingPong() *PingPong { return &PingPong{} }

func (p *PingPong) Name() string { return "pingpong" }

func (p *PingPong) Boot(sys *kernel.Sys) {
	_, err := sys.Create(p.pong, pingPriority, 0)
	p.check("create pong", err)
	_, err = sys.Create(p.ping, pingPriority, 0)
	p.check("create ping", err)
	_, err = sys.Create(Idle, pingIdle, 0)
	p.check("create idle", err)
}

func (p *PingPong) ping(sys *kernel.Sys) {
	for {
		Busy(sys, pingWork)
		p.Pings++
		sys.Sleep(pingPeriod)
	}
}

func (p *PingPong) pong(sys *kernel.Sys) {
	for {
		Busy(sys, pingWork)
		p.Pongs++
		sys.Sleep(pingPeriod)
	}
}

func (p *PingPong) Report() string {
	return fmt.Sprintf("pings=%d pongs=%d", p.Pings, p.Pongs)
}
