// internal/app/station.go

package app

import (
	"fmt"

	"rtkern/internal/kernel"
)

// Frame tags on the radio link.
const (
	TagLaser  byte = 0
	TagServo  byte = 1
	TagLight  byte = 2
	TagScreen byte = 3
	TagRoomba byte = 4
	TagMode   byte = 5
)

const (
	stationPriority kernel.Priority = 2
	ringSize                        = 10
	servoCenter                     = 375
)

// Station is the base station program: six pollers share a simulated ADC,
// a radio link and a ring of light sensor samples, each behind its own
// mutex.
type Station struct {
	failures

	adcMutex   kernel.MutexID
	radioMutex kernel.MutexID
	ringMutex  kernel.MutexID

	adc   adc
	radio radio
	ring  ring

	servo     int
	laser     byte
	mode      byte
	Displayed []int // light samples shown by the screen task
}

func NewStation() *Station {
	return &Station{servo: servoCenter}
}

func (s *Station) Name() string { return "station" }

func (s *Station) Boot(sys *kernel.Sys) {
	var err error
	if s.adcMutex, err = sys.MutexInit(); !s.check("adc mutex", err) {
		return
	}
	if s.radioMutex, err = sys.MutexInit(); !s.check("radio mutex", err) {
		return
	}
	if s.ringMutex, err = sys.MutexInit(); !s.check("ring mutex", err) {
		return
	}

	tasks := []struct {
		name  string
		entry kernel.Entry
	}{
		{"screen", s.screen},
		{"laser", s.laserPoll},
		{"roomba", s.roomba},
		{"receiver", s.receiver},
		{"joystick", s.joystick},
		{"switch", s.switchPoll},
	}
	for _, t := range tasks {
		_, err := sys.Create(t.entry, stationPriority, 0)
		s.check("create "+t.name, err)
	}
	_, err = sys.Create(Idle, kernel.LowestPriority, 0)
	s.check("create idle", err)
}

func (s *Station) lock(sys *kernel.Sys, m kernel.MutexID) {
	s.check("lock", sys.Lock(m))
}

func (s *Station) unlock(sys *kernel.Sys, m kernel.MutexID) {
	s.check("unlock", sys.Unlock(m))
}

func (s *Station) send(sys *kernel.Sys, frame ...byte) {
	s.lock(sys, s.radioMutex)
	s.radio.send(frame...)
	s.unlock(sys, s.radioMutex)
}

func (s *Station) joystick(sys *kernel.Sys) {
	for {
		s.lock(sys, s.adcMutex)
		x := s.adc.read(8)*458/1000 + 140
		s.unlock(sys, s.adcMutex)

		switch {
		case (x > s.servo && x >= 380) || (x < 370 && x < s.servo):
			s.servo = x
		case x >= 370 && x <= 380:
			s.servo = servoCenter
		default:
			sys.Sleep(20)
			continue
		}
		s.send(sys, TagServo, byte(s.servo>>8), byte(s.servo))
		sys.Sleep(20)
	}
}

func (s *Station) switchPoll(sys *kernel.Sys) {
	for {
		mode := s.adc.digital(1)
		if mode != s.mode {
			s.send(sys, TagMode)
			s.mode = mode
		}
		sys.Sleep(20)
	}
}

func (s *Station) laserPoll(sys *kernel.Sys) {
	for {
		laser := s.adc.digital(2)
		if laser != s.laser {
			s.send(sys, TagLaser, laser)
			s.laser = laser
		}
		sys.Sleep(10)
	}
}

func (s *Station) receiver(sys *kernel.Sys) {
	for {
		s.lock(sys, s.radioMutex)
		frame, ok := s.radio.receive()
		s.unlock(sys, s.radioMutex)

		if ok && len(frame) == 3 && frame[0] == TagLight {
			s.lock(sys, s.ringMutex)
			s.ring.push(int(frame[1])<<8 | int(frame[2]))
			s.unlock(sys, s.ringMutex)
		}
		sys.Sleep(15)
	}
}

func (s *Station) screen(sys *kernel.Sys) {
	for {
		s.lock(sys, s.ringMutex)
		v, ok := s.ring.pop()
		s.unlock(sys, s.ringMutex)
		if ok {
			s.Displayed = append(s.Displayed, v)
		}
		sys.Sleep(15)
	}
}

func (s *Station) roomba(sys *kernel.Sys) {
	for {
		s.lock(sys, s.adcMutex)
		rx := s.adc.read(8)
		ry := s.adc.read(9)
		s.unlock(sys, s.adcMutex)

		s.send(sys, TagRoomba, steer(rx, ry))
		sys.Sleep(20)
	}
}

// steer maps a joystick position to a drive command.
func steer(rx, ry int) byte {
	low := func(v int) bool { return v < 250 }
	high := func(v int) bool { return v > 750 }
	mid := func(v int) bool { return v > 250 && v < 750 }

	switch {
	case high(ry) && mid(rx):
		return 'B'
	case low(ry) && mid(rx):
		return 'G'
	case high(rx) && mid(ry):
		return 'D'
	case low(rx) && mid(ry):
		return 'E'
	case high(ry) && high(rx):
		return 'A'
	case high(ry) && low(rx):
		return 'C'
	case low(ry) && high(rx):
		return 'F'
	case low(ry) && low(rx):
		return 'H'
	default:
		return 'X'
	}
}

// Sent returns how many frames with the given tag went out.
func (s *Station) Sent(tag byte) int { return s.radio.sent[tag] }

func (s *Station) Report() string {
	return fmt.Sprintf("servo=%d roomba=%d laser=%d mode=%d received=%d displayed=%d",
		s.Sent(TagServo), s.Sent(TagRoomba), s.Sent(TagLaser), s.Sent(TagMode),
		s.radio.received, len(s.Displayed))
}

// adc is a deterministic stand-in for the analog inputs: every channel
// sweeps 0..1023 at its own pace.
type adc struct {
	samples int
}

func (a *adc) read(channel int) int {
	a.samples++
	v := (a.samples * (37 + 11*channel)) % 2046
	if v > 1023 {
		v = 2046 - v
	}
	return v
}

func (a *adc) digital(pin int) byte {
	return byte((a.samples >> (3 + pin)) & 1)
}

// radio is the simulated link. The remote end reports a light sensor
// reading every few polls.
type radio struct {
	sent     [TagMode + 1]int
	polls    int
	received int
}

func (r *radio) send(frame ...byte) {
	if len(frame) > 0 && int(frame[0]) < len(r.sent) {
		r.sent[frame[0]]++
	}
}

func (r *radio) receive() ([]byte, bool) {
	r.polls++
	if r.polls%3 != 0 {
		return nil, false
	}
	r.received++
	v := (r.polls * 97) % 1024
	return []byte{TagLight, byte(v >> 8), byte(v)}, true
}

// ring is a bounded FIFO of samples. A push to a full ring is dropped.
type ring struct {
	buf         [ringSize]int
	front, rear int
	n           int
}

func (r *ring) push(v int) bool {
	if r.n == ringSize {
		return false
	}
	r.buf[r.rear] = v
	r.rear = (r.rear + 1) % ringSize
	r.n++
	return true
}

func (r *ring) pop() (int, bool) {
	if r.n == 0 {
		return 0, false
	}
	v := r.buf[r.front]
	r.front = (r.front + 1) % ringSize
	r.n--
	return v, true
}
