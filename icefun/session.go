// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package icefun

import (
	"fmt"
)

// Programmer is the set of board operations a Session drives. *Board
// implements it.
type Programmer interface {
	GetVersion() (Version, error)
	ResetFPGA() (FlashID, error)
	EraseSector(sector byte) error
	ProgramPage(addr uint32, data []byte) error
	VerifyPage(addr uint32, data []byte) error
	ReleaseFPGA() error
}

// State is the position of a Session in the programming sequence.
type State int

const (
	StateStart State = iota
	StateVersionOK
	StateReset
	StateErasing
	StateProgramming
	StateVerifying
	StateReleased
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateVersionOK:
		return "version ok"
	case StateReset:
		return "reset"
	case StateErasing:
		return "erasing"
	case StateProgramming:
		return "programming"
	case StateVerifying:
		return "verifying"
	case StateReleased:
		return "released"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Progress is passed to a ProgressFunc after every sector erase and
// every page program or verify.
type Progress struct {
	Phase State
	Done  int
	Total int
	Addr  uint32
}

type ProgressFunc func(Progress)

// Session writes one image to the board. It is one-shot: Run can only
// be called once.
type Session struct {
	board    Programmer
	img      *Image
	verify   bool
	progress ProgressFunc
	state    State

	Version Version
	FlashID FlashID
}

type SessionOption func(*Session)

// WithVerify turns the read back of every page after programming on
// or off. It is on by default.
func WithVerify(verify bool) SessionOption {
	return func(s *Session) {
		s.verify = verify
	}
}

func WithProgress(fn ProgressFunc) SessionOption {
	return func(s *Session) {
		s.progress = fn
	}
}

// NewSession prepares a session writing img through board.
func NewSession(board Programmer, img *Image, options ...SessionOption) *Session {
	s := &Session{
		board:  board,
		img:    img,
		verify: true,
		state:  StateStart,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	return s.state
}

// Run checks the board version, resets the FPGA, erases every sector
// the image touches, programs the image page by page, optionally
// verifies it, and finally releases the FPGA. It stops at the first
// error, leaving the session in StateFailed, and the FPGA is then not
// released.
func (s *Session) Run() error {
	if s.state != StateStart {
		return ErrSessionUsed
	}

	if err := s.run(); err != nil {
		s.state = StateFailed
		return err
	}

	return nil
}

func (s *Session) run() error {
	var err error

	s.Version, err = s.board.GetVersion()
	if err != nil {
		return err
	}
	s.state = StateVersionOK

	s.FlashID, err = s.board.ResetFPGA()
	if err != nil {
		return err
	}
	s.state = StateReset
	le.Printf("%v, Flash ID %v\n", s.Version, s.FlashID)

	if err = s.erase(); err != nil {
		return err
	}

	le.Printf("file size: %d\n", s.img.Length)
	addrs := PageAddrs(s.img.Offset, s.img.Length)

	s.state = StateProgramming
	if err = s.walk(addrs, s.board.ProgramPage); err != nil {
		return err
	}

	if s.verify {
		s.state = StateVerifying
		if err = s.walk(addrs, s.board.VerifyPage); err != nil {
			return err
		}
	}

	if err = s.board.ReleaseFPGA(); err != nil {
		return err
	}
	s.state = StateReleased

	return nil
}

func (s *Session) erase() error {
	s.state = StateErasing

	first, end := SectorRange(s.img.Offset, s.img.Length)
	for sector := first; sector < end; sector++ {
		le.Printf("Erasing sector %02X0000\n", sector)
		if err := s.board.EraseSector(byte(sector)); err != nil {
			return err
		}
		s.report(sector-first+1, end-first, uint32(sector)<<16)
	}

	return nil
}

// walk calls op for every page in addrs and stops at the first error.
func (s *Session) walk(addrs []uint32, op func(uint32, []byte) error) error {
	for i, addr := range addrs {
		if err := op(addr, s.img.Page(addr)); err != nil {
			return err
		}
		s.report(i+1, len(addrs), addr)
	}

	return nil
}

func (s *Session) report(done, total int, addr uint32) {
	if s.progress != nil {
		s.progress(Progress{Phase: s.state, Done: done, Total: total, Addr: addr})
	}
}
