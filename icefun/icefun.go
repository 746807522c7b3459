// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

// Package icefun provides a connection to the programmer firmware on
// a Devantech iceFUN FPGA board and the sequence that writes a
// configuration image to its flash. To create a new connection:
//
//	board := icefun.New()
//	err := board.Connect(port)
//
// Then you can check that it is an iceFUN board by asking for its
// firmware version:
//
//	ver, err := board.GetVersion()
//
// To program an image, load it and run a Session:
//
//	img, err := icefun.LoadImage(f, offset)
//	err = icefun.NewSession(board, img).Run()
//
// Every command is a single write followed by a blocking read of a
// response of known size. The protocol has no framing, checksums or
// request IDs, so a Board must not be shared between goroutines.
package icefun

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.bug.st/serial"
)

var (
	le = log.New(os.Stderr, "", 0)
	// frame dumps, off unless asked for
	dl = log.New(io.Discard, "", 0)
)

func SilenceLogging() {
	le.SetOutput(io.Discard)
	dl.SetOutput(io.Discard)
}

// DumpFrames hexdumps every frame sent and received to w.
func DumpFrames(w io.Writer) {
	dl.SetOutput(w)
}

const (
	// Speed in bps for the board's USB CDC port. The CDC link ignores
	// it, but the serial lib wants one.
	SerialSpeed = 115200
	// Status byte of a successful page command
	StatusOK = 0x00
)

// Board is a serial connection to an iceFUN board and the commands
// that its programmer firmware supports.
type Board struct {
	speed int
	port  serial.Port
	conn  io.ReadWriter
}

// New allocates a new Board. Use the Connect() method to actually
// open a connection.
func New() *Board {
	return &Board{}
}

// NewWithConn returns a Board talking over an already open connection,
// for example a serial port opened elsewhere or a test double.
func NewWithConn(conn io.ReadWriter) *Board {
	return &Board{conn: conn}
}

func WithSpeed(speed int) func(*Board) {
	return func(b *Board) {
		b.speed = speed
	}
}

// Connect() connects to the board's serial port using the provided
// port device. The port is opened in raw 8N1 mode.
func (b *Board) Connect(port string, options ...func(*Board)) error {
	var err error

	b.speed = SerialSpeed
	for _, opt := range options {
		opt(b)
	}

	b.port, err = serial.Open(port, &serial.Mode{
		BaudRate: b.speed,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("Open %s: %w", port, err)
	}
	b.conn = b.port

	return nil
}

// Close the connection to the board. Closing a Board created with
// NewWithConn closes the connection if it is an io.Closer.
func (b *Board) Close() error {
	c, ok := b.conn.(io.Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("conn.Close: %w", err)
	}
	return nil
}

// SetReadTimeout sets the timeout of every single read from the
// serial port. Pass 0 seconds to not have any timeout, which is the
// default; a board that never answers then blocks forever.
func (b *Board) SetReadTimeout(seconds int) error {
	if b.port == nil {
		return fmt.Errorf("SetReadTimeout: not connected to a serial port")
	}
	var t time.Duration = serial.NoTimeout
	if seconds > 0 {
		t = time.Duration(seconds) * time.Second
	}
	if err := b.port.SetReadTimeout(t); err != nil {
		return fmt.Errorf("SetReadTimeout: %w", err)
	}
	return nil
}

// Version is the programmer firmware version reported by the board.
type Version byte

func (v Version) String() string {
	return fmt.Sprintf("iceFUN v%d", byte(v))
}

// FlashID is the JEDEC manufacturer and device ID of the flash chip.
type FlashID [3]byte

func (id FlashID) String() string {
	return fmt.Sprintf("%02X %02X %02X", id[0], id[1], id[2])
}

// GetVersion gets the programmer firmware version. A board that does
// not start its answer with the iceFUN marker gives
// ErrUnexpectedResponse; it is probably not an iceFUN, or the link is
// out of step.
func (b *Board) GetVersion() (Version, error) {
	rx, err := b.transact(cmdGetVersion, NewFrameBuf(cmdGetVersion))
	if err != nil {
		return 0, fmt.Errorf("GetVersion: %w", err)
	}

	if rx[0] != versionMarker {
		return 0, fmt.Errorf("GetVersion: %w: marker 0x%02x", ErrUnexpectedResponse, rx[0])
	}

	return Version(rx[1]), nil
}

// ResetFPGA holds the FPGA in reset so the programmer owns the flash,
// and returns the flash chip ID. The ID is not checked. Only call it
// after GetVersion succeeded.
func (b *Board) ResetFPGA() (FlashID, error) {
	var id FlashID

	rx, err := b.transact(cmdResetFPGA, NewFrameBuf(cmdResetFPGA))
	if err != nil {
		return id, fmt.Errorf("ResetFPGA: %w", err)
	}
	copy(id[:], rx)

	return id, nil
}

// EraseSector erases the 64 KiB sector with the given index. The
// board acks with one byte that carries no status.
func (b *Board) EraseSector(sector byte) error {
	tx := NewFrameBuf(cmdErase64k)
	tx[1] = sector

	if _, err := b.transact(cmdErase64k, tx); err != nil {
		return fmt.Errorf("EraseSector %02X: %w", sector, err)
	}

	return nil
}

// ProgramPage writes the PageSize bytes in data at addr. The board
// checks the page after writing it and a failed check is returned as
// a *MismatchError.
func (b *Board) ProgramPage(addr uint32, data []byte) error {
	tx, err := newPageFrame(cmdProgramPage, addr, data)
	if err != nil {
		return fmt.Errorf("ProgramPage: %w", err)
	}

	rx, err := b.transact(cmdProgramPage, tx)
	if err != nil {
		return fmt.Errorf("ProgramPage %06X: %w", addr, err)
	}

	return parsePageResponse("program", addr, rx, rx[0] != StatusOK)
}

// VerifyPage has the board compare the flash page at addr with the
// PageSize bytes in data. A difference is returned as a
// *MismatchError.
func (b *Board) VerifyPage(addr uint32, data []byte) error {
	tx, err := newPageFrame(cmdVerifyPage, addr, data)
	if err != nil {
		return fmt.Errorf("VerifyPage: %w", err)
	}

	rx, err := b.transact(cmdVerifyPage, tx)
	if err != nil {
		return fmt.Errorf("VerifyPage %06X: %w", addr, err)
	}

	return parsePageResponse("verify", addr, rx, rx[0] > StatusOK)
}

// ReleaseFPGA lets the FPGA out of reset so it boots the configuration
// in flash. The one byte answer is ignored.
func (b *Board) ReleaseFPGA() error {
	if _, err := b.transact(cmdReleaseFPGA, NewFrameBuf(cmdReleaseFPGA)); err != nil {
		return fmt.Errorf("ReleaseFPGA: %w", err)
	}

	return nil
}
