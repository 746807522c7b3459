// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package icefun

import (
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// PageSize is the number of payload bytes in every program and
	// verify frame.
	PageSize = 256
	// SectorSize is the erase unit of the flash.
	SectorSize = 64 * 1024
	// FlashSize is the whole flash address space of the board.
	FlashSize = 1024 * 1024
	// addrLen is the number of address bytes in a page frame.
	addrLen = 3
	// versionMarker is the first byte of a good GET_VER response.
	versionMarker = 38
)

// Cmd is one request in the iceFUN programming protocol. There is no
// framing on the wire, so every command knows how many bytes follow
// its code and how many bytes the board answers with.
type Cmd struct {
	code   byte
	name   string
	reqLen int
	rspLen int
}

// The command codes are contiguous from 0xb0. Only the commands with a
// non-zero response length are used by a programming session.
var (
	cmdGetVersion  = Cmd{0xb0, "cmdGetVersion", 0, 2}
	cmdResetFPGA   = Cmd{0xb1, "cmdResetFPGA", 0, 3}
	cmdEraseChip   = Cmd{0xb2, "cmdEraseChip", 0, 0}
	cmdErase64k    = Cmd{0xb3, "cmdErase64k", 1, 1}
	cmdProgramPage = Cmd{0xb4, "cmdProgramPage", addrLen + PageSize, 4}
	cmdReadPage    = Cmd{0xb5, "cmdReadPage", 0, 0}
	cmdVerifyPage  = Cmd{0xb6, "cmdVerifyPage", addrLen + PageSize, 4}
	cmdGetCDONE    = Cmd{0xb7, "cmdGetCDONE", 0, 0}
	cmdReleaseFPGA = Cmd{0xb8, "cmdReleaseFPGA", 0, 1}
)

// Commands lists the whole command set in code order.
var Commands = []Cmd{
	cmdGetVersion,
	cmdResetFPGA,
	cmdEraseChip,
	cmdErase64k,
	cmdProgramPage,
	cmdReadPage,
	cmdVerifyPage,
	cmdGetCDONE,
	cmdReleaseFPGA,
}

func (c Cmd) Code() byte {
	return c.code
}

func (c Cmd) String() string {
	return c.name
}

// FrameLen returns the number of bytes sent for the command, including
// the command code itself.
func (c Cmd) FrameLen() int {
	return 1 + c.reqLen
}

// RspLen returns the number of bytes the board answers the command
// with.
func (c Cmd) RspLen() int {
	return c.rspLen
}

// NewFrameBuf allocates a buffer with the exact size of the frame for
// cmd and places the command code in the first byte. The caller fills
// in the rest.
//
// Frame layout:
//
//	[0]      command code
//	[1..3]   address, high byte first (page commands)
//	[1]      sector index (cmdErase64k)
//	[4..259] page data (page commands)
func NewFrameBuf(cmd Cmd) []byte {
	tx := make([]byte, cmd.FrameLen())
	tx[0] = cmd.Code()
	return tx
}

// newPageFrame builds a page command frame for addr carrying data,
// which must be exactly PageSize bytes.
func newPageFrame(cmd Cmd, addr uint32, data []byte) ([]byte, error) {
	if len(data) != PageSize {
		return nil, fmt.Errorf("page data must be %d bytes, got %d", PageSize, len(data))
	}

	tx := NewFrameBuf(cmd)
	tx[1] = byte(addr >> 16)
	tx[2] = byte(addr >> 8)
	tx[3] = byte(addr)
	copy(tx[1+addrLen:], data)

	return tx, nil
}

// Dump hexdumps the frame in d with an explaining string s first.
func Dump(s string, d []byte) {
	if len(d) == 0 {
		dl.Printf("%s: no data\n", s)
		return
	}
	dl.Printf("%s (frame len: %d bytes):\n", s, len(d))
	dl.Printf("%s", hex.Dump(d))
}

type constError string

func (err constError) Error() string {
	return string(err)
}

const (
	ErrShortWrite         = constError("short write")
	ErrReadTimeout        = constError("read timeout")
	ErrUnexpectedResponse = constError("unexpected response")
	ErrProgramMismatch    = constError("program mismatch")
	ErrVerifyMismatch     = constError("verify mismatch")
	ErrSessionUsed        = constError("session already run")
)

// MismatchError is returned when the board reports that a page does
// not hold the bytes sent for it, either during its own write check or
// during a verify.
type MismatchError struct {
	Op       string
	Page     uint32
	Addr     uint32
	Expected byte
	Actual   byte
	Status   byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s failed at %06X, %02X expected, %02X read",
		e.Op, e.Addr, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error {
	if e.Op == "program" {
		return ErrProgramMismatch
	}
	return ErrVerifyMismatch
}

// parsePageResponse turns the 4 byte answer to a page command into an
// error. rx[1] is the index of the failing byte in the board's receive
// buffer, which holds the 4 byte command header before the data.
func parsePageResponse(op string, addr uint32, rx []byte, failed bool) error {
	if !failed {
		return nil
	}
	return &MismatchError{
		Op:       op,
		Page:     addr,
		Addr:     addr + uint32(rx[1]) - (1 + addrLen),
		Expected: rx[2],
		Actual:   rx[3],
		Status:   rx[0],
	}
}

func (b *Board) Write(d []byte) error {
	n, err := b.conn.Write(d)
	if err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	if n != len(d) {
		return fmt.Errorf("Write: %w: %d of %d bytes", ErrShortWrite, n, len(d))
	}

	return nil
}

// ReadResponse reads the fixed size response to cmd. A read that
// returns no data and no error means the read timeout set with
// SetReadTimeout expired, which is reported as ErrReadTimeout. A
// connection that ends early gives io.ErrUnexpectedEOF.
func (b *Board) ReadResponse(cmd Cmd) ([]byte, error) {
	rx := make([]byte, cmd.RspLen())

	for got := 0; got < len(rx); {
		n, err := b.conn.Read(rx[got:])
		got += n
		if err != nil {
			if err == io.EOF && got > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("Read %s: %w (%d of %d bytes)", cmd, err, got, len(rx))
		}
		if n == 0 {
			return nil, fmt.Errorf("Read %s: %w (%d of %d bytes)", cmd, ErrReadTimeout, got, len(rx))
		}
	}

	return rx, nil
}

// transact writes tx and reads the response to cmd. The board has no
// request IDs, so every response must be consumed before the next
// command goes out.
func (b *Board) transact(cmd Cmd, tx []byte) ([]byte, error) {
	Dump(cmd.String()+" tx", tx)
	if err := b.Write(tx); err != nil {
		return nil, err
	}

	rx, err := b.ReadResponse(cmd)
	if err != nil {
		return nil, err
	}
	Dump(cmd.String()+" rx", rx)

	return rx, nil
}
