// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package util

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"
)

// xzMagic starts every xz stream.
var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// OpenImage opens a bitstream file for reading. An xz compressed file
// is decompressed on the fly. Use "-" to read from stdin. The returned
// closer closes the underlying file.
func OpenImage(fileName string) (io.Reader, io.Closer, error) {
	var f *os.File
	if fileName == "-" {
		f = os.Stdin
	} else {
		var err error
		if f, err = os.Open(fileName); err != nil {
			return nil, nil, fmt.Errorf("Open: %w", err)
		}
	}

	r := bufio.NewReader(f)
	magic, err := r.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		f.Close()
		return nil, nil, fmt.Errorf("Peek: %w", err)
	}
	if !bytes.Equal(magic, xzMagic) {
		return r, f, nil
	}

	xr, err := xz.NewReader(r)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("xz.NewReader: %w", err)
	}
	return xr, f, nil
}

// LooksLikeELF tells if data starts like an ELF file, which is not
// what the board expects.
func LooksLikeELF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("\x7fELF"))
}
