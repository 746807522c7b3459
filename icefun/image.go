// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package icefun

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2s"
)

// Image is a flash sized buffer with a configuration image placed at
// Offset. Bytes outside [Offset, Offset+Length) are zero and are sent
// as padding when the image does not end on a page boundary.
type Image struct {
	buf    [FlashSize]byte
	Offset int
	Length int
}

// NewImage returns an Image holding a copy of data at offset.
func NewImage(data []byte, offset int) (*Image, error) {
	if offset < 0 || offset >= FlashSize {
		return nil, fmt.Errorf("offset 0x%x is outside the flash", offset)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if len(data) > FlashSize-offset {
		return nil, fmt.Errorf("image of %d bytes doesn't fit in flash at 0x%06x", len(data), offset)
	}

	img := &Image{Offset: offset, Length: len(data)}
	copy(img.buf[offset:], data)

	return img, nil
}

// LoadImage reads an image from r into the buffer at offset. At most
// the remaining flash space after offset is read; anything beyond is
// ignored.
func LoadImage(r io.Reader, offset int) (*Image, error) {
	if offset < 0 || offset >= FlashSize {
		return nil, fmt.Errorf("offset 0x%x is outside the flash", offset)
	}

	img := &Image{Offset: offset}
	n, err := io.ReadFull(r, img.buf[offset:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ReadFull: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("empty image")
	}
	img.Length = n

	return img, nil
}

// End returns the address just past the image.
func (img *Image) End() int {
	return img.Offset + img.Length
}

// Bytes returns the image without padding.
func (img *Image) Bytes() []byte {
	return img.buf[img.Offset:img.End()]
}

// Page returns the PageSize bytes at addr. The tail of the last page
// of an image comes from the buffer past the image end. A page that
// would run off the end of the flash is zero padded.
func (img *Image) Page(addr uint32) []byte {
	if int(addr)+PageSize <= FlashSize {
		return img.buf[addr : addr+PageSize]
	}

	page := make([]byte, PageSize)
	if int(addr) < FlashSize {
		copy(page, img.buf[addr:])
	}
	return page
}

// Digest returns the BLAKE2s-256 digest of the image bytes.
func (img *Image) Digest() [32]byte {
	return blake2s.Sum256(img.Bytes())
}

// SectorOf returns the index of the 64 KiB sector holding addr.
func SectorOf(addr uint32) byte {
	return byte(addr >> 16)
}

// SectorRange returns the sectors to erase before writing length
// bytes at offset, as the half open range [first, end). Every sector
// the write touches is erased whole. The range always includes the
// sector holding offset+length, also when the write ends exactly on a
// sector boundary.
func SectorRange(offset, length int) (first, end int) {
	return offset >> 16, ((offset + length) >> 16) + 1
}

// PageAddrs returns the address of every page written for length
// bytes at offset, in ascending order.
func PageAddrs(offset, length int) []uint32 {
	var addrs []uint32
	for addr := offset; addr < offset+length; addr += PageSize {
		addrs = append(addrs, uint32(addr))
	}
	return addrs
}
