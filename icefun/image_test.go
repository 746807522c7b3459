// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package icefun

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2s"
)

func TestSectorRange(t *testing.T) {
	for offset := 0; offset < FlashSize; offset += 0x7f00 {
		for _, length := range []int{1, 255, 256, 0xffff, 0x10000, 0x10001, 0x2abcd} {
			if offset+length > FlashSize {
				continue
			}
			first, end := SectorRange(offset, length)
			assert.Equal(t, offset>>16, first)
			assert.Equal(t, (offset+length)>>16, end-1)
			assert.Equal(t, SectorOf(uint32(offset)), byte(first))
		}
	}
}

func TestPageAddrs(t *testing.T) {
	assert.Equal(t, []uint32{0}, PageAddrs(0, 256))
	assert.Equal(t, []uint32{0x100, 0x200}, PageAddrs(0x100, 257))
	assert.Equal(t, []uint32{0x80, 0x180}, PageAddrs(0x80, 300))
	assert.Len(t, PageAddrs(0, 65537), 257)
	assert.Empty(t, PageAddrs(0x100, 0))
}

func TestLoadImage(t *testing.T) {
	data := bytes.Repeat([]byte{0xa5, 0x5a}, 1000)

	img, err := LoadImage(bytes.NewReader(data), 0x20000)
	require.NoError(t, err)
	assert.Equal(t, 0x20000, img.Offset)
	assert.Equal(t, len(data), img.Length)
	assert.Equal(t, 0x20000+len(data), img.End())
	assert.Equal(t, data, img.Bytes())
	assert.Equal(t, blake2s.Sum256(data), img.Digest())

	// the tail of the last page is padding
	last := img.Page(0x20000 + 7*PageSize)
	assert.Equal(t, data[7*PageSize:], last[:len(data)-7*PageSize])
	assert.Equal(t, make([]byte, 8*PageSize-len(data)), last[len(data)-7*PageSize:])
}

func TestLoadImageTruncatesAtFlashEnd(t *testing.T) {
	img, err := LoadImage(bytes.NewReader(make([]byte, 3*PageSize)), FlashSize-PageSize)
	require.NoError(t, err)
	assert.Equal(t, PageSize, img.Length)
	assert.Equal(t, FlashSize, img.End())
}

func TestLoadImageErrors(t *testing.T) {
	_, err := LoadImage(bytes.NewReader(nil), 0)
	assert.Error(t, err)

	_, err = LoadImage(bytes.NewReader([]byte{1}), FlashSize)
	assert.Error(t, err)

	_, err = LoadImage(bytes.NewReader([]byte{1}), -1)
	assert.Error(t, err)
}

func TestNewImageErrors(t *testing.T) {
	_, err := NewImage(nil, 0)
	assert.Error(t, err)

	_, err = NewImage(make([]byte, 2), FlashSize-1)
	assert.Error(t, err)
}

func TestPagePastFlashEnd(t *testing.T) {
	img, err := NewImage([]byte{1, 2, 3, 4}, FlashSize-4)
	require.NoError(t, err)

	page := img.Page(FlashSize - 4)
	require.Len(t, page, PageSize)
	assert.Equal(t, []byte{1, 2, 3, 4}, page[:4])
	assert.Equal(t, make([]byte, PageSize-4), page[4:])
}
