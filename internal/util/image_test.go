// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package util

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func readImage(t *testing.T, path string) []byte {
	t.Helper()
	r, c, err := OpenImage(path)
	require.NoError(t, err)
	defer c.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestOpenImageRaw(t *testing.T) {
	data := bytes.Repeat([]byte{0xff, 0x00, 0x00, 0xff}, 300)
	path := filepath.Join(t.TempDir(), "blinky.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	assert.Equal(t, data, readImage(t, path))
}

func TestOpenImageShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2}, 0o600))

	assert.Equal(t, []byte{1, 2}, readImage(t, path))
}

func TestOpenImageXZ(t *testing.T) {
	data := bytes.Repeat([]byte("iceFUN bitstream "), 500)

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "blinky.bin.xz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	assert.Equal(t, data, readImage(t, path))
}

func TestOpenImageMissing(t *testing.T) {
	_, _, err := OpenImage(filepath.Join(t.TempDir(), "nope.bin"))
	assert.Error(t, err)
}

func TestLooksLikeELF(t *testing.T) {
	assert.True(t, LooksLikeELF([]byte("\x7fELF\x02\x01")))
	assert.False(t, LooksLikeELF([]byte{0xff, 0x00, 0x00, 0xff}))
}

func TestNotifyMessage(t *testing.T) {
	assert.Equal(t, "Programming done, FPGA released.", NotifyMessage(nil))
	assert.Contains(t, NotifyMessage(io.ErrUnexpectedEOF), "unexpected EOF")
}

func TestPortsByID(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"usb-Devantech_Ltd._iceFUN_1234-if00",
		"usb-FTDI_FT232R_A50285BI-if00-port0",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	ports, err := portsByID(dir)
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, filepath.Join(dir, "usb-Devantech_Ltd._iceFUN_1234-if00"), ports[0].DevPath)

	ports, err = portsByID(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.Empty(t, ports)
}
