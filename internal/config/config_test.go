// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	schema := `
port    = "/dev/ttyACM1"
speed   = 9600
verify  = false
timeout = 3
notify  = true
`
	c := new(Config)
	require.NoError(t, c.Decode([]byte(schema), "test.hcl"))

	assert.Equal(t, "/dev/ttyACM1", c.Port)
	assert.Equal(t, 9600, c.Speed)
	assert.Equal(t, 3, c.Timeout)
	assert.True(t, c.Notify)
	assert.False(t, c.VerifyOr(true))
}

func TestDecodeEmpty(t *testing.T) {
	c := new(Config)
	require.NoError(t, c.Decode(nil, "empty.hcl"))

	assert.Equal(t, "", c.Port)
	assert.True(t, c.VerifyOr(true))
	assert.False(t, c.VerifyOr(false))
}

func TestDecodeErrors(t *testing.T) {
	for _, schema := range []string{
		`port = `,
		`baud = 9600`,
		`speed = "fast"`,
		`timeout = -1`,
	} {
		c := new(Config)
		assert.Error(t, c.Decode([]byte(schema), "bad.hcl"), schema)
	}
}

func TestEncodeDecode(t *testing.T) {
	verify := true
	c := &Config{Port: "/dev/ttyUSB0", Speed: 115200, Verify: &verify}

	d := new(Config)
	require.NoError(t, d.Decode(c.Encode(), "roundtrip.hcl"))
	assert.Equal(t, c, d)
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`port = "/dev/ttyACM2"`), 0o600))

	c, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM2", c.Port)

	_, err = Read(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "config.hcl", filepath.Base(Path("iceprog")))
	assert.Equal(t, "iceprog", filepath.Base(filepath.Dir(Path("iceprog"))))
}
