// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

// Package config reads the optional per-user defaults for iceprog.
//
// The file is HCL and lives in the XDG config directory, normally
// ~/.config/iceprog/config.hcl:
//
//	port    = "/dev/ttyACM1"
//	speed   = 115200
//	verify  = true
//	timeout = 5
//	notify  = false
//
// Every attribute is optional. Command line flags override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

const fileName = "config.hcl"

type Config struct {
	Port    string `hcl:"port,optional"`
	Speed   int    `hcl:"speed,optional"`
	Verify  *bool  `hcl:"verify,optional"`
	Timeout int    `hcl:"timeout,optional"`
	Notify  bool   `hcl:"notify,optional"`
}

// Path returns where the config file for progname is looked for.
func Path(progname string) string {
	return filepath.Join(xdg.ConfigHome, progname, fileName)
}

// Load reads the config file for progname. A missing file gives an
// empty Config.
func Load(progname string) (*Config, error) {
	c, err := Read(Path(progname))
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return c, err
}

func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadFile: %w", err)
	}

	c := new(Config)
	if err = c.Decode(data, path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Decode(data []byte, filename string) error {
	file, diag := hclsyntax.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1})
	if diag.HasErrors() {
		return diag.Errs()[0]
	}

	diag = gohcl.DecodeBody(file.Body, nil, c)
	if diag.HasErrors() {
		return diag.Errs()[0]
	}

	if c.Speed < 0 {
		return fmt.Errorf("%s: speed must not be negative", filename)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%s: timeout must not be negative", filename)
	}
	return nil
}

func (c *Config) Encode() []byte {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(c, f.Body())
	return f.Bytes()
}

// VerifyOr returns the verify setting, or def when the file does not
// set it.
func (c *Config) VerifyOr(def bool) bool {
	if c.Verify == nil {
		return def
	}
	return *c.Verify
}
