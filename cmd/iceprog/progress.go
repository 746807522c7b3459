// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package main

import (
	"fmt"
	"io"

	"github.com/tillitis/iceprog/icefun"
)

// Pages per progress dot when not writing to a terminal
const pagesPerDot = 10

// progressPrinter renders session progress. On a terminal it keeps a
// percentage on one line, otherwise it prints a dot every
// pagesPerDot pages.
type progressPrinter struct {
	w     io.Writer
	tty   bool
	phase icefun.State
}

func newProgressPrinter(w io.Writer, tty bool) *progressPrinter {
	return &progressPrinter{w: w, tty: tty, phase: icefun.StateStart}
}

func (p *progressPrinter) report(pr icefun.Progress) {
	var label string
	switch pr.Phase {
	case icefun.StateProgramming:
		label = "Programming"
	case icefun.StateVerifying:
		label = "Verifying"
	default:
		return
	}

	if pr.Phase != p.phase {
		if p.phase == icefun.StateProgramming {
			fmt.Fprintf(p.w, "\n")
		}
		p.phase = pr.Phase
		if !p.tty {
			fmt.Fprintf(p.w, "%s ", label)
		}
	}

	if p.tty {
		fmt.Fprintf(p.w, "\r%s %3d%% (%06X)", label, pr.Done*100/pr.Total, pr.Addr)
		return
	}
	if pr.Done%pagesPerDot == 0 {
		fmt.Fprintf(p.w, ".")
	}
}

// finish ends the progress line, if one was started.
func (p *progressPrinter) finish() {
	if p.phase == icefun.StateProgramming || p.phase == icefun.StateVerifying {
		fmt.Fprintf(p.w, "\n")
	}
}
