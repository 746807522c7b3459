// Copyright (C) 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package util

import "fmt"

func NotifyMessage(err error) string {
	if err != nil {
		return fmt.Sprintf("Programming failed: %v", err)
	}
	return "Programming done, FPGA released."
}
