// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"
)

const (
	// Name the board's USB descriptors and by-id links carry
	boardName = "iceFUN"
	// Udev symlinks named after the USB descriptors
	serialByID = "/dev/serial/by-id"
	// Where the board shows up on Linux when nothing better is known
	DefaultPort = "/dev/ttyACM0"
)

type SerialPort struct {
	DevPath      string
	SerialNumber string
}

// DetectSerialPort returns the port of the only attached iceFUN
// board. With no board found it falls back to DefaultPort, like the
// vendor tool. With several boards found it asks the user to choose.
func DetectSerialPort() (string, error) {
	ports, err := GetSerialPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		fmt.Fprintf(os.Stderr, "Could not detect any iceFUN serial ports, trying %s. You may pass\n"+
			"a known path using the --port flag.\n", DefaultPort)
		return DefaultPort, nil
	}
	if len(ports) > 1 {
		fmt.Fprintf(os.Stderr, "Detected %d iceFUN serial ports:\n", len(ports))
		for _, p := range ports {
			fmt.Fprintf(os.Stderr, "%s with serial number %s\n", p.DevPath, p.SerialNumber)
		}
		return "", fmt.Errorf("please choose one of the above by using the --port flag")
	}
	fmt.Fprintf(os.Stderr, "Auto-detected serial port %s\n", ports[0].DevPath)
	return ports[0].DevPath, nil
}

// GetSerialPorts lists the USB serial ports whose product name is the
// board's, and the udev by-id links naming it.
func GetSerialPorts() ([]SerialPort, error) {
	var ports []SerialPort
	portDetails, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("GetDetailedPortsList: %w", err)
	}
	for _, port := range portDetails {
		if port.IsUSB && strings.Contains(port.Product, boardName) {
			ports = append(ports, SerialPort{port.Name, port.SerialNumber})
		}
	}
	if len(ports) > 0 {
		return ports, nil
	}

	return portsByID(serialByID)
}

// portsByID finds links in dir, as created by udev, with the board
// name in them.
func portsByID(dir string) ([]SerialPort, error) {
	var ports []SerialPort
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ReadDir: %w", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), boardName) {
			ports = append(ports, SerialPort{DevPath: filepath.Join(dir, e.Name())})
		}
	}
	return ports, nil
}
