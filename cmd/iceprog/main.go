// Copyright (C) 2022, 2023 - Tillitis AB
// SPDX-License-Identifier: GPL-2.0-only

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/tillitis/iceprog/icefun"
	"github.com/tillitis/iceprog/internal/config"
	"github.com/tillitis/iceprog/internal/util"
	"golang.org/x/term"
)

// Use when printing err/diag msgs
var le = log.New(os.Stderr, "", 0)

const progname = "iceprog"

var version string

type options struct {
	fileName string
	devPath  string
	offset   int
	speed    int
	timeout  int
	verify   bool
	notify   bool
	verbose  bool
}

func main() {
	if version == "" {
		version = readBuildInfo()
	}

	conf, err := config.Load(progname)
	if err != nil {
		le.Printf("Failed to read %s: %v\n", config.Path(progname), err)
		os.Exit(1)
	}

	opts, code, ok := parseFlags(conf)
	if !ok {
		os.Exit(code)
	}

	os.Exit(program(opts))
}

func parseFlags(conf *config.Config) (options, int, bool) {
	var opts options
	var offset string
	var skipVerify, listPortsOnly, versionOnly, helpOnly bool

	speed := icefun.SerialSpeed
	if conf.Speed > 0 {
		speed = conf.Speed
	}

	pflag.CommandLine.SetOutput(os.Stderr)
	pflag.CommandLine.SortFlags = false
	pflag.StringVarP(&opts.devPath, "port", "P", conf.Port,
		"Set serial port device `PATH`. If this is not passed, auto-detection will be attempted.")
	pflag.StringVarP(&offset, "offset", "o", "0",
		"Start writing at flash address `N`. Decimal, or hex with a 0x prefix; append 'k' for kilobytes or 'M' for megabytes.")
	pflag.BoolVarP(&skipVerify, "skip-verify", "v", !conf.VerifyOr(true),
		"Skip reading back the flash after programming.")
	pflag.IntVar(&opts.speed, "speed", speed,
		"Set serial port speed in `BPS` (bits per second).")
	pflag.IntVar(&opts.timeout, "timeout", conf.Timeout,
		"Give up when the board doesn't answer within `SECONDS`. 0 waits forever.")
	pflag.BoolVarP(&listPortsOnly, "list-ports", "L", false,
		"List possible serial ports to use with --port.")
	pflag.BoolVar(&opts.notify, "notify", conf.Notify,
		"Show a desktop notification when done.")
	pflag.BoolVar(&opts.verbose, "verbose", false, "Enable verbose output, dumping every frame sent.")
	pflag.BoolVar(&versionOnly, "version", false, "Output version information.")
	pflag.BoolVarP(&helpOnly, "help", "h", false, "Output this help.")
	pflag.Usage = func() {
		desc := fmt.Sprintf(`Usage: %[1]s [flags...] FILE

%[1]s writes the FPGA configuration in FILE to the flash of a Devantech
iceFUN board and starts the FPGA. FILE is a raw bitstream, optionally xz
compressed. Use '-' (dash) to read it from stdin.

Defaults can be set in %[2]s.

Exit status code is 0 if the flash was written and the FPGA released, and 1
if anything goes wrong.`, progname, config.Path(progname))
		le.Printf("%s\n\n%s", desc,
			pflag.CommandLine.FlagUsagesWrapped(86))
	}
	pflag.Parse()

	if helpOnly {
		pflag.Usage()
		return opts, 0, false
	}

	if versionOnly {
		fmt.Printf("%s %s\n", progname, version)
		return opts, 0, false
	}

	if listPortsOnly {
		n, err := printPorts()
		if err != nil {
			le.Printf("%v\n", err)
			return opts, 1, false
		}
		// Successful only if we found some port
		if n == 0 {
			return opts, 1, false
		}
		return opts, 0, false
	}

	if pflag.NArg() > 1 {
		le.Printf("Unexpected argument: %s\n\n", strings.Join(pflag.Args()[1:], " "))
		pflag.Usage()
		return opts, 2, false
	}
	if pflag.NArg() == 0 {
		le.Printf("Please pass a bitstream FILE.\n\n")
		pflag.Usage()
		return opts, 2, false
	}
	opts.fileName = pflag.Arg(0)

	var err error
	if opts.offset, err = util.ParseOffset(offset); err != nil {
		le.Printf("%v\n", err)
		return opts, 2, false
	}
	opts.verify = !skipVerify

	return opts, 0, true
}

// program runs the whole programming session and returns the exit
// code.
func program(opts options) int {
	if opts.verbose {
		icefun.DumpFrames(os.Stderr)
	}

	img, err := loadImage(opts.fileName, opts.offset)
	if err != nil {
		le.Printf("Failed to read %s: %v\n", opts.fileName, err)
		return 1
	}
	if util.LooksLikeELF(img.Bytes()) {
		le.Printf("%s looks like an ELF executable, but a raw bitstream is expected.\n", opts.fileName)
		return 1
	}
	le.Printf("Image %s: %d bytes at 0x%06x, digest %x\n",
		opts.fileName, img.Length, img.Offset, img.Digest())

	if opts.devPath == "" {
		if opts.devPath, err = util.DetectSerialPort(); err != nil {
			le.Printf("%v\n", err)
			return 1
		}
	}

	board := icefun.New()
	if err = board.Connect(opts.devPath, icefun.WithSpeed(opts.speed)); err != nil {
		le.Printf("Could not open %s: %v\n", opts.devPath, err)
		return 1
	}
	handleSignals(func() {
		_ = board.Close()
		os.Exit(1)
	}, os.Interrupt, syscall.SIGTERM)

	if opts.timeout > 0 {
		err = board.SetReadTimeout(opts.timeout)
	}
	if err == nil {
		err = run(board, img, opts.verify)
	}
	if closeErr := board.Close(); closeErr != nil {
		err = multierror.Append(err, closeErr)
	}

	if opts.notify {
		util.Notify(progname, err)
	}

	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "%s: %v\n", progname, err)
		return 1
	}
	color.New(color.FgGreen).Fprintf(os.Stderr, "Done.\n")
	return 0
}

func run(board *icefun.Board, img *icefun.Image, verify bool) error {
	p := newProgressPrinter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
	s := icefun.NewSession(board, img,
		icefun.WithVerify(verify),
		icefun.WithProgress(p.report))

	err := s.Run()
	p.finish()
	return err
}

func loadImage(fileName string, offset int) (*icefun.Image, error) {
	r, c, err := util.OpenImage(fileName)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return icefun.LoadImage(r, offset)
}

func readBuildInfo() string {
	version := "devel without BuildInfo"
	if info, ok := debug.ReadBuildInfo(); ok {
		sb := strings.Builder{}
		sb.WriteString("devel")
		for _, setting := range info.Settings {
			if strings.HasPrefix(setting.Key, "vcs") {
				sb.WriteString(fmt.Sprintf(" %s=%s", setting.Key, setting.Value))
			}
		}
		version = sb.String()
	}
	return version
}

func printPorts() (int, error) {
	ports, err := util.GetSerialPorts()
	if err != nil {
		return 0, fmt.Errorf("Failed to list ports: %w", err)
	}
	if len(ports) == 0 {
		le.Printf("No iceFUN serial ports found.\n")
	} else {
		le.Printf("iceFUN serial ports (on stdout):\n")
		for _, p := range ports {
			fmt.Fprintf(os.Stdout, "%s serialNumber:%s\n", p.DevPath, p.SerialNumber)
		}
	}
	return len(ports), nil
}

func handleSignals(action func(), sig ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig...)
	go func() {
		for {
			<-ch
			action()
		}
	}()
}
