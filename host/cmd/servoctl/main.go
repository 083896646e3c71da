package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"megaservo/core"
	"megaservo/host/config"
	"megaservo/host/link"
	"megaservo/host/plan"
	"megaservo/host/serial"
)

const usage = `servoctl - ATmega2560 servo controller host tool

Usage:
  servoctl plan    -config FILE [-program]
  servoctl ports
  servoctl identify -device DEV

Link commands read -device, -baud and -driver from the "serial" section of
-config when it is given.
  servoctl angle   -device DEV -oid N DEGREES
  servoctl ticks   -device DEV -oid N TICKS
  servoctl enable  -device DEV -oid N
  servoctl disable -device DEV -oid N
  servoctl query   -device DEV -oid N
  servoctl shell   -device DEV
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	configPath := fs.String("config", "servos.json", "Servo configuration file")
	program := fs.Bool("program", false, "List the register program")
	device := fs.String("device", "/dev/ttyACM0", "Serial device path")
	baud := fs.Int("baud", serial.DefaultBaud, "Baud rate")
	driver := fs.String("driver", string(serial.DriverTarm), "Serial driver (tarm or bugst)")
	oid := fs.Uint("oid", 0, "Servo object id")
	timeout := fs.Duration("timeout", 2*time.Second, "Command timeout")
	verbose := fs.Bool("verbose", false, "Enable verbose output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if *verbose {
		core.SetDebugWriter(func(s string) { log.Debug(s) })
		core.SetDebugEnabled(true)
	}

	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil

	case "plan":
		return runPlan(stdout, *configPath, *program)

	case "ports":
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintln(stdout, p)
		}
		return nil
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	cfg.Driver = serial.Driver(*driver)
	if set["config"] {
		if err := applySerialConfig(cfg, *configPath, set); err != nil {
			return err
		}
	}
	if *oid > 0xFF {
		return errors.Errorf("oid %d out of range", *oid)
	}

	l, err := link.Dial(cfg, log)
	if err != nil {
		return err
	}
	defer l.Close()

	if cmd == "shell" {
		return shell(l, stdin, stdout, *timeout)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return execute(ctx, l, stdout, cmd, uint8(*oid), fs.Args())
}

func runPlan(w io.Writer, path string, program bool) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	pins, err := core.TakePins()
	if err != nil {
		return err
	}
	p, err := plan.Build(cfg, pins)
	if err != nil {
		return err
	}
	return p.Print(w, program)
}

// applySerialConfig fills the link settings from a configuration file.
// Flags given on the command line win.
func applySerialConfig(cfg *serial.Config, path string, set map[string]bool) error {
	fc, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if !set["device"] && fc.Serial.Device != "" {
		cfg.Device = fc.Serial.Device
	}
	if !set["baud"] {
		cfg.Baud = fc.Serial.Baud
	}
	if !set["driver"] {
		cfg.Driver = serial.Driver(fc.Serial.Driver)
	}
	return nil
}

// execute runs one servo command against the link
func execute(ctx context.Context, l *link.Link, w io.Writer, cmd string, oid uint8, args []string) error {
	switch cmd {
	case "angle":
		if len(args) != 1 {
			return errors.New("angle takes one argument: DEGREES")
		}
		deg, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return errors.Wrap(err, "invalid angle")
		}
		return l.SetAngle(ctx, oid, deg)

	case "ticks":
		if len(args) != 1 {
			return errors.New("ticks takes one argument: TICKS")
		}
		ticks, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return errors.Wrap(err, "invalid ticks")
		}
		return l.SetTicks(ctx, oid, uint16(ticks))

	case "enable":
		return l.SetEnabled(ctx, oid, true)

	case "disable":
		return l.SetEnabled(ctx, oid, false)

	case "identify":
		dict, err := l.Identify(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "version %s\n", dict.Version)
		for _, sw := range dict.Servos() {
			fmt.Fprintf(w, "oid %d on %s\n", sw.OID, sw.Output)
		}
		if err := dict.Check(); err != nil {
			return errors.Wrap(err, "firmware message table mismatch")
		}
		fmt.Fprintln(w, "message table matches")
		return nil

	case "query":
		st, err := l.Query(ctx, oid)
		if err != nil {
			return err
		}
		state := "disabled"
		if st.Enabled {
			state = "enabled"
		}
		angle := "unset"
		if st.Ticks != 0 {
			angle = fmt.Sprintf("%.2f", float64(st.Centideg)/100)
		}
		fmt.Fprintf(w, "oid=%d %s ticks=%d top=%d angle=%s\n",
			st.OID, state, st.Ticks, st.Top, angle)
		return nil

	default:
		return errors.Errorf("unknown command: %s", cmd)
	}
}

// shell reads commands of the form "angle 3 90" until EOF or quit
func shell(l *link.Link, stdin io.Reader, w io.Writer, timeout time.Duration) error {
	fmt.Fprintln(w, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(stdin)

	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "quit", "exit", "q":
			return nil

		case "help", "?":
			printShellHelp(w)
			continue

		case "identify":
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			if err := execute(ctx, l, w, "identify", 0, nil); err != nil {
				fmt.Fprintf(w, "Error: %v\n", err)
			}
			cancel()
			continue
		}

		if len(parts) < 2 {
			fmt.Fprintf(w, "Usage: %s OID [ARG]\n", parts[0])
			continue
		}
		oid, err := strconv.ParseUint(parts[1], 0, 8)
		if err != nil {
			fmt.Fprintf(w, "Invalid oid: %s\n", parts[1])
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err = execute(ctx, l, w, parts[0], uint8(oid), parts[2:])
		cancel()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, "\nAvailable commands:")
	fmt.Fprintln(w, "  angle OID DEG    - Move servo to an angle (0-180)")
	fmt.Fprintln(w, "  ticks OID N      - Write a raw compare value")
	fmt.Fprintln(w, "  enable OID       - Connect the servo output")
	fmt.Fprintln(w, "  disable OID      - Disconnect the servo output")
	fmt.Fprintln(w, "  query OID        - Print servo state")
	fmt.Fprintln(w, "  identify         - Check the firmware message table")
	fmt.Fprintln(w, "  quit/exit/q      - Exit the program")
	fmt.Fprintln(w)
}
