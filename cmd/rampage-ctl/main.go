package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

// ============================================================================
// rampage-ctl - Command-line IPC client
// ============================================================================
// Sends control events to the rampage daemon.
//
// Usage:
//   rampage-ctl phase action
//   rampage-ctl monster robot
//   rampage-ctl intro
//   rampage-ctl play scream
//   rampage-ctl set sampler.heavyChaosPoints 1200
//   rampage-ctl track 1 off
//   flowcam | rampage-ctl flow 0
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/rampage.sock)
// ============================================================================

// envelope mirrors the daemon's wire format; this binary is standalone.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ipcResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "USAGE:")
	fmt.Fprintln(os.Stderr, "  rampage-ctl [-socket PATH] COMMAND [ARGS]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "COMMANDS:")
	fmt.Fprintln(os.Stderr, "  phase stopped|reconstructing|action")
	fmt.Fprintln(os.Stderr, "  monster robot|lizard|other")
	fmt.Fprintln(os.Stderr, "  intro                       play the monster intro and start scoring")
	fmt.Fprintln(os.Stderr, "  play large_damage|scream|circus")
	fmt.Fprintln(os.Stderr, "  set KEY VALUE               change a live parameter")
	fmt.Fprintln(os.Stderr, "  track CAMERA on|off         enable or disable a camera's tracker")
	fmt.Fprintln(os.Stderr, "  flow CAMERA                 stream flow values from stdin, one per line")
}

func main() {
	socketPath := flag.String("socket", "/tmp/rampage.sock", "Unix domain socket path")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var err error
	if args[0] == "flow" {
		err = streamFlow(*socketPath, args[1:], os.Stdin)
	} else {
		var env envelope
		env, err = buildEvent(args)
		if err == nil {
			err = send(*socketPath, env)
		}
	}

	if errors.Is(err, flag.ErrHelp) {
		printUsage()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if args[0] != "flow" {
		fmt.Println("ok")
	}
}

func newEnvelope(typ string, data any) (envelope, error) {
	if data == nil {
		return envelope{Type: typ}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Type: typ, Data: b}, nil
}

func needArgs(args []string, n int, usage string) error {
	if len(args) < n+1 {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func buildEvent(args []string) (envelope, error) {
	switch args[0] {
	case "phase":
		if err := needArgs(args, 1, "phase stopped|reconstructing|action"); err != nil {
			return envelope{}, err
		}
		return newEnvelope("set_phase", map[string]string{"phase": args[1]})

	case "monster":
		if err := needArgs(args, 1, "monster robot|lizard|other"); err != nil {
			return envelope{}, err
		}
		return newEnvelope("set_monster", map[string]string{"monster": args[1]})

	case "intro":
		return newEnvelope("trigger_intro", nil)

	case "play":
		if err := needArgs(args, 1, "play large_damage|scream|circus"); err != nil {
			return envelope{}, err
		}
		return newEnvelope("play_manual", map[string]string{"cue": args[1]})

	case "set":
		if err := needArgs(args, 2, "set KEY VALUE"); err != nil {
			return envelope{}, err
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return envelope{}, fmt.Errorf("invalid value %q: %w", args[2], err)
		}
		return newEnvelope("set_param", map[string]any{"key": args[1], "value": v})

	case "track":
		if err := needArgs(args, 2, "track CAMERA on|off"); err != nil {
			return envelope{}, err
		}
		cam, err := strconv.Atoi(args[1])
		if err != nil {
			return envelope{}, fmt.Errorf("invalid camera %q: %w", args[1], err)
		}
		var enabled bool
		switch args[2] {
		case "on", "enable", "true":
			enabled = true
		case "off", "disable", "false":
		default:
			return envelope{}, fmt.Errorf("expected on or off, got %q", args[2])
		}
		return newEnvelope("set_tracker_enabled", map[string]any{"camera": cam, "enabled": enabled})

	case "help", "-h", "--help":
		return envelope{}, flag.ErrHelp

	default:
		return envelope{}, fmt.Errorf("unknown command: %s", args[0])
	}
}

func send(socketPath string, env envelope) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	return roundTrip(conn, bufio.NewReader(conn), env)
}

func roundTrip(w io.Writer, r *bufio.Reader, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	line, err := r.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var resp ipcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	return nil
}

// streamFlow forwards one flow value per input line over a single
// connection. Rejected values are reported and skipped.
func streamFlow(socketPath string, args []string, in io.Reader) error {
	if len(args) < 1 {
		return errors.New("usage: flow CAMERA")
	}
	cam, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid camera %q: %w", args[0], err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %q: %v\n", text, err)
			continue
		}
		env, err := newEnvelope("flow_observed", map[string]any{"camera": cam, "flow": v})
		if err != nil {
			return err
		}
		if err := roundTrip(conn, r, env); err != nil {
			// A full queue drops one frame; anything else ends the stream.
			if strings.Contains(err.Error(), "event queue full") {
				continue
			}
			return err
		}
	}
	return scanner.Err()
}
