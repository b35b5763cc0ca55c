package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Operators (rampage-ctl) and camera feeders send control events here.
//
// Protocol: line-delimited JSON
//   - Client sends: {"type": "event_name", "data": {...}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//
// A single connection may stream many events; a flow feeder keeps one open
// and writes a line per frame.
// ============================================================================

// maxIPCLine bounds one request line.
const maxIPCLine = 64 * 1024

// IPCResponse is sent back for every request line.
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// runIPCServer serves the socket until ctx is canceled.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, events, logger)
	}
}

func handleIPCConnection(conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	log := logger
	if cred, ok := peerCredentials(conn); ok {
		log = logger.With("peer_pid", cred.PID, "peer_uid", cred.UID)
	}
	log.Debug("IPC connection")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxIPCLine)
	encoder := json.NewEncoder(conn)

	reply := func(resp IPCResponse) bool {
		if err := encoder.Encode(resp); err != nil {
			log.Debug("IPC failed to send response", "error", err)
			return false
		}
		return true
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ev, err := UnmarshalEvent([]byte(line))
		if err != nil {
			log.Debug("IPC rejected line", "error", err)
			if !reply(IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)}) {
				return
			}
			continue
		}

		select {
		case events <- ev:
			if !reply(IPCResponse{Status: "ok"}) {
				return
			}
		default:
			if !reply(IPCResponse{Status: "error", Error: "event queue full"}) {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn("IPC read error", "error", err)
	}

	log.Debug("IPC connection closed")
}

// peerCred identifies the process on the other end of a unix socket.
type peerCred struct {
	PID int32
	UID uint32
}

// ============================================================================
// IPC Client
// ============================================================================

// SendIPCEvent sends one event and waits for the reply.
func SendIPCEvent(socketPath string, ev Event) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	return sendOnConn(conn, ev)
}

func sendOnConn(conn net.Conn, ev Event) error {
	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}
	return nil
}
