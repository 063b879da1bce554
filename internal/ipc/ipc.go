// Package ipc is the local control channel between eryon-ctl and a running
// eryon: one JSON request and one JSON reply per unix-socket connection.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const (
	CmdLive = "live" // toggle the live conversation
	CmdStop = "stop" // stop the live conversation
	CmdMode = "mode" // Arg names the mode
)

type ControlMessage struct {
	Cmd string `json:"cmd"`
	Arg string `json:"arg,omitempty"`
}

type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

const ioTimeout = 5 * time.Second

type Server struct {
	ln   net.Listener
	path string
	wg   sync.WaitGroup
}

// Listen serves control messages on path until Close. A stale socket file
// left by a previous run is removed.
func Listen(path string, handler func(ControlMessage) error) (*Server, error) {
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	s := &Server{ln: ln, path: path}
	s.wg.Add(1)
	go s.serve(handler)

	log.Debug("Control socket listening", "path", path)
	return s, nil
}

func (s *Server) serve(handler func(ControlMessage) error) {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("Control accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			handleConn(conn, handler)
		}()
	}
}

func handleConn(conn net.Conn, handler func(ControlMessage) error) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		return
	}

	reply := Reply{OK: true}
	if err := handler(msg); err != nil {
		reply = Reply{Error: err.Error()}
	}
	_ = json.NewEncoder(conn).Encode(reply)
}

func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	_ = os.Remove(s.path)
	return err
}

// Send delivers msg and waits for the reply. A handler error comes back as
// an error.
func Send(path string, msg ControlMessage) error {
	conn, err := net.DialTimeout("unix", path, ioTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return err
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !reply.OK {
		return errors.New(reply.Error)
	}
	return nil
}
