// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ctlplane serves the control socket (spec.md §6): a net/rpc
// server listening on a Unix domain socket, exposing one method per
// control command. Grounded on the teacher's internal/ctlplane, which
// serves its own admin API the same way: net/rpc over a Unix socket,
// one thin method per command, with the real logic living behind a
// narrow interface so the transport stays boilerplate.
package ctlplane

import (
	"net"
	"net/rpc"
	"os"

	"rina.dev/ipcpd/internal/errors"
	"rina.dev/ipcpd/internal/logging"
)

// Reply is the uniform RPC reply envelope: Code is the command's exit
// code (0 on success), Message carries human-readable detail or RIB/
// routing table dumps for the *Show commands.
type Reply struct {
	Code    int
	Message string
}

// Hub is everything the control socket needs from the RIB dispatcher
// (C11). Defined here, implemented there, so ctlplane never imports rib.
type Hub interface {
	Register(applName, difName string) error
	Unregister(applName string) error
	Enroll(neighName, suppDIF string, wait bool) error
	EnrollerEnable(enable bool) error
	DFTSet(applName string, address uint64) error
	RIBShow() (string, error)
	RoutingShow() (string, error)
	PolicyMod(component, name string) error
	PolicyList(component string) ([]string, error)
	PolicyParamMod(component, name, value string) error
	PolicyParamList(component string) (map[string]string, error)
	NeighDisconnect(neighName string) error
	LowerDIFDetach(difName string) error
}

// Server implements one net/rpc method per control command.
type Server struct {
	hub Hub
	log *logging.Logger
}

// NewServer wraps hub for RPC exposure.
func NewServer(hub Hub, log *logging.Logger) *Server {
	return &Server{hub: hub, log: log}
}

// exitCode maps an internal error Kind onto the control socket's exit
// code convention (spec.md §6): 0 is always success, every error Kind
// gets its own small non-zero code so scripts can branch on failure
// class without parsing the message.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch errors.GetKind(err) {
	case errors.KindConfig:
		return 2
	case errors.KindResource:
		return 3
	case errors.KindProtocolViolation:
		return 4
	case errors.KindPeerFailure:
		return 5
	case errors.KindTransientIO:
		return 6
	case errors.KindFatal:
		return 7
	default:
		return 1
	}
}

func reply(err error) Reply {
	if err == nil {
		return Reply{Code: 0}
	}
	return Reply{Code: exitCode(err), Message: err.Error()}
}

// RegisterArgs names the application and the DIF to register it in.
type RegisterArgs struct {
	ApplName string
	DIFName  string
}

func (s *Server) Register(args RegisterArgs, rep *Reply) error {
	*rep = reply(s.hub.Register(args.ApplName, args.DIFName))
	return nil
}

func (s *Server) Unregister(applName string, rep *Reply) error {
	*rep = reply(s.hub.Unregister(applName))
	return nil
}

// EnrollArgs names a neighbor and the supporting (N-1) DIF to enroll
// against; Wait requests enroll(wait_for_completion) semantics.
type EnrollArgs struct {
	NeighName string
	SuppDIF   string
	Wait      bool
}

func (s *Server) Enroll(args EnrollArgs, rep *Reply) error {
	*rep = reply(s.hub.Enroll(args.NeighName, args.SuppDIF, args.Wait))
	return nil
}

func (s *Server) EnrollerEnable(enable bool, rep *Reply) error {
	*rep = reply(s.hub.EnrollerEnable(enable))
	return nil
}

// DFTSetArgs is a manual directory forwarding table override.
type DFTSetArgs struct {
	ApplName string
	Address  uint64
}

func (s *Server) DFTSet(args DFTSetArgs, rep *Reply) error {
	*rep = reply(s.hub.DFTSet(args.ApplName, args.Address))
	return nil
}

func (s *Server) RIBShow(_ struct{}, rep *Reply) error {
	msg, err := s.hub.RIBShow()
	*rep = reply(err)
	rep.Message = msg
	return nil
}

func (s *Server) RoutingShow(_ struct{}, rep *Reply) error {
	msg, err := s.hub.RoutingShow()
	*rep = reply(err)
	rep.Message = msg
	return nil
}

// PolicyModArgs selects a policy implementation for a component.
type PolicyModArgs struct {
	Component string
	Name      string
}

func (s *Server) PolicyMod(args PolicyModArgs, rep *Reply) error {
	*rep = reply(s.hub.PolicyMod(args.Component, args.Name))
	return nil
}

func (s *Server) PolicyList(component string, rep *Reply) error {
	names, err := s.hub.PolicyList(component)
	*rep = reply(err)
	if err == nil {
		for i, n := range names {
			if i > 0 {
				rep.Message += "\n"
			}
			rep.Message += n
		}
	}
	return nil
}

// PolicyParamModArgs sets one policy-registry parameter.
type PolicyParamModArgs struct {
	Component string
	Name      string
	Value     string
}

func (s *Server) PolicyParamMod(args PolicyParamModArgs, rep *Reply) error {
	*rep = reply(s.hub.PolicyParamMod(args.Component, args.Name, args.Value))
	return nil
}

func (s *Server) PolicyParamList(component string, rep *Reply) error {
	params, err := s.hub.PolicyParamList(component)
	*rep = reply(err)
	if err == nil {
		for k, v := range params {
			rep.Message += k + "=" + v + "\n"
		}
	}
	return nil
}

func (s *Server) NeighDisconnect(neighName string, rep *Reply) error {
	*rep = reply(s.hub.NeighDisconnect(neighName))
	return nil
}

func (s *Server) LowerDIFDetach(difName string, rep *Reply) error {
	*rep = reply(s.hub.LowerDIFDetach(difName))
	return nil
}

// ListenAndServe binds sockPath (removing any stale socket file left
// behind by a previous instance) and serves RPC connections until
// stop is closed.
func ListenAndServe(sockPath string, s *Server, stop <-chan struct{}) error {
	_ = os.Remove(sockPath)

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return errors.Wrap(err, errors.KindFatal, "ctlplane: listen")
	}
	defer ln.Close()

	rpcServer := rpc.NewServer()
	if err := rpcServer.Register(s); err != nil {
		return errors.Wrap(err, errors.KindFatal, "ctlplane: register")
	}

	go func() {
		<-stop
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
				s.log.Warn("ctlplane: accept failed", "error", err)
				continue
			}
		}
		go rpcServer.ServeConn(conn)
	}
}
