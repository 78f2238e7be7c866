// Copyright (C) 2026 The ipcpd Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command ipcpd runs one RINA normal IPCP's RIB daemon: it loads an HCL
// config file, brings up the control socket and diagnostic HTTP endpoint,
// and starts the RIB's event loop and periodic tasks. Grounded on the
// teacher's cmd/proxy.go and cmd/start.go: flag-parsed entrypoint,
// structured logging set up first, signal-driven graceful shutdown.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rina.dev/ipcpd/internal/addr"
	"rina.dev/ipcpd/internal/config"
	"rina.dev/ipcpd/internal/ctlplane"
	"rina.dev/ipcpd/internal/kernelrt"
	"rina.dev/ipcpd/internal/logging"
	"rina.dev/ipcpd/internal/metrics"
	"rina.dev/ipcpd/internal/rib"
	"rina.dev/ipcpd/internal/tcpflow"
)

func main() {
	configPath := flag.String("config", "", "path to the IPCP's HCL config file")
	listenAddr := flag.String("listen", "", "TCP address to accept inbound N-1 flows on (reference tcpflow transport)")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on, empty disables")
	enrollerEnabled := flag.Bool("enroller-enable", false, "accept enrollment requests from new neighbors")
	autoReconnect := flag.Bool("auto-reconnect", false, "retry enrollment to neighbors whose flow was lost")
	reliableNFlows := flag.Bool("reliable-n-flows", false, "open a dedicated reliable N-flow when the management flow isn't one")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	myAddrFlag := flag.Uint64("addr", 0, "this IPCP's address, 0 if it must be assigned by an enroller")
	var peerFlags, enrollFlags multiFlag
	flag.Var(&peerFlags, "peer", "name=suppDIF@dialAddr, repeatable, registers a dial address for enroll/reconnect")
	flag.Var(&enrollFlags, "enroll", "name=suppDIF, repeatable, enroll to this neighbor once the daemon is up")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "ipcpd: -config is required")
		os.Exit(2)
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ipcpd:", err)
		os.Exit(2)
	}
	log := logging.New(os.Stderr, level).WithFields("component", "ipcpd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, m, log)
	}

	allocator := tcpflow.New(cfg.Name())
	for _, spec := range peerFlags {
		name, suppDIF, dialAddr, err := parsePeerSpec(spec)
		if err != nil {
			log.Error("invalid -peer", "spec", spec, "error", err)
			os.Exit(2)
		}
		allocator.AddPeer(suppDIF, name, dialAddr)
	}

	programmer := newProgrammer(log)

	r := rib.New(rib.Config{
		MyName:           cfg.Name(),
		MyAddr:           addr.Addr(*myAddrFlag),
		LowerDIFs:        cfg.LowerDIFs,
		Allocator:        allocator,
		Kernel:           programmer,
		EnrollerEnabled:  *enrollerEnabled,
		AutoReconnect:    *autoReconnect,
		ReliableNFlows:   *reliableNFlows,
		TieBreak:         tieBreakFor(cfg.Name()),
		PeriodicInterval: 10 * time.Second,
	}, log, m)

	for _, pb := range cfg.Policies {
		if err := r.PolicyMod(pb.Component, pb.Name); err != nil {
			log.Error("failed to apply configured policy", "component", pb.Component, "policy", pb.Name, "error", err)
			os.Exit(1)
		}
		for k, v := range pb.Params {
			if err := r.PolicyParamMod(pb.Component, k, v); err != nil {
				log.Error("failed to apply configured policy param", "component", pb.Component, "param", k, "error", err)
				os.Exit(1)
			}
		}
	}

	r.Run()
	defer r.Close()

	var listener *tcpflow.Listener
	if *listenAddr != "" {
		listener, err = tcpflow.Listen(*listenAddr)
		if err != nil {
			log.Error("failed to listen for inbound N-1 flows", "error", err)
			os.Exit(1)
		}
		defer listener.Close()
		go acceptLoop(listener, r, log)
	}

	ctlStop := make(chan struct{})
	ctlDone := make(chan struct{})
	go func() {
		defer close(ctlDone)
		srv := ctlplane.NewServer(r, log)
		if err := ctlplane.ListenAndServe(cfg.CtlSockPath, srv, ctlStop); err != nil {
			log.Error("control socket exited", "error", err)
		}
	}()
	defer func() {
		close(ctlStop)
		<-ctlDone
	}()

	for _, spec := range enrollFlags {
		name, suppDIF, err := parseEnrollSpec(spec)
		if err != nil {
			log.Error("invalid -enroll", "spec", spec, "error", err)
			os.Exit(2)
		}
		go func(name addr.Name, suppDIF string) {
			if err := r.EnrollNeighbor(name, suppDIF, false); err != nil {
				log.Warn("enroll request failed", "neighbor", name.String(), "error", err)
			}
		}(name, suppDIF)
	}

	log.Info("ipcpd started", "process_name", cfg.ProcessName, "ctlsock", cfg.CtlSockPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("ipcpd shutting down")
}

func serveMetrics(bindAddr string, m *metrics.Metrics, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(bindAddr, mux); err != nil {
		log.Error("metrics server exited", "error", err)
	}
}

// newProgrammer picks a kernel forwarding-table programmer: a real
// netlink one when routes can actually be listed (Linux, sufficient
// privilege), falling back to an in-memory Recording otherwise so the
// RIB's shortest-path engine still has somewhere to push to.
func newProgrammer(log *logging.Logger) kernelrt.Programmer {
	p := kernelrt.NewNetlink(201)
	if err := p.Flush(); err != nil {
		log.Warn("netlink forwarding table unavailable, recording PDUFT pushes instead", "error", err)
		return kernelrt.NewRecording()
	}
	return p
}

// tieBreakFor derives a stable, arbitrary per-process tie-breaker from
// the IPCP's own name (spec.md §4.7): the address allocator only needs
// this to be consistent across restarts with the same identity and
// differ from a peer's with overwhelming probability, not to be secret.
func tieBreakFor(name addr.Name) uint64 {
	var h uint64 = 1469598103934665603
	for _, b := range []byte(name.String()) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return h
}

func acceptLoop(l *tcpflow.Listener, r *rib.RIB, log *logging.Logger) {
	for {
		in, err := l.Accept()
		if err != nil {
			return
		}
		r.AcceptNeighborFlow(in.Peer, in.SuppDIF, in.Flow)
		log.Info("accepted inbound N-1 flow", "peer", in.Peer.String(), "supp_dif", in.SuppDIF)
	}
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// parsePeerSpec parses "name=suppDIF@dialAddr".
func parsePeerSpec(spec string) (addr.Name, string, string, error) {
	namePart, rest, ok := strings.Cut(spec, "=")
	if !ok {
		return addr.Name{}, "", "", fmt.Errorf("expected name=suppDIF@dialAddr, got %q", spec)
	}
	suppDIF, dialAddr, ok := strings.Cut(rest, "@")
	if !ok {
		return addr.Name{}, "", "", fmt.Errorf("expected name=suppDIF@dialAddr, got %q", spec)
	}
	name, err := addr.ParseName(namePart)
	if err != nil {
		return addr.Name{}, "", "", err
	}
	return name, suppDIF, dialAddr, nil
}

// parseEnrollSpec parses "name=suppDIF".
func parseEnrollSpec(spec string) (addr.Name, string, error) {
	namePart, suppDIF, ok := strings.Cut(spec, "=")
	if !ok {
		return addr.Name{}, "", fmt.Errorf("expected name=suppDIF, got %q", spec)
	}
	name, err := addr.ParseName(namePart)
	if err != nil {
		return addr.Name{}, "", err
	}
	return name, suppDIF, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown -log-level %q", s)
	}
}
