// Package sfu implements the voice selective forwarding unit: a pool of
// media workers, one router per room, and the transport/producer/consumer
// lifecycle clients drive over the websocket control plane.
package sfu

import (
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/pion/webrtc/v3"

	"github.com/parlorhq/parlor/internal/config"
)

const opusPayloadType = 111

// Worker owns one UDP and one TCP listener on a fixed media port. All
// transports on the worker share the listeners through ICE muxing, so one
// port pair serves every room assigned to it.
type Worker struct {
	ID      int
	Port    int
	api     *webrtc.API
	udpConn *net.UDPConn
	tcpLn   *net.TCPListener
}

func newWorker(id, port int, announcedIP string) (*Worker, error) {
	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("worker %d: listen udp %d: %w", id, port, err)
	}

	tcpLn, err := net.ListenTCP("tcp", &net.TCPAddr{Port: port})
	if err != nil {
		_ = udpConn.Close()
		return nil, fmt.Errorf("worker %d: listen tcp %d: %w", id, port, err)
	}

	se := webrtc.SettingEngine{}
	se.SetICEUDPMux(webrtc.NewICEUDPMux(nil, udpConn))
	se.SetICETCPMux(webrtc.NewICETCPMux(nil, tcpLn, 8))
	se.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeTCP4,
	})
	se.SetLite(true)
	if announcedIP != "" {
		se.SetNAT1To1IPs([]string{announcedIP}, webrtc.ICECandidateTypeHost)
	}

	me := &webrtc.MediaEngine{}
	if err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: opusPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		_ = udpConn.Close()
		_ = tcpLn.Close()
		return nil, fmt.Errorf("worker %d: register opus: %w", id, err)
	}

	return &Worker{
		ID:      id,
		Port:    port,
		api:     webrtc.NewAPI(webrtc.WithSettingEngine(se), webrtc.WithMediaEngine(me)),
		udpConn: udpConn,
		tcpLn:   tcpLn,
	}, nil
}

func (w *Worker) close() {
	_ = w.udpConn.Close()
	_ = w.tcpLn.Close()
}

// Engine is the worker pool. Routers are placed on workers round-robin at
// creation and stay there for the life of the room.
type Engine struct {
	workers []*Worker
	next    atomic.Uint64
	logger  *slog.Logger
}

// NewEngine starts the worker pool described by cfg. Failure to bind any
// media port is fatal to the caller.
func NewEngine(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg.NumWorkers < 1 {
		return nil, fmt.Errorf("need at least one media worker, got %d", cfg.NumWorkers)
	}

	workers := make([]*Worker, 0, cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		w, err := newWorker(i, cfg.MediaPort+i, cfg.AnnouncedIP)
		if err != nil {
			for _, started := range workers {
				started.close()
			}
			return nil, err
		}
		workers = append(workers, w)
		logger.Info("media worker listening", "worker", i, "port", w.Port)
	}

	return &Engine{
		workers: workers,
		logger:  logger,
	}, nil
}

// PickWorker returns the next worker round-robin.
func (e *Engine) PickWorker() *Worker {
	n := e.next.Add(1)
	return e.workers[int(n-1)%len(e.workers)]
}

// WorkerCount returns the size of the pool.
func (e *Engine) WorkerCount() int {
	return len(e.workers)
}

// Close shuts down all worker listeners.
func (e *Engine) Close() {
	for _, w := range e.workers {
		w.close()
	}
}
