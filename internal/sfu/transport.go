package sfu

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

// Transport bundles the ICE/DTLS pair behind one client-visible transport
// ID. The server is always the ICE-controlled, DTLS-server side; clients
// initiate both handshakes.
type Transport struct {
	ID        string
	Direction string

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport

	mu        sync.Mutex
	connected bool
}

// newTransport creates and gathers a transport on the given worker. Host
// candidates come straight off the worker's port muxes, so gathering
// completes without any STUN round trips.
func newTransport(w *Worker, direction string) (*Transport, error) {
	gatherer, err := w.api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, fmt.Errorf("new gatherer: %w", err)
	}

	ice := w.api.NewICETransport(gatherer)

	dtls, err := w.api.NewDTLSTransport(ice, nil)
	if err != nil {
		return nil, fmt.Errorf("new dtls transport: %w", err)
	}

	gatherDone := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gatherDone)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	<-gatherDone

	return &Transport{
		ID:        uuid.NewString(),
		Direction: direction,
		gatherer:  gatherer,
		ice:       ice,
		dtls:      dtls,
	}, nil
}

// Params returns everything the client needs to dial this transport.
func (t *Transport) Params() (TransportParams, error) {
	iceParams, err := t.gatherer.GetLocalParameters()
	if err != nil {
		return TransportParams{}, fmt.Errorf("local ice parameters: %w", err)
	}

	candidates, err := t.gatherer.GetLocalCandidates()
	if err != nil {
		return TransportParams{}, fmt.Errorf("local candidates: %w", err)
	}

	dtlsParams, err := t.dtls.GetLocalParameters()
	if err != nil {
		return TransportParams{}, fmt.Errorf("local dtls parameters: %w", err)
	}

	return TransportParams{
		ID:             t.ID,
		ICEParameters:  iceParametersToWire(iceParams),
		ICECandidates:  iceCandidatesToWire(candidates),
		DTLSParameters: dtlsParametersToWire(dtlsParams),
	}, nil
}

// Connect runs the ICE and DTLS handshakes against the client's remote
// parameters. Calling it twice on the same transport is an error.
func (t *Transport) Connect(dtlsParams DTLSParameters, iceParams ICEParameters, candidates []ICECandidate) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return fmt.Errorf("transport %s already connected", t.ID)
	}
	t.connected = true
	t.mu.Unlock()

	remoteCandidates, err := iceCandidatesFromWire(candidates)
	if err != nil {
		return fmt.Errorf("remote candidates: %w", err)
	}
	if err := t.ice.SetRemoteCandidates(remoteCandidates); err != nil {
		return fmt.Errorf("set remote candidates: %w", err)
	}

	iceRole := webrtc.ICERoleControlled
	if err := t.ice.Start(nil, iceParametersFromWire(iceParams), &iceRole); err != nil {
		return fmt.Errorf("ice start: %w", err)
	}

	if err := t.dtls.Start(dtlsParametersFromWire(dtlsParams)); err != nil {
		return fmt.Errorf("dtls start: %w", err)
	}

	return nil
}

// Connected reports whether Connect has run.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Close tears the transport down, DTLS before ICE.
func (t *Transport) Close() {
	_ = t.dtls.Stop()
	_ = t.ice.Stop()
	_ = t.gatherer.Close()
}
