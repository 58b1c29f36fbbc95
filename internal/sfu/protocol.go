package sfu

import (
	"strings"

	"github.com/pion/webrtc/v3"
)

// Transport directions from the joining client's point of view.
const (
	DirectionSend = "send"
	DirectionRecv = "recv"
)

// RTPCodec describes one codec in wire form.
type RTPCodec struct {
	MimeType    string `json:"mimeType"`
	PayloadType uint8  `json:"payloadType"`
	ClockRate   uint32 `json:"clockRate"`
	Channels    uint16 `json:"channels,omitempty"`
	SDPFmtpLine string `json:"sdpFmtpLine,omitempty"`
}

// RTPEncoding carries the SSRC a producer sends with or a consumer should
// expect.
type RTPEncoding struct {
	SSRC uint32 `json:"ssrc"`
}

// RTPParameters is the codec/encoding bundle exchanged on produce and
// consume.
type RTPParameters struct {
	Codecs    []RTPCodec    `json:"codecs"`
	Encodings []RTPEncoding `json:"encodings"`
}

// RTPCapabilities advertises what the router can route. Clients intersect
// this with their own capabilities before consuming.
type RTPCapabilities struct {
	Codecs []RTPCodec `json:"codecs"`
}

// ICEParameters are the local ufrag/password for one transport.
type ICEParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
}

// ICECandidate is one host candidate in wire form.
type ICECandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	Address    string `json:"address"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
	TCPType    string `json:"tcpType,omitempty"`
}

// DTLSFingerprint is a certificate fingerprint in wire form.
type DTLSFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// DTLSParameters carry role plus fingerprints for the DTLS handshake.
type DTLSParameters struct {
	Role         string            `json:"role"`
	Fingerprints []DTLSFingerprint `json:"fingerprints"`
}

// TransportParams is everything a client needs to connect one transport.
type TransportParams struct {
	ID             string         `json:"id"`
	ICEParameters  ICEParameters  `json:"iceParameters"`
	ICECandidates  []ICECandidate `json:"iceCandidates"`
	DTLSParameters DTLSParameters `json:"dtlsParameters"`
}

// ProducerInfo identifies an active producer and the connection behind it.
type ProducerInfo struct {
	ConnectionID string `json:"connectionId"`
	ProducerID   string `json:"producerId"`
}

// ConsumerParams is the reply to a consume request. The consumer starts
// paused; the client resumes it once its receiving end is wired up.
type ConsumerParams struct {
	ConsumerID    string        `json:"consumerId"`
	ProducerID    string        `json:"producerId"`
	ConnectionID  string        `json:"connectionId"`
	Kind          string        `json:"kind"`
	RTPParameters RTPParameters `json:"rtpParameters"`
}

func iceParametersToWire(p webrtc.ICEParameters) ICEParameters {
	return ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
	}
}

func iceParametersFromWire(p ICEParameters) webrtc.ICEParameters {
	return webrtc.ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
	}
}

func iceCandidatesToWire(cands []webrtc.ICECandidate) []ICECandidate {
	out := make([]ICECandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, ICECandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			Address:    c.Address,
			Protocol:   c.Protocol.String(),
			Port:       c.Port,
			Type:       c.Typ.String(),
			TCPType:    c.TCPType,
		})
	}
	return out
}

func iceCandidatesFromWire(cands []ICECandidate) ([]webrtc.ICECandidate, error) {
	out := make([]webrtc.ICECandidate, 0, len(cands))
	for _, c := range cands {
		proto, err := webrtc.NewICEProtocol(c.Protocol)
		if err != nil {
			return nil, err
		}
		typ, err := webrtc.NewICECandidateType(c.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, webrtc.ICECandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			Address:    c.Address,
			Protocol:   proto,
			Port:       c.Port,
			Typ:        typ,
			TCPType:    c.TCPType,
			Component:  1,
		})
	}
	return out, nil
}

func dtlsParametersToWire(p webrtc.DTLSParameters) DTLSParameters {
	fps := make([]DTLSFingerprint, 0, len(p.Fingerprints))
	for _, fp := range p.Fingerprints {
		fps = append(fps, DTLSFingerprint{Algorithm: fp.Algorithm, Value: fp.Value})
	}
	return DTLSParameters{
		Role:         dtlsRoleToWire(p.Role),
		Fingerprints: fps,
	}
}

func dtlsParametersFromWire(p DTLSParameters) webrtc.DTLSParameters {
	fps := make([]webrtc.DTLSFingerprint, 0, len(p.Fingerprints))
	for _, fp := range p.Fingerprints {
		fps = append(fps, webrtc.DTLSFingerprint{Algorithm: fp.Algorithm, Value: fp.Value})
	}
	return webrtc.DTLSParameters{
		Role:         dtlsRoleFromWire(p.Role),
		Fingerprints: fps,
	}
}

func dtlsRoleToWire(r webrtc.DTLSRole) string {
	switch r {
	case webrtc.DTLSRoleClient:
		return "client"
	case webrtc.DTLSRoleServer:
		return "server"
	default:
		return "auto"
	}
}

func dtlsRoleFromWire(s string) webrtc.DTLSRole {
	switch strings.ToLower(s) {
	case "client":
		return webrtc.DTLSRoleClient
	case "server":
		return webrtc.DTLSRoleServer
	default:
		return webrtc.DTLSRoleAuto
	}
}

func sendParametersToWire(p webrtc.RTPSendParameters) RTPParameters {
	codecs := make([]RTPCodec, 0, len(p.Codecs))
	for _, c := range p.Codecs {
		codecs = append(codecs, RTPCodec{
			MimeType:    c.MimeType,
			PayloadType: uint8(c.PayloadType),
			ClockRate:   c.ClockRate,
			Channels:    c.Channels,
			SDPFmtpLine: c.SDPFmtpLine,
		})
	}
	encodings := make([]RTPEncoding, 0, len(p.Encodings))
	for _, e := range p.Encodings {
		encodings = append(encodings, RTPEncoding{SSRC: uint32(e.SSRC)})
	}
	return RTPParameters{Codecs: codecs, Encodings: encodings}
}
