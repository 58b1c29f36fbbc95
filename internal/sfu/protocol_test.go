package sfu

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDTLSRole_WireRoundTrip(t *testing.T) {
	tests := []struct {
		role webrtc.DTLSRole
		wire string
	}{
		{webrtc.DTLSRoleClient, "client"},
		{webrtc.DTLSRoleServer, "server"},
		{webrtc.DTLSRoleAuto, "auto"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.wire, dtlsRoleToWire(tt.role))
		assert.Equal(t, tt.role, dtlsRoleFromWire(tt.wire))
	}

	// Unknown strings fall back to auto
	assert.Equal(t, webrtc.DTLSRoleAuto, dtlsRoleFromWire("whatever"))
}

func TestICECandidates_FromWire(t *testing.T) {
	wire := []ICECandidate{{
		Foundation: "f1",
		Priority:   12345,
		Address:    "203.0.113.9",
		Protocol:   "udp",
		Port:       40000,
		Type:       "host",
	}}

	out, err := iceCandidatesFromWire(wire)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "203.0.113.9", out[0].Address)
	assert.Equal(t, webrtc.ICEProtocolUDP, out[0].Protocol)
	assert.Equal(t, webrtc.ICECandidateTypeHost, out[0].Typ)
	assert.Equal(t, uint16(1), out[0].Component)
}

func TestICECandidates_FromWire_BadProtocol(t *testing.T) {
	wire := []ICECandidate{{Protocol: "carrier-pigeon", Type: "host"}}
	_, err := iceCandidatesFromWire(wire)
	assert.Error(t, err)
}

func TestICEParameters_WireRoundTrip(t *testing.T) {
	p := webrtc.ICEParameters{UsernameFragment: "ufrag", Password: "pass"}
	wire := iceParametersToWire(p)
	assert.Equal(t, "ufrag", wire.UsernameFragment)
	assert.Equal(t, p, iceParametersFromWire(wire))
}

func TestDTLSParameters_WireRoundTrip(t *testing.T) {
	p := webrtc.DTLSParameters{
		Role: webrtc.DTLSRoleServer,
		Fingerprints: []webrtc.DTLSFingerprint{
			{Algorithm: "sha-256", Value: "AA:BB:CC"},
		},
	}

	wire := dtlsParametersToWire(p)
	assert.Equal(t, "server", wire.Role)
	require.Len(t, wire.Fingerprints, 1)
	assert.Equal(t, "sha-256", wire.Fingerprints[0].Algorithm)

	back := dtlsParametersFromWire(wire)
	assert.Equal(t, p, back)
}

func TestSendParameters_ToWire(t *testing.T) {
	params := webrtc.RTPSendParameters{
		RTPParameters: webrtc.RTPParameters{
			Codecs: []webrtc.RTPCodecParameters{{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:  webrtc.MimeTypeOpus,
					ClockRate: 48000,
					Channels:  2,
				},
				PayloadType: opusPayloadType,
			}},
		},
		Encodings: []webrtc.RTPEncodingParameters{{
			RTPCodingParameters: webrtc.RTPCodingParameters{SSRC: 0xdeadbeef},
		}},
	}

	wire := sendParametersToWire(params)
	require.Len(t, wire.Codecs, 1)
	assert.Equal(t, webrtc.MimeTypeOpus, wire.Codecs[0].MimeType)
	assert.Equal(t, uint8(opusPayloadType), wire.Codecs[0].PayloadType)
	require.Len(t, wire.Encodings, 1)
	assert.Equal(t, uint32(0xdeadbeef), wire.Encodings[0].SSRC)
}
