// Package rtc connects the sync engine to pion WebRTC data channels.
//
// Peers pair by copying an offer code from one device to the other and an
// answer code back. A code is the base64 of a JSON signal holding the
// sender's peer ID and its complete SDP, so no trickle ICE is needed.
package rtc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/transport"
)

// Exported constants.
const (
	// ChannelLabel names the single ordered data channel of a connection.
	ChannelLabel = "file-sync"
)

// Exported variables.
var (
	ErrBadSignal = errors.New("invalid pairing code")
	// DefaultICEServers are public STUN servers.
	DefaultICEServers = []webrtc.ICEServer{ //nolint:gochecknoglobals // read-only defaults
		{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
	}
)

// Signal is what one side hands to the other during pairing.
type Signal struct {
	PeerID string                    `json:"peerId"`
	SDP    webrtc.SessionDescription `json:"sdp"`
}

// AttachDataChannel routes a data channel's messages and close into a
// receiver. Text messages become text frames.
func AttachDataChannel(dc *webrtc.DataChannel, receiver transport.Receiver) {
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		receiver.Receive(transport.Frame{Text: msg.IsString, Data: msg.Data})
	})
	dc.OnClose(receiver.Closed)
}

// DecodeSignal parses a pairing code.
func DecodeSignal(code string) (Signal, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(code))
	if err != nil {
		return Signal{}, fmt.Errorf("%w: %w", ErrBadSignal, err)
	}

	var signal Signal
	if err := json.Unmarshal(raw, &signal); err != nil {
		return Signal{}, fmt.Errorf("%w: %w", ErrBadSignal, err)
	}

	if signal.PeerID == "" || signal.SDP.SDP == "" {
		return Signal{}, fmt.Errorf("%w: missing peer id or session description", ErrBadSignal)
	}

	return signal, nil
}

// EncodeSignal renders a pairing code.
func EncodeSignal(signal Signal) (string, error) {
	raw, err := json.Marshal(signal)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// StatusFromState maps a peer connection state to a peer status.
func StatusFromState(state webrtc.PeerConnectionState) syncengine.PeerStatus {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		return syncengine.PeerConnected
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		return syncengine.PeerDisconnected
	case webrtc.PeerConnectionStateFailed:
		return syncengine.PeerFailed
	default:
		return syncengine.PeerConnecting
	}
}

// Signaler creates peer connections for manual pairing.
type Signaler struct {
	peerID string
	config webrtc.Configuration
	log    *zap.Logger
}

// NewSignaler returns a signaler that identifies as peerID. Nil iceServers
// select DefaultICEServers; an empty slice uses host candidates only.
func NewSignaler(peerID string, iceServers []webrtc.ICEServer, log *zap.Logger) *Signaler {
	if iceServers == nil {
		iceServers = DefaultICEServers
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Signaler{
		peerID: peerID,
		config: webrtc.Configuration{ICEServers: iceServers},
		log:    log,
	}
}

// Offer starts a connection and returns it with the offer code to show the
// other device.
func (s *Signaler) Offer(ctx context.Context) (*Connection, string, error) {
	conn, err := s.newConnection()
	if err != nil {
		return nil, "", err
	}

	ordered := true

	dc, err := conn.pc.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		_ = conn.Close()
		return nil, "", fmt.Errorf("failed to create data channel: %w", err)
	}

	conn.watchChannel(dc)

	offer, err := conn.pc.CreateOffer(nil)
	if err != nil {
		_ = conn.Close()
		return nil, "", fmt.Errorf("failed to create offer: %w", err)
	}

	code, err := s.describe(ctx, conn, offer)
	if err != nil {
		_ = conn.Close()
		return nil, "", err
	}

	return conn, code, nil
}

// Answer accepts an offer code and returns the connection with the answer
// code to send back.
func (s *Signaler) Answer(ctx context.Context, offerCode string) (*Connection, string, error) {
	signal, err := DecodeSignal(offerCode)
	if err != nil {
		return nil, "", err
	}

	if signal.SDP.Type != webrtc.SDPTypeOffer {
		return nil, "", fmt.Errorf("%w: expected an offer, got %s", ErrBadSignal, signal.SDP.Type)
	}

	conn, err := s.newConnection()
	if err != nil {
		return nil, "", err
	}

	conn.remoteID = signal.PeerID
	conn.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() == ChannelLabel {
			conn.watchChannel(dc)
		}
	})

	if err := conn.pc.SetRemoteDescription(signal.SDP); err != nil {
		_ = conn.Close()
		return nil, "", fmt.Errorf("%w: %w", ErrBadSignal, err)
	}

	answer, err := conn.pc.CreateAnswer(nil)
	if err != nil {
		_ = conn.Close()
		return nil, "", fmt.Errorf("failed to create answer: %w", err)
	}

	code, err := s.describe(ctx, conn, answer)
	if err != nil {
		_ = conn.Close()
		return nil, "", err
	}

	return conn, code, nil
}

// describe sets the local description and waits for ICE gathering so the
// code carries every candidate.
func (s *Signaler) describe(ctx context.Context, conn *Connection, desc webrtc.SessionDescription) (string, error) {
	gathered := webrtc.GatheringCompletePromise(conn.pc)

	if err := conn.pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	s.log.Debug("ice gathering complete", zap.String("type", desc.Type.String()))

	return EncodeSignal(Signal{PeerID: s.peerID, SDP: *conn.pc.LocalDescription()})
}

func (s *Signaler) newConnection() (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	conn := &Connection{
		pc:     pc,
		opened: make(chan *webrtc.DataChannel, 1),
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug("peer connection state", zap.String("peer", conn.RemoteID()), zap.String("state", state.String()))
		conn.notify(StatusFromState(state))
	})

	return conn, nil
}

// Connection is one paired peer connection.
type Connection struct {
	pc     *webrtc.PeerConnection
	opened chan *webrtc.DataChannel

	mu       sync.Mutex
	remoteID string
	onStatus func(syncengine.PeerStatus)
}

// Accept completes an offer with the answer code from the other device.
func (c *Connection) Accept(answerCode string) error {
	signal, err := DecodeSignal(answerCode)
	if err != nil {
		return err
	}

	if signal.SDP.Type != webrtc.SDPTypeAnswer {
		return fmt.Errorf("%w: expected an answer, got %s", ErrBadSignal, signal.SDP.Type)
	}

	c.mu.Lock()
	c.remoteID = signal.PeerID
	c.mu.Unlock()

	if err := c.pc.SetRemoteDescription(signal.SDP); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignal, err)
	}

	return nil
}

// Close tears down the peer connection and its data channel.
func (c *Connection) Close() error {
	return c.pc.Close()
}

// DataChannel waits until the data channel is open.
func (c *Connection) DataChannel(ctx context.Context) (*webrtc.DataChannel, error) {
	select {
	case dc := <-c.opened:
		return dc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnStatus registers the callback for connection status changes.
func (c *Connection) OnStatus(f func(syncengine.PeerStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onStatus = f
}

// RemoteID is the other device's peer ID, known once its code was read.
func (c *Connection) RemoteID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.remoteID
}

func (c *Connection) notify(status syncengine.PeerStatus) {
	c.mu.Lock()
	f := c.onStatus
	c.mu.Unlock()

	if f != nil {
		f(status)
	}
}

func (c *Connection) watchChannel(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		select {
		case c.opened <- dc:
		default:
		}
	})
}
