package rtc_test

import (
	"testing"

	"github.com/pion/webrtc/v3"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/transport"
	"github.com/joe/peersync/internal/transport/rtc"
)

// *webrtc.DataChannel must stay usable as an engine channel.
var _ transport.Channel = (*webrtc.DataChannel)(nil)

func TestStatusFromState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state webrtc.PeerConnectionState
		want  syncengine.PeerStatus
	}{
		{webrtc.PeerConnectionStateNew, syncengine.PeerConnecting},
		{webrtc.PeerConnectionStateConnecting, syncengine.PeerConnecting},
		{webrtc.PeerConnectionStateConnected, syncengine.PeerConnected},
		{webrtc.PeerConnectionStateDisconnected, syncengine.PeerDisconnected},
		{webrtc.PeerConnectionStateClosed, syncengine.PeerDisconnected},
		{webrtc.PeerConnectionStateFailed, syncengine.PeerFailed},
		{webrtc.PeerConnectionState(0), syncengine.PeerConnecting},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			t.Parallel()

			if got := rtc.StatusFromState(tt.state); got != tt.want {
				t.Errorf("StatusFromState(%s) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestDecodeSignal(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	code, err := rtc.EncodeSignal(rtc.Signal{
		PeerID: "peer-1",
		SDP:    webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"},
	})
	g.Expect(err).ShouldNot(HaveOccurred())

	signal, err := rtc.DecodeSignal("  " + code + "\n")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(signal.PeerID).To(Equal("peer-1"))
	g.Expect(signal.SDP.Type).To(Equal(webrtc.SDPTypeOffer))

	for _, bad := range []string{"", "not base64!", "bnVsbA==", "e30="} {
		_, err := rtc.DecodeSignal(bad)
		g.Expect(err).To(MatchError(rtc.ErrBadSignal), bad)
	}
}

func TestAnswerRejectsAnswerCode(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	code, err := rtc.EncodeSignal(rtc.Signal{
		PeerID: "peer-1",
		SDP:    webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"},
	})
	g.Expect(err).ShouldNot(HaveOccurred())

	signaler := rtc.NewSignaler("peer-2", []webrtc.ICEServer{}, nil)
	_, _, err = signaler.Answer(t.Context(), code)
	g.Expect(err).To(MatchError(rtc.ErrBadSignal))
}
