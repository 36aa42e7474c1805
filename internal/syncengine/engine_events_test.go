//go:generate go run github.com/toejough/imptest/impgen --dependency syncengine.EventEmitter

package syncengine_test

import (
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/peersync/internal/syncengine"
)

// TestEngine_SetEventEmitter verifies that an EventEmitter can be set on the engine.
func TestEngine_SetEventEmitter(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	emitter := &eventRecorder{}
	engine := syncengine.NewEngine(syncengine.Options{})
	t.Cleanup(engine.Close)

	engine.SetEventEmitter(emitter)

	g.Expect(engine.GetEventEmitter()).To(Equal(emitter))
}

// TestEngine_NilEmitterIsValid verifies that a nil emitter is valid (no-op).
func TestEngine_NilEmitterIsValid(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	n := newNode(t, syncengine.Options{})
	n.engine.SetEventEmitter(nil)

	g.Expect(n.engine.GetEventEmitter()).To(BeNil())

	// Commands still work without anyone listening.
	folder := n.addFolder(t, "/quiet", map[string]testFile{"a.txt": file("a", 1)})
	_, err := n.engine.SetPaused(folder.ID, true)
	g.Expect(err).ShouldNot(HaveOccurred())
}

// TestEngine_AddFolder_EmitsFolderUpdated verifies that adding a folder
// reports its first snapshot.
func TestEngine_AddFolder_EmitsFolderUpdated(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	n := newNode(t, syncengine.Options{})
	folder := n.addFolder(t, "/photos", map[string]testFile{
		"a.jpg": file("aaaa", 1),
		"b.jpg": file("bb", 2),
	})

	g.Expect(folder.Name).To(Equal("photos"))
	g.Expect(folder.Status).To(Equal(syncengine.FolderSynced))

	events := n.events.snapshot()
	g.Expect(events).To(HaveLen(1))

	updated, ok := events[0].(syncengine.FolderUpdated)
	g.Expect(ok).To(BeTrue())
	g.Expect(updated.Folder.ID).To(Equal(folder.ID))
	g.Expect(updated.Folder.Files).To(HaveLen(2))
}

// TestEngine_DeleteFolder_EmitsFolderRemoved verifies the removal event.
func TestEngine_DeleteFolder_EmitsFolderRemoved(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	n := newNode(t, syncengine.Options{})
	folder := n.addFolder(t, "/docs", nil)

	g.Expect(n.engine.DeleteFolder(folder.ID)).Should(Succeed())

	events := n.events.snapshot()
	g.Expect(events[len(events)-1]).To(Equal(syncengine.FolderRemoved{FolderID: folder.ID}))
	g.Expect(n.engine.Folders()).To(BeEmpty())

	g.Expect(n.engine.DeleteFolder(folder.ID)).To(MatchError(syncengine.ErrUnknownFolder))
}

// TestEngine_ProtocolError_EmitsErrorOccurred verifies that malformed frames
// are reported and dropped without closing the peer.
func TestEngine_ProtocolError_EmitsErrorOccurred(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	n := newNode(t, syncengine.Options{})
	folder := n.addFolder(t, "/docs", nil)
	peer := newScriptedPeer(t, n, "remote-peer-0001", folder.ID)

	peer.raw(`{"type":"SOMETHING_ELSE","payload":{}}`)

	g.Eventually(n.events.errors).Should(HaveLen(1))
	g.Expect(n.events.errors()[0].PeerID).To(Equal("remote-peer-0001"))

	state, ok := n.engine.SessionState("remote-peer-0001")
	g.Expect(ok).To(BeTrue())
	g.Expect(state).NotTo(Equal(syncengine.SessionTransferring))
}

// TestEngine_FolderCommands_EmitInOrder verifies the events a rename and a
// delete report, in the order they happen.
func TestEngine_FolderCommands_EmitInOrder(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	n := newNode(t, syncengine.Options{})
	folder := n.addFolder(t, "/docs", map[string]testFile{"a.txt": file("a", 1)})

	emitter := MockEventEmitter(t)
	n.engine.SetEventEmitter(emitter.Mock)

	done := make(chan struct{})
	go func() {
		defer close(done)

		emitter.Method.Emit.ExpectCalledWithMatches(And(
			BeAssignableToTypeOf(syncengine.FolderUpdated{}),
			HaveField("Folder.Name", "papers"),
			HaveField("Folder.Files", HaveLen(1)),
		)).InjectReturnValues()
		emitter.Method.Emit.ExpectCalledWithExactly(syncengine.FolderRemoved{FolderID: folder.ID}).InjectReturnValues()
	}()

	renamed, err := n.engine.RenameFolder(folder.ID, "papers")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(renamed.Name).To(Equal("papers"))

	g.Expect(n.engine.DeleteFolder(folder.ID)).Should(Succeed())
	g.Eventually(done).Should(BeClosed())
}
