package syncengine_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/joe/peersync/internal/protocol"
	"github.com/joe/peersync/internal/syncengine"
	pkgerrors "github.com/joe/peersync/pkg/errors"
)

var _ = Describe("Peer session", func() {
	var (
		n      *node
		folder syncengine.Folder
		peer   *scriptedPeer
	)

	state := func() syncengine.SessionState {
		current, _ := n.engine.SessionState(remotePeer)
		return current
	}

	BeforeEach(func() {
		n = newNode(GinkgoT(), syncengine.Options{})
		folder = n.addFolder(GinkgoT(), "/home/notes", map[string]testFile{
			"todo.md": file("milk\neggs\n", 30),
		})
		peer = newScriptedPeer(GinkgoT(), n, remotePeer, folder.ID)
	})

	Describe("Listing exchange", func() {
		It("announces the folder once the peer connects", func() {
			Eventually(peer.messages).Should(ContainElement(protocol.FileList{
				FolderID:   folder.ID,
				FolderName: "notes",
				Files:      []protocol.FileMeta{{Name: "todo.md", Size: 10, LastModified: ms(30)}},
			}))
		})

		It("starts idle and settles after the peer's listing", func() {
			Expect(state()).To(Equal(syncengine.SessionIdle))

			peer.send(protocol.FileList{FolderID: folder.ID, Files: []protocol.FileMeta{
				{Name: "todo.md", Size: 10, LastModified: ms(30)},
			}})

			Eventually(state).Should(Equal(syncengine.SessionListExchanged))
			Expect(n.fileStatus(folder.ID, "todo.md")()).To(Equal(syncengine.FileSynced))
		})

		It("treats a listing for a different folder as a protocol error", func() {
			peer.send(protocol.FileList{FolderID: "some-other-folder"})

			Eventually(n.events.categories).Should(ContainElement(pkgerrors.CategoryProtocol))
			Expect(n.engine.Folders()).To(HaveLen(1))
		})
	})

	Describe("Upload requests", func() {
		BeforeEach(func() {
			peer.send(protocol.FileList{FolderID: folder.ID})
			Eventually(n.fileStatus(folder.ID, "todo.md")).Should(Equal(syncengine.FileNeedsUpload))
		})

		It("serves messages in arrival order", func() {
			peer.send(protocol.RequestFile{FolderID: folder.ID, FileName: "todo.md"})

			Eventually(peer.messages).Should(ContainElement(
				BeAssignableToTypeOf(protocol.FileTransferComplete{})))

			var order []protocol.MessageType
			for _, msg := range peer.messages() {
				if msg.Type() != protocol.TypeFileList {
					order = append(order, msg.Type())
				}
			}

			Expect(order).To(Equal([]protocol.MessageType{
				protocol.TypeStartFileTransfer,
				protocol.TypeFileTransferComplete,
			}))
			Expect(peer.chunkBytes()).To(Equal(10))
		})

		It("restarts an upload that is re-requested before the ack", func() {
			peer.send(protocol.RequestFile{FolderID: folder.ID, FileName: "todo.md"})
			Eventually(peer.startMessages).Should(HaveLen(1))
			Eventually(peer.messages).Should(ContainElement(
				BeAssignableToTypeOf(protocol.FileTransferComplete{})))

			peer.send(protocol.RequestFile{FolderID: folder.ID, FileName: "todo.md"})

			Eventually(peer.startMessages).Should(HaveLen(2))
			starts := peer.startMessages()
			Expect(starts[1].SessionID).NotTo(Equal(starts[0].SessionID))
		})

		It("ignores an ack nobody asked for", func() {
			peer.send(protocol.FileReceiveAck{FolderID: folder.ID, FileName: "todo.md"})

			Consistently(n.fileStatus(folder.ID, "todo.md"), 100*time.Millisecond).
				Should(Equal(syncengine.FileNeedsUpload))
		})

		It("reports a request for a file that does not exist", func() {
			peer.send(protocol.RequestFile{FolderID: folder.ID, FileName: "missing.md"})

			Eventually(n.events.errors).Should(ContainElement(HaveField("FileName", "missing.md")))
			Expect(peer.startMessages()).To(BeEmpty())
		})
	})

	Describe("Closing", func() {
		It("forgets the session and marks the peer disconnected", func() {
			n.engine.ClosePeer(remotePeer)

			Eventually(func() bool {
				_, ok := n.engine.SessionState(remotePeer)
				return ok
			}).Should(BeFalse())
			Eventually(peer.recv.closed.Load).Should(BeTrue())
			Eventually(n.folder(GinkgoT(), folder.ID)).Should(HaveField("Peers",
				ContainElement(HaveField("Status", syncengine.PeerDisconnected))))
		})

		It("accepts the same peer again after it left", func() {
			peer.close()

			Eventually(func() bool {
				_, ok := n.engine.SessionState(remotePeer)
				return ok
			}).Should(BeFalse())

			again := newScriptedPeer(GinkgoT(), n, remotePeer, folder.ID)
			Eventually(again.messages).Should(ContainElement(BeAssignableToTypeOf(protocol.FileList{})))
		})
	})
})
