package syncengine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/peersync/internal/protocol"
	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/transport"
	pkgerrors "github.com/joe/peersync/pkg/errors"
	"github.com/joe/peersync/pkg/filesystem"
)

// baseTime keeps mock timestamps whole milliseconds.
var baseTime = time.UnixMilli(1_700_000_000_000) //nolint:gochecknoglobals // shared test fixture

func at(seconds int) time.Time {
	return baseTime.Add(time.Duration(seconds) * time.Second)
}

func ms(seconds int) int64 {
	return at(seconds).UnixMilli()
}

// testingT is the part of *testing.T the helpers use. GinkgoT satisfies it
// too.
type testingT interface {
	Cleanup(f func())
	Fatalf(format string, args ...any)
	Helper()
	Logf(format string, args ...any)
}

// node is one device: an engine over an in-memory filesystem.
type node struct {
	engine *syncengine.Engine
	fs     *filesystem.MockFileSystem
	events *eventRecorder
}

func newNode(t testingT, opts syncengine.Options) *node {
	t.Helper()

	n := &node{
		fs:     filesystem.NewMockFileSystem(),
		events: &eventRecorder{},
	}
	n.fs.Now = func() time.Time { return at(1000) }

	n.engine = syncengine.NewEngine(opts)
	n.engine.SetEventEmitter(n.events)
	t.Cleanup(n.engine.Close)

	return n
}

// addFolder creates root with files and registers it.
func (n *node) addFolder(t testingT, root string, files map[string]testFile) syncengine.Folder {
	t.Helper()
	g := NewWithT(t)

	n.fs.AddDir(root, at(0))

	for name, file := range files {
		n.fs.AddFile(root+"/"+name, file.data, file.modTime)
	}

	dest, err := filesystem.NewDestination(n.fs, root)
	g.Expect(err).ShouldNot(HaveOccurred())

	folder, err := n.engine.AddFolder("", dest)
	g.Expect(err).ShouldNot(HaveOccurred())

	return folder
}

func (n *node) folder(t testingT, id string) func() syncengine.Folder {
	t.Helper()

	return func() syncengine.Folder {
		folder, err := n.engine.Folder(id)
		if err != nil {
			t.Logf("folder %s: %v", id, err)
		}

		return folder
	}
}

func (n *node) fileStatus(id, name string) func() syncengine.FileStatus {
	return func() syncengine.FileStatus {
		folder, err := n.engine.Folder(id)
		if err != nil {
			return syncengine.FileError
		}

		entry, ok := folder.File(name)
		if !ok {
			return syncengine.FileError
		}

		return entry.Status
	}
}

func (n *node) content(path string) func() string {
	return func() string {
		data, _, err := n.fs.GetFile(path)
		if err != nil {
			return ""
		}

		return string(data)
	}
}

type testFile struct {
	data    []byte
	modTime time.Time
}

func file(content string, seconds int) testFile {
	return testFile{data: []byte(content), modTime: at(seconds)}
}

// connect links two nodes. offerer offers folderID; answerer learns the
// folder from the first listing.
func connect(t testingT, offerer *node, folderID string, answerer *node) (string, string) {
	t.Helper()
	g := NewWithT(t)

	const offererID, answererID = "peer-offer-0a0a", "peer-answer-0b0b"

	left, right := transport.NewPipe()

	offerRecv, err := offerer.engine.ConnectPeer(answererID, folderID, left)
	g.Expect(err).ShouldNot(HaveOccurred())
	left.Attach(offerRecv)

	answerRecv, err := answerer.engine.ConnectPeer(offererID, "", right)
	g.Expect(err).ShouldNot(HaveOccurred())
	right.Attach(answerRecv)

	answerer.engine.SetPeerStatus(offererID, syncengine.PeerConnected)
	offerer.engine.SetPeerStatus(answererID, syncengine.PeerConnected)

	return answererID, offererID
}

// scriptedPeer plays the remote side of a channel by hand.
type scriptedPeer struct {
	t     testingT
	end   *transport.PipeEnd
	local *transport.PipeEnd
	recv  *frameRecorder
}

func newScriptedPeer(t testingT, n *node, peerID, folderID string) *scriptedPeer {
	t.Helper()
	g := NewWithT(t)

	local, remote := transport.NewPipe()

	receiver, err := n.engine.ConnectPeer(peerID, folderID, local)
	g.Expect(err).ShouldNot(HaveOccurred())
	local.Attach(receiver)

	peer := &scriptedPeer{t: t, end: remote, local: local, recv: &frameRecorder{}}
	remote.Attach(peer.recv)

	n.engine.SetPeerStatus(peerID, syncengine.PeerConnected)

	return peer
}

func (p *scriptedPeer) chunk(sessionID uint32, data []byte) {
	p.t.Helper()
	NewWithT(p.t).Expect(p.end.Send(protocol.EncodeChunk(sessionID, data))).Should(Succeed())
}

func (p *scriptedPeer) close() {
	_ = p.end.Close()
}

// messages decodes every text frame received so far.
func (p *scriptedPeer) messages() []protocol.Message {
	msgs := make([]protocol.Message, 0)

	for _, frame := range p.recv.snapshot() {
		if !frame.Text {
			continue
		}

		if msg, err := protocol.Decode(frame.Data); err == nil {
			msgs = append(msgs, msg)
		}
	}

	return msgs
}

func (p *scriptedPeer) raw(text string) {
	p.t.Helper()
	NewWithT(p.t).Expect(p.end.SendText(text)).Should(Succeed())
}

func (p *scriptedPeer) send(msg protocol.Message) {
	p.t.Helper()

	data, err := protocol.Encode(msg)
	NewWithT(p.t).Expect(err).ShouldNot(HaveOccurred())
	p.raw(string(data))
}

// requests returns the names of files the engine asked for so far.
func (p *scriptedPeer) requests() []string {
	names := make([]string, 0)

	for _, msg := range p.messages() {
		if request, ok := msg.(protocol.RequestFile); ok {
			names = append(names, request.FileName)
		}
	}

	return names
}

// startMessages returns the START_FILE_TRANSFER messages received so far.
func (p *scriptedPeer) startMessages() []protocol.StartFileTransfer {
	starts := make([]protocol.StartFileTransfer, 0)

	for _, msg := range p.messages() {
		if start, ok := msg.(protocol.StartFileTransfer); ok {
			starts = append(starts, start)
		}
	}

	return starts
}

// chunkBytes sums the data bytes of binary frames received so far.
func (p *scriptedPeer) chunkBytes() int {
	total := 0

	for _, frame := range p.recv.snapshot() {
		if frame.Text {
			continue
		}

		_, data, err := protocol.DecodeChunk(frame.Data)
		if err == nil {
			total += len(data)
		}
	}

	return total
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []transport.Frame
	closed atomic.Bool
}

func (r *frameRecorder) Closed() {
	r.closed.Store(true)
}

func (r *frameRecorder) Receive(frame transport.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = append(r.frames, frame)
}

func (r *frameRecorder) snapshot() []transport.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]transport.Frame(nil), r.frames...)
}

// eventRecorder is a thread-safe EventEmitter double.
type eventRecorder struct {
	mu     sync.Mutex
	events []syncengine.Event
}

func (r *eventRecorder) Emit(event syncengine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

// categories lists the error categories reported so far.
func (r *eventRecorder) categories() []pkgerrors.ErrorCategory {
	errs := r.errors()
	categories := make([]pkgerrors.ErrorCategory, 0, len(errs))

	for _, errEvent := range errs {
		if errEvent.Err != nil {
			categories = append(categories, errEvent.Err.Category())
		}
	}

	return categories
}

func (r *eventRecorder) errors() []syncengine.ErrorOccurred {
	r.mu.Lock()
	defer r.mu.Unlock()

	errs := make([]syncengine.ErrorOccurred, 0)

	for _, event := range r.events {
		if errEvent, ok := event.(syncengine.ErrorOccurred); ok {
			errs = append(errs, errEvent)
		}
	}

	return errs
}

func (r *eventRecorder) snapshot() []syncengine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]syncengine.Event(nil), r.events...)
}

// dirAcquirer hands out a fixed directory on a mock filesystem.
type dirAcquirer struct {
	fs    *filesystem.MockFileSystem
	root  string
	files map[string]testFile
	err   error
	calls atomic.Int32
}

func (a *dirAcquirer) Acquire(_ context.Context, _, _ string) (filesystem.Destination, error) {
	a.calls.Add(1)

	if a.err != nil {
		return nil, a.err
	}

	a.fs.AddDir(a.root, at(0))

	for name, file := range a.files {
		a.fs.AddFile(a.root+"/"+name, file.data, file.modTime)
	}

	return filesystem.NewDestination(a.fs, a.root)
}

// memoryStore is an in-memory FolderStore.
type memoryStore struct {
	mu      sync.Mutex
	records []syncengine.FolderRecord
	saves   int
}

func (s *memoryStore) Load() ([]syncengine.FolderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]syncengine.FolderRecord(nil), s.records...), nil
}

func (s *memoryStore) Save(records []syncengine.FolderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append([]syncengine.FolderRecord(nil), records...)
	s.saves++

	return nil
}

func (s *memoryStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saves
}

// secondsFS stores whole-second mtimes, the way SFTP servers do.
type secondsFS struct {
	*filesystem.MockFileSystem
}

func (fs secondsFS) Chtimes(name string, atime, mtime time.Time) error {
	return fs.MockFileSystem.Chtimes(name, atime.Truncate(time.Second), mtime.Truncate(time.Second))
}
