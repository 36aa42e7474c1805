package filesystem_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/peersync/pkg/filesystem"
)

func TestDestination_ListFilesSkipsDirsAndPartFiles(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	now := time.Now()
	fs.AddFile("/sync/a.txt", []byte("a"), now)
	fs.AddFile("/sync/b.txt"+filesystem.PartSuffix, []byte("half"), now)
	fs.AddDir("/sync/sub", now)

	dest, err := filesystem.NewDestination(fs, "/sync")
	g.Expect(err).ShouldNot(HaveOccurred())

	files, err := dest.ListFiles()
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(files).Should(HaveLen(1))
	g.Expect(files[0].RelativePath).Should(Equal("a.txt"))
}

func TestDestination_RejectsMissingOrFileRoot(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/sync/a.txt", []byte("a"), time.Now())

	_, err := filesystem.NewDestination(fs, "/missing")
	g.Expect(errors.Is(err, os.ErrNotExist)).Should(BeTrue())

	_, err = filesystem.NewDestination(fs, "/sync/a.txt")
	g.Expect(errors.Is(err, filesystem.ErrNotAFolder)).Should(BeTrue())
}

func TestDestination_WriteRenamesIntoPlace(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddDir("/sync", time.Now())

	dest, err := filesystem.NewDestination(fs, "/sync")
	g.Expect(err).ShouldNot(HaveOccurred())

	modTime := time.UnixMilli(1_700_000_000_123)

	writer, err := dest.OpenForWrite("photo.jpg", modTime)
	g.Expect(err).ShouldNot(HaveOccurred())

	_, err = writer.Write([]byte("jpeg bytes"))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(fs.Exists("/sync/photo.jpg" + filesystem.PartSuffix)).Should(BeTrue())
	g.Expect(fs.Exists("/sync/photo.jpg")).Should(BeFalse())

	g.Expect(writer.Close()).Should(Succeed())
	g.Expect(fs.Exists("/sync/photo.jpg" + filesystem.PartSuffix)).Should(BeFalse())

	info, err := dest.Stat("photo.jpg")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(info.Size).Should(Equal(int64(len("jpeg bytes"))))
	g.Expect(info.ModTime.UnixMilli()).Should(Equal(modTime.UnixMilli()))

	g.Expect(writer.Abort()).Should(Succeed(), "abort after close is a no-op")
	g.Expect(fs.Exists("/sync/photo.jpg")).Should(BeTrue())
}

func TestDestination_AbortRemovesPartFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/sync/doc.txt", []byte("previous"), time.Now())

	dest, err := filesystem.NewDestination(fs, "/sync")
	g.Expect(err).ShouldNot(HaveOccurred())

	writer, err := dest.OpenForWrite("doc.txt", time.Time{})
	g.Expect(err).ShouldNot(HaveOccurred())
	_, err = writer.Write([]byte("partial"))
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(writer.Abort()).Should(Succeed())
	g.Expect(fs.Exists("/sync/doc.txt" + filesystem.PartSuffix)).Should(BeFalse())

	data, _, err := fs.GetFile("/sync/doc.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(string(data)).Should(Equal("previous"), "an aborted receive leaves the old file alone")

	_, err = writer.Write([]byte("more"))
	g.Expect(err).Should(HaveOccurred())
}

func TestDestination_FailedRenameCleansUp(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddDir("/sync", time.Now())

	dest, err := filesystem.NewDestination(fs, "/sync")
	g.Expect(err).ShouldNot(HaveOccurred())

	writer, err := dest.OpenForWrite("a.txt", time.Time{})
	g.Expect(err).ShouldNot(HaveOccurred())

	fs.SetRenameError(errors.New("input/output error"))
	g.Expect(writer.Close()).ShouldNot(Succeed())
	g.Expect(fs.ListFiles()).Should(Equal([]string{"/sync"}))
}

func TestDestination_RejectsUnsafeNames(t *testing.T) {
	t.Parallel()

	fs := filesystem.NewMockFileSystem()
	fs.AddDir("/sync", time.Now())

	dest, err := filesystem.NewDestination(fs, "/sync")
	if err != nil {
		t.Fatalf("NewDestination failed: %v", err)
	}

	for _, name := range []string{"", ".", "..", "../etc/passwd", "sub/file.txt", `dir\file.txt`} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			_, err := dest.OpenForWrite(name, time.Time{})
			g.Expect(errors.Is(err, filesystem.ErrInvalidName)).Should(BeTrue())

			_, err = dest.OpenForRead(name)
			g.Expect(errors.Is(err, filesystem.ErrInvalidName)).Should(BeTrue())
		})
	}
}

func TestOpenDestination_LocalDirectory(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	dir := t.TempDir()
	g.Expect(os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644)).Should(Succeed())

	dest, err := filesystem.OpenDestination(dir)
	g.Expect(err).ShouldNot(HaveOccurred())

	defer func() {
		_ = dest.Close()
	}()

	g.Expect(dest.Location()).Should(Equal(dir))

	writer, err := dest.OpenForWrite("b.txt", time.UnixMilli(1_600_000_000_000))
	g.Expect(err).ShouldNot(HaveOccurred())
	_, err = writer.Write([]byte("world"))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(writer.Close()).Should(Succeed())

	files, err := dest.ListFiles()
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(files).Should(HaveLen(2))

	reader, err := dest.OpenForRead("b.txt")
	g.Expect(err).ShouldNot(HaveOccurred())

	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(string(data)).Should(Equal("world"))

	info, err := dest.Stat("b.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(info.ModTime.UnixMilli()).Should(Equal(int64(1_600_000_000_000)))
}

func TestDestination_TimePrecision(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddDir("/sync", time.Now())

	local, err := filesystem.NewDestination(fs, "/sync")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(local.TimePrecision()).To(Equal(filesystem.DefaultTimePrecision))

	coarse, err := filesystem.NewDestination(fs, "/sync", filesystem.WithTimePrecision(filesystem.SFTPTimePrecision))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(coarse.TimePrecision()).To(Equal(time.Second))

	unset, err := filesystem.NewDestination(fs, "/sync", filesystem.WithTimePrecision(0))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(unset.TimePrecision()).To(Equal(filesystem.DefaultTimePrecision))
}
