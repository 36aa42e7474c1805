package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joe/peersync/internal/logging"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "peersync.log")

	logger, err := logging.New(logging.Config{Level: "info", Format: "json", OutputPath: path})
	g.Expect(err).ShouldNot(HaveOccurred())

	logger.Info("folder added", zap.String("folder", "f-1"))
	g.Expect(logger.Sync()).Should(Succeed())

	data, err := os.ReadFile(path)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring(`"msg":"folder added"`))
	g.Expect(string(data)).To(ContainSubstring(`"folder":"f-1"`))
}

func TestWithPeer_TagsEntries(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	core, logs := observer.New(zap.DebugLevel)
	ctx := logging.WithLogger(context.Background(), zap.New(core))
	ctx = logging.WithPeer(ctx, "peer-7")

	logging.WithContext(ctx).Info("hello")

	entries := logs.All()
	g.Expect(entries).To(HaveLen(1))
	g.Expect(entries[0].ContextMap()).To(HaveKeyWithValue("peer", "peer-7"))
}

func TestWithContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(logging.WithContext(context.Background())).NotTo(BeNil())
}
