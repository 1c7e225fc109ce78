package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub001/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/diag"
	"github.com/eyevinn-osaas/strom-sub001/internal/hcl_adapter"
	"github.com/eyevinn-osaas/strom-sub001/internal/memengine"
	"github.com/eyevinn-osaas/strom-sub001/internal/metric"
	"github.com/eyevinn-osaas/strom-sub001/internal/registry"
	"github.com/eyevinn-osaas/strom-sub001/modules/audiorouter"
	"github.com/eyevinn-osaas/strom-sub001/modules/dynamicinput"
	"github.com/eyevinn-osaas/strom-sub001/modules/mixer"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context carrying a debug logger that writes into the
// returned buffer. Set STROM_TEST_LOGS=true to print the captured output
// when the test ends.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() {
		if os.Getenv("STROM_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
		}
	})
	return ctxlog.WithLogger(context.Background(), logger), buf
}

// Fixture bundles an in-memory engine, a registry with every block module
// and isolated metrics.
type Fixture struct {
	Engine   *memengine.Engine
	Registry *registry.Registry
	Metrics  *metric.Metrics
	Gatherer prometheus.Gatherer
	Events   *diag.Recorder
}

// Modules lists the block modules available to test flows.
func Modules() []registry.Module {
	return []registry.Module{
		&audiorouter.Module{},
		&mixer.Module{},
		&dynamicinput.Module{},
	}
}

// NewFixture builds a fresh Fixture on the embedded catalog.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	reg := registry.New(hcl_adapter.NewConverter())
	for _, m := range Modules() {
		m.Register(reg)
	}
	promReg := prometheus.NewRegistry()
	m, err := metric.New(promReg)
	require.NoError(t, err)
	return &Fixture{
		Engine:   memengine.New(catalog.Default()),
		Registry: reg,
		Metrics:  m,
		Gatherer: promReg,
		Events:   diag.NewRecorder(0),
	}
}
