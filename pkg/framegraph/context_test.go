package framegraph

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/framegraph/pkg/framegraph/journal"
)

// TestNewContext_Defaults tests auto-generated identity and fallbacks.
func TestNewContext_Defaults(t *testing.T) {
	ctx := NewContext(context.Background())
	assert.NotEmpty(t, ctx.RunID())
	assert.NotNil(t, ctx.Logger())
	assert.Nil(t, ctx.Journal())
	assert.Empty(t, ctx.NodeID())
	assert.Empty(t, ctx.FrameName())
	assert.Equal(t, int64(0), ctx.Iter())

	// Each context gets its own run ID.
	other := NewContext(context.Background())
	assert.NotEqual(t, ctx.RunID(), other.RunID())
}

// TestNewContext_Options tests the context option setters.
func TestNewContext_Options(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	store := journal.NewMemoryStore()
	defer store.Close()

	ctx := NewContext(context.Background(),
		WithLogger(logger),
		WithJournalStore(store),
		WithContextRunID("fixed-run"))

	assert.Equal(t, "fixed-run", ctx.RunID())
	assert.Same(t, logger, ctx.Logger())
	assert.Equal(t, journal.Store(store), ctx.Journal())
}

// TestContext_WrapsParent tests context.Context passthrough.
func TestContext_WrapsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx := NewContext(parent)

	select {
	case <-ctx.Done():
		t.Fatal("context done before cancel")
	default:
	}
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

// TestContext_WithNode tests per-activation enrichment.
func TestContext_WithNode(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	base := NewContext(context.Background(),
		WithLogger(logger),
		WithContextRunID("run-1"))

	ec, ok := base.(*executionContext)
	require.True(t, ok)

	derived := ec.withNode("body", "while", 3)
	assert.Equal(t, "body", derived.NodeID())
	assert.Equal(t, "while", derived.FrameName())
	assert.Equal(t, int64(3), derived.Iter())
	assert.Equal(t, "run-1", derived.RunID())

	derived.Logger().Info("hello")
	out := buf.String()
	assert.Contains(t, out, `"run_id":"run-1"`)
	assert.Contains(t, out, `"node_id":"body"`)
	assert.Contains(t, out, `"frame":"while"`)
	assert.Contains(t, out, `"iter":3`)

	// The base context is unchanged.
	assert.Empty(t, base.NodeID())
}

// TestContext_SeenByKernels tests the identity a kernel observes during a
// run.
func TestContext_SeenByKernels(t *testing.T) {
	var gotNode, gotFrame, gotRun string
	g := NewGraph[int]().
		AddNode("probe", func(ctx Context, _ []int) ([]int, error) {
			gotNode = ctx.NodeID()
			gotFrame = ctx.FrameName()
			gotRun = ctx.RunID()
			return []int{1}, nil
		})

	compiled, err := g.Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), WithRunID("probe-run"))
	require.NoError(t, err)
	assert.Equal(t, "probe", gotNode)
	assert.Equal(t, "", gotFrame)
	assert.Equal(t, "probe-run", gotRun)
}
