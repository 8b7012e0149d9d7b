package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen_MigratesSchema(t *testing.T) {
	st := openTestStore(t)
	assert.NotNil(t, st.db)
}

func TestRecordCell_AndHistory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordCell(ctx, CellRecord{
		SessionID:      "sess-1",
		ExecutionCount: 1,
		Source:         "let x = 1",
		Outcome:        "success_value",
	}))
	require.NoError(t, st.RecordCell(ctx, CellRecord{
		SessionID:      "sess-1",
		ExecutionCount: 2,
		Source:         "x + 1",
		Outcome:        "success_value",
	}))

	records, err := st.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// most recent first.
	assert.Equal(t, 2, records[0].ExecutionCount)
	assert.Equal(t, 1, records[1].ExecutionCount)
}

func TestHistory_RespectsLimit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, st.RecordCell(ctx, CellRecord{SessionID: "s", ExecutionCount: i}))
	}

	records, err := st.History(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRecordPackage_AndPackages(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordPackage(ctx, InstalledPackageRecord{
		SessionID:   "sess-1",
		Product:     "Logging",
		Dependency:  `.package(url: "https://github.com/apple/swift-log", from: "1.0.0")`,
		Fingerprint: "abc123",
	}))

	packages, err := st.Packages(ctx)
	require.NoError(t, err)
	require.Len(t, packages, 1)
	assert.Equal(t, "Logging", packages[0].Product)
}
