package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFreshWorkbookHasOnlyConfiguredTab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	w := NewWorkbook(path, "Movements", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, w.AppendRow(ctx, []string{"a", "b"}))

	tabs, err := w.ListTabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Movements"}, tabs)
}

func TestAppendRowGrowsTab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	w := NewWorkbook(path, "Movements", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, w.AppendRow(ctx, []string{"first"}))
	require.NoError(t, w.AppendRow(ctx, []string{"second"}))

	f, err := w.open()
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Movements")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0][0])
	assert.Equal(t, "second", rows[1][0])
}
