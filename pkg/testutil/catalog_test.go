package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"orphansweep/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_IsolatedPerSubtest(t *testing.T) {
	// 空名字的子测试会被命名为 #00、#01
	for range 2 {
		t.Run("", func(t *testing.T) {
			repo := NewCatalog(t, File(1, "files/a.txt"), Folder(2, "files/empty", 0))

			ids, err := repo.AllIDs(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []types.FileID{1, 2}, ids)
		})
	}

	// 内存库不能在工作目录留下文件
	entries, err := os.ReadDir(".")
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "TestNewCatalog"), "stray database file %s", e.Name())
	}
}

func TestNewCatalog_SameNameTwice(t *testing.T) {
	first := NewCatalog(t, File(1, "files/a.txt"))
	second := NewCatalog(t, File(1, "files/a.txt"))

	n, err := second.AllIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, n, 1)

	n, err = first.AllIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, n, 1)
}
