package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"orphansweep/pkg/storage"
	"orphansweep/pkg/types"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"bad conn", fmt.Errorf("delete: %w", driver.ErrBadConn), true},
		{"conn done", sql.ErrConnDone, true},
		{"mysql invalid conn", mysql.ErrInvalidConn, true},
		{"net error", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("i/o timeout")}, true},
		{"server gone away", &mysql.MySQLError{Number: 2006, Message: "MySQL server has gone away"}, true},
		{"lost connection", &mysql.MySQLError{Number: 2013, Message: "Lost connection"}, true},
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"syntax error", &mysql.MySQLError{Number: 1064, Message: "syntax"}, false},
		{"database closed", errors.New("sql: database is closed"), true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("constraint failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)
			assert.Equal(t, tt.transient, storage.IsTransient(err))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}

	// 已标记的错误不重复包装
	marked := classify(driver.ErrBadConn)
	assert.Same(t, marked, classify(marked))
}

func TestRepository_LostConnectionIsTransient(t *testing.T) {
	repo := setupTestRepo(t)
	mustInsert(t, repo, file(4, "files/gone.txt"))
	ctx := context.Background()

	// 注入的连接无法重连
	sqlDB, err := repo.db.GetConn().DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = repo.DeleteRow(ctx, types.FileID(4))
	require.Error(t, err)
	assert.True(t, storage.IsTransient(err), "lost connection must be transient: %v", err)
	assert.NotErrorIs(t, err, ErrAlreadyGone)

	_, err = repo.GetRow(ctx, types.FileID(4))
	assert.True(t, storage.IsTransient(err))
}
