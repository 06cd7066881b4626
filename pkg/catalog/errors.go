package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"orphansweep/pkg/storage"

	"github.com/go-sql-driver/mysql"
)

// MySQL 客户端错误码: 2006 server has gone away, 2013 lost connection during query
// 服务端: 1205 lock wait timeout, 1213 deadlock
var retryableMySQLCodes = map[uint16]bool{
	1205: true,
	1213: true,
	2006: true,
	2013: true,
}

// classify 给连接类故障打上 storage.ErrTransient 标记
// 与对象存储共用同一个哨兵，执行器只需检查一次
func classify(err error) error {
	if err == nil || storage.IsTransient(err) || !isConnectionError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", storage.ErrTransient, err)
}

// isConnectionError 判断是否为断线、超时一类可重跑的故障
func isConnectionError(err error) bool {
	// 操作员主动取消不算
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return retryableMySQLCodes[myErr.Number]
	}

	// database/sql 和 pgx 的部分错误只有字符串
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "bad connection")
}
