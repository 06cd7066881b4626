package gate

import (
	"errors"
	"fmt"
)

// DefaultThreshold 空目录数达到此值时拒绝远程批量删除
const DefaultThreshold = 200000

var ErrInvalidThreshold = errors.New("empty folder threshold must be positive")

// Verdict 闸门结论
type Verdict int

const (
	Authorize Verdict = iota // 允许批量删除
	Refuse                   // 拒绝，交给管理员手工执行
)

func (v Verdict) String() string {
	if v == Authorize {
		return "authorize"
	}
	return "refuse"
}

// Decision 闸门的完整结论
type Decision struct {
	Verdict   Verdict
	Count     int
	Threshold int
	// Statement 是需要手工执行的 SQL (仅 Refuse 时有值)
	Statement string
}

// Decide 根据空目录数量决定是否允许批量删除
// count < threshold 允许；否则拒绝并给出手工执行的语句
func Decide(count, threshold int, table string) (Decision, error) {
	if threshold <= 0 {
		return Decision{}, fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}

	d := Decision{Count: count, Threshold: threshold}
	if count < threshold {
		d.Verdict = Authorize
		return d, nil
	}
	d.Verdict = Refuse
	d.Statement = ManualStatement(table)
	return d, nil
}

// ManualStatement 空目录批量删除语句
func ManualStatement(table string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE mimetype = 2 AND size = 0", table)
}
