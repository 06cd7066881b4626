package purge

import (
	"fmt"
	"strings"
	"time"

	"orphansweep/pkg/classify"
	"orphansweep/pkg/gate"
)

// Outcome 单个条目的处理结果
type Outcome string

const (
	OutcomePurged       Outcome = "purged"        // 已备份并删除
	OutcomeAlreadyGone  Outcome = "already-gone"  // 行/对象在处理时已不存在
	OutcomeBackupFailed Outcome = "backup-failed" // 备份失败，未删除
	OutcomeDeleteFailed Outcome = "delete-failed" // 备份成功，删除失败
	OutcomeProtected    Outcome = "protected"     // 命中保护规则
	OutcomeSkipped      Outcome = "skipped"       // 运行中止前尚未开始
)

// Outcomes 报告中的固定顺序
var Outcomes = []Outcome{
	OutcomePurged,
	OutcomeAlreadyGone,
	OutcomeBackupFailed,
	OutcomeDeleteFailed,
	OutcomeProtected,
	OutcomeSkipped,
}

// Failed 是否算作失败
func (o Outcome) Failed() bool {
	return o == OutcomeBackupFailed || o == OutcomeDeleteFailed
}

// Result 单个条目的执行记录
type Result struct {
	Item    classify.Item
	Outcome Outcome
	// Transient 失败原因是连接/限流类的暂时故障，重跑大概率成功
	Transient bool
	Err       error

	RowBackup  string
	BlobBackup string
	// Row 备份时读到的目录行
	Row map[string]any

	StartedAt  time.Time
	FinishedAt time.Time
}

// BulkResult 空目录批量删除的结果
type BulkResult struct {
	Decision gate.Decision
	Ran      bool
	Deleted  int64
	Excluded int
	Err      error
}

// Summary 一次执行的汇总
type Summary struct {
	Counts  map[classify.Category]map[Outcome]int
	Bulk    BulkResult
	Aborted bool

	StartedAt  time.Time
	FinishedAt time.Time
}

func newSummary() *Summary {
	s := &Summary{Counts: make(map[classify.Category]map[Outcome]int)}
	for _, c := range classify.Order {
		s.Counts[c] = make(map[Outcome]int)
	}
	return s
}

func (s *Summary) add(r Result) {
	s.Counts[r.Item.Category][r.Outcome]++
}

// Failed 失败条目数 (含批量删除失败)
func (s *Summary) Failed() int {
	n := 0
	for _, byOutcome := range s.Counts {
		for o, c := range byOutcome {
			if o.Failed() {
				n += c
			}
		}
	}
	if s.Bulk.Err != nil {
		n++
	}
	return n
}

// Total 某个结果在全部类别中的数量
func (s *Summary) Total(o Outcome) int {
	n := 0
	for _, byOutcome := range s.Counts {
		n += byOutcome[o]
	}
	return n
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "purged=%d already-gone=%d failed=%d protected=%d skipped=%d",
		s.Total(OutcomePurged), s.Total(OutcomeAlreadyGone), s.Failed(),
		s.Total(OutcomeProtected), s.Total(OutcomeSkipped))
	if s.Bulk.Ran {
		fmt.Fprintf(&b, " empty-folders-deleted=%d", s.Bulk.Deleted)
	}
	if s.Aborted {
		b.WriteString(" (aborted)")
	}
	return b.String()
}
