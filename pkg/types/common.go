// pkg/types/common.go
package types

import (
	"slices"
	"strconv"
)

// FileID 是目录表 (catalog) 的主键 fileid，同时也是对象存储 key 中的数字部分
// 这是一个“值对象”，应当是不可变的。
type FileID uint64

func (id FileID) String() string { return strconv.FormatUint(uint64(id), 10) }

// 验证 ID 合法性 (fileid 从 1 开始自增)
func (id FileID) IsZero() bool { return id == 0 }

// IDSet 是 FileID 的集合
// 基于 map 实现，成员判断 O(1)，集合运算 O(n)
type IDSet map[FileID]struct{}

// NewIDSet 用给定的 ID 构造集合 (重复 ID 自动去重)
func NewIDSet(ids ...FileID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(id FileID) { s[id] = struct{}{} }

func (s IDSet) Has(id FileID) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int { return len(s) }

// Difference 返回 s - other (在 s 中但不在 other 中)
func (s IDSet) Difference(other IDSet) IDSet {
	out := make(IDSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Intersect 返回 s ∩ other
// 遍历较小的一侧，避免在百万级集合上做无谓的循环
func (s IDSet) Intersect(other IDSet) IDSet {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	out := make(IDSet)
	for id := range small {
		if large.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted 返回升序排列的 ID 切片，保证输出 (报告、执行顺序) 的确定性
func (s IDSet) Sorted() []FileID {
	ids := make([]FileID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Equal 判断两个集合元素是否完全一致
func (s IDSet) Equal(other IDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}
