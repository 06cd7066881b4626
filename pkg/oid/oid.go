// Package oid 负责对象存储 key 与目录表 fileid 之间的映射
// key 格式: "urn:oid:<fileid>"
package oid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"orphansweep/pkg/types"
)

// Prefix 是所有对象 key 的固定前缀
const Prefix = "urn:oid:"

var ErrMalformedKey = errors.New("malformed object key")

// Encode 将 fileid 编码为对象 key
func Encode(id types.FileID) string {
	return Prefix + id.String()
}

// Decode 从对象 key 中解析 fileid
// 规则：按最后一个 ':' 切分，尾段必须是无符号十进制整数
// 解析失败必须上抛：静默丢弃一个 key 会让集合运算的结果出错
func Decode(key string) (types.FileID, error) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return 0, fmt.Errorf("%w: %q has no ':' separator", ErrMalformedKey, key)
	}
	n, err := strconv.ParseUint(key[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedKey, key, err)
	}
	return types.FileID(n), nil
}
