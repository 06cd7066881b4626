// Package preview 解析缩略图行的路径
//
// 缩略图存放在 <appdata>/preview/.../<原图 fileid>/<宽>-<高>[-max].jpg，
// 倒数第二段是原图的 fileid，最后一段是缩略图名字。
package preview

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"orphansweep/pkg/types"
)

var ErrNotPreviewPath = errors.New("not a preview path")

// Parse 返回原图 ID 和缩略图名字
func Parse(path string) (types.FileID, string, error) {
	if !strings.Contains(path, "/preview/") || !strings.HasSuffix(path, ".jpg") {
		return 0, "", fmt.Errorf("%w: %q", ErrNotPreviewPath, path)
	}

	segs := strings.Split(path, "/")
	if len(segs) < 3 {
		return 0, "", fmt.Errorf("%w: %q", ErrNotPreviewPath, path)
	}
	name := segs[len(segs)-1]
	parent := segs[len(segs)-2]

	id, err := strconv.ParseUint(parent, 10, 64)
	if err != nil || id == 0 {
		return 0, "", fmt.Errorf("%w: segment %q is not a file id", ErrNotPreviewPath, parent)
	}
	return types.FileID(id), name, nil
}
