package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"orphansweep/pkg/oid"
	"orphansweep/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// Format 目录行备份的序列化格式
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

var ErrUnknownFormat = errors.New("unknown backup format")

const (
	blobDir = "s3"
	rowDir  = "db"
)

// Kind 备份的种类
type Kind string

const (
	KindBlob Kind = "blob"
	KindRow  Kind = "row"
)

// Record 描述一份已经落盘的备份
type Record struct {
	Kind Kind
	ID   types.FileID
	Path string
	Size int64
}

// Writer 把对象和目录行备份到本地目录
//
//	<root>/s3/urn:oid:<id>
//	<root>/db/<id>.json|cbor
//
// 每个文件都先写临时文件、fsync、rename，再 fsync 父目录。
// 方法返回 nil 时备份已经持久化，调用方才可以开始删除。
type Writer struct {
	root   string
	format Format
	cbor   cbor.EncMode
}

// NewWriter 创建备份目录
func NewWriter(root string, format Format) (*Writer, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCBOR {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	for _, sub := range []string{blobDir, rowDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create backup dir: %w", err)
		}
	}

	// 确定性编码：同一行多次备份得到相同字节
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &Writer{root: root, format: format, cbor: em}, nil
}

// Root 备份根目录
func (w *Writer) Root() string { return w.root }

// BlobPath 对象备份的路径
func (w *Writer) BlobPath(id types.FileID) string {
	return filepath.Join(w.root, blobDir, oid.Encode(id))
}

// RowPath 目录行备份的路径
func (w *Writer) RowPath(id types.FileID) string {
	return filepath.Join(w.root, rowDir, id.String()+"."+string(w.format))
}

// WriteBlob 把对象内容流式写入备份
func (w *Writer) WriteBlob(ctx context.Context, id types.FileID, r io.Reader) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	path := w.BlobPath(id)
	n, err := writeAtomic(path, func(f io.Writer) (int64, error) {
		return io.Copy(f, r)
	})
	if err != nil {
		return Record{}, fmt.Errorf("backup blob %d: %w", id, err)
	}
	return Record{Kind: KindBlob, ID: id, Path: path, Size: n}, nil
}

// WriteRow 序列化并写入一整行
func (w *Writer) WriteRow(ctx context.Context, id types.FileID, row map[string]any) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	data, err := w.encode(row)
	if err != nil {
		return Record{}, fmt.Errorf("encode row %d: %w", id, err)
	}

	path := w.RowPath(id)
	n, err := writeAtomic(path, func(f io.Writer) (int64, error) {
		n, err := f.Write(data)
		return int64(n), err
	})
	if err != nil {
		return Record{}, fmt.Errorf("backup row %d: %w", id, err)
	}
	return Record{Kind: KindRow, ID: id, Path: path, Size: n}, nil
}

func (w *Writer) encode(row map[string]any) ([]byte, error) {
	switch w.format {
	case FormatCBOR:
		return w.cbor.Marshal(row)
	default:
		return json.MarshalIndent(row, "", "  ")
	}
}

// writeAtomic 原子写入
// 1. 在目标目录创建临时文件并写入
// 2. fsync 文件后 rename 到最终位置
// 3. fsync 父目录，保证 rename 本身持久化
func writeAtomic(path string, write func(io.Writer) (int64, error)) (n int64, err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if n, err = write(tmp); err != nil {
		return 0, err
	}
	if err = tmp.Sync(); err != nil {
		return 0, err
	}
	if err = tmp.Close(); err != nil {
		return 0, err
	}
	if err = os.Rename(tmpName, path); err != nil {
		return 0, err
	}
	if err = syncDir(dir); err != nil {
		return 0, err
	}
	return n, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
