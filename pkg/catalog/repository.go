package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"orphansweep/pkg/types"

	"gorm.io/gorm"
)

var (
	// ErrAlreadyGone 行在备份或删除时已经不存在
	ErrAlreadyGone = errors.New("catalog row already gone")
)

// lookupChunk 是 fileid IN (...) 每批的参数数量
const lookupChunk = 500

// previewPattern 匹配缩略图行
const previewPattern = "%/preview/%.jpg"

// Repository 封装所有对目录表的操作
type Repository struct {
	db    *DB
	table string
}

func NewRepository(db *DB, table string) *Repository {
	if table == "" {
		table = DefaultTable
	}
	return &Repository{db: db, table: table}
}

// Table 返回实际操作的表名
func (r *Repository) Table() string {
	return r.table
}

// query 先做存活检查，再返回绑定了表名与 ctx 的会话
func (r *Repository) query(ctx context.Context) (*gorm.DB, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return conn.WithContext(ctx).Table(r.table), nil
}

// -----------------------------------------------------------------------------
// 1. 清单查询 (Inventory)
// -----------------------------------------------------------------------------

func (r *Repository) pluckIDs(ctx context.Context, where string, args ...any) ([]types.FileID, error) {
	q, err := r.query(ctx)
	if err != nil {
		return nil, err
	}
	if where != "" {
		q = q.Where(where, args...)
	}

	var raw []uint64
	if err := q.Pluck("fileid", &raw).Error; err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}

	ids := make([]types.FileID, len(raw))
	for i, v := range raw {
		ids[i] = types.FileID(v)
	}
	return ids, nil
}

// AllIDs 目录中全部 fileid
func (r *Repository) AllIDs(ctx context.Context) ([]types.FileID, error) {
	return r.pluckIDs(ctx, "")
}

// FileIDs 普通文件 (mimetype > 2)
func (r *Repository) FileIDs(ctx context.Context) ([]types.FileID, error) {
	return r.pluckIDs(ctx, "mimetype > ?", FolderMimeType)
}

// EmptyFolderIDs 空目录 (mimetype = 2 AND size = 0)
func (r *Repository) EmptyFolderIDs(ctx context.Context) ([]types.FileID, error) {
	return r.pluckIDs(ctx, "mimetype = ? AND size = ?", FolderMimeType, 0)
}

// EmptyFolders 返回空目录的完整行 (用于路径保护规则)
func (r *Repository) EmptyFolders(ctx context.Context) ([]Entry, error) {
	q, err := r.query(ctx)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = q.Where("mimetype = ? AND size = ?", FolderMimeType, 0).
		Select("fileid", "path").
		Order("fileid").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	return entries, nil
}

// PreviewCandidates 返回路径形如 .../preview/<原图ID>/<名字>.jpg 的行
func (r *Repository) PreviewCandidates(ctx context.Context) ([]Entry, error) {
	q, err := r.query(ctx)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = q.Where("path LIKE ?", previewPattern).
		Order("fileid").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	return entries, nil
}

// ExistingIDs 返回 ids 中仍在目录里有行的那部分
// 分批 IN 查询，避免参数过多
func (r *Repository) ExistingIDs(ctx context.Context, ids []types.FileID) (types.IDSet, error) {
	found := types.NewIDSet()
	for chunk := range slices.Chunk(ids, lookupChunk) {
		part, err := r.pluckIDs(ctx, "fileid IN ?", rawIDs(chunk))
		if err != nil {
			return nil, err
		}
		for _, id := range part {
			found.Add(id)
		}
	}
	return found, nil
}

// -----------------------------------------------------------------------------
// 2. 单行操作 (Backup / Purge)
// -----------------------------------------------------------------------------

// GetRow 读取整行 (全部列)，用于备份
// 驱动返回的 []byte 统一转成 string，保证 JSON 可读
func (r *Repository) GetRow(ctx context.Context, id types.FileID) (map[string]any, error) {
	q, err := r.query(ctx)
	if err != nil {
		return nil, err
	}

	row := map[string]any{}
	err = q.Where("fileid = ?", uint64(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && len(row) == 0) {
		return nil, ErrAlreadyGone
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read row %d: %w", id, err))
	}

	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row, nil
}

// DeleteRow 删除单行；影响行数为 0 时返回 ErrAlreadyGone
func (r *Repository) DeleteRow(ctx context.Context, id types.FileID) error {
	q, err := r.query(ctx)
	if err != nil {
		return err
	}

	result := q.Where("fileid = ?", uint64(id)).Delete(&Entry{})
	if result.Error != nil {
		return classify(fmt.Errorf("failed to delete row %d: %w", id, result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyGone
	}
	return nil
}

// BulkDeleteEmptyFolders 一次性删除全部空目录行 (不备份)
// exclude 中的行保留 (例如备份失败或受保护的行)
func (r *Repository) BulkDeleteEmptyFolders(ctx context.Context, exclude []types.FileID) (int64, error) {
	q, err := r.query(ctx)
	if err != nil {
		return 0, err
	}

	q = q.Where("mimetype = ? AND size = ?", FolderMimeType, 0)
	if len(exclude) > 0 {
		q = q.Where("fileid NOT IN ?", rawIDs(exclude))
	}

	result := q.Delete(&Entry{})
	if result.Error != nil {
		return 0, classify(fmt.Errorf("bulk delete failed: %w", result.Error))
	}
	return result.RowsAffected, nil
}

func rawIDs(ids []types.FileID) []uint64 {
	raw := make([]uint64, len(ids))
	for i, id := range ids {
		raw[i] = uint64(id)
	}
	return raw
}
