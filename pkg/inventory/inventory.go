package inventory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"orphansweep/pkg/catalog"
	"orphansweep/pkg/oid"
	"orphansweep/pkg/preview"
	"orphansweep/pkg/storage"
	"orphansweep/pkg/types"
)

// Query 是目录上的固定查询
type Query int

const (
	QueryAll          Query = iota // 全部行
	QueryFiles                     // mimetype > 2
	QueryEmptyFolders              // mimetype = 2 AND size = 0
)

func (q Query) String() string {
	switch q {
	case QueryAll:
		return "all"
	case QueryFiles:
		return "files"
	case QueryEmptyFolders:
		return "empty-folders"
	default:
		return fmt.Sprintf("query(%d)", int(q))
	}
}

var ErrUnknownQuery = errors.New("unknown catalog query")

// Catalog 是 Loader 需要的目录能力
type Catalog interface {
	AllIDs(ctx context.Context) ([]types.FileID, error)
	FileIDs(ctx context.Context) ([]types.FileID, error)
	EmptyFolderIDs(ctx context.Context) ([]types.FileID, error)
	PreviewCandidates(ctx context.Context) ([]catalog.Entry, error)
	ExistingIDs(ctx context.Context, ids []types.FileID) (types.IDSet, error)
}

// PreviewOrphan 是原图已不存在的缩略图
type PreviewOrphan struct {
	PreviewFileID   types.FileID `json:"preview_file_id"`
	PreviewName     string       `json:"preview_name"`
	OriginalImageID types.FileID `json:"original_image_id"`
}

// Snapshot 是一次运行内两边存储的只读清单
type Snapshot struct {
	BlobIDs        types.IDSet
	AllIDs         types.IDSet
	FileIDs        types.IDSet
	EmptyFolderIDs types.IDSet
	Previews       []PreviewOrphan

	// MalformedPreviews 路径无法解析出原图 ID 的缩略图行数
	MalformedPreviews int
	TakenAt           time.Time
}

// Loader 负责从对象存储和目录构建 Snapshot
type Loader struct {
	blobs   storage.Store
	catalog Catalog
	clock   types.Clock
	logger  *slog.Logger
}

func NewLoader(blobs storage.Store, cat Catalog, clock types.Clock, logger *slog.Logger) *Loader {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{blobs: blobs, catalog: cat, clock: clock, logger: logger}
}

// LoadBlobIDs 列举 bucket 中全部 key 并解码
// 任何一个 key 格式不对都会中止加载
func (l *Loader) LoadBlobIDs(ctx context.Context) (types.IDSet, error) {
	ids := types.NewIDSet()
	err := l.blobs.ListKeys(ctx, func(key string) error {
		id, err := oid.Decode(key)
		if err != nil {
			return err
		}
		ids.Add(id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blob store: %w", err)
	}
	return ids, nil
}

// LoadCatalogIDs 执行一条固定查询
func (l *Loader) LoadCatalogIDs(ctx context.Context, q Query) (types.IDSet, error) {
	var (
		ids []types.FileID
		err error
	)
	switch q {
	case QueryAll:
		ids, err = l.catalog.AllIDs(ctx)
	case QueryFiles:
		ids, err = l.catalog.FileIDs(ctx)
	case QueryEmptyFolders:
		ids, err = l.catalog.EmptyFolderIDs(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, q)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog query %s: %w", q, err)
	}
	return types.NewIDSet(ids...), nil
}

// LoadPreviewOrphans 找出原图已不存在的缩略图，按原图 ID 排序
// 返回值中的 int 是无法解析的缩略图路径数量
func (l *Loader) LoadPreviewOrphans(ctx context.Context) ([]PreviewOrphan, int, error) {
	// 1. 候选行
	rows, err := l.catalog.PreviewCandidates(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog query previews: %w", err)
	}

	// 2. 解析路径，记录无法解析的行
	var (
		candidates []PreviewOrphan
		originals  = types.NewIDSet()
		malformed  int
	)
	for _, row := range rows {
		original, name, err := preview.Parse(row.Path)
		if err != nil {
			malformed++
			l.logger.Warn("skipping malformed preview path",
				"fileid", row.FileID, "path", row.Path, "error", err)
			continue
		}
		candidates = append(candidates, PreviewOrphan{
			PreviewFileID:   types.FileID(row.FileID),
			PreviewName:     name,
			OriginalImageID: original,
		})
		originals.Add(original)
	}

	// 3. 原图仍然存在的缩略图不是孤儿
	alive, err := l.catalog.ExistingIDs(ctx, originals.Sorted())
	if err != nil {
		return nil, 0, fmt.Errorf("catalog lookup originals: %w", err)
	}
	orphans := slices.DeleteFunc(candidates, func(p PreviewOrphan) bool {
		return alive.Has(p.OriginalImageID)
	})

	slices.SortStableFunc(orphans, func(a, b PreviewOrphan) int {
		if a.OriginalImageID != b.OriginalImageID {
			return cmp.Compare(a.OriginalImageID, b.OriginalImageID)
		}
		return cmp.Compare(a.PreviewFileID, b.PreviewFileID)
	})
	return orphans, malformed, nil
}

// Load 构建完整的 Snapshot
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{TakenAt: l.clock.Now()}

	// 1. 对象存储
	start := l.clock.Now()
	blobIDs, err := l.LoadBlobIDs(ctx)
	if err != nil {
		return nil, err
	}
	snap.BlobIDs = blobIDs
	l.logger.Info("blob inventory loaded", "objects", blobIDs.Len(), "took", l.clock.Now().Sub(start))

	// 2. 目录的三条固定查询
	for _, q := range []Query{QueryAll, QueryFiles, QueryEmptyFolders} {
		ids, err := l.LoadCatalogIDs(ctx, q)
		if err != nil {
			return nil, err
		}
		switch q {
		case QueryAll:
			snap.AllIDs = ids
		case QueryFiles:
			snap.FileIDs = ids
		case QueryEmptyFolders:
			snap.EmptyFolderIDs = ids
		}
		l.logger.Info("catalog inventory loaded", "query", q.String(), "rows", ids.Len())
	}

	// 3. 孤儿缩略图
	previews, malformed, err := l.LoadPreviewOrphans(ctx)
	if err != nil {
		return nil, err
	}
	snap.Previews = previews
	snap.MalformedPreviews = malformed

	return snap, nil
}
