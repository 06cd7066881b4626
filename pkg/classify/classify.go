package classify

import (
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/types"
)

// Category 是孤儿的类别
type Category string

const (
	CategoryPreview         Category = "preview"           // 原图已删除的缩略图
	CategoryEmptyWithObject Category = "empty-with-object" // 空目录却有对象
	CategoryS3Only          Category = "s3-only"           // 对象没有目录行
	CategoryDBOnly          Category = "db-only"           // 文件行没有对象
)

// Order 是执行顺序 (空目录批量删除插在 empty-with-object 与 s3-only 之间)
var Order = []Category{
	CategoryPreview,
	CategoryEmptyWithObject,
	CategoryS3Only,
	CategoryDBOnly,
}

// Action 是一个条目需要执行的删除动作
type Action uint8

const (
	ActionCatalog Action = 1 << iota // 备份并删除目录行
	ActionBlob                       // 备份并删除对象
)

func (a Action) Has(x Action) bool { return a&x != 0 }

// Item 是计划中的一个待清理条目
type Item struct {
	Category Category
	ID       types.FileID
	Actions  Action

	// Preview 仅 CategoryPreview 有值
	Preview *inventory.PreviewOrphan
}

// Result 是一次分类的结果，各类别互斥
type Result struct {
	Previews        []inventory.PreviewOrphan
	EmptyWithObject types.IDSet
	S3Only          types.IDSet
	DBOnly          types.IDSet

	// EmptyFolders 是空目录总数，供安全闸门使用
	EmptyFolders int

	// blobs 记录快照中存在对象的 ID，用于决定缩略图是否需要删对象
	blobs types.IDSet
}

// Classify 纯函数：只做集合运算，不做任何 I/O
//
//	s3Only          = blobIds − allIds
//	dbOnly          = fileIds − blobIds
//	emptyWithObject = emptyFolderIds ∩ blobIds
//
// 同一个 ID 只归入优先级最高的类别：preview > empty-with-object > db-only。
// s3-only 的 ID 不在目录中，天然与其它类别不相交。
func Classify(snap *inventory.Snapshot) *Result {
	// 1. 缩略图 (按 PreviewFileID 去重，保持原图 ID 顺序)
	claimed := types.NewIDSet()
	previews := make([]inventory.PreviewOrphan, 0, len(snap.Previews))
	for _, p := range snap.Previews {
		if claimed.Has(p.PreviewFileID) {
			continue
		}
		claimed.Add(p.PreviewFileID)
		previews = append(previews, p)
	}

	// 2. 空目录却有对象
	emptyWithObject := snap.EmptyFolderIDs.Intersect(snap.BlobIDs).Difference(claimed)
	for id := range emptyWithObject {
		claimed.Add(id)
	}

	// 3. 两个差集
	s3Only := snap.BlobIDs.Difference(snap.AllIDs)
	dbOnly := snap.FileIDs.Difference(snap.BlobIDs).Difference(claimed)

	return &Result{
		Previews:        previews,
		EmptyWithObject: emptyWithObject,
		S3Only:          s3Only,
		DBOnly:          dbOnly,
		EmptyFolders:    snap.EmptyFolderIDs.Len(),
		blobs:           snap.BlobIDs,
	}
}

// Counts 各类别条目数
func (r *Result) Counts() map[Category]int {
	return map[Category]int{
		CategoryPreview:         len(r.Previews),
		CategoryEmptyWithObject: r.EmptyWithObject.Len(),
		CategoryS3Only:          r.S3Only.Len(),
		CategoryDBOnly:          r.DBOnly.Len(),
	}
}

// Total 全部条目数 (不含空目录批量删除)
func (r *Result) Total() int {
	n := 0
	for _, c := range r.Counts() {
		n += c
	}
	return n
}

// Items 返回某个类别的条目，顺序确定
func (r *Result) Items(c Category) []Item {
	switch c {
	case CategoryPreview:
		items := make([]Item, 0, len(r.Previews))
		for i := range r.Previews {
			p := r.Previews[i]
			actions := ActionCatalog
			if r.blobs.Has(p.PreviewFileID) {
				actions |= ActionBlob
			}
			items = append(items, Item{Category: c, ID: p.PreviewFileID, Actions: actions, Preview: &p})
		}
		return items
	case CategoryEmptyWithObject:
		return idItems(c, r.EmptyWithObject, ActionCatalog|ActionBlob)
	case CategoryS3Only:
		return idItems(c, r.S3Only, ActionBlob)
	case CategoryDBOnly:
		return idItems(c, r.DBOnly, ActionCatalog)
	default:
		return nil
	}
}

func idItems(c Category, ids types.IDSet, actions Action) []Item {
	sorted := ids.Sorted()
	items := make([]Item, 0, len(sorted))
	for _, id := range sorted {
		items = append(items, Item{Category: c, ID: id, Actions: actions})
	}
	return items
}

// Plan 按执行顺序展开全部条目
func (r *Result) Plan() []Item {
	var plan []Item
	for _, c := range Order {
		plan = append(plan, r.Items(c)...)
	}
	return plan
}
