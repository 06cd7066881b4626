package catalog

// DefaultTable 是 Nextcloud 默认前缀下的文件缓存表
const DefaultTable = "oc_filecache"

// FolderMimeType 是目录在 mimetype 列中的哨兵值
// mimetype > FolderMimeType 的行都是普通文件
const FolderMimeType = 2

// Entry 是目录表中的一行 (只映射本工具需要的列)
type Entry struct {
	FileID   uint64 `gorm:"column:fileid;primaryKey;autoIncrement:false"`
	Path     string `gorm:"column:path;type:varchar(4000)"`
	MimeType int64  `gorm:"column:mimetype"`
	Size     int64  `gorm:"column:size"`
}

// TableName 默认表名；实际查询通过 Repository 的 table 覆盖
func (Entry) TableName() string {
	return DefaultTable
}
