package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"orphansweep/pkg/classify"
	"orphansweep/pkg/gate"
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/types"
)

// Inventory 盘点数量
type Inventory struct {
	Objects           int `json:"objects"`
	Entries           int `json:"entries"`
	Files             int `json:"files"`
	EmptyFolders      int `json:"empty_folders"`
	MalformedPreviews int `json:"malformed_previews"`
}

// Gate 空目录批量删除的预判
type Gate struct {
	Verdict   string `json:"verdict"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
	Statement string `json:"statement,omitempty"`
}

// Plan 一次分类结果的可读导出 (sweep scan --plan)
type Plan struct {
	GeneratedAt     time.Time                 `json:"generated_at"`
	Inventory       Inventory                 `json:"inventory"`
	Counts          map[string]int            `json:"counts"`
	Previews        []inventory.PreviewOrphan `json:"previews"`
	EmptyWithObject []types.FileID            `json:"empty_with_object"`
	S3Only          []types.FileID            `json:"s3_only"`
	DBOnly          []types.FileID            `json:"db_only"`
	Gate            Gate                      `json:"gate"`
}

// Build 从快照与分类结果构建 Plan
func Build(snap *inventory.Snapshot, res *classify.Result, threshold int, table string) (*Plan, error) {
	d, err := gate.Decide(res.EmptyFolders, threshold, table)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for c, n := range res.Counts() {
		counts[string(c)] = n
	}

	previews := res.Previews
	if previews == nil {
		previews = []inventory.PreviewOrphan{}
	}

	return &Plan{
		GeneratedAt: snap.TakenAt,
		Inventory: Inventory{
			Objects:           snap.BlobIDs.Len(),
			Entries:           snap.AllIDs.Len(),
			Files:             snap.FileIDs.Len(),
			EmptyFolders:      snap.EmptyFolderIDs.Len(),
			MalformedPreviews: snap.MalformedPreviews,
		},
		Counts:          counts,
		Previews:        previews,
		EmptyWithObject: res.EmptyWithObject.Sorted(),
		S3Only:          res.S3Only.Sorted(),
		DBOnly:          res.DBOnly.Sorted(),
		Gate: Gate{
			Verdict:   d.Verdict.String(),
			Count:     d.Count,
			Threshold: d.Threshold,
			Statement: d.Statement,
		},
	}, nil
}

// Save 将 Plan 写到磁盘 (格式化输出)
func (p *Plan) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}
