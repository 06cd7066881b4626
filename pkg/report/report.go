package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"orphansweep/pkg/classify"
	"orphansweep/pkg/gate"
	"orphansweep/pkg/inventory"
	"orphansweep/pkg/journal"
	"orphansweep/pkg/purge"

	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func itoa(n int) string { return strconv.Itoa(n) }

// PrintInventory 打印盘点与分类的数量 (确认前展示给操作员)
func PrintInventory(w io.Writer, snap *inventory.Snapshot, res *classify.Result) {
	table := newTable(w, "WHAT", "COUNT")
	table.Append([]string{"objects in blob store", itoa(snap.BlobIDs.Len())})
	table.Append([]string{"catalog entries (files + folders)", itoa(snap.AllIDs.Len())})
	table.Append([]string{"catalog files", itoa(snap.FileIDs.Len())})
	table.Append([]string{"empty folders", itoa(snap.EmptyFolderIDs.Len())})
	table.Render()
	fmt.Fprintln(w)

	counts := res.Counts()
	table = newTable(w, "CATEGORY", "ORPHANS", "MEANING")
	table.Append([]string{string(classify.CategoryPreview), itoa(counts[classify.CategoryPreview]), "preview whose original file is gone"})
	table.Append([]string{string(classify.CategoryEmptyWithObject), itoa(counts[classify.CategoryEmptyWithObject]), "empty folder that owns an object"})
	table.Append([]string{string(classify.CategoryS3Only), itoa(counts[classify.CategoryS3Only]), "object with no catalog entry"})
	table.Append([]string{string(classify.CategoryDBOnly), itoa(counts[classify.CategoryDBOnly]), "file entry with no object"})
	table.Render()

	if snap.MalformedPreviews > 0 {
		fmt.Fprintf(w, "\n⚠️  %d preview rows have no parsable original id and were left alone\n", snap.MalformedPreviews)
	}
}

// PrintSummary 打印执行结果
func PrintSummary(w io.Writer, s *purge.Summary) {
	headers := []string{"CATEGORY"}
	for _, o := range purge.Outcomes {
		headers = append(headers, string(o))
	}
	table := newTable(w, headers...)
	for _, c := range classify.Order {
		row := []string{string(c)}
		for _, o := range purge.Outcomes {
			row = append(row, itoa(s.Counts[c][o]))
		}
		table.Append(row)
	}
	table.Render()
	fmt.Fprintln(w)

	PrintBulk(w, s.Bulk)

	if s.Aborted {
		fmt.Fprintln(w, "🛑 Run aborted: items that had not started were skipped.")
	}
	if n := s.Failed(); n > 0 {
		fmt.Fprintf(w, "❌ %d item(s) failed; their backups are kept and a re-run will retry them.\n", n)
	} else {
		fmt.Fprintln(w, "✅ All done.")
	}
}

// PrintBulk 打印空目录批量删除的闸门结论
func PrintBulk(w io.Writer, b purge.BulkResult) {
	switch {
	case b.Err != nil:
		fmt.Fprintf(w, "❌ Empty folder bulk delete failed: %v\n", b.Err)
	case b.Decision.Verdict == gate.Refuse:
		fmt.Fprintf(w, "⚠️  %d empty folders (threshold %d). Run this directly on the database server:\n    %s;\n",
			b.Decision.Count, b.Decision.Threshold, b.Decision.Statement)
	case b.Ran:
		fmt.Fprintf(w, "🗑️  Removed %d empty folder rows (%d kept back).\n", b.Deleted, b.Excluded)
	}
}

const timeLayout = "2006-01-02 15:04:05"

// PrintRuns 列出运行日志中的运行
func PrintRuns(w io.Writer, runs []journal.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	table := newTable(w, "RUN", "STARTED", "DURATION", "BULK", "FAILED", "ABORTED")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		table.Append([]string{
			r.ID,
			r.StartedAt.UTC().Format(timeLayout),
			duration,
			fmt.Sprintf("%s (%d)", r.BulkVerdict, r.BulkDeleted),
			itoa(r.Failed),
			strconv.FormatBool(r.Aborted),
		})
	}
	table.Render()
}

// PrintItems 列出一次运行的条目
func PrintItems(w io.Writer, items []journal.Item) {
	table := newTable(w, "CATEGORY", "FILEID", "OUTCOME", "BACKUP", "ERROR")
	for _, it := range items {
		backup := it.RowBackup
		if backup == "" {
			backup = it.BlobBackup
		}
		table.Append([]string{
			it.Category,
			strconv.FormatUint(it.FileID, 10),
			it.Outcome,
			backup,
			it.Error,
		})
	}
	table.Render()
}
