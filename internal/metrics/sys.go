package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// SysHealth represents real-time process and disk metrics for the health endpoint.
type SysHealth struct {
	AllocMB        uint64 `json:"allocMb"`
	TotalAllocMB   uint64 `json:"totalAllocMb"`
	SysMB          uint64 `json:"sysMb"`
	NumGC          uint32 `json:"numGc"`
	Goroutines     int    `json:"goroutines"`
	DataDiskSize   string `json:"dataDiskSize"`
	PendingUploads int    `json:"pendingUploads"`
}

// GetSysHealth collects real-time health data. dataPath is the directory
// holding the database; uploadDir holds temporary images awaiting extraction.
func GetSysHealth(dataPath, uploadDir string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	size, _ := dirStats(dataPath)
	_, pending := dirStats(uploadDir)

	return SysHealth{
		AllocMB:        m.Alloc / 1024 / 1024,
		TotalAllocMB:   m.TotalAlloc / 1024 / 1024,
		SysMB:          m.Sys / 1024 / 1024,
		NumGC:          m.NumGC,
		Goroutines:     runtime.NumGoroutine(),
		DataDiskSize:   formatBytes(size),
		PendingUploads: pending,
	}
}

// dirStats returns the total size and number of regular files under path.
// A missing path counts as empty.
func dirStats(path string) (int64, int) {
	if path == "" {
		return 0, 0
	}
	var (
		size  int64
		files int
	)
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			files++
		}
		return nil
	})
	return size, files
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
