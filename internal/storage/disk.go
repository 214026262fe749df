package storage

import (
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of the knowledge store.
type Usage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	IndexBytes    int64 `json:"index_bytes"`
}

// Total returns the combined size.
func (u Usage) Total() int64 {
	return u.DatabaseBytes + u.IndexBytes
}

// DiskUsage measures the database file (with its WAL sidecars) and the rules
// index directory. Missing paths count as zero.
func DiskUsage(dbPath, indexPath string) (Usage, error) {
	var u Usage
	var err error
	if u.DatabaseBytes, err = sizeOf(dbPath, dbPath+"-wal", dbPath+"-shm"); err != nil {
		return Usage{}, err
	}
	if u.IndexBytes, err = sizeOf(indexPath); err != nil {
		return Usage{}, err
	}
	return u, nil
}

func sizeOf(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.Walk(p, func(_ string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi != nil && !fi.IsDir() {
				total += fi.Size()
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
