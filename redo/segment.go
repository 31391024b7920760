package redo

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// segmentFile is one numbered file on disk: log_path/<chain-name>.<n>.
type segmentFile struct {
	index int
	path  string
	file  *os.File
	size  int64
}

func segmentPath(dir, chainName string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%d", chainName, index))
}

func openSegment(dir, chainName string, index int) (*segmentFile, error) {
	path := segmentPath(dir, chainName, index)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("redo: open segment %d: %w", index, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("redo: stat segment %d: %w", index, err)
	}
	return &segmentFile{index: index, path: path, file: f, size: info.Size()}, nil
}

func (s *segmentFile) close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// segmentPattern matches "<chainName>.<n>" segment file names.
func segmentPattern(chainName string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(chainName) + `\.(\d+)$`)
}

// discoverSegments lists, in ascending index order, the segment indices
// already present for chainName under dir.
func discoverSegments(dir, chainName string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("redo: read log dir: %w", err)
	}
	pattern := segmentPattern(chainName)
	var indices []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	sort.Ints(indices)
	return indices, nil
}
