package dicom

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// dicomExtensions are extensions accepted without sniffing the file.
var dicomExtensions = map[string]bool{
	".dcm":   true,
	".dicom": true,
}

// skippedNames are files that are never DICOM objects.
var skippedNames = map[string]bool{
	"DICOMDIR":    true,
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

// skippedDirs are directories not descended into.
var skippedDirs = map[string]bool{
	".git":         true,
	"__MACOSX":     true,
	"node_modules": true,
}

// FindDicomFiles returns the DICOM files under root in lexical order. Files
// are accepted by extension or, failing that, by the DICM preamble marker.
func FindDicomFiles(root string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if skippedNames[d.Name()] || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if dicomExtensions[strings.ToLower(filepath.Ext(path))] || hasDicomMagicBytes(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// FirstDicomFile returns the first DICOM file found under dir, searching
// subdirectories, or "" when there is none.
func FirstDicomFile(dir string) string {
	files, err := FindDicomFiles(dir, true)
	if err != nil || len(files) == 0 {
		return ""
	}
	return files[0]
}

// Subdirectories lists the immediate subdirectories of dir in name order.
func Subdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs, nil
}

// hasDicomMagicBytes checks for "DICM" at offset 128.
func hasDicomMagicBytes(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 132)
	if _, err := io.ReadFull(file, header); err != nil {
		return false
	}
	return string(header[128:132]) == "DICM"
}
