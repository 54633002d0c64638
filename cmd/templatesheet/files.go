package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nikitaxru/templatesheet"
)

// collectFiles reads the named files and the .json files under the named
// directories. Explicit files are taken whatever their extension; files found in a
// directory come in lexical order.
func collectFiles(paths []string) ([]templatesheet.File, error) {
	var files []templatesheet.File
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			f, err := readFile(p)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
		sort.Strings(found)
		for _, path := range found {
			f, err := readFile(path)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no template files in %s", strings.Join(paths, ", "))
	}
	return files, nil
}

func readFile(path string) (templatesheet.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return templatesheet.File{}, err
	}
	return templatesheet.File{Name: filepath.Base(path), Content: string(data)}, nil
}
