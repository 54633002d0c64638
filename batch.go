package templatesheet

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
)

// File is one uploaded document.
type File struct {
	Name    string
	Content string
}

// Result is the outcome for one file. Exactly one of Batch and Err is meaningful.
type Result struct {
	File  string
	Batch Batch
	Err   error
}

// OK reports whether the file was flattened.
func (r Result) OK() bool { return r.Err == nil }

// Process flattens every file with the flattener of kind. Files are handled in
// parallel; results keep the upload order. A malformed file yields a Result with a
// *DocumentError and does not affect its siblings.
func Process(kind Kind, files []File, logger *log.Logger) ([]Result, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	results := make([]Result, len(files))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, file File) {
			defer wg.Done()
			defer func() { <-sem }()
			b, err := FlattenFile(kind, file)
			if err != nil {
				results[i] = Result{File: file.Name, Err: &DocumentError{File: file.Name, Err: err}}
				return
			}
			results[i] = Result{File: file.Name, Batch: b}
		}(i, file)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			logger.Printf("skipped %v", r.Err)
		}
	}
	return results, nil
}

// FlattenFile parses and flattens a single file.
func FlattenFile(kind Kind, file File) (Batch, error) {
	data := []byte(file.Content)
	switch kind {
	case Forms:
		doc, err := ParseForm(data)
		if err != nil {
			return Batch{}, err
		}
		return NewBatch(BatchTitle(file.Name, doc.Title.String()), Forms, FlattenForm(doc)), nil
	case Views:
		doc, err := ParseView(data)
		if err != nil {
			return Batch{}, err
		}
		return NewBatch(BatchTitle(file.Name, ViewTitle(doc)), Views, FlattenView(doc)), nil
	case Roles:
		doc, err := ParseRole(data)
		if err != nil {
			return Batch{}, err
		}
		return NewBatch(BatchTitle(file.Name, doc.Title.Or(doc.ID.String())), Roles, FlattenRole(doc)), nil
	}
	return Batch{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// BatchTitle derives a sheet title from an uploaded file name: the part between the
// organization prefix and the extension ("acme_Intake.json" gives "Intake"). It falls
// back to docTitle, then to the bare file name.
func BatchTitle(fileName, docTitle string) string {
	base := fileName
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	name := base
	if _, rest, ok := strings.Cut(name, "_"); ok {
		name = rest
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	switch {
	case strings.TrimSpace(name) != "":
		return name
	case strings.TrimSpace(docTitle) != "" && docTitle != noneTitle:
		return docTitle
	default:
		return base
	}
}

// Batches returns the batches of the successful results, in order.
func Batches(results []Result) []Batch {
	var out []Batch
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Batch)
		}
	}
	return out
}

// Failures returns the per-file errors, in order.
func Failures(results []Result) []*DocumentError {
	var out []*DocumentError
	for _, r := range results {
		var de *DocumentError
		if errors.As(r.Err, &de) {
			out = append(out, de)
		}
	}
	return out
}

// Export selects records per cfg and builds the workbook from the successful results.
func Export(results []Result, cfg ExportConfig) (*Blob, error) {
	batches := Batches(results)
	if len(batches) == 0 {
		return nil, fmt.Errorf("%w: no document could be read", ErrEmptyExport)
	}
	batches, err := SelectRecords(batches, cfg)
	if err != nil {
		return nil, err
	}
	return BuildWorkbook(batches, cfg)
}
