package convert

import (
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// PageCount opens a generated preview and returns its number of pages. A
// preview that cannot be read or has no pages is an error.
func PageCount(path string) (int, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := reader.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("pdf %s has no pages", path)
	}
	return n, nil
}
