// Package answerkey parses single-column answer-key files into an AnswerMap.
package answerkey

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/igzam/itemgest/internal/model"
)

// ErrEmpty is returned when a key file holds no recognizable answer.
var ErrEmpty = errors.New("answer key has no A-D rows")

// Parser reads an answer key.
type Parser interface {
	Parse(r io.Reader) (model.AnswerMap, error)
}

// Extensions lists the answer-key file extensions, in lookup order.
var Extensions = []string{".csv", ".xlsx"}

// ForFile returns the parser for a filename.
func ForFile(filename string) (Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return &CSVParser{}, nil
	case ".xlsx":
		return &XLSXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported answer key extension: %s", ext)
	}
}

// IsKeyFile reports whether filename has an answer-key extension.
func IsKeyFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// build numbers the cells that hold a bare A..D letter 1..n. Other cells,
// headers included, are skipped without consuming an order.
func build(cells []string) (model.AnswerMap, error) {
	answers := make(model.AnswerMap, len(cells))
	for _, c := range cells {
		code, ok := model.CodeForLetter(strings.TrimSpace(c))
		if !ok {
			continue
		}
		answers[strconv.Itoa(len(answers)+1)] = code
	}
	if len(answers) == 0 {
		return nil, ErrEmpty
	}
	return answers, nil
}
