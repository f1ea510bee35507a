// Package subjects holds the subject taxonomies documents are classified
// against.
package subjects

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/igzam/itemgest/internal/model"
)

// ErrUnknownSubject is returned by Get for an unregistered code.
var ErrUnknownSubject = errors.New("unknown subject")

//go:embed schema.json
var schemaJSON []byte

var fileSchema = mustCompile()

func mustCompile() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("subjects.json", bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("add subjects schema: %v", err))
	}
	return compiler.MustCompile("subjects.json")
}

// Fetcher lists subjects from a remote source.
type Fetcher interface {
	Subjects(ctx context.Context) ([]model.SubjectSpec, error)
}

// Registry is a concurrency-safe set of subject specs keyed by code.
type Registry struct {
	mu      sync.RWMutex
	path    string
	byCode  map[string]model.SubjectSpec
	pattern *regexp.Regexp
}

// New returns a registry persisted at path. It holds no subjects until
// loaded or replaced.
func New(path string) *Registry {
	return &Registry{path: path, byCode: map[string]model.SubjectSpec{}}
}

// Load reads the registry file at path. A missing file yields an empty
// registry.
func Load(path string) (*Registry, error) {
	r := New(path)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subjects: %w", err)
	}
	specs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	r.install(specs)
	return r, nil
}

// Parse validates a subjects document (an object keyed by subject code)
// against the file schema and the range rules.
func Parse(data []byte) (map[string]model.SubjectSpec, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode subjects: %w", err)
	}
	if err := fileSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("subjects do not match schema: %w", err)
	}

	var specs map[string]model.SubjectSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode subjects: %w", err)
	}
	for code, spec := range specs {
		if spec.Code == "" {
			spec.Code = code
			specs[code] = spec
		}
		if _, err := ValidateRanges(spec); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// Get returns the subject for code, matching case-insensitively.
func (r *Registry) Get(code string) (model.SubjectSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byCode[code]; ok {
		return s, nil
	}
	for k, s := range r.byCode {
		if strings.EqualFold(k, code) {
			return s, nil
		}
	}
	return model.SubjectSpec{}, fmt.Errorf("%w: %s", ErrUnknownSubject, code)
}

// Codes returns the registered codes in sorted order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.byCode))
	for c := range r.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// All returns every registered subject keyed by code.
func (r *Registry) All() map[string]model.SubjectSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.SubjectSpec, len(r.byCode))
	for k, v := range r.byCode {
		out[k] = v
	}
	return out
}

// Detect finds a registered code inside a document base name. The match is
// upper-cased. Without a match the base name itself is returned.
func (r *Registry) Detect(baseName string) string {
	r.mu.RLock()
	re := r.pattern
	r.mu.RUnlock()
	if re == nil {
		return baseName
	}
	if m := re.FindString(baseName); m != "" {
		return strings.ToUpper(m)
	}
	return baseName
}

// Replace installs specs, skipping subjects whose range table is invalid.
// The rejected subjects are returned as errors.
func (r *Registry) Replace(specs []model.SubjectSpec) []error {
	var rejected []error
	byCode := make(map[string]model.SubjectSpec, len(specs))
	for _, s := range specs {
		if s.Code == "" {
			rejected = append(rejected, errors.New("subject without code"))
			continue
		}
		if _, err := ValidateRanges(s); err != nil {
			rejected = append(rejected, err)
			continue
		}
		byCode[s.Code] = s
	}
	r.install(byCode)
	return rejected
}

// Refresh replaces the registry with the fetcher's subjects and persists
// the result.
func (r *Registry) Refresh(ctx context.Context, f Fetcher) (loaded int, rejected []error, err error) {
	specs, err := f.Subjects(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch subjects: %w", err)
	}
	rejected = r.Replace(specs)
	if err := r.Save(); err != nil {
		return 0, rejected, err
	}
	return len(r.Codes()), rejected, nil
}

// Save writes the registry to its path atomically.
func (r *Registry) Save() error {
	if r.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(r.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode subjects: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create subjects dir: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write subjects: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace subjects: %w", err)
	}
	return nil
}

func (r *Registry) install(byCode map[string]model.SubjectSpec) {
	codes := make([]string, 0, len(byCode))
	for c := range byCode {
		codes = append(codes, regexp.QuoteMeta(c))
	}
	// Longer codes first so ENGL wins over ENG.
	sort.Slice(codes, func(i, j int) bool { return len(codes[i]) > len(codes[j]) })

	var re *regexp.Regexp
	if len(codes) > 0 {
		re = regexp.MustCompile(`(?i)(` + strings.Join(codes, "|") + `)`)
	}

	r.mu.Lock()
	r.byCode = byCode
	r.pattern = re
	r.mu.Unlock()
}
