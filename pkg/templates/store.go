package templates

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ritzau/wfc/pkg/compiler"
	"github.com/ritzau/wfc/pkg/inject"
	"github.com/ritzau/wfc/pkg/logging"
	"github.com/ritzau/wfc/pkg/model"
)

// ErrNotFound is returned for unknown template names.
var ErrNotFound = errors.New("template not found")

// Template is a workflow file together with its parameter registry.
type Template struct {
	Name     string
	Path     string
	Kind     model.SourceKind
	Hash     string
	Registry inject.Registry

	source model.Source
	data   []byte
}

// Info is the listing form of a template.
type Info struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Hash       string   `json:"hash"`
	Parameters []string `json:"parameters"`
}

// Info summarizes t.
func (t *Template) Info() Info {
	return Info{
		Name:       t.Name,
		Kind:       t.Kind.String(),
		Hash:       t.Hash,
		Parameters: t.Registry.Names(),
	}
}

// Rendered is a template compiled, filled in and ready to submit.
type Rendered struct {
	Template string               `json:"template"`
	Graph    model.ExecutionGraph `json:"-"`
	Payload  map[string]any       `json:"payload"`
	Warnings []model.Warning      `json:"warnings"`
	Report   inject.Report        `json:"injection"`
}

// Store holds the templates of one directory. Compiled graphs are cached by
// content hash, so editing a workflow file never serves a stale graph.
type Store struct {
	dir     string
	opts    compiler.Options
	optsKey string

	mu        sync.RWMutex
	templates map[string]*Template

	cache *lru.Cache[string, *compiler.Result]
}

// New creates an empty store for dir. Call Load to read it.
func New(dir string, opts compiler.Options, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, *compiler.Result](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Store{
		dir:       dir,
		opts:      opts,
		optsKey:   optionsKey(opts),
		templates: make(map[string]*Template),
		cache:     cache,
	}, nil
}

// Dir returns the template directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads every <name>.json in the directory. Templates that fail to
// load are skipped and reported in the returned error; the others are
// still available.
func (s *Store) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read template directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}

	s.mu.Lock()
	for name := range s.templates {
		if !slices.Contains(names, name) {
			delete(s.templates, name)
		}
	}
	s.mu.Unlock()

	_, err = s.Reload(names...)
	return err
}

// Reload re-reads the named templates. A template whose workflow file is
// gone is removed. It returns the names whose content actually changed.
func (s *Store) Reload(names ...string) ([]string, error) {
	var changed []string
	var errs []error

	for _, name := range names {
		t, err := s.read(name)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.mu.Lock()
			if _, ok := s.templates[name]; ok {
				delete(s.templates, name)
				changed = append(changed, name)
			}
			s.mu.Unlock()
			continue
		case err != nil:
			// Keep serving the previous version.
			logging.Warn("failed to load template", "template", name, "error", err)
			errs = append(errs, err)
			continue
		}

		s.mu.Lock()
		old, ok := s.templates[name]
		if !ok || old.Hash != t.Hash || !sameRegistry(old.Registry, t.Registry) {
			changed = append(changed, name)
		}
		s.templates[name] = t
		s.mu.Unlock()
	}

	sort.Strings(changed)
	if len(changed) > 0 {
		logging.Info("templates loaded", "changed", strings.Join(changed, ","), "total", len(s.Names()))
	}
	return changed, errors.Join(errs...)
}

func (s *Store) read(name string) (*Template, error) {
	path := filepath.Join(s.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	src, err := model.ParseSource(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}

	reg := inject.Registry{}
	regPath := filepath.Join(s.dir, name+".toml")
	if _, err := os.Stat(regPath); err == nil {
		if reg, err = inject.LoadRegistry(regPath); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
	}

	sum := sha256.Sum256(data)
	return &Template{
		Name:     name,
		Path:     path,
		Kind:     src.Kind(),
		Hash:     fmt.Sprintf("%x", sum),
		Registry: reg,
		source:   src,
		data:     data,
	}, nil
}

// Names returns the loaded template names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the loaded templates.
func (s *Store) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.templates))
	for _, t := range s.templates {
		infos = append(infos, t.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Get returns the named template.
func (s *Store) Get(name string) (*Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[name]
	return t, ok
}

// Compile returns the compiled graph of a template. The result is shared
// through the cache and must not be modified; Render clones it.
func (s *Store) Compile(name string) (*compiler.Result, error) {
	t, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	key := t.Hash + ":" + s.optsKey
	if res, ok := s.cache.Get(key); ok {
		logging.Trace("template cache hit", "template", name)
		return res, nil
	}

	// The parsed source of an execution-shaped template is filled in
	// place by Passthrough, so compile a fresh parse each time.
	src, err := model.ParseSource(t.data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	res, err := compiler.CompileSource(src, s.opts)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	s.cache.Add(key, res)
	return res, nil
}

// Render compiles a template, injects values into a private copy and
// builds the submission payload. An empty clientID gets a fresh one.
func (s *Store) Render(name string, values map[string]any, clientID string) (*Rendered, error) {
	t, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	res, err := s.Compile(name)
	if err != nil {
		return nil, err
	}

	g, report, err := inject.InjectCopy(res.Graph, values, t.Registry)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	s.renormalizeWidgetWrites(g, report)

	if clientID == "" {
		clientID = uuid.NewString()
	}

	warnings := append(append([]model.Warning{}, res.Warnings...), report.Warnings...)
	return &Rendered{
		Template: name,
		Graph:    g,
		Payload:  g.Payload(clientID),
		Warnings: warnings,
		Report:   report,
	}, nil
}

// renormalizeWidgetWrites re-derives inputs of nodes whose widget values
// were injected, since the engine only reads inputs.
func (s *Store) renormalizeWidgetWrites(g model.ExecutionGraph, report inject.Report) {
	touched := model.ExecutionGraph{}
	for _, a := range report.Applied {
		if strings.HasPrefix(a.Path, "widgets_values") || strings.HasPrefix(a.Path, "widgetValues") {
			touched[a.NodeID] = g[a.NodeID]
		}
	}
	if len(touched) > 0 {
		compiler.Renormalize(touched, s.opts.Normalizers)
	}
}

// optionsKey identifies compile options for the cache key.
func optionsKey(opts compiler.Options) string {
	normalizers := make([]string, 0, len(opts.Normalizers))
	for name := range opts.Normalizers {
		normalizers = append(normalizers, name)
	}
	sort.Strings(normalizers)
	uiTypes := opts.UITypes.Names()
	sort.Strings(uiTypes)

	data, err := json.Marshal(struct {
		UITypes          []string
		Normalizers      []string
		ZeroIndexOutputs bool
	}{uiTypes, normalizers, opts.ZeroIndexOutputs})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

func sameRegistry(a, b inject.Registry) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}
