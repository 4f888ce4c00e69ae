package teng

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var engineLogger = loggo.GetLogger("teng.engine")

// Engine ties together a TemplateLoader, a compiled-program cache, a
// Dictionary and the function/content-type registries into the single
// object application code renders templates through. Build one with New
// and reuse it for the process lifetime; it's safe for concurrent use
// once constructed (RenderFile/RenderString only read shared state and
// build a fresh VM per call).
type Engine struct {
	cfg    Config
	loader TemplateLoader
	dict   Dictionary
	cache  *programCache
	funcs  map[string]Func
	ctypes map[string]*CType
}

// New builds an Engine from cfg and any additional Options, wiring a
// LocalFilesystemLoader from cfg.BaseDir and loading cfg.DictionaryFile
// unless overridden by WithLoader/WithDictionary.
func New(cfg Config, opts ...Option) (*Engine, error) {
	loggo.ConfigureLoggers(fmt.Sprintf("teng=%s", cfg.LogLevel))

	e := &Engine{
		cfg:    cfg,
		cache:  newProgramCache(),
		funcs:  make(map[string]Func),
		ctypes: make(map[string]*CType),
	}
	for name, fn := range builtinFuncs {
		e.funcs[name] = fn
	}
	for name, ct := range builtinCTypes {
		e.ctypes[name] = ct
	}

	if cfg.BaseDir != "" {
		fsLoader, err := NewLocalFileSystemLoader(cfg.BaseDir)
		if err != nil {
			return nil, errors.Annotate(err, "teng: setting up default loader")
		}
		e.loader = fsLoader
	}

	if cfg.DictionaryFile != "" {
		data, err := ioutil.ReadFile(cfg.DictionaryFile)
		if err != nil {
			return nil, errors.Annotate(err, "teng: loading dictionary file")
		}
		dict, err := LoadDictionaryFile(data)
		if err != nil {
			return nil, errors.Annotate(err, "teng: parsing dictionary file")
		}
		e.dict = dict
	}

	for _, opt := range opts {
		opt(e)
	}

	if cfg.Watch {
		if err := e.cache.enableWatch(); err != nil {
			engineLogger.Warningf("could not enable template watch: %v", err)
		}
	}

	return e, nil
}

// Close releases background resources (the fsnotify watcher, if Watch
// was enabled).
func (e *Engine) Close() error {
	return e.cache.close()
}

// parseOptions returns the ParseOptions derived from the engine's config.
func (e *Engine) parseOptions() ParseOptions {
	return ParseOptions{NoPrintEscape: e.cfg.NoPrintEscape, DefaultCType: e.cfg.DefaultCType}
}

// compile lexes/parses src, resolving any <?teng include?> directives by
// recursively compiling the referenced templates through e.loader and
// recording them for the VM. diag accumulates every diagnostic across
// the whole include closure, matching the spec's "one diagnostics log
// per top-level render" contract.
func (e *Engine) compile(src *Source, diag *Diagnostics, seen map[string]bool) (*Program, map[string]*Program, error) {
	prog := Parse(src, diag, e.parseOptions())
	includes := make(map[string]*Program)
	for _, ins := range prog.Code {
		if ins.Op != OpCallFn || !strings.HasPrefix(ins.Str, "@include:") {
			continue
		}
		path := strings.TrimPrefix(ins.Str, "@include:")
		resolved := path
		if e.loader != nil {
			resolved = e.loader.Abs(src.Filename, path)
		}
		if seen[resolved] {
			diag.Errorf(ins.Pos, "Circular include of %q", path)
			continue
		}
		subProg, subIncludes, err := e.compileNamed(resolved, diag, mergeSeen(seen, resolved))
		if err != nil {
			diag.Errorf(ins.Pos, "Could not include %q: %v", path, err)
			continue
		}
		includes[path] = subProg
		for k, v := range subIncludes {
			includes[k] = v
		}
	}
	return prog, includes, nil
}

func mergeSeen(seen map[string]bool, add string) map[string]bool {
	out := make(map[string]bool, len(seen)+1)
	for k := range seen {
		out[k] = true
	}
	out[add] = true
	return out
}

func (e *Engine) compileNamed(name string, diag *Diagnostics, seen map[string]bool) (*Program, map[string]*Program, error) {
	if cached, ok := e.cache.get(name); ok {
		return cached, nil, nil
	}
	if e.loader == nil {
		return nil, nil, errors.New("teng: no TemplateLoader configured")
	}
	r, err := e.loader.Get(name)
	if err != nil {
		return nil, nil, err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	src := NewSource(name, string(data))
	prog, includes, err := e.compile(src, diag, seen)
	if err != nil {
		return nil, nil, err
	}
	e.cache.put(name, prog)
	e.cache.watchFile(name)
	return prog, includes, nil
}

// RenderResult carries a completed render's output alongside its
// diagnostics log, matching the spec's insistence that diagnostics are
// always available to the caller, not just surfaced as log lines.
type RenderResult struct {
	Output      string
	Diagnostics *Diagnostics
}

// RenderString compiles and executes body (an inline template, not
// loaded through the TemplateLoader) against root.
func (e *Engine) RenderString(name, body string, root *Fragment) (RenderResult, error) {
	diag := NewDiagnostics()
	src := NewSource(name, body)
	prog, includes, err := e.compile(src, diag, map[string]bool{name: true})
	if err != nil {
		return RenderResult{Diagnostics: diag}, err
	}
	return e.render(prog, includes, root, diag)
}

// RenderFile compiles (or reuses a cached compile of) the template named
// name through the engine's TemplateLoader and executes it against root.
func (e *Engine) RenderFile(name string, root *Fragment) (RenderResult, error) {
	diag := NewDiagnostics()
	resolved := name
	if e.loader != nil {
		resolved = e.loader.Abs("", name)
	}
	prog, includes, err := e.compileNamed(resolved, diag, map[string]bool{resolved: true})
	if err != nil {
		return RenderResult{Diagnostics: diag}, err
	}
	return e.render(prog, includes, root, diag)
}

func (e *Engine) render(prog *Program, includes map[string]*Program, root *Fragment, diag *Diagnostics) (RenderResult, error) {
	if diag.HasFatal() {
		return RenderResult{Diagnostics: diag}, errors.New("teng: compilation produced a fatal diagnostic")
	}
	var buf bytes.Buffer
	vm := NewVM(prog, root, &buf, diag, e.dict, e.cfg.DefaultCType)
	vm.funcs = e.funcs
	vm.SetIncludes(includes)
	if err := vm.Run(); err != nil {
		return RenderResult{Output: buf.String(), Diagnostics: diag}, err
	}
	return RenderResult{Output: buf.String(), Diagnostics: diag}, nil
}

// RenderTo is a convenience wrapper that renders name via RenderFile,
// which buffers the whole output in memory, and then writes that output
// to w.
func (e *Engine) RenderTo(w io.Writer, name string, root *Fragment) (*Diagnostics, error) {
	res, err := e.RenderFile(name, root)
	if err != nil && res.Diagnostics == nil {
		return nil, err
	}
	if _, werr := io.WriteString(w, res.Output); werr != nil {
		return res.Diagnostics, werr
	}
	return res.Diagnostics, err
}
