package teng

// Option configures an Engine at construction time. Options are applied
// in order, so a later option overrides an earlier one touching the same
// field.
type Option func(*Engine)

// WithLoader installs a custom TemplateLoader, overriding Config.BaseDir's
// default LocalFilesystemLoader.
func WithLoader(l TemplateLoader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithDictionary installs a Dictionary for #{key} lookups, overriding
// Config.DictionaryFile.
func WithDictionary(d Dictionary) Option {
	return func(e *Engine) { e.dict = d }
}

// WithFunc registers an additional or overriding built-in function,
// visible to every template the engine compiles afterward.
func WithFunc(name string, fn Func) Option {
	return func(e *Engine) { e.funcs[name] = fn }
}

// WithCType stores ct in the engine's ctype registry. Rendering resolves
// <?teng ctype?> names against the built-in "html"/"none" table only, so
// a type added here is not used by templates.
func WithCType(ct *CType) Option {
	return func(e *Engine) { e.ctypes[ct.Name] = ct }
}
