package compiler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
	"github.com/roach88/lumen/internal/scope"
)

// Reserved anchor names.
const (
	// SelfAnchor is the reserved self-reference path root.
	SelfAnchor = "__source__"

	// SubjectAnchor is the reserved subject-reference path root.
	SubjectAnchor = "__subject__"
)

// Parser parses stored expression text on demand. It is consulted only
// when a computed pointer has no recorded backing expression.
type Parser interface {
	ParseExpr(text string) (ast.Expr, error)
}

// Dispatcher compiles an arbitrary expression node within a context. The
// built-in dispatcher handles paths, constants, and statement wrappers;
// the surrounding compiler may substitute a richer one.
type Dispatcher interface {
	Compile(expr ast.Expr, ctx *Context) (ir.Node, error)
}

// Inference infers Set result types from backing expressions.
type Inference interface {
	InferType(node ir.Node, env *Env) (schema.Type, error)
	AmendEmptySetType(set *ir.Set, stype schema.Type, env *Env) error
}

// CardinalityChecker enforces deferred singleton-cardinality checks.
type CardinalityChecker interface {
	EnforceSingleton(set *ir.Set, ctx *Context) error
}

// Env is the per-invocation compile environment. It holds everything
// shared across the context stack of one top-level compilation: the
// schema snapshot, the total Set-to-type map, the alias counter, and the
// collaborating services. Two independent compilations never share an
// Env.
type Env struct {
	// Schema is the active snapshot. Pointer derivation replaces it with
	// an updated snapshot; it is never mutated in place.
	Schema *schema.Schema

	// SetTypes is the total Set-to-type map. Only factory functions
	// write to it.
	SetTypes map[*ir.Set]schema.Type

	// ID identifies this compile invocation in traces and diagnostics.
	ID uuid.UUID

	Parser      Parser
	Dispatcher  Dispatcher
	Inference   Inference
	Cardinality CardinalityChecker

	aliasCounts map[string]int
	finalizers  []func(*Context) error
	scopeNodes  []*scope.Node
}

// EnvOptions configures optional Env collaborators.
type EnvOptions struct {
	Parser      Parser
	Dispatcher  Dispatcher
	Inference   Inference
	Cardinality CardinalityChecker
}

// NewEnv creates a compile environment over the given schema snapshot.
// Omitted collaborators fall back to the built-in implementations.
func NewEnv(s *schema.Schema, opts EnvOptions) *Env {
	env := &Env{
		Schema:      s,
		SetTypes:    make(map[*ir.Set]schema.Type),
		ID:          uuid.New(),
		Parser:      opts.Parser,
		Dispatcher:  opts.Dispatcher,
		Inference:   opts.Inference,
		Cardinality: opts.Cardinality,
		aliasCounts: make(map[string]int),
	}
	if env.Dispatcher == nil {
		env.Dispatcher = &dispatcher{}
	}
	if env.Inference == nil {
		env.Inference = &typeInferrer{}
	}
	if env.Cardinality == nil {
		env.Cardinality = &cardinalityChecker{}
	}
	return env
}

// Alias mints a fresh name with the given hint, unique within this Env.
func (e *Env) Alias(hint string) string {
	e.aliasCounts[hint]++
	return fmt.Sprintf("%s~%d", hint, e.aliasCounts[hint])
}

// AliasCount returns how many aliases have been minted for hint.
func (e *Env) AliasCount(hint string) int { return e.aliasCounts[hint] }

// AtStmtFini registers a check to run after statement compilation.
func (e *Env) AtStmtFini(fn func(*Context) error) {
	e.finalizers = append(e.finalizers, fn)
}

// RunStmtFinalizers runs and drains the registered post-statement checks.
func (e *Env) RunStmtFinalizers(ctx *Context) error {
	fns := e.finalizers
	e.finalizers = nil
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// registerScopeNode assigns a stable id to node on first registration.
func (e *Env) registerScopeNode(node *scope.Node) int {
	if node.ID() >= 0 {
		return node.ID()
	}
	node.SetID(len(e.scopeNodes))
	e.scopeNodes = append(e.scopeNodes, node)
	return node.ID()
}

// ScopeNode returns the scope node registered under id, or nil.
func (e *Env) ScopeNode(id int) *scope.Node {
	if id < 0 || id >= len(e.scopeNodes) {
		return nil
	}
	return e.scopeNodes[id]
}

// SourceMapEntry records the defining environment of a computed pointer.
type SourceMapEntry struct {
	// Expr is the recorded backing expression; nil marks a pointer known
	// to be non-computed.
	Expr ast.Expr

	// Ctx is the lexical environment the expression was recorded in;
	// nil for schema-level computed fields.
	Ctx *Context

	// InnerSourcePathID is the "self" identity the expression was
	// originally compiled against, if any.
	InnerSourcePathID *pathid.PathID

	// NSTag is the namespace tag the recording context supplied, if any.
	NSTag *pathid.Tag
}

// PendingCardinality marks a pointer whose declared cardinality must be
// checked after statement compilation.
type PendingCardinality struct {
	FromParent bool
	Specified  schema.Cardinality
	Pos        ast.Pos
}

// ViewRPtr describes the pointer a view body is being compiled for.
type ViewRPtr struct {
	Source schema.Type
	Ptr    *schema.Pointer
	RPtr   *ir.Pointer
}

// StatementMetadata carries per-statement compile flags.
type StatementMetadata struct {
	IsUnnestFence bool
}

// Context is one level of the compile context stack. Nested compilation
// layers a child context (a value copy with selectively replaced
// collections) and recurses synchronously; the parent is untouched on
// every exit path, so no explicit restore step exists to forget.
type Context struct {
	Env *Env

	// Anchors binds reserved and caller-declared path roots.
	Anchors map[string]*ir.Set

	// PartialPathPrefix is the Set partial paths bind to.
	PartialPathPrefix *ir.Set

	// PathIDNamespace is the namespace applied to identities created at
	// this level.
	PathIDNamespace pathid.NamespaceSet

	// PendingStmtOwnNS and PendingStmtFullNS are the namespaces the next
	// statement compiled at this level will adopt.
	PendingStmtOwnNS  pathid.NamespaceSet
	PendingStmtFullNS pathid.NamespaceSet

	// ScopeTree is the current position in the active scope tree.
	ScopeTree *scope.Node

	// AliasedViews resolves names to alias-declared view types. A nil
	// value masks an outer binding.
	AliasedViews *chainMap[string, schema.Type]

	// ViewNodes tracks schema views already declared in this
	// compilation.
	ViewNodes map[string]schema.Type

	// ViewSets maps a view type name to its compiled defining Set.
	ViewSets map[string]*ir.Set

	// PathScopeMap records the captured sub-scope of each view Set.
	PathScopeMap map[*ir.Set]*scope.Node

	// ViewMap remaps path identities (by canonical key) to view Sets.
	ViewMap *chainMap[string, *ir.Set]

	// ClassViewOverrides substitutes a view type for a schema type by
	// name.
	ClassViewOverrides map[string]schema.Type

	// SourceMap records defining environments for computed pointers.
	SourceMap map[*schema.Pointer]SourceMapEntry

	// PendingCardinality marks pointers with deferred cardinality
	// checks.
	PendingCardinality map[*schema.Pointer]PendingCardinality

	// ViewScls and ViewRPtr describe the view body being compiled, if
	// any.
	ViewScls schema.Type
	ViewRPtr *ViewRPtr

	// EmptyResultTypeHint types otherwise-untyped empty results.
	EmptyResultTypeHint schema.Type

	// StmtMetadata carries per-statement compile flags.
	StmtMetadata map[ast.Expr]*StatementMetadata

	// ModAliases maps module aliases to module names.
	ModAliases map[string]string

	// DefaultModule qualifies bare type names.
	DefaultModule string
}

// NewContext returns the root context for one compilation over env.
func NewContext(env *Env) *Context {
	return &Context{
		Env:                env,
		Anchors:            make(map[string]*ir.Set),
		PathIDNamespace:    make(pathid.NamespaceSet),
		ScopeTree:          scope.NewFence(),
		AliasedViews:       newChainMap[string, schema.Type](),
		ViewNodes:          make(map[string]schema.Type),
		ViewSets:           make(map[string]*ir.Set),
		PathScopeMap:       make(map[*ir.Set]*scope.Node),
		ViewMap:            newChainMap[string, *ir.Set](),
		ClassViewOverrides: make(map[string]schema.Type),
		SourceMap:          make(map[*schema.Pointer]SourceMapEntry),
		PendingCardinality: make(map[*schema.Pointer]PendingCardinality),
		StmtMetadata:       make(map[ast.Expr]*StatementMetadata),
		ModAliases:         make(map[string]string),
		DefaultModule:      "default",
	}
}

// New returns a child context. Collections are shared with the parent;
// nested compilations that need isolation replace them explicitly
// (layered views, copied source maps) so siblings never leak into each
// other.
func (c *Context) New() *Context {
	child := *c
	return &child
}

// NewScope returns a child context positioned at a fresh scope node.
// When fenced, the node bounds path visibility. When temporary, the node
// starts detached: its branch is discarded unless explicitly fused back.
func (c *Context) NewScope(fenced, temporary bool) *Context {
	child := c.New()
	var node *scope.Node
	if fenced {
		node = scope.NewFence()
	} else {
		node = scope.New()
	}
	if !temporary {
		c.ScopeTree.AttachChild(node)
	}
	child.ScopeTree = node
	return child
}

// Detached returns a child context with no inherited alias or view
// state, for compiling schema-level computed fields.
func (c *Context) Detached() *Context {
	child := c.New()
	child.Anchors = make(map[string]*ir.Set)
	child.PartialPathPrefix = nil
	child.AliasedViews = newChainMap[string, schema.Type]()
	child.ViewNodes = make(map[string]schema.Type)
	child.ViewSets = make(map[string]*ir.Set)
	child.PathScopeMap = make(map[*ir.Set]*scope.Node)
	child.ViewMap = newChainMap[string, *ir.Set]()
	child.ClassViewOverrides = make(map[string]schema.Type)
	child.SourceMap = make(map[*schema.Pointer]SourceMapEntry)
	child.PendingCardinality = make(map[*schema.Pointer]PendingCardinality)
	child.StmtMetadata = make(map[ast.Expr]*StatementMetadata)
	child.PathIDNamespace = make(pathid.NamespaceSet)
	child.PendingStmtOwnNS = nil
	child.PendingStmtFullNS = nil
	child.ScopeTree = scope.NewFence()
	return child
}

// Dispatch compiles an arbitrary expression in this context.
func (c *Context) Dispatch(expr ast.Expr) (ir.Node, error) {
	return c.Env.Dispatcher.Compile(expr, c)
}
