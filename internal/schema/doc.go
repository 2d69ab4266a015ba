// Package schema models the type and pointer catalog the path compiler
// resolves names against.
//
// A Schema is an immutable snapshot: operations that introduce new schema
// objects (pointer derivation) return a fresh *Schema sharing unchanged
// state with the original. The compiler threads the updated snapshot back
// through its environment; two independent compilations can safely share
// one snapshot.
//
// Schemas are assembled through a Builder, either directly (tests), from
// CUE definitions (package cueschema), or from a SQLite catalog (package
// catalog). Every Builder starts from the builtin std module.
package schema
