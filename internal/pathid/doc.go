// Package pathid provides canonical structural identity for compiled paths.
//
// A PathID names one navigational path: a root tag (a schema type or a
// derived alias) followed by an ordered sequence of extensions (pointer
// traversals, type indirections, tuple field accesses), plus a set of
// namespace tags that distinguish otherwise-identical paths produced by
// different recompilation contexts.
//
// PathID is a value type. Every mutating operation returns a fresh value;
// two PathIDs with the same root, extensions, and active tag set compare
// equal through Key(). All other internal packages that deal with the
// compiled graph import pathid; pathid imports nothing internal.
package pathid
