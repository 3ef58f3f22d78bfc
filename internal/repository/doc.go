// Package repository defines data access for the reference catalog.
//
// The Repository interface covers article lookup, the related-key lists
// used for expansion, random-seed candidate selection and bulk import. The
// sqlite subpackage implements it with modernc.org/sqlite (pure Go, no cgo).
//
// # Schema Migration
//
// The sqlite repository creates its schema on open. Imports replace the
// whole catalog inside one transaction so readers never see a partial load.
package repository
