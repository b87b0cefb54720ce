package inmemdb

import (
	"sync"

	"github.com/trezcool/evalix/core/sheet"
)

type (
	DB struct {
		sheet *sheetTable
	}

	sheetTable struct {
		sync.RWMutex
		table map[string]*sheet.Document
		order []string // insertion order
	}
)

func Open() *DB {
	return &DB{
		sheet: &sheetTable{table: make(map[string]*sheet.Document)},
	}
}

// Close implements io.Closer; there is nothing to release.
func (db *DB) Close() error { return nil }

// Len returns the number of stored sheets.
func (db *DB) Len() int {
	db.sheet.RLock()
	defer db.sheet.RUnlock()
	return len(db.sheet.order)
}
