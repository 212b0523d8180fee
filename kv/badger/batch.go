package badger

import (
	"github.com/dgraph-io/badger/v3"
)

// writeBatch buffers writes outside of a transaction until it is flushed
type writeBatch struct {
	wb *badger.WriteBatch
}

func (w *writeBatch) Set(key, value []byte) error {
	return w.wb.Set(key, value)
}

func (w *writeBatch) Delete(key []byte) error {
	return w.wb.Delete(key)
}

func (w *writeBatch) Flush() error {
	return w.wb.Flush()
}
