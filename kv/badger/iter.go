package badger

import (
	"github.com/autom8ter/docmap/kv"
	"github.com/dgraph-io/badger/v3"
)

// iterator walks the keys of a transaction, stopping at the end of its prefix
type iterator struct {
	it     *badger.Iterator
	prefix []byte
}

func newIterator(txn *badger.Txn, opts kv.IterOpts) *iterator {
	bopts := badger.DefaultIteratorOptions
	bopts.PrefetchSize = 10
	bopts.Prefix = opts.Prefix
	bopts.Reverse = opts.Reverse
	i := &iterator{it: txn.NewIterator(bopts), prefix: opts.Prefix}
	if opts.Seek != nil {
		i.it.Seek(opts.Seek)
	} else {
		i.it.Rewind()
	}
	return i
}

func (i *iterator) Seek(key []byte) {
	i.it.Seek(key)
}

func (i *iterator) Valid() bool {
	if len(i.prefix) == 0 {
		return i.it.Valid()
	}
	return i.it.ValidForPrefix(i.prefix)
}

func (i *iterator) Next() {
	i.it.Next()
}

func (i *iterator) Close() {
	i.it.Close()
}

func (i *iterator) Item() kv.Item {
	current := i.it.Item()
	return entry{key: current.KeyCopy(nil), value: current.ValueCopy}
}

// entry is a key with a lazily copied value
type entry struct {
	key   []byte
	value func(dst []byte) ([]byte, error)
}

func (e entry) Key() []byte {
	return e.key
}

func (e entry) Value() ([]byte, error) {
	return e.value(nil)
}
