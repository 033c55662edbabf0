package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Records are stored as JSON documents under prefixed keys.
// Time ordered keys use a 19-digit zero padded UnixNano so that the lexicographical
// order of badger is the chronological order.

func timeKey(prefix string, nanos int64, suffix string) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", prefix, nanos, suffix))
}

func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

// getJSON reports found=false instead of an error when the key does not exist.
func getJSON[T any](txn *badger.Txn, key []byte) (T, bool, error) {
	var value T
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &value)
	})
	return value, err == nil, err
}

// scanJSON decodes the values under prefix, newest first when reverse is set,
// stopping after limit items when limit is positive.
func scanJSON[T any](txn *badger.Txn, prefix []byte, reverse bool, limit int) ([]T, error) {
	options := badger.DefaultIteratorOptions
	options.Reverse = reverse
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	seek := prefix
	if reverse {
		seek = append(append([]byte(nil), prefix...), 0xFF)
	}
	var res []T
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		if limit > 0 && len(res) == limit {
			break
		}
		var value T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &value)
		}); err != nil {
			return nil, err
		}
		res = append(res, value)
	}
	return res, nil
}
