package keyvaluedb

import (
	"errors"
	"reflect"
)

// Reader interface for DB
type Reader interface {
	// Read reads the value for key stored in the DB. Returns false if the key
	// is not present; the value is only valid when (true, nil) is returned.
	Read(key []byte, value any) (bool, error)
}

// Writer interface for DB
type Writer interface {
	// Write inserts the given value into the DB.
	Write(key []byte, value any) error
	// Delete removes the key from the key-value data store. Deleting a
	// missing key is not an error.
	Delete(key []byte) error
}

// KeyValueDB is the storage abstraction used for all per-account rows
// (install records, nonce counters, the persisted liveness flag).
type KeyValueDB interface {
	Reader
	Writer
}

func CheckKey(key []byte) error {
	if len(key) == 0 {
		return errors.New("key is empty")
	}
	return nil
}

func CheckKeyAndValue(key []byte, v any) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	if v == nil {
		return errors.New("value is nil")
	}
	if k := reflect.TypeOf(v).Kind(); k == reflect.Ptr && reflect.ValueOf(v).IsNil() {
		return errors.New("value is nil")
	}
	return nil
}
