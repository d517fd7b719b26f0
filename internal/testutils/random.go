package testutils

import (
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func RandomBytes(t *testing.T, len int) []byte {
	t.Helper()
	bytes := make([]byte, len)
	_, err := rand.Read(bytes)
	if err != nil {
		t.Errorf("error generating random bytes: %v", err)
	}
	return bytes
}

func RandomAddress(t *testing.T) common.Address {
	t.Helper()
	return common.BytesToAddress(RandomBytes(t, common.AddressLength))
}
