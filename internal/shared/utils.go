// Package shared provides small helpers for generating random secrets and
// codes from crypto/rand.
package shared

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strconv"
)

// MakeRandHexString generates a random hexadecimal string from size random
// bytes. The returned string is twice as long as size, since each byte
// encodes as two hex characters.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeRandNumericCode returns a uniformly random decimal code in
// [min, max], formatted without padding. Both bounds are inclusive.
func MakeRandNumericCode(min, max int64) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(min+n.Int64(), 10), nil
}
