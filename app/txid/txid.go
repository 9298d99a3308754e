// Package txid generates globally-unique, human-legible transaction
// correlation identifiers.
package txid

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"strings"
	"time"
)

const randLen = 6

// New returns an identifier of the form PAY-<time36>-<rand36>, uppercased.
// The time component is the current unix epoch in milliseconds rendered in
// base 36, so identifiers sort roughly by creation time. Collisions are
// possible in theory; the store's uniqueness constraint on transaction_id
// is the backstop.
func New() string {
	now := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return strings.ToUpper("PAY-" + now + "-" + randomBase36(randLen))
}

func randomBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	var seed [8]byte
	_, _ = rand.Read(seed[:])
	v := binary.BigEndian.Uint64(seed[:])

	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[v%36]
		v /= 36
	}
	return string(out)
}
