package dataset

import (
	"encoding/hex"

	"github.com/spaolacci/murmur3"
)

// fingerprint returns the hex murmur3-128 hash of the object bytes.
func fingerprint(data []byte) string {
	h := murmur3.New128()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
