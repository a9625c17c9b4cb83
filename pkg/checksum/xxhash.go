package checksum

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// BytesChecksum returns the hex encoded xxhash64 digest of content.
func BytesChecksum(content []byte) string {
	digest := xxhash.New()
	digest.Write(content)

	return hex.EncodeToString(digest.Sum(nil))
}
