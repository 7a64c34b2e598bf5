package utils

import (
	"hash/fnv"
	"strconv"
)

// Fingerprint hashes the parts into a stable 64-bit value. Each part is
// length-prefixed so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(strconv.Itoa(len(p))))
		_, _ = h.Write([]byte{':'})
		_, _ = h.Write([]byte(p))
	}
	return h.Sum64()
}

func FingerprintHex(parts ...string) string {
	return strconv.FormatUint(Fingerprint(parts...), 16)
}
