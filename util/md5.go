package util

import (
	"crypto/md5"
	"encoding/hex"
)

func GetMd5String(buffer []byte) string {
	hash := md5.Sum(buffer)
	return hex.EncodeToString(hash[:])
}

// GetMd5Key hashes a document together with the settings it was processed
// with, so the same input under different settings never shares a key.
func GetMd5Key(buffer []byte, settings ...string) string {
	h := md5.New()
	h.Write(buffer)
	for _, s := range settings {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}
