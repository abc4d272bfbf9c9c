package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateSessionToken membuat handle sesi acak yang tidak bisa ditebak.
// Hanya berisi karakter hex supaya aman dipakai di URL/QR tanpa encoding.
// Token ini bukan batas keamanan kriptografis, hanya pegangan yang opak.
func GenerateSessionToken() string {
	base := strings.ReplaceAll(uuid.NewString(), "-", "")

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		// uuid saja sudah cukup acak sebagai fallback
		return base
	}
	return base + hex.EncodeToString(suffix)
}
