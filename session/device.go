package session

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const sessionIDBytes = 32

// NewID returns 32 random bytes, hex encoded.
func NewID() (string, error) {
	var raw [sessionIDBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// DescribeDevice classifies a User-Agent into "<device> • <browser>".
// The result is advisory and never used for security decisions.
func DescribeDevice(userAgent string) string {
	return deviceName(userAgent) + " • " + browserName(userAgent)
}

func deviceName(ua string) string {
	switch {
	case ua == "":
		return "Unknown Device"
	case strings.Contains(ua, "Mobile"), strings.Contains(ua, "Android"):
		return "Mobile Device"
	case strings.Contains(ua, "iPad"):
		return "iPad"
	case strings.Contains(ua, "iPhone"):
		return "iPhone"
	case strings.Contains(ua, "Macintosh"):
		return "Mac"
	case strings.Contains(ua, "Windows"):
		return "Windows PC"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	default:
		return "Desktop"
	}
}

func browserName(ua string) string {
	switch {
	case ua == "":
		return "Unknown"
	// Chromium Edge also advertises Chrome and Safari.
	case strings.Contains(ua, "Edg"):
		return "Edge"
	case strings.Contains(ua, "Chrome"):
		return "Chrome"
	case strings.Contains(ua, "Firefox"):
		return "Firefox"
	case strings.Contains(ua, "Safari"):
		return "Safari"
	default:
		return "Unknown Browser"
	}
}
