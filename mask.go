package eduAuth

import "strings"

// MaskEmail keeps the first two characters of the address and everything
// from the last "@", replacing the rest with "***". Addresses whose last "@"
// comes before the third character are returned unchanged.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}

	local := []rune(email[:at])
	if len(local) < 2 {
		return email
	}
	return string(local[:2]) + "***" + email[at:]
}
