// Package manifest extracts protection metadata from adaptive streaming
// manifests and synthesizes protection headers when a manifest only names a
// key id.
//
// Manifests are scanned as text rather than parsed structurally: portals
// emit arbitrary namespace prefixes on the protection elements, and a
// substring scan tolerates all of them.
package manifest

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Protection is the ordered, de-duplicated protection metadata of one
// manifest. Headers keep their exact base64 text; key ids are normalized to
// lowercase 32-hex form.
type Protection struct {
	Headers []string
	KeyIDs  []string
}

// Empty reports whether neither a header nor a key id was found.
func (p Protection) Empty() bool {
	return len(p.Headers) == 0 && len(p.KeyIDs) == 0
}

var (
	kidPattern    = regexp.MustCompile(`(?i)default_KID\s*=\s*"([^"]+)"`)
	headerPattern = regexp.MustCompile(`<(?:\w+:)?pssh[^>]*>([^<]+)</(?:\w+:)?pssh>`)
)

// Parse scans manifest text for default key id attributes and embedded
// protection header elements. First-seen order is preserved; duplicates are
// dropped (key ids compare after normalization, headers by exact text).
func Parse(text string) Protection {
	var protection Protection

	seenKIDs := make(map[string]struct{})
	for _, match := range kidPattern.FindAllStringSubmatch(text, -1) {
		kid := NormalizeKeyID(match[1])
		if kid == "" {
			continue
		}
		if _, ok := seenKIDs[kid]; ok {
			continue
		}
		seenKIDs[kid] = struct{}{}
		protection.KeyIDs = append(protection.KeyIDs, kid)
	}

	seenHeaders := make(map[string]struct{})
	for _, match := range headerPattern.FindAllStringSubmatch(text, -1) {
		header := strings.TrimSpace(match[1])
		if header == "" {
			continue
		}
		if _, ok := seenHeaders[header]; ok {
			continue
		}
		seenHeaders[header] = struct{}{}
		protection.Headers = append(protection.Headers, header)
	}

	return protection
}

// NormalizeKeyID lowercases a key id and strips separators. Returns "" when
// the result is not exactly 32 hex characters.
func NormalizeKeyID(raw string) string {
	kid := strings.ToLower(strings.TrimSpace(raw))
	kid = strings.NewReplacer("-", "", " ", "", "urn:uuid:", "").Replace(kid)
	if len(kid) != 32 {
		return ""
	}
	if _, err := hex.DecodeString(kid); err != nil {
		return ""
	}
	return kid
}

// widevineSystemID is the fixed protection-system identifier embedded in
// synthesized headers.
var widevineSystemID = [16]byte{
	0xed, 0xef, 0x8b, 0xa9, 0x79, 0xd6, 0x4a, 0xce,
	0xa3, 0xc8, 0x27, 0xdc, 0xd5, 0x1d, 0x21, 0xed,
}

const headerBoxType = "pssh"

// SynthesizeHeader builds a protection header box for a bare key id and
// returns it base64-encoded, matching the representation of headers found
// in manifests. The payload names the AESCTR algorithm and carries the
// single key id.
func SynthesizeHeader(keyID string) (string, error) {
	kid := NormalizeKeyID(keyID)
	if kid == "" {
		return "", fmt.Errorf("synthesize header: invalid key id %q", keyID)
	}
	kidBytes, err := hex.DecodeString(kid)
	if err != nil {
		return "", fmt.Errorf("synthesize header: %w", err)
	}

	// Payload: field 1 (algorithm) = 1 (AESCTR), field 2 = the 16-byte kid.
	payload := append([]byte{0x08, 0x01, 0x12, 0x10}, kidBytes...)

	box := make([]byte, 0, 32+len(payload))
	box = binary.BigEndian.AppendUint32(box, uint32(32+len(payload)))
	box = append(box, headerBoxType...)
	box = binary.BigEndian.AppendUint32(box, 0) // version and flags
	box = append(box, widevineSystemID[:]...)
	box = binary.BigEndian.AppendUint32(box, uint32(len(payload)))
	box = append(box, payload...)

	return base64.StdEncoding.EncodeToString(box), nil
}
