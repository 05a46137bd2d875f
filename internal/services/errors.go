package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeviceUnavailable reports a missing or unloadable key-exchange device.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrManifestFetch reports a failure to retrieve the adaptive manifest.
	ErrManifestFetch = errors.New("manifest fetch failed")
	// ErrNoProtectionMetadata reports a manifest with neither a protection
	// header nor a key id.
	ErrNoProtectionMetadata = errors.New("no protection metadata")
	// ErrLicenseTokenMissing reports a protected lecture without a usable
	// license token.
	ErrLicenseTokenMissing = errors.New("license token missing")
	// ErrLicenseRejected covers non-success license responses, expired
	// tokens, and anti-automation interstitials.
	ErrLicenseRejected = errors.New("license rejected")
	// ErrChallengeFailed reports the device refusing a protection header.
	ErrChallengeFailed = errors.New("challenge failed")
	// ErrTrackDownload reports missing elementary streams after download.
	ErrTrackDownload = errors.New("track download failed")
	// ErrDecryption reports a decrypt/remux stage failure.
	ErrDecryption = errors.New("decryption failed")
	// ErrDailyLimit reports the per-day course cap refusing a new course.
	ErrDailyLimit = errors.New("daily course limit reached")
	// ErrConfiguration reports an unusable configuration; fatal at startup.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided sentinel for later classification via errors.Is.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrDecryption
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureTag renders the short cause the orchestrator logs per failed
// lecture.
func FailureTag(err error) string {
	switch {
	case errors.Is(err, ErrDeviceUnavailable):
		return "DeviceUnavailable"
	case errors.Is(err, ErrManifestFetch):
		return "ManifestFetchFailed"
	case errors.Is(err, ErrNoProtectionMetadata):
		return "NoProtectionMetadata"
	case errors.Is(err, ErrLicenseTokenMissing):
		return "LicenseTokenMissing"
	case errors.Is(err, ErrLicenseRejected):
		return "LicenseRejected"
	case errors.Is(err, ErrChallengeFailed):
		return "ChallengeFailed"
	case errors.Is(err, ErrTrackDownload):
		return "TrackDownloadFailed"
	case errors.Is(err, ErrDecryption):
		return "DecryptionFailed"
	case errors.Is(err, ErrConfiguration):
		return "ConfigurationError"
	default:
		return "Failed"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
