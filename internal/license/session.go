package license

import (
	"encoding/base64"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

// State is the lifecycle position of a session.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateChallengeIssued
	StateLicensed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateChallengeIssued:
		return "challenge-issued"
	case StateLicensed:
		return "licensed"
	default:
		return "closed"
	}
}

// Session is one key acquisition attempt against the device. It is owned
// exclusively by the caller that opened it and must be closed on every
// path; acquiring via OpenSession + defer Close gives that guarantee.
type Session struct {
	state     State
	exchanger Exchanger
	parse     ParseFunc
	keys      []DeviceKey
}

// OpenSession transitions a new session to Open. A nil or unprovisioned
// device yields ErrDeviceUnavailable.
func OpenSession(device *Device) (*Session, error) {
	if device == nil || device.exchanger == nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "license", "open session", "key-exchange device not configured", nil)
	}
	return &Session{state: StateOpen, exchanger: device.exchanger}, nil
}

// State reports the current lifecycle position.
func (s *Session) State() State {
	return s.state
}

// RequestChallenge hands the base64 protection header to the device and
// returns the challenge to send to the license server. Open → ChallengeIssued.
func (s *Session) RequestChallenge(headerB64 string) ([]byte, error) {
	if s.state != StateOpen {
		return nil, services.Wrap(services.ErrChallengeFailed, "license", "request challenge", "session is "+s.state.String(), nil)
	}
	header, err := base64.StdEncoding.DecodeString(headerB64)
	if err != nil {
		return nil, services.Wrap(services.ErrChallengeFailed, "license", "decode header", "protection header is not valid base64", err)
	}
	challenge, parse, err := s.exchanger.Challenge(header)
	if err != nil {
		return nil, services.Wrap(services.ErrChallengeFailed, "license", "request challenge", "device rejected protection header", err)
	}
	s.parse = parse
	s.state = StateChallengeIssued
	return challenge, nil
}

// SubmitLicense feeds the server response to the device.
// ChallengeIssued → Licensed. A response the device cannot parse yields
// ErrLicenseRejected; the caller's deferred Close handles cleanup.
func (s *Session) SubmitLicense(response []byte) error {
	if s.state != StateChallengeIssued {
		return services.Wrap(services.ErrLicenseRejected, "license", "submit license", "session is "+s.state.String(), nil)
	}
	keys, err := s.parse(response)
	if err != nil {
		return services.Wrap(services.ErrLicenseRejected, "license", "submit license", "response is not a valid license", err)
	}
	s.keys = keys
	s.state = StateLicensed
	return nil
}

// ContentKeys returns the content-usage keys of a licensed session.
// Signing and other key types are excluded. Any state other than Licensed
// yields nil.
func (s *Session) ContentKeys() []ContentKey {
	if s.state != StateLicensed {
		return nil
	}
	var keys []ContentKey
	for _, key := range s.keys {
		if key.Usage != UsageContent {
			continue
		}
		keys = append(keys, contentKey(key))
	}
	return keys
}

// Close releases the session. Idempotent; safe on every error path.
func (s *Session) Close() {
	s.state = StateClosed
	s.parse = nil
	s.keys = nil
}
