package license

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

type fakeExchanger struct {
	challenge    []byte
	challengeErr error
	keys         []DeviceKey
	parseErr     error
}

func (f *fakeExchanger) Challenge(header []byte) ([]byte, ParseFunc, error) {
	if f.challengeErr != nil {
		return nil, nil, f.challengeErr
	}
	parse := func(license []byte) ([]DeviceKey, error) {
		if f.parseErr != nil {
			return nil, f.parseErr
		}
		return f.keys, nil
	}
	return f.challenge, parse, nil
}

func encodedHeader(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte("header-bytes"))
}

func TestSessionLifecycle(t *testing.T) {
	device := NewDeviceWithExchanger(&fakeExchanger{
		challenge: []byte("challenge"),
		keys: []DeviceKey{
			{ID: []byte{0x01}, Key: []byte{0xaa}, Usage: UsageContent},
			{ID: []byte{0x02}, Key: []byte{0xbb}, Usage: UsageSigning},
		},
	})

	session, err := OpenSession(device)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if got := session.State(); got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}
	if keys := session.ContentKeys(); keys != nil {
		t.Fatalf("keys before licensing: %v", keys)
	}

	challenge, err := session.RequestChallenge(encodedHeader(t))
	if err != nil {
		t.Fatalf("request challenge: %v", err)
	}
	if string(challenge) != "challenge" {
		t.Fatalf("unexpected challenge: %q", challenge)
	}
	if got := session.State(); got != StateChallengeIssued {
		t.Fatalf("expected challenge-issued, got %s", got)
	}

	if err := session.SubmitLicense([]byte("license")); err != nil {
		t.Fatalf("submit license: %v", err)
	}
	keys := session.ContentKeys()
	if len(keys) != 1 {
		t.Fatalf("expected one content key, got %d", len(keys))
	}
	if keys[0].ID != "01" || keys[0].Key != "aa" {
		t.Fatalf("unexpected key: %+v", keys[0])
	}

	session.Close()
	if got := session.State(); got != StateClosed {
		t.Fatalf("expected closed after Close, got %s", got)
	}
	if keys := session.ContentKeys(); keys != nil {
		t.Fatalf("keys after close: %v", keys)
	}
	session.Close() // idempotent
}

func TestOpenSessionNilDevice(t *testing.T) {
	if _, err := OpenSession(nil); !errors.Is(err, services.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestRequestChallengeRejectsBadBase64(t *testing.T) {
	session, err := OpenSession(NewDeviceWithExchanger(&fakeExchanger{}))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if _, err := session.RequestChallenge("%%% not base64"); !errors.Is(err, services.ErrChallengeFailed) {
		t.Fatalf("expected ErrChallengeFailed, got %v", err)
	}
	if got := session.State(); got != StateOpen {
		t.Fatalf("failed challenge must not advance state, got %s", got)
	}
}

func TestRequestChallengeDeviceError(t *testing.T) {
	session, err := OpenSession(NewDeviceWithExchanger(&fakeExchanger{challengeErr: errors.New("bad header")}))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if _, err := session.RequestChallenge(encodedHeader(t)); !errors.Is(err, services.ErrChallengeFailed) {
		t.Fatalf("expected ErrChallengeFailed, got %v", err)
	}
}

func TestSubmitLicenseOutOfOrder(t *testing.T) {
	session, err := OpenSession(NewDeviceWithExchanger(&fakeExchanger{}))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if err := session.SubmitLicense([]byte("license")); !errors.Is(err, services.ErrLicenseRejected) {
		t.Fatalf("expected ErrLicenseRejected before challenge, got %v", err)
	}
}

func TestSubmitLicenseParseFailure(t *testing.T) {
	session, err := OpenSession(NewDeviceWithExchanger(&fakeExchanger{parseErr: errors.New("garbage")}))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if _, err := session.RequestChallenge(encodedHeader(t)); err != nil {
		t.Fatalf("request challenge: %v", err)
	}
	if err := session.SubmitLicense([]byte("junk")); !errors.Is(err, services.ErrLicenseRejected) {
		t.Fatalf("expected ErrLicenseRejected, got %v", err)
	}
	if keys := session.ContentKeys(); keys != nil {
		t.Fatalf("keys after rejected license: %v", keys)
	}
}

func TestContentKeysFiltersNonContent(t *testing.T) {
	session, err := OpenSession(NewDeviceWithExchanger(&fakeExchanger{
		keys: []DeviceKey{
			{ID: []byte{0x03}, Key: []byte{0xcc}, Usage: UsageSigning},
			{ID: []byte{0x04}, Key: []byte{0xdd}, Usage: UsageOther},
		},
	}))
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	if _, err := session.RequestChallenge(encodedHeader(t)); err != nil {
		t.Fatalf("request challenge: %v", err)
	}
	if err := session.SubmitLicense([]byte("license")); err != nil {
		t.Fatalf("submit license: %v", err)
	}
	if keys := session.ContentKeys(); len(keys) != 0 {
		t.Fatalf("expected no content keys, got %v", keys)
	}
}
