package license

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	widevine "github.com/iyear/gowidevine"
	wvpb "github.com/iyear/gowidevine/widevinepb"

	"github.com/PyotrToheed/Pyotr-x-udemy/internal/services"
)

// KeyUsage tags what a device-returned key may be used for.
type KeyUsage int

const (
	UsageOther KeyUsage = iota
	UsageContent
	UsageSigning
)

// DeviceKey is one key returned by the device after license parsing.
type DeviceKey struct {
	ID    []byte
	Key   []byte
	Usage KeyUsage
}

// ContentKey is a content-usage key in the hex form the decrypt tools
// consume.
type ContentKey struct {
	ID  string
	Key string
}

// ParseFunc consumes the license server response for the challenge that
// produced it and yields the contained keys.
type ParseFunc func(license []byte) ([]DeviceKey, error)

// Exchanger is the surface of the external key-exchange component. The
// production implementation wraps the provisioned CDM; tests substitute
// fakes.
type Exchanger interface {
	Challenge(header []byte) ([]byte, ParseFunc, error)
}

// Device holds the provisioned key-exchange component for the lifetime of a
// run. Construct it once and pass it by reference to every session.
type Device struct {
	exchanger Exchanger
}

// OpenDevice loads the provisioned device blob from disk. A missing or
// unloadable blob yields ErrDeviceUnavailable.
func OpenDevice(path string) (*Device, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "license", "load device", fmt.Sprintf("no provisioned device at %s", path), err)
	}
	device, err := widevine.NewDevice(widevine.FromWVD(bytes.NewReader(blob)))
	if err != nil {
		return nil, services.Wrap(services.ErrDeviceUnavailable, "license", "parse device", "provisioned device blob rejected", err)
	}
	return &Device{exchanger: &cdmExchanger{cdm: widevine.NewCDM(device)}}, nil
}

// NewDeviceWithExchanger wires a custom exchanger. Tests use this to avoid a
// real device blob.
func NewDeviceWithExchanger(exchanger Exchanger) *Device {
	return &Device{exchanger: exchanger}
}

// cdmExchanger adapts the CDM module to the Exchanger surface.
type cdmExchanger struct {
	cdm *widevine.CDM
}

func (e *cdmExchanger) Challenge(header []byte) ([]byte, ParseFunc, error) {
	pssh, err := widevine.NewPSSH(header)
	if err != nil {
		return nil, nil, fmt.Errorf("parse protection header: %w", err)
	}
	challenge, parseLicense, err := e.cdm.GetLicenseChallenge(pssh, wvpb.LicenseType_AUTOMATIC, false)
	if err != nil {
		return nil, nil, fmt.Errorf("build challenge: %w", err)
	}
	parse := func(license []byte) ([]DeviceKey, error) {
		keys, err := parseLicense(license)
		if err != nil {
			return nil, err
		}
		converted := make([]DeviceKey, 0, len(keys))
		for _, key := range keys {
			converted = append(converted, DeviceKey{
				ID:    key.ID,
				Key:   key.Key,
				Usage: usageFromType(key.Type),
			})
		}
		return converted, nil
	}
	return challenge, parse, nil
}

func usageFromType(typ wvpb.License_KeyContainer_KeyType) KeyUsage {
	switch typ {
	case wvpb.License_KeyContainer_CONTENT:
		return UsageContent
	case wvpb.License_KeyContainer_SIGNING:
		return UsageSigning
	default:
		return UsageOther
	}
}

// contentKey renders a device key in hex form.
func contentKey(key DeviceKey) ContentKey {
	return ContentKey{ID: hex.EncodeToString(key.ID), Key: hex.EncodeToString(key.Key)}
}
