package device

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidPatch = errors.New("invalid device patch")

// DevicePatch is a partial device update. Only is_allowed can be changed.
type DevicePatch struct {
	IsAllowed *bool `json:"is_allowed"`
}

func (p *DevicePatch) Empty() bool { return p == nil || p.IsAllowed == nil }

// DecodeDevicePatch parses a JSON patch and rejects fields that cannot be
// patched.
func DecodeDevicePatch(data []byte) (*DevicePatch, error) {
	var p DevicePatch
	if len(bytes.TrimSpace(data)) == 0 {
		return &p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return &p, nil
}
