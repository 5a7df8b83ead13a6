// Package fingerprint derives a stable device hash for subscription clients.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/fatflowers/subpanel/pkg/uaparser"
)

// Tokens kept from the raw User-Agent when too few features are available.
var clientTokens = []string{"clash", "v2ray", "shadowrocket", "quantumult", "surge"}

// Generate returns a 64 character hex SHA-256 identifying the device.
//
// A non-blank deviceID always wins. Otherwise the hash covers the classified
// software, OS and hardware features of d (the raw classifier output for
// userAgent) plus model tokens scanned from userAgent itself. The client IP is
// not part of the hash, so a device keeps its identity across networks.
func Generate(userAgent, deviceID string, d uaparser.Descriptor) string {
	if id := strings.TrimSpace(deviceID); id != "" {
		return hash("device_id:" + id)
	}

	features := Features(userAgent, d)
	if len(features) < 2 {
		return hash(fallback(userAgent))
	}
	sort.Strings(features)
	return hash(strings.Join(features, "|"))
}

// Features lists the identifying features of a request in discovery order.
func Features(userAgent string, d uaparser.Descriptor) []string {
	var features []string
	if d.SoftwareName != "" && d.SoftwareName != uaparser.Unknown {
		features = append(features, "software:"+d.SoftwareName)
		if d.SoftwareVersion != "" {
			features = append(features, "version:"+d.SoftwareVersion)
		}
	}
	if d.OSName != "" && d.OSName != uaparser.Unknown {
		features = append(features, "os:"+d.OSName)
		if d.OSVersion != "" {
			features = append(features, "os_version:"+d.OSVersion)
		}
	}
	if d.DeviceModel != "" {
		features = append(features, "model:"+d.DeviceModel)
	}
	if d.DeviceBrand != "" {
		features = append(features, "brand:"+d.DeviceBrand)
	}
	if m := uaparser.IPhoneModelRe.FindStringSubmatch(userAgent); m != nil {
		features = append(features, "iphone:"+m[1])
	}
	if m := uaparser.IPadModelRe.FindStringSubmatch(userAgent); m != nil {
		features = append(features, "ipad:"+m[1])
	}
	if m := uaparser.AndroidBuildRe.FindStringSubmatch(userAgent); m != nil {
		features = append(features, "android:"+strings.TrimSpace(m[1]))
	}
	return features
}

func fallback(userAgent string) string {
	var parts []string
	for _, part := range strings.Fields(userAgent) {
		lower := strings.ToLower(part)
		for _, k := range clientTokens {
			if strings.Contains(lower, k) {
				parts = append(parts, part)
				break
			}
		}
	}
	if len(parts) == 0 {
		return userAgent
	}
	return strings.Join(parts, "|")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
