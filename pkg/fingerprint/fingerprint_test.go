package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/subpanel/pkg/uaparser"
)

var rules = []uaparser.Rule{
	{Pattern: "clashforwindows", Software: "Clash for Windows", Category: "proxy"},
	{Pattern: "shadowrocket", Software: "Shadowrocket", Category: "proxy"},
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func gen(ua, deviceID string) string {
	return Generate(ua, deviceID, uaparser.Parse(ua, rules))
}

func TestGenerate_DeviceIDTakesPrecedence(t *testing.T) {
	a := gen("ClashForWindows/1.2.3 (Windows NT 10.0)", "  abc-123 ")
	b := gen("Shadowrocket/2070 iPhone14,2", "abc-123")
	require.Equal(t, a, b)
	require.Equal(t, sha("device_id:abc-123"), a)
}

func TestGenerate_BlankDeviceIDIgnored(t *testing.T) {
	ua := "ClashForWindows/1.2.3 (Windows NT 10.0)"
	require.Equal(t, gen(ua, ""), gen(ua, "   "))
}

func TestGenerate_SortedFeatures(t *testing.T) {
	ua := "ClashForWindows/1.2.3 (Windows NT 10.0)"
	want := sha("os:Windows|os_version:10.0|software:Clash for Windows|version:1.2.3")
	require.Equal(t, want, gen(ua, ""))
	require.Len(t, gen(ua, ""), 64)
}

func TestGenerate_ModelTokens(t *testing.T) {
	ua := "Shadowrocket/2070 iPhone14,2"
	d := uaparser.Parse(ua, rules)
	f := Features(ua, d)
	require.Contains(t, f, "iphone:14,2")
	require.Contains(t, f, "model:iPhone 14.2")
	require.Contains(t, f, "brand:Apple")

	other := gen("Shadowrocket/2070 iPhone15,3", "")
	require.NotEqual(t, gen(ua, ""), other)
}

func TestGenerate_FallbackToClientTokens(t *testing.T) {
	// Nothing is classified, so no features are collected.
	ua := "mihomo clash.meta build"
	d := uaparser.Parse(ua, nil)
	require.Less(t, len(Features(ua, d)), 2)
	require.Equal(t, sha("clash.meta"), Generate(ua, "", d))

	ua = "curl/8.4.0"
	d = uaparser.Parse(ua, nil)
	require.Equal(t, sha("curl/8.4.0"), Generate(ua, "", d))
}

func TestGenerate_Deterministic(t *testing.T) {
	ua := "ClashForWindows/1.2.3 (Windows NT 10.0)"
	require.Equal(t, gen(ua, ""), gen(ua, ""))
}
