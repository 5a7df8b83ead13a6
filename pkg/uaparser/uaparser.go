// Package uaparser classifies proxy client User-Agent strings into software,
// operating system and device attributes. Everything here is pure: unknown
// input degrades to defaults instead of failing.
package uaparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	Unknown           = "Unknown"
	CategoryUnknown   = "unknown"
	UnknownDeviceName = "Unknown Device"

	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeDesktop = "desktop"
	DeviceTypeUnknown = "unknown"

	OSiOS     = "iOS"
	OSiPadOS  = "iPadOS"
	OSMacOS   = "macOS"
	OSWindows = "Windows"
	OSAndroid = "Android"
	OSLinux   = "Linux"

	BrandApple = "Apple"
)

// Rule maps a case-insensitive User-Agent substring to a software name.
type Rule struct {
	Pattern  string `json:"pattern"`
	Software string `json:"software"`
	Category string `json:"category"`
}

// Descriptor is the classification result for one User-Agent.
type Descriptor struct {
	SoftwareName     string `json:"software_name"`
	SoftwareVersion  string `json:"software_version"`
	SoftwareCategory string `json:"software_category"`
	OSName           string `json:"os_name"`
	OSVersion        string `json:"os_version"`
	DeviceBrand      string `json:"device_brand"`
	DeviceModel      string `json:"device_model"`
	DeviceType       string `json:"device_type"`
	DeviceName       string `json:"device_name"`
}

var (
	iosVersionRe     = regexp.MustCompile(`(?i)os (\d+)_(\d+)`)
	darwinRe         = regexp.MustCompile(`(?i)darwin/(\d+)\.(\d+)\.?(\d+)?`)
	macVersionRe     = regexp.MustCompile(`(?i)mac os x (\d+)[._](\d+)`)
	windowsVersionRe = regexp.MustCompile(`(?i)windows nt (\d+\.\d+)`)
	androidVersionRe = regexp.MustCompile(`(?i)android (\d+\.\d+)`)

	IPhoneModelRe  = regexp.MustCompile(`(?i)iphone(\d+,\d+)`)
	IPadModelRe    = regexp.MustCompile(`(?i)ipad(\d+,\d+)`)
	AndroidBuildRe = regexp.MustCompile(`(?i);\s*([^;]+)\s*build`)

	versionRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d+\.\d+\.\d+\.\d+)`),
		regexp.MustCompile(`(\d+\.\d+\.\d+)`),
		regexp.MustCompile(`(?i)v(\d+\.\d+\.\d+)`),
		regexp.MustCompile(`(?i)version\s*(\d+\.\d+\.\d+)`),
		regexp.MustCompile(`(\d+\.\d+)`),
	}
)

// IsBrowser reports whether userAgent looks like a web browser rather than a
// proxy client. Any proxy keyword wins over browser keywords.
func IsBrowser(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	lower := strings.ToLower(userAgent)
	return containsAny(lower, browserKeywords) && !containsAny(lower, proxyKeywords)
}

// Parse classifies userAgent using rules for software detection.
func Parse(userAgent string, rules []Rule) Descriptor {
	d := Descriptor{
		SoftwareName:     Unknown,
		SoftwareCategory: CategoryUnknown,
		OSName:           Unknown,
		DeviceType:       DeviceTypeUnknown,
	}
	lower := strings.ToLower(userAgent)

	if r, ok := MatchRule(lower, rules); ok {
		d.SoftwareName = r.Software
		d.SoftwareCategory = r.Category
	}

	d.OSName, d.OSVersion = parseOS(userAgent, lower)
	if d.OSName == Unknown && d.SoftwareName != Unknown {
		if os := inferOS(d.SoftwareName); os != "" {
			d.OSName = os
		}
	}

	d.DeviceBrand, d.DeviceModel = parseDevice(userAgent, lower, d.OSName)
	if d.DeviceModel == "" && d.SoftwareName != Unknown && containsAny(strings.ToLower(d.SoftwareName), iosSoftware) {
		d.DeviceBrand = BrandApple
	}

	d.SoftwareVersion = parseVersion(userAgent)
	d.DeviceType = deviceType(lower, d.OSName, d.SoftwareName)
	d.DeviceName = deviceName(d)
	return d
}

// MatchRule returns the rule with the longest pattern contained in the
// lower-cased User-Agent. Ties keep the earlier rule. A UA mentioning hiddify
// without a matching rule is reported as Hiddify.
func MatchRule(lowerUA string, rules []Rule) (Rule, bool) {
	var (
		best  Rule
		found bool
	)
	for _, r := range rules {
		p := strings.ToLower(r.Pattern)
		if p == "" || !strings.Contains(lowerUA, p) {
			continue
		}
		if !found || len(p) > len(best.Pattern) {
			best, found = r, true
		}
	}
	if !found && strings.Contains(lowerUA, "hiddify") {
		return Rule{Pattern: "hiddify", Software: "Hiddify", Category: "proxy"}, true
	}
	return best, found
}

func parseOS(ua, lower string) (string, string) {
	switch {
	case strings.Contains(lower, "iphone"):
		return OSiOS, appleOSVersion(ua)
	case strings.Contains(lower, "ipad"):
		return OSiPadOS, appleOSVersion(ua)
	case strings.Contains(lower, "darwin"):
		return darwinOS(ua)
	case strings.Contains(lower, "macintosh"), strings.Contains(lower, "mac os"):
		if m := macVersionRe.FindStringSubmatch(ua); m != nil {
			return OSMacOS, m[1] + "." + m[2]
		}
		return OSMacOS, ""
	case strings.Contains(lower, "windows"):
		return OSWindows, firstGroup(windowsVersionRe, ua)
	case strings.Contains(lower, "android"):
		return OSAndroid, firstGroup(androidVersionRe, ua)
	case strings.Contains(lower, "linux"):
		return OSLinux, ""
	}
	return Unknown, ""
}

func appleOSVersion(ua string) string {
	if m := iosVersionRe.FindStringSubmatch(ua); m != nil {
		return m[1] + "." + m[2]
	}
	return ""
}

// darwinOS maps a Darwin kernel version to iOS or macOS: the product major
// version is the kernel major minus six.
func darwinOS(ua string) (string, string) {
	m := darwinRe.FindStringSubmatch(ua)
	if m == nil {
		return Unknown, ""
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Unknown, ""
	}
	minor := m[2]
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}
	osMajor := major - 6
	switch {
	case osMajor >= 10:
		v := fmt.Sprintf("%d.%s", osMajor, minor)
		if patch > 0 {
			v += fmt.Sprintf(".%d", patch)
		}
		return OSiOS, v
	case osMajor >= 1:
		return OSMacOS, fmt.Sprintf("%d.%s", osMajor, minor)
	}
	return Unknown, ""
}

func inferOS(software string) string {
	s := strings.ToLower(software)
	switch {
	case containsAny(s, iosSoftware):
		return OSiOS
	case containsAny(s, androidSoftware):
		return OSAndroid
	case containsAny(s, windowsSoftware):
		return OSWindows
	case containsAny(s, macSoftware):
		return OSMacOS
	case containsAny(s, linuxSoftware) && (strings.Contains(s, "core") || strings.Contains(s, "libev")):
		return OSLinux
	}
	return ""
}

func parseDevice(ua, lower, osName string) (brand, model string) {
	if m := IPhoneModelRe.FindStringSubmatch(ua); m != nil {
		brand, model = BrandApple, "iPhone "+strings.ReplaceAll(m[1], ",", ".")
	}
	if m := IPadModelRe.FindStringSubmatch(ua); m != nil {
		brand, model = BrandApple, "iPad "+strings.ReplaceAll(m[1], ",", ".")
	}
	if model == "" && containsAny(lower, iosSoftware) && (osName == OSiOS || strings.Contains(lower, "darwin")) {
		brand, model = BrandApple, "iPhone"
	}
	if strings.Contains(lower, "android") {
		if m := AndroidBuildRe.FindStringSubmatch(ua); m != nil {
			model = strings.TrimSpace(m[1])
			brand = androidBrand(strings.ToLower(model))
		}
	}
	return brand, model
}

func androidBrand(lowerModel string) string {
	for _, b := range androidBrands {
		if containsAny(lowerModel, b.keywords) {
			return b.brand
		}
	}
	return Unknown
}

func parseVersion(ua string) string {
	for _, re := range versionRes {
		if v := firstGroup(re, ua); v != "" {
			return v
		}
	}
	return ""
}

func deviceType(lower, osName, software string) string {
	osLower := strings.ToLower(osName)
	sw := strings.ToLower(software)
	isDesktopOS := osLower == "windows" || osLower == "macos" || osLower == "linux"
	isTablet := strings.Contains(lower, "tablet") || strings.Contains(lower, "pad")

	switch {
	case osLower == "ipados" || strings.Contains(lower, "ipad"):
		return DeviceTypeTablet
	case osLower == "ios":
		return DeviceTypeMobile
	case osLower == "android":
		if isTablet {
			return DeviceTypeTablet
		}
		return DeviceTypeMobile
	case isDesktopOS:
		return DeviceTypeDesktop
	}

	switch {
	case containsAny(sw, []string{"shadowrocket", "quantumult", "surge", "loon"}):
		// "ipad" was already handled above, so these are phones.
		return DeviceTypeMobile
	case containsAny(sw, []string{"clash for windows", "clash-verge", "v2rayn", "qv2ray"}):
		return DeviceTypeDesktop
	}

	switch {
	case strings.Contains(lower, "iphone"):
		return DeviceTypeMobile
	case containsAny(lower, []string{"windows", "macintosh", "x11", "linux"}):
		return DeviceTypeDesktop
	case strings.Contains(lower, "android"):
		if isTablet {
			return DeviceTypeTablet
		}
		return DeviceTypeMobile
	}
	return DeviceTypeUnknown
}

func deviceName(d Descriptor) string {
	var parts []string
	if d.SoftwareName != "" && d.SoftwareName != Unknown {
		parts = append(parts, d.SoftwareName)
	}
	if d.DeviceModel != "" {
		parts = append(parts, d.DeviceModel)
	} else if d.DeviceBrand != "" {
		parts = append(parts, d.DeviceBrand)
	}
	if d.OSName != "" && d.OSName != Unknown {
		os := d.OSName
		if d.OSVersion != "" {
			os += " " + d.OSVersion
		}
		parts = append(parts, os)
	}
	if d.SoftwareVersion != "" {
		parts = append(parts, "v"+d.SoftwareVersion)
	}
	if len(parts) == 0 {
		return UnknownDeviceName
	}
	return strings.Join(parts, " - ")
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
