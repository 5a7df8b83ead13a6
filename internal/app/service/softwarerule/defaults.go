package softwarerule

import "github.com/fatflowers/subpanel/internal/models"

const categoryProxy = "proxy"

// defaultRules seeds an empty rule table. Patterns are matched as
// case-insensitive substrings and the longest match wins, so specific client
// names can coexist with generic ones like "clash".
var defaultRules = []models.SoftwareRule{
	{SoftwareName: "Clash", UserAgentPattern: "clash"},
	{SoftwareName: "Clash Meta", UserAgentPattern: "clash.meta"},
	{SoftwareName: "Clash Meta for Android", UserAgentPattern: "clashmetaforandroid"},
	{SoftwareName: "Clash for Android", UserAgentPattern: "clashforandroid"},
	{SoftwareName: "Clash for Windows", UserAgentPattern: "clashforwindows"},
	{SoftwareName: "Clash Verge", UserAgentPattern: "clash-verge"},
	{SoftwareName: "ClashX", UserAgentPattern: "clashx"},
	{SoftwareName: "Mihomo", UserAgentPattern: "mihomo"},
	{SoftwareName: "Stash", UserAgentPattern: "stash"},
	{SoftwareName: "Shadowrocket", UserAgentPattern: "shadowrocket"},
	{SoftwareName: "Quantumult", UserAgentPattern: "quantumult"},
	{SoftwareName: "Quantumult X", UserAgentPattern: "quantumult%20x"},
	{SoftwareName: "Surge", UserAgentPattern: "surge"},
	{SoftwareName: "Loon", UserAgentPattern: "loon"},
	{SoftwareName: "Kitsunebi", UserAgentPattern: "kitsunebi"},
	{SoftwareName: "Karing", UserAgentPattern: "karing"},
	{SoftwareName: "V2Ray", UserAgentPattern: "v2ray"},
	{SoftwareName: "v2rayN", UserAgentPattern: "v2rayn"},
	{SoftwareName: "v2rayNG", UserAgentPattern: "v2rayng"},
	{SoftwareName: "Qv2ray", UserAgentPattern: "qv2ray"},
	{SoftwareName: "Shadowsocks", UserAgentPattern: "shadowsocks"},
	{SoftwareName: "ShadowsocksR", UserAgentPattern: "shadowsocksr"},
	{SoftwareName: "Surfboard", UserAgentPattern: "surfboard"},
	{SoftwareName: "sing-box", UserAgentPattern: "sing-box"},
}
