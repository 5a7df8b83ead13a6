package uaparser

var browserKeywords = []string{
	"mozilla", "chrome", "safari", "firefox", "edge", "opera",
	"msie", "trident", "webkit", "gecko", "browser",
}

var proxyKeywords = []string{
	"clash",
	"clash for android",
	"clash-verge",
	"clashandroid",
	"clashx",
	"hiddify",
	"loon",
	"quantumult",
	"qv2ray",
	"shadowrocket",
	"shadowsocks",
	"shadowsocksr",
	"ssr",
	"ssrr",
	"surfboard",
	"surge",
	"v2ray",
	"v2rayn",
	"v2rayng",
}

// Clients that only ship on iOS. Also used to infer an Apple device.
var iosSoftware = []string{
	"anx",
	"anxray",
	"karing",
	"kitsunebi",
	"loon",
	"pharos",
	"potatso",
	"quantumult",
	"quantumult x",
	"shadowrocket",
	"stash",
	"surge",
}

var androidSoftware = []string{
	"clash for android",
	"clashandroid",
	"shadowsocks",
	"shadowsocksr",
	"ssr",
	"ssrr",
	"surfboard",
	"v2rayng",
}

var windowsSoftware = []string{
	"clash for windows",
	"clash verge",
	"clash-verge",
	"mihome part",
	"qv2ray",
	"shadowsocks-windows",
	"sparkle",
	"v2rayn",
	"v2rayw",
}

var macSoftware = []string{
	"clash for mac",
	"clashx",
	"clashx pro",
	"shadowsocksx",
	"shadowsocksx-ng",
	"surge",
	"v2rayu",
	"v2rayx",
}

// Linux builds are only recognised by their core/libev suffix.
var linuxSoftware = []string{
	"clash",
	"shadowsocks-libev",
	"v2ray",
	"v2ray-core",
}

type brandRule struct {
	keywords []string
	brand    string
}

// Order matters: the first brand with a matching keyword wins.
var androidBrands = []brandRule{
	{[]string{"samsung", "galaxy"}, "Samsung"},
	{[]string{"huawei", "honor"}, "Huawei"},
	{[]string{"xiaomi", "redmi", "mi "}, "Xiaomi"},
	{[]string{"oppo", "oneplus"}, "OPPO"},
	{[]string{"vivo", "iqoo"}, "vivo"},
	{[]string{"realme"}, "Realme"},
	{[]string{"meizu"}, "Meizu"},
	{[]string{"lenovo"}, "Lenovo"},
	{[]string{"motorola"}, "Motorola"},
	{[]string{"sony"}, "Sony"},
	{[]string{"lg"}, "LG"},
	{[]string{"htc"}, "HTC"},
	{[]string{"asus"}, "ASUS"},
	{[]string{"nokia"}, "Nokia"},
	{[]string{"blackberry"}, "BlackBerry"},
	{[]string{"google", "pixel"}, "Google"},
}
