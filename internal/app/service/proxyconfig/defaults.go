package proxyconfig

const (
	missingClash = "# Clash配置未设置\n# 请联系管理员配置Clash节点信息"
	missingV2Ray = "# V2Ray配置未设置\n# 请联系管理员配置V2Ray节点信息"
)

// invalidClash is served to clients that were denied access.
const invalidClash = `# Clash失效配置文件
# 此配置用于无效用户（订阅过期、用户禁用、设备超限等）

port: 7890
socks-port: 7891
allow-lan: true
mode: Rule
log-level: info
external-controller: :9090

proxies: []

proxy-groups:
  - name: "Proxy"
    type: select
    proxies: []

rules:
  - MATCH,DIRECT
`

const invalidV2Ray = `{
  "log": {
    "loglevel": "warning"
  },
  "inbounds": [],
  "outbounds": [
    {
      "protocol": "direct",
      "settings": {}
    }
  ],
  "routing": {
    "rules": [
      {
        "type": "field",
        "outboundTag": "direct",
        "network": "tcp,udp"
      }
    ]
  }
}`
