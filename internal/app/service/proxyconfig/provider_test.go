package proxyconfig

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fatflowers/subpanel/pkg/config"
	"github.com/fatflowers/subpanel/pkg/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newProvider(c config.ProxyConfigConfig) *Provider {
	return New(&config.Config{ProxyConfig: c}, zap.NewNop().Sugar())
}

func TestNormalizeClashDropsDuplicateGroups(t *testing.T) {
	in := `port: 7890
proxy-groups:
  - name: Proxy
    type: select
  - name: Auto
    type: url-test
  - name: Proxy
    type: fallback
rules:
  - MATCH,Proxy
`
	out, err := NormalizeClash([]byte(in))
	require.NoError(t, err)

	var got struct {
		Port   int `yaml:"port"`
		Groups []struct {
			Name string `yaml:"name"`
			Type string `yaml:"type"`
		} `yaml:"proxy-groups"`
		Rules []string `yaml:"rules"`
	}
	require.NoError(t, yaml.Unmarshal(out, &got))
	require.Equal(t, 7890, got.Port)
	require.Len(t, got.Groups, 2)
	require.Equal(t, "Proxy", got.Groups[0].Name)
	require.Equal(t, "select", got.Groups[0].Type)
	require.Equal(t, "Auto", got.Groups[1].Name)
	require.Equal(t, []string{"MATCH,Proxy"}, got.Rules)
}

func TestNormalizeClashUnchanged(t *testing.T) {
	in := "proxies: []\nproxy-groups:\n  - name: Proxy\n    type: select\n"
	out, err := NormalizeClash([]byte(in))
	require.NoError(t, err)
	require.Equal(t, in, string(out))
}

func TestNormalizeClashRejectsNonMapping(t *testing.T) {
	_, err := NormalizeClash([]byte("- a\n- b\n"))
	require.ErrorIs(t, err, ErrNotMapping)

	_, err = NormalizeClash([]byte("key: [unclosed"))
	require.Error(t, err)
}

func TestConfig(t *testing.T) {
	ctx := context.Background()
	clash := writeFile(t, "clash.yaml", "mode: Rule\n")
	v2ray := writeFile(t, "xr", "dm1lc3M6Ly9hYmM=")
	p := newProvider(config.ProxyConfigConfig{ClashFile: clash, V2RayFile: v2ray})

	require.Equal(t, "mode: Rule\n", p.Config(ctx, types.SubscriptionTypeClash))
	require.Equal(t, "dm1lc3M6Ly9hYmM=", p.Config(ctx, types.SubscriptionTypeSSR))
}

func TestConfigFallbacks(t *testing.T) {
	ctx := context.Background()
	p := newProvider(config.ProxyConfigConfig{
		ClashFile: filepath.Join(t.TempDir(), "missing.yaml"),
		V2RayFile: writeFile(t, "xr", "  \n"),
	})
	require.Equal(t, missingClash, p.Config(ctx, types.SubscriptionTypeClash))
	require.Equal(t, missingV2Ray, p.Config(ctx, types.SubscriptionTypeSSR))

	// malformed clash content is served raw
	bad := writeFile(t, "bad.yaml", "- a\n")
	p = newProvider(config.ProxyConfigConfig{ClashFile: bad})
	require.Equal(t, "- a\n", p.Config(ctx, types.SubscriptionTypeClash))
}

func TestInvalidConfig(t *testing.T) {
	ctx := context.Background()
	p := newProvider(config.ProxyConfigConfig{})
	require.Equal(t, invalidClash, p.InvalidConfig(ctx, types.SubscriptionTypeClash))
	require.Equal(t, invalidV2Ray, p.InvalidConfig(ctx, types.SubscriptionTypeSSR))

	var m map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(invalidClash), &m))
	require.Equal(t, "Rule", m["mode"])

	custom := writeFile(t, "invalid.yaml", "mode: Direct\n")
	p = newProvider(config.ProxyConfigConfig{InvalidClashFile: custom})
	require.Equal(t, "mode: Direct\n", p.InvalidConfig(ctx, types.SubscriptionTypeClash))
}

func TestDecodeV2Ray(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("vmess://a\n\nss://b\n"))
	require.Equal(t, []string{"vmess://a", "ss://b"}, DecodeV2Ray(encoded))
	require.Equal(t, []string{"trojan://c"}, DecodeV2Ray("# comment\ntrojan://c\n"))
}
