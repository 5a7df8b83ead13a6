package proxyconfig

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fatflowers/subpanel/pkg/config"
	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/types"
)

var ErrNotMapping = errors.New("clash config must be a mapping")

// Provider serves the proxy configuration bodies returned by the content
// endpoints. Files are read on every call.
type Provider struct {
	cfg config.ProxyConfigConfig
	log *zap.SugaredLogger
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Provider {
	return &Provider{cfg: cfg.ProxyConfig, log: log}
}

// Config returns the body served to an admitted client. SSR requests receive
// the V2Ray subscription.
func (p *Provider) Config(ctx context.Context, t types.SubscriptionType) string {
	if t == types.SubscriptionTypeClash {
		content := p.read(ctx, p.cfg.ClashFile, missingClash)
		if strings.HasPrefix(content, "#") {
			return content
		}
		cleaned, err := NormalizeClash([]byte(content))
		if err != nil {
			logctx.FromCtx(ctx, p.log).Warnw("clash_config_invalid", "file", p.cfg.ClashFile, "error", err)
			return content
		}
		return string(cleaned)
	}
	return p.read(ctx, p.cfg.V2RayFile, missingV2Ray)
}

// InvalidConfig returns the placeholder served on denial.
func (p *Provider) InvalidConfig(ctx context.Context, t types.SubscriptionType) string {
	if t == types.SubscriptionTypeClash {
		return p.read(ctx, p.cfg.InvalidClashFile, invalidClash)
	}
	return p.read(ctx, p.cfg.InvalidV2RayFile, invalidV2Ray)
}

func (p *Provider) read(ctx context.Context, path, fallback string) string {
	if path == "" {
		return fallback
	}
	b, err := os.ReadFile(path)
	if err != nil {
		logctx.FromCtx(ctx, p.log).Warnw("proxy_config_read_failed", "file", path, "error", err)
		return fallback
	}
	if strings.TrimSpace(string(b)) == "" {
		return fallback
	}
	return string(b)
}

// NormalizeClash checks that content is a YAML mapping and drops proxy groups
// whose name repeats an earlier group. Content without duplicates is returned
// unchanged.
func NormalizeClash(content []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse clash config: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	root := doc.Content[0]

	var groups *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "proxy-groups" {
			groups = root.Content[i+1]
			break
		}
	}
	if groups == nil || groups.Kind != yaml.SequenceNode {
		return content, nil
	}

	seen := make(map[string]struct{}, len(groups.Content))
	kept := groups.Content[:0]
	for _, g := range groups.Content {
		name, ok := groupName(g)
		if ok {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
		}
		kept = append(kept, g)
	}
	if len(kept) == len(groups.Content) {
		return content, nil
	}
	groups.Content = kept

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode clash config: %w", err)
	}
	return out, nil
}

func groupName(n *yaml.Node) (string, bool) {
	if n.Kind != yaml.MappingNode {
		return "", false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "name" {
			return n.Content[i+1].Value, true
		}
	}
	return "", false
}

// DecodeV2Ray returns the share links of a base64 encoded V2Ray subscription.
// Plain text payloads are split as is.
func DecodeV2Ray(content string) []string {
	body := strings.TrimSpace(content)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(body); err == nil {
			body = string(b)
			break
		}
	}
	var links []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
			links = append(links, line)
		}
	}
	return links
}

// checkOnBoot logs unreadable or malformed config files at startup.
func checkOnBoot(lc fx.Lifecycle, p *Provider) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		if p.cfg.ClashFile != "" {
			if b, err := os.ReadFile(p.cfg.ClashFile); err != nil {
				p.log.Warnw("clash_config_unreadable", "file", p.cfg.ClashFile, "error", err)
			} else if _, err := NormalizeClash(b); err != nil {
				p.log.Warnw("clash_config_invalid", "file", p.cfg.ClashFile, "error", err)
			}
		}
		if p.cfg.V2RayFile != "" {
			if b, err := os.ReadFile(p.cfg.V2RayFile); err != nil {
				p.log.Warnw("v2ray_config_unreadable", "file", p.cfg.V2RayFile, "error", err)
			} else {
				p.log.Infow("v2ray_config_loaded", "file", p.cfg.V2RayFile, "links", len(DecodeV2Ray(string(b))))
			}
		}
		return nil
	}})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(checkOnBoot),
)
