package softwarerule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/config"
	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/tool"
	"github.com/fatflowers/subpanel/pkg/uaparser"
)

var (
	ErrRuleNotFound = errors.New("software rule not found")
	ErrInvalidRule  = errors.New("invalid software rule")
)

// Service owns the admin editable rule table and serves the active rules to
// the classifier through a TTL cache.
type Service struct {
	cfg   *config.Config
	db    *gorm.DB
	log   *zap.SugaredLogger
	cache Cache
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, rdb *redis.Client) *Service {
	ttl := cfg.SoftwareRules.CacheTTL
	var cache Cache
	if rdb != nil {
		cache = NewRedisCache(rdb, cfg.SoftwareRules.CacheKey, ttl, log)
	} else {
		cache = NewMemoryCache(ttl)
	}
	return &Service{cfg: cfg, db: db, log: log, cache: cache}
}

// NewServiceWithCache is used when the caller controls caching.
func NewServiceWithCache(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, cache Cache) *Service {
	return &Service{cfg: cfg, db: db, log: log, cache: cache}
}

// Rules returns the active rules ordered by software name. Storage failures
// are logged and yield no rules so classification can still proceed.
func (s *Service) Rules(ctx context.Context) []uaparser.Rule {
	if rules, ok := s.cache.Get(ctx); ok {
		return rules
	}
	var rows []*models.SoftwareRule
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("software_name").
		Find(&rows).Error
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to load software rules", "err", err)
		return nil
	}
	rules := lo.Map(rows, func(r *models.SoftwareRule, _ int) uaparser.Rule { return toRule(r) })
	s.cache.Set(ctx, rules)
	return rules
}

// Invalidate drops cached rules; the next Rules call reloads from storage.
func (s *Service) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

type ListRulesRequest struct {
	ActiveOnly bool   `json:"active_only" form:"active_only"`
	Keyword    string `json:"keyword" form:"keyword"`
}

func (s *Service) List(ctx context.Context, req *ListRulesRequest) ([]*models.SoftwareRule, error) {
	q := s.db.WithContext(ctx).Model(&models.SoftwareRule{})
	if req != nil && req.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if req != nil && req.Keyword != "" {
		like := "%" + strings.ToLower(req.Keyword) + "%"
		q = q.Where("LOWER(software_name) LIKE ? OR LOWER(user_agent_pattern) LIKE ?", like, like)
	}
	var rows []*models.SoftwareRule
	if err := q.Order("software_name").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list software rules: %w", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.SoftwareRule, error) {
	var row models.SoftwareRule
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("failed to get software rule: %w", err)
	}
	return &row, nil
}

type CreateRuleRequest struct {
	SoftwareName     string `json:"software_name"`
	SoftwareCategory string `json:"software_category"`
	UserAgentPattern string `json:"user_agent_pattern"`
	OSPattern        string `json:"os_pattern"`
	DevicePattern    string `json:"device_pattern"`
	VersionPattern   string `json:"version_pattern"`
	// IsActive defaults to true.
	IsActive *bool `json:"is_active"`
}

func (r *CreateRuleRequest) Validate() error {
	if strings.TrimSpace(r.SoftwareName) == "" {
		return fmt.Errorf("%w: software_name is required", ErrInvalidRule)
	}
	if strings.TrimSpace(r.UserAgentPattern) == "" {
		return fmt.Errorf("%w: user_agent_pattern is required", ErrInvalidRule)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req *CreateRuleRequest) (*models.SoftwareRule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	row := &models.SoftwareRule{
		ID:               tool.GenerateUUIDV7(),
		SoftwareName:     strings.TrimSpace(req.SoftwareName),
		SoftwareCategory: lo.CoalesceOrEmpty(strings.TrimSpace(req.SoftwareCategory), categoryProxy),
		UserAgentPattern: strings.TrimSpace(req.UserAgentPattern),
		OSPattern:        req.OSPattern,
		DevicePattern:    req.DevicePattern,
		VersionPattern:   req.VersionPattern,
		IsActive:         lo.FromPtrOr(req.IsActive, true),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create software rule: %w", err)
	}
	s.Invalidate(ctx)
	logctx.FromCtx(ctx, s.log).Infow("software_rule_created", "id", row.ID, "software_name", row.SoftwareName, "pattern", row.UserAgentPattern)
	return row, nil
}

// RulePatch updates only the fields that are set.
type RulePatch struct {
	SoftwareName     *string `json:"software_name"`
	SoftwareCategory *string `json:"software_category"`
	UserAgentPattern *string `json:"user_agent_pattern"`
	OSPattern        *string `json:"os_pattern"`
	DevicePattern    *string `json:"device_pattern"`
	VersionPattern   *string `json:"version_pattern"`
	IsActive         *bool   `json:"is_active"`
}

func (p *RulePatch) updates() (map[string]any, error) {
	u := map[string]any{}
	if p.SoftwareName != nil {
		if strings.TrimSpace(*p.SoftwareName) == "" {
			return nil, fmt.Errorf("%w: software_name must not be empty", ErrInvalidRule)
		}
		u["software_name"] = strings.TrimSpace(*p.SoftwareName)
	}
	if p.UserAgentPattern != nil {
		if strings.TrimSpace(*p.UserAgentPattern) == "" {
			return nil, fmt.Errorf("%w: user_agent_pattern must not be empty", ErrInvalidRule)
		}
		u["user_agent_pattern"] = strings.TrimSpace(*p.UserAgentPattern)
	}
	if p.SoftwareCategory != nil {
		u["software_category"] = *p.SoftwareCategory
	}
	if p.OSPattern != nil {
		u["os_pattern"] = *p.OSPattern
	}
	if p.DevicePattern != nil {
		u["device_pattern"] = *p.DevicePattern
	}
	if p.VersionPattern != nil {
		u["version_pattern"] = *p.VersionPattern
	}
	if p.IsActive != nil {
		u["is_active"] = *p.IsActive
	}
	return u, nil
}

func (s *Service) Update(ctx context.Context, id string, patch *RulePatch) (*models.SoftwareRule, error) {
	u, err := patch.updates()
	if err != nil {
		return nil, err
	}
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(u) == 0 {
		return row, nil
	}
	if err := s.db.WithContext(ctx).Model(row).Updates(u).Error; err != nil {
		return nil, fmt.Errorf("failed to update software rule: %w", err)
	}
	s.Invalidate(ctx)
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SoftwareRule{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete software rule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	s.Invalidate(ctx)
	return nil
}

// SeedDefaults fills an empty rule table with the built-in rules and returns
// how many were inserted.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.SoftwareRule{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count software rules: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	rows := lo.Map(defaultRules, func(r models.SoftwareRule, _ int) *models.SoftwareRule {
		r.ID = tool.GenerateUUIDV7()
		r.SoftwareCategory = categoryProxy
		r.IsActive = true
		return &r
	})
	if err := s.db.WithContext(ctx).Create(rows).Error; err != nil {
		return 0, fmt.Errorf("failed to seed software rules: %w", err)
	}
	s.Invalidate(ctx)
	return len(rows), nil
}

func toRule(r *models.SoftwareRule) uaparser.Rule {
	return uaparser.Rule{Pattern: r.UserAgentPattern, Software: r.SoftwareName, Category: r.SoftwareCategory}
}
