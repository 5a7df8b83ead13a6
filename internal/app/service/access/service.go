// Package access decides whether a client may fetch a subscription and keeps
// the device table and access log in step with that decision.
package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subpanel/internal/app/service/accesslog"
	"github.com/fatflowers/subpanel/internal/app/service/devicecount"
	"github.com/fatflowers/subpanel/internal/app/service/softwarerule"
	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/fingerprint"
	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/metrics"
	"github.com/fatflowers/subpanel/pkg/tool"
	"github.com/fatflowers/subpanel/pkg/types"
	"github.com/fatflowers/subpanel/pkg/uaparser"
)

var errSubscriptionNotFound = errors.New("subscription not found")

// RuleSource supplies the software rules used for classification.
type RuleSource interface {
	Rules(ctx context.Context) []uaparser.Rule
}

type Service struct {
	db      *gorm.DB
	log     *zap.SugaredLogger
	rules   RuleSource
	logs    *accesslog.Service
	counter *devicecount.Synchronizer

	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec

	now func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, rules *softwarerule.Service, logs *accesslog.Service, counter *devicecount.Synchronizer, reg prometheus.Registerer) (*Service, error) {
	return newService(db, log, rules, logs, counter, reg)
}

func newService(db *gorm.DB, log *zap.SugaredLogger, rules RuleSource, logs *accesslog.Service, counter *devicecount.Synchronizer, reg prometheus.Registerer) (*Service, error) {
	decisions, err := metrics.Register(reg, metrics.MetricsAccessDecision, "")
	if err != nil {
		return nil, fmt.Errorf("failed to register access decision metric: %w", err)
	}
	latency, err := metrics.Register(reg, metrics.MetricsBusinessProcess, "")
	if err != nil {
		return nil, fmt.Errorf("failed to register business process metric: %w", err)
	}
	return &Service{
		db:        db,
		log:       log,
		rules:     rules,
		logs:      logs,
		counter:   counter,
		decisions: decisions.(*prometheus.CounterVec),
		latency:   latency.(*prometheus.HistogramVec),
		now:       time.Now,
	}, nil
}

// CheckAccess never returns an error: every failure is folded into a denied
// result with status 500.
func (s *Service) CheckAccess(ctx context.Context, req *CheckAccessRequest) *AccessResult {
	start := time.Now()
	res := s.checkAccess(ctx, req)

	s.decisions.WithLabelValues(string(req.SubscriptionType), res.AccessType).Inc()
	s.latency.WithLabelValues("access", string(res.Outcome())).Observe(metrics.MillisecondsSince(start))
	logctx.FromCtx(ctx, s.log).Infow("access_decided",
		"subscription_id", res.SubscriptionID,
		"device_id", res.DeviceID,
		"access_type", res.AccessType,
		"status_code", res.StatusCode,
		"ip", req.ClientIP,
	)
	return res
}

func (s *Service) checkAccess(ctx context.Context, req *CheckAccessRequest) *AccessResult {
	now := s.now()
	if uaparser.IsBrowser(req.UserAgent) {
		return s.browserAccess(ctx, req, now)
	}

	// Rules are read before the transaction opens; the rule source may use
	// the same connection pool.
	raw := uaparser.Parse(req.UserAgent, s.rules.Rules(ctx))
	hash := fingerprint.Generate(req.UserAgent, req.DeviceID, raw)
	info := bucketSoftware(raw, req.SubscriptionType)

	var (
		res   *AccessResult
		subID string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := lockSubscription(ctx, tx, req.SubscriptionKey)
		if errors.Is(err, errSubscriptionNotFound) {
			res = newResult(req, types.AccessTypeNotFound, http.StatusNotFound, MsgNotFound)
			return nil
		}
		if err != nil {
			return err
		}
		subID = sub.ID

		switch {
		case sub.Expired(now):
			res = newResult(req, types.AccessTypeBlockedExpired, http.StatusForbidden, MsgExpired)
		case !sub.IsActive:
			res = newResult(req, types.AccessTypeBlockedInactive, http.StatusForbidden, MsgInactive)
		default:
			res, err = s.admit(ctx, tx, sub, req, hash, info, now)
			if err != nil {
				return err
			}
		}
		res.SubscriptionID = sub.ID
		s.logs.Append(ctx, tx, s.logEntry(req, res, now))
		return nil
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("access_check_failed",
			"err", err,
			"subscription_key", req.SubscriptionKey,
			"subscription_type", req.SubscriptionType,
			"user_agent", req.UserAgent,
			"ip", req.ClientIP,
		)
		res = newResult(req, types.AccessTypeError, http.StatusInternalServerError, MsgInternalFailure)
		res.SubscriptionID = subID
		s.logs.Record(ctx, s.logEntry(req, res, now))
		return res
	}
	return res
}

// admit updates a known device or registers a new one against the quota.
// The caller holds the subscription row lock.
func (s *Service) admit(ctx context.Context, tx *gorm.DB, sub *models.Subscription, req *CheckAccessRequest, hash string, info uaparser.Descriptor, now time.Time) (*AccessResult, error) {
	var (
		device  models.Device
		created bool
	)
	err := tx.Where("device_hash = ? AND subscription_id = ?", hash, sub.ID).First(&device).Error
	switch {
	case err == nil:
		applyDescriptor(&device, info)
		device.UserAgent = req.UserAgent
		device.IPAddress = req.ClientIP
		device.LastSeen = now
		device.AccessCount++
		if err := tx.Save(&device).Error; err != nil {
			return nil, fmt.Errorf("failed to update device: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		var allowed int64
		if err := tx.Model(&models.Device{}).Where("subscription_id = ? AND is_allowed = ?", sub.ID, true).Count(&allowed).Error; err != nil {
			return nil, fmt.Errorf("failed to count allowed devices: %w", err)
		}
		device = models.Device{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			DeviceHash:     hash,
			UserAgent:      req.UserAgent,
			IPAddress:      req.ClientIP,
			IsAllowed:      allowed < int64(sub.DeviceLimit),
			FirstSeen:      now,
			LastSeen:       now,
			AccessCount:    1,
		}
		applyDescriptor(&device, info)
		if err := tx.Create(&device).Error; err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
		logctx.FromCtx(ctx, s.log).Infow("device_created",
			"subscription_id", sub.ID,
			"device_id", device.ID,
			"software", device.SoftwareName,
			"is_allowed", device.IsAllowed,
		)
		created = true
	default:
		return nil, fmt.Errorf("failed to find device: %w", err)
	}

	if _, err := s.counter.Sync(ctx, tx, sub.ID); err != nil {
		return nil, err
	}
	var res *AccessResult
	switch {
	case device.IsAllowed:
		res = newResult(req, types.AccessTypeAllowed, http.StatusOK, MsgAllowed)
	case created:
		res = newResult(req, types.AccessTypeBlockedDeviceLimit, http.StatusForbidden, fmt.Sprintf(MsgDeviceLimitN, sub.DeviceLimit))
	default:
		res = newResult(req, types.AccessTypeBlockedDeviceLimit, http.StatusForbidden, MsgDeviceLimit)
	}
	res.DeviceID = device.ID
	res.DeviceInfo = &info
	return res, nil
}

// browserAccess never touches the device table.
func (s *Service) browserAccess(ctx context.Context, req *CheckAccessRequest, now time.Time) *AccessResult {
	res := newResult(req, types.AccessTypeBrowser, http.StatusOK, MsgBrowser)
	var sub models.Subscription
	err := s.db.WithContext(ctx).Select("id").Where("subscription_key = ?", req.SubscriptionKey).Take(&sub).Error
	switch {
	case err == nil:
		res.SubscriptionID = sub.ID
		s.logs.Record(ctx, s.logEntry(req, res, now))
	case !errors.Is(err, gorm.ErrRecordNotFound):
		logctx.FromCtx(ctx, s.log).Warnw("browser access lookup failed", "err", err)
	}
	return res
}

func (s *Service) logEntry(req *CheckAccessRequest, res *AccessResult, now time.Time) *accesslog.Entry {
	e := &accesslog.Entry{
		SubscriptionID:  res.SubscriptionID,
		IPAddress:       req.ClientIP,
		UserAgent:       req.UserAgent,
		AccessType:      res.AccessType,
		ResponseStatus:  res.StatusCode,
		ResponseMessage: res.Message,
		AccessTime:      now,
	}
	if res.DeviceID != "" {
		id := res.DeviceID
		e.DeviceID = &id
	}
	return e
}

func lockSubscription(ctx context.Context, tx *gorm.DB, key string) (*models.Subscription, error) {
	var sub models.Subscription
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("subscription_key = ?", key).
		Take(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// bucketSoftware files unidentified clients under the endpoint they used so
// statistics group them sensibly.
func bucketSoftware(d uaparser.Descriptor, t types.SubscriptionType) uaparser.Descriptor {
	switch {
	case d.SoftwareName == uaparser.Unknown && t == types.SubscriptionTypeClash:
		d.SoftwareName = "clash"
	case d.SoftwareName == uaparser.Unknown && t == types.SubscriptionTypeSSR:
		d.SoftwareName = "v2ray"
	case strings.EqualFold(d.SoftwareName, "hiddify") && t == types.SubscriptionTypeSSR:
		d.SoftwareName = "v2ray"
	}
	return d
}

func applyDescriptor(device *models.Device, d uaparser.Descriptor) {
	device.SoftwareName = d.SoftwareName
	device.SoftwareVersion = d.SoftwareVersion
	device.SoftwareCategory = d.SoftwareCategory
	device.OSName = d.OSName
	device.OSVersion = d.OSVersion
	device.DeviceBrand = d.DeviceBrand
	device.DeviceModel = d.DeviceModel
	device.DeviceType = d.DeviceType
	device.DeviceName = d.DeviceName
}
