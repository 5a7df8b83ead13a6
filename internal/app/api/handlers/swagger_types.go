package handlers

import (
	"github.com/fatflowers/subpanel/internal/app/service/accesslog"
	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/app/service/statistics"
	"github.com/fatflowers/subpanel/internal/models"
	"github.com/fatflowers/subpanel/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespListDevices struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    device.ListDevicesResponse `json:"data"`
}

type RespDevice struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Device            `json:"data"`
}

type RespSubscriptionDevices struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    SubscriptionDevicesResponse `json:"data"`
}

type RespClearDevices struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ClearDevicesResponse     `json:"data"`
}

type RespSoftwareRule struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.SoftwareRule      `json:"data"`
}

type RespSoftwareRules struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.SoftwareRule    `json:"data"`
}

// RespListAccessLogs wraps accesslog.ListResponse in the standard envelope.
type RespListAccessLogs struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    accesslog.ListResponse   `json:"data"`
}

type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

type RespSubscriptions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Subscription    `json:"data"`
}

type RespSubscriptionLogs struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.SubscriptionLog `json:"data"`
}

// RespStatistic wraps StatisticResponse in the standard envelope.
type RespStatistic struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.StatisticResponse `json:"data"`
}
