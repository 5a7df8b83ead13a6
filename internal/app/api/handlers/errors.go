package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/subpanel/internal/app/service/device"
	"github.com/fatflowers/subpanel/internal/app/service/softwarerule"
	"github.com/fatflowers/subpanel/internal/app/service/subscription"
	"github.com/fatflowers/subpanel/pkg/response"
)

func errorCode(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, device.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, softwarerule.ErrRuleNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, device.ErrInvalidPatch),
		errors.Is(err, device.ErrDeviceLimitReached),
		errors.Is(err, subscription.ErrInvalidSubscription),
		errors.Is(err, softwarerule.ErrInvalidRule):
		return response.APIResponseCodeBadRequest
	default:
		return response.APIResponseCodeError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](errorCode(err), err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}
