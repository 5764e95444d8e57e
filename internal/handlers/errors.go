package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"order_composer/internal/composer"
	"order_composer/internal/config"
	"order_composer/internal/redis"
	"order_composer/internal/repository"
	"order_composer/internal/services"
	"order_composer/pkg/backend"
)

var registerOnce sync.Once

// useJSONFieldNames makes validation errors report the json name of a field.
func useJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// fieldPath drops the root struct name: "AddItemInput.quantity" -> "quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// ProcessValidationErrors turns binding errors into field -> message pairs.
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	out := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		out[fieldPath(fe)] = validationMessage(fe)
	}
	return out
}

func bindError(c *gin.Context, err error) {
	if fields := ProcessValidationErrors(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
}

var (
	notFoundErrors = []error{
		redis.ErrDraftNotFound,
		composer.ErrItemNotFound,
		composer.ErrRuleNotFound,
		services.ErrCatalogEntryNotFound,
		services.ErrSubmissionRecordNotFound,
		repository.ErrNotFound,
	}
	conflictErrors = []error{
		services.ErrDraftNotEditable,
		services.ErrSubmissionInProgress,
		services.ErrSubmissionOutcomeUnknown,
	}
	badRequestErrors = []error{
		composer.ErrInvalidQuantity,
		composer.ErrInvalidAmount,
		composer.ErrInvalidPercentage,
		composer.ErrEmptyLine,
		composer.ErrUnknownStockPolicy,
	}
	unprocessableErrors = []error{
		composer.ErrFreeItemPrice,
		composer.ErrRuleNotApplicable,
		services.ErrEmptyOrder,
		services.ErrCustomerRequired,
		services.ErrShippingAddressRequired,
		services.ErrPickupLocationRequired,
		services.ErrUncommittedFreeQuantity,
		services.ErrNoCustomer,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// respondError maps service and backend errors to HTTP answers. Only
// unexpected failures are logged as errors.
func respondError(c *gin.Context, logger logrus.FieldLogger, funcName string, err error) {
	var (
		stock  *composer.StockConflictError
		dup    *services.DuplicateCustomerError
		apiErr *backend.APIError
		urlErr *url.Error
	)
	switch {
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"conflict":  "stock",
			"name":      stock.Name,
			"requested": stock.Requested,
			"available": stock.Available,
			"choices":   []composer.StockPolicy{composer.StockCancel, composer.StockFill, composer.StockForce, composer.StockAlways},
		})
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"conflict":   "duplicate_customer",
			"candidates": dup.Candidates,
		})
	case isAny(err, notFoundErrors):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case isAny(err, conflictErrors):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case isAny(err, badRequestErrors):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case isAny(err, unprocessableErrors):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		config.LogError(logger, "handlers", funcName, "backend request", gin.H{"path": c.FullPath()}, err)
		if apiErr.StatusCode == http.StatusNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": apiErr.Message})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":         "backend request failed",
			"detail":        apiErr.Message,
			"backendStatus": apiErr.StatusCode,
		})
	case errors.As(err, &urlErr):
		config.LogError(logger, "handlers", funcName, "backend unreachable", gin.H{"path": c.FullPath()}, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unreachable"})
	default:
		config.LogError(logger, "handlers", funcName, "unexpected error", gin.H{"path": c.FullPath()}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
