package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-event-payments/app/factory"
	"github.com/vibast-solutions/ms-go-event-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-event-payments/app/service"
	"github.com/vibast-solutions/ms-go-event-payments/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	env            string
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService, env string) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		env:            env,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) CreatePayment(ctx echo.Context) error {
	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	item, err := c.paymentService.CreatePayment(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, service.ErrDuplicateTransaction):
			return c.writeError(ctx, http.StatusConflict, err.Error(), nil)
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Payment settlement failed")
			return c.writeError(ctx, http.StatusInternalServerError, "payment processing failed", err)
		}
	}

	return ctx.JSON(http.StatusCreated, &types.PaymentEnvelopeResponse{
		Success: true,
		Message: "payment processed successfully",
		Data:    mapper.PaymentToResponse(item),
	})
}

func (c *PaymentController) CreateBatchPayments(ctx echo.Context) error {
	req, err := types.NewCreateBatchPaymentsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	items, err := c.paymentService.CreateBatchPayments(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, service.ErrDuplicateTransaction):
			return c.writeError(ctx, http.StatusConflict, err.Error(), nil)
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Batch payment insert failed")
			return c.writeError(ctx, http.StatusInternalServerError, "batch payment insert failed", err)
		}
	}

	return ctx.JSON(http.StatusCreated, &types.PaymentListResponse{
		Success: true,
		Count:   len(items),
		Data:    mapper.PaymentsToResponse(items),
	})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found", nil)
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "failed to fetch payment", err)
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{
		Success: true,
		Data:    mapper.PaymentToResponse(item),
	})
}

func (c *PaymentController) ListUserPayments(ctx echo.Context) error {
	req, err := types.NewListUserPaymentsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	items, err := c.paymentService.ListUserPayments(ctx.Request().Context(), req.UserID)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List user payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "failed to fetch payments", err)
	}

	return ctx.JSON(http.StatusOK, &types.PaymentListResponse{
		Success: true,
		Count:   len(items),
		Data:    mapper.PaymentsToResponse(items),
	})
}

// writeError shapes every error response as {success:false, message}. The
// underlying cause is attached only in development mode; raw provider and
// driver text never leaks otherwise.
func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string, cause error) error {
	body := &types.ErrorResponse{Success: false, Message: message}
	if cause != nil && c.env == "development" {
		body.Error = cause.Error()
	}
	return ctx.JSON(statusCode, body)
}
