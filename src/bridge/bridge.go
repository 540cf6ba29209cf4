package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"valueinvestor/src/model"
)

// OrderRequest is one buy order. ReferencePrice is the last quoted price; simulated fills use it.
type OrderRequest struct {
	Symbol         string
	Quantity       decimal.Decimal
	Notional       decimal.Decimal
	ReferencePrice decimal.NullDecimal
}

func (r OrderRequest) validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity %s for %s", ErrInvalidOrder, r.Quantity, r.Symbol)
	}
	return nil
}

// BrokerPosition is the broker's view of a holding, used when reconciling unknown outcomes.
type BrokerPosition struct {
	Symbol       string
	Quantity     decimal.Decimal
	AveragePrice decimal.NullDecimal
}

// Bridge turns an order into an OrderResult. SIMULATION never leaves the process; LIVE
// invokes the broker adapter once per call and never retries.
type Bridge struct {
	cfg    Config
	logger *logrus.Entry
	newID  func() string
}

func New(cfg Config, logger *logrus.Entry) *Bridge {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bridge{
		cfg:    cfg,
		logger: logger.WithField("component", "bridge"),
		newID:  uuid.NewString,
	}
}

func (b *Bridge) Execute(ctx context.Context, req OrderRequest, mode model.TradingMode) (model.OrderResult, error) {
	if err := req.validate(); err != nil {
		return model.OrderResult{}, err
	}

	log := b.logger.WithFields(logrus.Fields{
		"symbol":   req.Symbol,
		"quantity": req.Quantity.String(),
		"mode":     mode,
	})

	if !mode.IsLive() {
		result := b.simulate(req)
		log.WithField("status", result.Status).Info("simulated order")
		return result, nil
	}

	result, err := b.placeOrder(ctx, req)
	if err != nil {
		log.WithError(err).Error("broker adapter call failed")
		return model.OrderResult{}, err
	}

	log.WithFields(logrus.Fields{
		"status":  result.Status,
		"message": result.Message,
	}).Info("broker adapter returned")

	return result, nil
}

// Probe reports whether the adapter answers right now. It is advisory only.
func (b *Bridge) Probe(ctx context.Context, mode model.TradingMode) bool {
	if !mode.IsLive() {
		return true
	}
	if err := b.probe(ctx); err != nil {
		b.logger.WithError(err).Warn("broker adapter probe failed")
		return false
	}
	return true
}

func (b *Bridge) simulate(req OrderRequest) model.OrderResult {
	if !req.ReferencePrice.Valid || !req.ReferencePrice.Decimal.IsPositive() {
		return model.OrderResult{
			Success: false,
			Status:  model.OrderStatusRejected,
			Message: "simulated: no quoted price to fill against",
		}
	}

	orderID := "sim-" + b.newID()
	return model.OrderResult{
		Success:        true,
		OrderID:        &orderID,
		Message:        "simulated fill at last quoted price",
		Status:         model.OrderStatusFilled,
		FilledQuantity: decimal.NewNullDecimal(req.Quantity),
		FilledPrice:    req.ReferencePrice,
	}
}
