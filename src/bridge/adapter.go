package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"valueinvestor/src/model"
)

const (
	actionOrder    = "order"
	actionProbe    = "probe"
	actionPosition = "position"

	maxStderr = 2048
)

type adapterRequest struct {
	Action   string            `json:"action"`
	Symbol   string            `json:"symbol,omitempty"`
	Quantity string            `json:"quantity,omitempty"`
	Mode     model.TradingMode `json:"mode"`
}

type adapterOrderResponse struct {
	Success        *bool               `json:"success"`
	OrderID        *string             `json:"orderId"`
	Message        string              `json:"message"`
	Status         model.OrderStatus   `json:"status"`
	FilledQuantity decimal.NullDecimal `json:"filledQuantity"`
	FilledPrice    decimal.NullDecimal `json:"filledPrice"`
}

type adapterPositionResponse struct {
	Symbol       string              `json:"symbol"`
	Quantity     decimal.NullDecimal `json:"quantity"`
	AveragePrice decimal.NullDecimal `json:"averagePrice"`
}

func (b *Bridge) placeOrder(ctx context.Context, req OrderRequest) (model.OrderResult, error) {
	out, err := b.invoke(ctx, adapterRequest{
		Action:   actionOrder,
		Symbol:   req.Symbol,
		Quantity: req.Quantity.String(),
		Mode:     model.TradingModeLive,
	}, b.cfg.Timeout)
	if err != nil {
		err.Symbol = req.Symbol
		if err.Kind != ExecutionProtocolError || out == nil {
			return model.OrderResult{}, err
		}
		// a non-zero exit that still carries a well-formed result is a normal outcome
		if result, perr := parseOrderResult(out); perr == nil {
			return result, nil
		}
		return model.OrderResult{}, err
	}

	result, perr := parseOrderResult(out)
	if perr != nil {
		return model.OrderResult{}, &Error{Kind: ExecutionProtocolError, Symbol: req.Symbol, Err: perr}
	}
	return result, nil
}

func (b *Bridge) probe(ctx context.Context) error {
	out, err := b.invoke(ctx, adapterRequest{Action: actionProbe, Mode: model.TradingModeLive}, b.cfg.ProbeTimeout)
	if err != nil {
		return err
	}
	var resp struct {
		Success bool `json:"success"`
	}
	if jerr := decodeStrict(out, &resp); jerr != nil {
		return &Error{Kind: ExecutionProtocolError, Err: jerr}
	}
	if !resp.Success {
		return &Error{Kind: ExecutionUnavailable, Err: errors.New("adapter reported not connected")}
	}
	return nil
}

// QueryPosition asks the broker what it holds for symbol.
func (b *Bridge) QueryPosition(ctx context.Context, symbol string) (BrokerPosition, error) {
	out, err := b.invoke(ctx, adapterRequest{Action: actionPosition, Symbol: symbol, Mode: model.TradingModeLive}, b.cfg.Timeout)
	if err != nil {
		err.Symbol = symbol
		return BrokerPosition{}, err
	}

	var resp adapterPositionResponse
	if jerr := decodeStrict(out, &resp); jerr != nil {
		return BrokerPosition{}, &Error{Kind: ExecutionProtocolError, Symbol: symbol, Err: jerr}
	}
	if resp.Symbol != "" && !strings.EqualFold(resp.Symbol, symbol) {
		return BrokerPosition{}, &Error{Kind: ExecutionProtocolError, Symbol: symbol,
			Err: fmt.Errorf("adapter answered for %q", resp.Symbol)}
	}

	qty := decimal.Zero
	if resp.Quantity.Valid {
		qty = resp.Quantity.Decimal
	}
	if qty.IsNegative() {
		return BrokerPosition{}, &Error{Kind: ExecutionProtocolError, Symbol: symbol,
			Err: fmt.Errorf("negative broker quantity %s", qty)}
	}

	return BrokerPosition{Symbol: symbol, Quantity: qty, AveragePrice: resp.AveragePrice}, nil
}

// invoke runs the adapter once. On a non-zero exit the captured stdout is returned alongside
// the error so the caller can still read an explicit rejection.
func (b *Bridge) invoke(ctx context.Context, req adapterRequest, timeout time.Duration) ([]byte, *Error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: ExecutionProtocolError, Err: err}
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(callCtx, b.cfg.AdapterPath)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(),
		"BROKER_ENDPOINT="+b.cfg.Endpoint,
		"BROKER_API_KEY="+b.cfg.APIKey,
		"BROKER_API_SECRET="+b.cfg.APISecret,
	)
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()
	if runErr == nil {
		return stdout.Bytes(), nil
	}

	errOut := truncate(stderr.String(), maxStderr)

	if isUnavailable(runErr) {
		return nil, &Error{Kind: ExecutionUnavailable, Err: runErr, Stderr: errOut}
	}
	if callCtx.Err() != nil {
		return nil, &Error{Kind: ExecutionTimeout, Err: fmt.Errorf("no answer within %s: %w", timeout, callCtx.Err()), Stderr: errOut}
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return stdout.Bytes(), &Error{
			Kind:   ExecutionProtocolError,
			Err:    fmt.Errorf("adapter exited with code %d", exitErr.ExitCode()),
			Stderr: errOut,
		}
	}

	return nil, &Error{Kind: ExecutionProtocolError, Err: runErr, Stderr: errOut}
}

func isUnavailable(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC)
}

func parseOrderResult(out []byte) (model.OrderResult, error) {
	var resp adapterOrderResponse
	if err := decodeStrict(out, &resp); err != nil {
		return model.OrderResult{}, err
	}

	if resp.Success == nil {
		return model.OrderResult{}, errors.New("result is missing success")
	}
	if !resp.Status.Valid() {
		return model.OrderResult{}, fmt.Errorf("unknown order status %q", resp.Status)
	}

	switch resp.Status {
	case model.OrderStatusFilled:
		if !*resp.Success {
			return model.OrderResult{}, errors.New("filled order reported as unsuccessful")
		}
		if !resp.FilledQuantity.Valid || !resp.FilledQuantity.Decimal.IsPositive() ||
			!resp.FilledPrice.Valid || !resp.FilledPrice.Decimal.IsPositive() {
			return model.OrderResult{}, errors.New("filled order without positive fill quantity and price")
		}
	case model.OrderStatusRejected, model.OrderStatusError:
		if *resp.Success {
			return model.OrderResult{}, fmt.Errorf("%s order reported as successful", resp.Status)
		}
	}

	return model.OrderResult{
		Success:        *resp.Success,
		OrderID:        resp.OrderID,
		Message:        resp.Message,
		Status:         resp.Status,
		FilledQuantity: resp.FilledQuantity,
		FilledPrice:    resp.FilledPrice,
	}, nil
}

// decodeStrict accepts exactly one JSON document, surrounded only by whitespace.
func decodeStrict(out []byte, v any) error {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return errors.New("empty adapter output")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode adapter output: %w", err)
	}
	if dec.More() {
		return errors.New("trailing data after adapter result")
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
