package engine

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrNeedsMoreThanZero       = errors.New("engine: amount must be greater than zero")
	ErrTransferFailed          = errors.New("engine: collateral transfer failed")
	ErrMintFailed              = errors.New("engine: synthetic mint failed")
	ErrBurnFailed              = errors.New("engine: synthetic burn failed")
	ErrHealthFactorOk          = errors.New("engine: health factor not below minimum")
	ErrHealthFactorStillBroken = errors.New("engine: health factor not restored above target")
	ErrUnauthorized            = errors.New("engine: caller is not the governance controller")
	ErrReentrancyDetected      = errors.New("engine: reentrant call rejected")
	ErrDuplicateOperation      = errors.New("engine: duplicate operation")
	ErrUnknownOperation        = errors.New("engine: unknown operation type")
	ErrPriceUpdateIgnored      = errors.New("engine: price update superseded or invalid")
)

// BreaksHealthFactorError reports the health factor an operation would leave
// the caller's position at, when that value is below the minimum.
type BreaksHealthFactorError struct {
	HealthFactor *big.Int
}

func (e *BreaksHealthFactorError) Error() string {
	return fmt.Sprintf("engine: operation breaks health factor (hf=%s)", e.HealthFactor.String())
}
