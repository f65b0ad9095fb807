package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// FeePolicy computes EIP-1559 fees and gas limits.
type FeePolicy struct {
	// PriorityTip is the fixed tip paid to the block producer, in wei.
	PriorityTip *big.Int

	// FeeCapMultiplier scales the base fee when computing the fee cap.
	FeeCapMultiplier int64

	// GasLimitBufferPercent is added on top of the estimated gas.
	GasLimitBufferPercent uint64
}

// DefaultFeePolicy pays a 2 gwei tip, caps fees at twice the base fee plus the
// tip, and adds 20% to the gas estimate.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		PriorityTip:           big.NewInt(2 * params.GWei),
		FeeCapMultiplier:      2,
		GasLimitBufferPercent: 20,
	}
}

// Fees returns the tip cap and fee cap for the given base fee.
func (p FeePolicy) Fees(baseFee *big.Int) (tipCap, feeCap *big.Int) {
	tipCap = new(big.Int).Set(p.PriorityTip)
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	multiplier := p.FeeCapMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	feeCap = new(big.Int).Mul(baseFee, big.NewInt(multiplier))
	feeCap.Add(feeCap, tipCap)
	return tipCap, feeCap
}

// GasLimit pads an estimate with the configured buffer.
func (p FeePolicy) GasLimit(estimate uint64) uint64 {
	return estimate + estimate*p.GasLimitBufferPercent/100
}
