package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeePolicy_Fees(t *testing.T) {
	p := DefaultFeePolicy()

	tip, feeCap := p.Fees(big.NewInt(10_000_000_000))
	assert.Equal(t, big.NewInt(2_000_000_000), tip)
	assert.Equal(t, big.NewInt(22_000_000_000), feeCap)

	// Missing base fee (pre-London chains) falls back to tip only
	tip, feeCap = p.Fees(nil)
	assert.Equal(t, tip, feeCap)

	// Fees must not alias the policy tip
	tip.SetInt64(0)
	assert.Equal(t, big.NewInt(2_000_000_000), p.PriorityTip)
}

func TestFeePolicy_GasLimit(t *testing.T) {
	p := DefaultFeePolicy()
	assert.Equal(t, uint64(120_000), p.GasLimit(100_000))
	assert.Equal(t, uint64(0), p.GasLimit(0))

	p.GasLimitBufferPercent = 0
	assert.Equal(t, uint64(21_000), p.GasLimit(21_000))
}
