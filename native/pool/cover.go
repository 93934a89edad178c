package pool

import "math/big"

// addCoverAssets increases the cover balance, rejecting any amount that would
// push it past MaxLiquidity. The cover is left untouched on failure.
func addCoverAssets(c *Cover, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	next := new(big.Int).Add(c.Assets, amount)
	if c.MaxLiquidity.Sign() > 0 && next.Cmp(c.MaxLiquidity) > 0 {
		return ErrCoverCapExceeded
	}
	c.Assets = next
	return nil
}

// coverCapacity reports how much more the cover can hold before hitting its
// cap. A zero MaxLiquidity means uncapped.
func coverCapacity(c *Cover) *big.Int {
	if c.MaxLiquidity.Sign() == 0 {
		return nil
	}
	capacity := new(big.Int).Sub(c.MaxLiquidity, c.Assets)
	if capacity.Sign() < 0 {
		return big.NewInt(0)
	}
	return capacity
}

// coverLoss debits the cover by up to its current balance and records the
// absorbed amount against the recovery high-water mark. Returns the absorbed
// portion.
func coverLoss(c *Cover, amount *big.Int) *big.Int {
	absorbed := minBigInt(amount, c.Assets)
	if absorbed.Sign() <= 0 {
		return big.NewInt(0)
	}
	c.Assets = new(big.Int).Sub(c.Assets, absorbed)
	c.Loss = new(big.Int).Add(c.Loss, absorbed)
	return absorbed
}

// recoverCoverLoss credits the cover by up to its outstanding recorded loss,
// so recovery can never lift the balance above its pre-loss level. Returns
// the recovered portion.
func recoverCoverLoss(c *Cover, amount *big.Int) *big.Int {
	recovered := minBigInt(amount, c.Loss)
	if recovered.Sign() <= 0 {
		return big.NewInt(0)
	}
	c.Assets = new(big.Int).Add(c.Assets, recovered)
	c.Loss = new(big.Int).Sub(c.Loss, recovered)
	return recovered
}
