package pool

import (
	"math/big"

	"tranchepool/events"
	"tranchepool/native/common"
)

const moduleName = "pool"

type engineState interface {
	GetPool() (*PoolState, error)
	PutPool(*PoolState) error
	// ListCovers returns every configured cover ordered by ascending rank.
	ListCovers() ([]*Cover, error)
	PutCover(*Cover) error
}

// Engine owns the tranche and cover ledger and fans payment proceeds, losses
// and recoveries out across it. All mutations of tranche or cover balances go
// through this type; the waterfall is computed against an in-memory snapshot
// and persisted only once every split has been decided.
type Engine struct {
	state          engineState
	emitter        events.Emitter
	pauses         common.PauseView
	policy         TranchesPolicy
	fees           *FeeManager
	coverRewardBps uint64
}

// NewEngine constructs a pool engine with the given profit-split policy and
// fee schedule.
func NewEngine(policy TranchesPolicy, schedule FeeSchedule) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		policy:  policy,
		fees:    NewFeeManager(schedule),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the administrative pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetCoverRewardBps configures the share of the junior profit allocation
// routed into the first-loss covers as a retention incentive.
func (e *Engine) SetCoverRewardBps(bps uint64) {
	if bps > 10_000 {
		bps = 10_000
	}
	e.coverRewardBps = bps
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) loadLedger() (*PoolState, []*Cover, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	pool, err := e.state.GetPool()
	if err != nil {
		return nil, nil, err
	}
	if pool == nil {
		pool = &PoolState{}
	}
	pool = pool.Clone()
	pool.ensureDefaults()

	stored, err := e.state.ListCovers()
	if err != nil {
		return nil, nil, err
	}
	covers := make([]*Cover, 0, len(stored))
	for _, c := range stored {
		clone := c.Clone()
		clone.ensureDefaults()
		covers = append(covers, clone)
	}
	return pool, covers, nil
}

func (e *Engine) persistLedger(pool *PoolState, covers []*Cover) error {
	for _, c := range covers {
		if err := e.state.PutCover(c); err != nil {
			return err
		}
	}
	return e.state.PutPool(pool)
}

func (e *Engine) guardEnabled(pool *PoolState) error {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !pool.Enabled {
		return ErrPoolDisabled
	}
	return nil
}

// Enable flips the administrative gate open.
func (e *Engine) Enable() error { return e.setEnabled(true) }

// Disable halts every profit, loss and drawdown-facing operation.
func (e *Engine) Disable() error { return e.setEnabled(false) }

func (e *Engine) setEnabled(enabled bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	pool, err := e.state.GetPool()
	if err != nil {
		return err
	}
	if pool == nil {
		pool = &PoolState{}
	}
	pool = pool.Clone()
	pool.ensureDefaults()
	pool.Enabled = enabled
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(newEnabledEvent(enabled))
	return nil
}

// Snapshot returns deep copies of the pool state and covers for read-only
// consumers (pricing, gateway views, invariant checks).
func (e *Engine) Snapshot() (*PoolState, []*Cover, error) {
	return e.loadLedger()
}

// TotalPoolValue is the sum of both tranche balances and every cover balance.
func (e *Engine) TotalPoolValue() (*big.Int, error) {
	pool, covers, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Add(pool.SeniorAssets, pool.JuniorAssets)
	for _, c := range covers {
		total.Add(total, c.Assets)
	}
	return total, nil
}

// DistributeProfit runs the profit waterfall: the fee manager takes its cut,
// the tranches policy splits the net between senior and junior, and a
// configured share of the junior allocation is routed into the covers (cap
// overflow falls back to junior).
func (e *Engine) DistributeProfit(amount *big.Int) (*ProfitDistribution, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool, covers, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	if err := e.guardEnabled(pool); err != nil {
		return nil, err
	}

	fees, net := e.fees.Apply(amount)
	senior, junior := e.policy.DistProfitToTranches(net, TrancheSnapshot{
		SeniorAssets: cloneBigInt(pool.SeniorAssets),
		JuniorAssets: cloneBigInt(pool.JuniorAssets),
	})

	dist := &ProfitDistribution{
		Gross:  cloneBigInt(amount),
		Fees:   fees,
		Senior: senior,
		Junior: junior,
	}

	// Cover incentive comes out of the junior share, filled in rank order up
	// to each cover's cap. Whatever cannot be placed stays with junior.
	reward := mulBps(junior, e.coverRewardBps)
	if reward.Sign() > 0 && len(covers) > 0 {
		remaining := reward
		for _, c := range covers {
			if remaining.Sign() == 0 {
				break
			}
			alloc := cloneBigInt(remaining)
			if capacity := coverCapacity(c); capacity != nil {
				alloc = minBigInt(alloc, capacity)
			}
			if alloc.Sign() <= 0 {
				continue
			}
			c.Assets = new(big.Int).Add(c.Assets, alloc)
			remaining = new(big.Int).Sub(remaining, alloc)
			dist.Covers = append(dist.Covers, CoverShare{CoverID: c.ID, Amount: alloc})
		}
		placed := new(big.Int).Sub(reward, remaining)
		dist.Junior = new(big.Int).Sub(dist.Junior, placed)
	}

	pool.SeniorAssets = new(big.Int).Add(pool.SeniorAssets, dist.Senior)
	pool.JuniorAssets = new(big.Int).Add(pool.JuniorAssets, dist.Junior)
	pool.AccruedFees = new(big.Int).Add(pool.AccruedFees, fees)

	if err := e.persistLedger(pool, covers); err != nil {
		return nil, err
	}
	e.emit(newProfitDistributedEvent(dist))
	return dist, nil
}

// DistributeLoss applies a loss through the absorption order: covers by
// ascending rank, then the junior tranche, then senior. No balance is driven
// below zero; any excess past total pool capital is reported as a shortfall
// on the returned distribution and in the emitted event.
func (e *Engine) DistributeLoss(amount *big.Int) (*LossDistribution, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool, covers, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	if err := e.guardEnabled(pool); err != nil {
		return nil, err
	}

	dist := &LossDistribution{
		Total:  cloneBigInt(amount),
		Junior: big.NewInt(0),
		Senior: big.NewInt(0),
	}
	remaining := cloneBigInt(amount)

	for _, c := range covers {
		if remaining.Sign() == 0 {
			break
		}
		absorbed := coverLoss(c, remaining)
		if absorbed.Sign() > 0 {
			remaining.Sub(remaining, absorbed)
			dist.Covers = append(dist.Covers, CoverShare{CoverID: c.ID, Amount: absorbed})
		}
	}

	if remaining.Sign() > 0 {
		dist.Junior = minBigInt(remaining, pool.JuniorAssets)
		pool.JuniorAssets = new(big.Int).Sub(pool.JuniorAssets, dist.Junior)
		pool.JuniorLoss = new(big.Int).Add(pool.JuniorLoss, dist.Junior)
		remaining.Sub(remaining, dist.Junior)
	}
	if remaining.Sign() > 0 {
		dist.Senior = minBigInt(remaining, pool.SeniorAssets)
		pool.SeniorAssets = new(big.Int).Sub(pool.SeniorAssets, dist.Senior)
		pool.SeniorLoss = new(big.Int).Add(pool.SeniorLoss, dist.Senior)
		remaining.Sub(remaining, dist.Senior)
	}
	dist.Shortfall = remaining

	if err := e.persistLedger(pool, covers); err != nil {
		return nil, err
	}
	e.emit(newLossDistributedEvent(dist))
	return dist, nil
}

// DistributeLossRecovery reverses a prior loss in seniority order: the senior
// tranche is restored first, then junior, then covers from the highest rank
// down. Each balance is only restored up to its recorded loss; anything
// beyond every recorded loss is returned as surplus, untouched, for the
// caller to redistribute as profit.
func (e *Engine) DistributeLossRecovery(amount *big.Int) (*RecoveryDistribution, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool, covers, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	if err := e.guardEnabled(pool); err != nil {
		return nil, err
	}

	dist := &RecoveryDistribution{
		Total:  cloneBigInt(amount),
		Senior: big.NewInt(0),
		Junior: big.NewInt(0),
	}
	remaining := cloneBigInt(amount)

	dist.Senior = minBigInt(remaining, pool.SeniorLoss)
	pool.SeniorAssets = new(big.Int).Add(pool.SeniorAssets, dist.Senior)
	pool.SeniorLoss = new(big.Int).Sub(pool.SeniorLoss, dist.Senior)
	remaining.Sub(remaining, dist.Senior)

	if remaining.Sign() > 0 {
		dist.Junior = minBigInt(remaining, pool.JuniorLoss)
		pool.JuniorAssets = new(big.Int).Add(pool.JuniorAssets, dist.Junior)
		pool.JuniorLoss = new(big.Int).Sub(pool.JuniorLoss, dist.Junior)
		remaining.Sub(remaining, dist.Junior)
	}

	for i := len(covers) - 1; i >= 0 && remaining.Sign() > 0; i-- {
		recovered := recoverCoverLoss(covers[i], remaining)
		if recovered.Sign() > 0 {
			remaining.Sub(remaining, recovered)
			dist.Covers = append(dist.Covers, CoverShare{CoverID: covers[i].ID, Amount: recovered})
		}
	}
	dist.Surplus = remaining

	if err := e.persistLedger(pool, covers); err != nil {
		return nil, err
	}
	e.emit(newLossRecoveredEvent(dist))
	return dist, nil
}

// AddCoverAssets tops up a single cover from an external contribution.
// Amounts past MaxLiquidity are rejected with ErrCoverCapExceeded and leave
// the balance unchanged.
func (e *Engine) AddCoverAssets(coverID string, amount *big.Int) error {
	pool, covers, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := e.guardEnabled(pool); err != nil {
		return err
	}
	for _, c := range covers {
		if c.ID != coverID {
			continue
		}
		if err := addCoverAssets(c, amount); err != nil {
			return err
		}
		if err := e.state.PutCover(c); err != nil {
			return err
		}
		e.emit(newCoverDepositEvent(c.ID, amount))
		return nil
	}
	return ErrCoverNotFound
}

// TrancheAssets reports the current asset balance of one tranche.
func (e *Engine) TrancheAssets(tranche Tranche) (*big.Int, error) {
	if !tranche.Valid() {
		return nil, ErrUnknownTranche
	}
	pool, _, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	return pool.TrancheAssets(tranche), nil
}

// DepositTrancheAssets credits a tranche with fresh lender capital.
func (e *Engine) DepositTrancheAssets(tranche Tranche, amount *big.Int) error {
	if !tranche.Valid() {
		return ErrUnknownTranche
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, _, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := e.guardEnabled(pool); err != nil {
		return err
	}
	switch tranche {
	case Senior:
		pool.SeniorAssets = new(big.Int).Add(pool.SeniorAssets, amount)
	case Junior:
		pool.JuniorAssets = new(big.Int).Add(pool.JuniorAssets, amount)
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(newTrancheDepositEvent(tranche, amount))
	return nil
}

// ReduceTrancheAssets debits a tranche when redemption settlement pays
// capital out of the pool. Only the epoch manager calls this.
func (e *Engine) ReduceTrancheAssets(tranche Tranche, amount *big.Int) error {
	if !tranche.Valid() {
		return ErrUnknownTranche
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pool, _, err := e.loadLedger()
	if err != nil {
		return err
	}
	switch tranche {
	case Senior:
		if pool.SeniorAssets.Cmp(amount) < 0 {
			return ErrInsufficientLiquidity
		}
		pool.SeniorAssets = new(big.Int).Sub(pool.SeniorAssets, amount)
	case Junior:
		if pool.JuniorAssets.Cmp(amount) < 0 {
			return ErrInsufficientLiquidity
		}
		pool.JuniorAssets = new(big.Int).Sub(pool.JuniorAssets, amount)
	}
	return e.state.PutPool(pool)
}

// WithdrawProtocolFees releases accrued protocol fees to custody control.
func (e *Engine) WithdrawProtocolFees(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, _, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if pool.AccruedFees.Cmp(amount) < 0 {
		return ErrInsufficientFees
	}
	pool.AccruedFees = new(big.Int).Sub(pool.AccruedFees, amount)
	return e.state.PutPool(pool)
}
