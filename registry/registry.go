package registry

import (
	"errors"
	"math/big"
	"sync"

	"tranchepool/native/credit"
	"tranchepool/native/epoch"
	"tranchepool/native/pool"
	"tranchepool/observability"
)

// ErrPoolNotFound is returned when an identifier resolves to no registered
// pool.
var ErrPoolNotFound = errors.New("registry: pool not found")

// Registry resolves pool identifiers to their engines. Components hold the
// opaque identifier and this lookup instead of direct references, which keeps
// the pool, credit and redemption modules free of ownership cycles.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*pool.Engine
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{pools: make(map[string]*pool.Engine)}
}

// Register adds or replaces the engine for a pool identifier.
func (r *Registry) Register(poolID string, engine *pool.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[poolID] = engine
}

func (r *Registry) engine(poolID string) (*pool.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.pools[poolID]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return engine, nil
}

// Distributor resolves the pool's profit/loss distribution surface for the
// credit module.
func (r *Registry) Distributor(poolID string) (credit.Distributor, error) {
	engine, err := r.engine(poolID)
	if err != nil {
		return nil, err
	}
	return distributor{engine: engine}, nil
}

// Ledger resolves the pool's tranche asset surface for the redemption module.
func (r *Registry) Ledger(poolID string) (epoch.PoolLedger, error) {
	engine, err := r.engine(poolID)
	if err != nil {
		return nil, err
	}
	return ledger{engine: engine}, nil
}

// distributor narrows the pool engine to the credit module's contract,
// discarding the distribution breakdowns the credit side has no use for. The
// breakdowns feed the settlement metrics before they are dropped.
type distributor struct {
	engine *pool.Engine
}

func (d distributor) DistributeProfit(amount *big.Int) error {
	dist, err := d.engine.DistributeProfit(amount)
	if err != nil {
		return err
	}
	metrics := observability.Settlement()
	metrics.ObserveProfit("senior", dist.Senior)
	metrics.ObserveProfit("junior", dist.Junior)
	metrics.ObserveProfit("fees", dist.Fees)
	for _, share := range dist.Covers {
		metrics.ObserveProfit("cover", share.Amount)
	}
	return nil
}

func (d distributor) DistributeLoss(amount *big.Int) (*big.Int, error) {
	dist, err := d.engine.DistributeLoss(amount)
	if err != nil {
		return nil, err
	}
	absorbed := new(big.Int).Sub(dist.Total, dist.Shortfall)
	observability.Settlement().ObserveLoss(absorbed, dist.Shortfall)
	return dist.Shortfall, nil
}

func (d distributor) DistributeLossRecovery(amount *big.Int) (*big.Int, error) {
	dist, err := d.engine.DistributeLossRecovery(amount)
	if err != nil {
		return nil, err
	}
	applied := new(big.Int).Sub(dist.Total, dist.Surplus)
	observability.Settlement().ObserveRecovery(applied)
	return dist.Surplus, nil
}

type ledger struct {
	engine *pool.Engine
}

func (l ledger) TrancheAssets(tranche pool.Tranche) (*big.Int, error) {
	return l.engine.TrancheAssets(tranche)
}

func (l ledger) DepositTrancheAssets(tranche pool.Tranche, amount *big.Int) error {
	return l.engine.DepositTrancheAssets(tranche, amount)
}

func (l ledger) ReduceTrancheAssets(tranche pool.Tranche, amount *big.Int) error {
	return l.engine.ReduceTrancheAssets(tranche, amount)
}

// PoolLiquidity derives redemption liquidity from the pool's tranche assets,
// scaled by a basis-point haircut so operators can hold part of the pool back
// from any single epoch close.
type PoolLiquidity struct {
	engine *pool.Engine
	bps    uint64
}

// NewPoolLiquidity builds a liquidity source over the pool engine. A zero or
// out-of-range bps means the full pool value is available.
func NewPoolLiquidity(engine *pool.Engine, bps uint64) *PoolLiquidity {
	if bps == 0 || bps > 10_000 {
		bps = 10_000
	}
	return &PoolLiquidity{engine: engine, bps: bps}
}

func (p *PoolLiquidity) AvailableLiquidity() (*big.Int, error) {
	senior, err := p.engine.TrancheAssets(pool.Senior)
	if err != nil {
		return nil, err
	}
	junior, err := p.engine.TrancheAssets(pool.Junior)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Add(senior, junior)
	total.Mul(total, new(big.Int).SetUint64(p.bps))
	return total.Quo(total, big.NewInt(10_000)), nil
}
