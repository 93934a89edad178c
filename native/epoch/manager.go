package epoch

import (
	"math/big"

	"tranchepool/events"
	"tranchepool/native/common"
	"tranchepool/native/pool"
)

// LiquiditySource reports how much pool liquidity an epoch close may pay out.
// The composing context decides the policy (cash on hand, a reserve ratio);
// the manager only consumes the number.
type LiquiditySource interface {
	AvailableLiquidity() (*big.Int, error)
}

// Manager closes epochs: it seals each tranche's open redemption summary,
// settles as many requested shares as liquidity allows, burns them, debits
// the pool and opens the next epoch. Senior requests are honored before
// junior ones, mirroring the loss-seniority order; the order is configurable
// because the underlying split rule is policy, not law.
type Manager struct {
	state     engineState
	emitter   events.Emitter
	pauses    common.PauseView
	registry  PoolLedgerRegistry
	custody   Custody
	liquidity LiquiditySource
	poolID    string
	order     []pool.Tranche
}

// NewManager constructs an epoch manager with the senior-first settlement
// order.
func NewManager() *Manager {
	return &Manager{
		emitter: events.NoopEmitter{},
		order:   []pool.Tranche{pool.Senior, pool.Junior},
	}
}

// SetState wires the manager to the external persistence layer.
func (m *Manager) SetState(state engineState) { m.state = state }

// SetPauses wires the administrative pause view.
func (m *Manager) SetPauses(p common.PauseView) { m.pauses = p }

// SetRegistry wires the pool ledger lookup and owning pool.
func (m *Manager) SetRegistry(registry PoolLedgerRegistry, poolID string) {
	m.registry = registry
	m.poolID = poolID
}

// SetCustody wires the value-transfer collaborator.
func (m *Manager) SetCustody(c Custody) { m.custody = c }

// SetLiquiditySource wires the liquidity policy consulted at close time.
func (m *Manager) SetLiquiditySource(src LiquiditySource) { m.liquidity = src }

// SetSeniorFirst selects which tranche's requests draw liquidity first.
func (m *Manager) SetSeniorFirst(seniorFirst bool) {
	if seniorFirst {
		m.order = []pool.Tranche{pool.Senior, pool.Junior}
		return
	}
	m.order = []pool.Tranche{pool.Junior, pool.Senior}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

func (m *Manager) emit(evt events.Event) {
	if m.emitter != nil {
		m.emitter.Emit(evt)
	}
}

func (m *Manager) ledger() (PoolLedger, error) {
	if m.registry == nil {
		return nil, ErrNilPool
	}
	return m.registry.Ledger(m.poolID)
}

func (m *Manager) loadVault(tranche pool.Tranche) (*VaultState, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	state, err := m.state.GetVault(tranche)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &VaultState{Tranche: tranche}
	} else {
		state = state.Clone()
	}
	state.ensureDefaults()
	return state, nil
}

// CloseEpoch settles the open epoch for every tranche and opens the next
// one. The precondition is strict: a current summary already sealed means a
// prior settlement never completed, and the close aborts rather than waits.
func (m *Manager) CloseEpoch() (*CloseResult, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(m.pauses, moduleName); err != nil {
		return nil, err
	}
	ledger, err := m.ledger()
	if err != nil {
		return nil, err
	}
	remaining := big.NewInt(0)
	if m.liquidity != nil {
		available, err := m.liquidity.AvailableLiquidity()
		if err != nil {
			return nil, err
		}
		remaining = cloneBigInt(available)
	}

	result := &CloseResult{LiquidityUsed: big.NewInt(0)}
	for _, tranche := range m.order {
		settlement, err := m.closeTranche(ledger, tranche, remaining)
		if err != nil {
			return nil, err
		}
		remaining.Sub(remaining, settlement.AmountProcessed)
		result.LiquidityUsed.Add(result.LiquidityUsed, settlement.AmountProcessed)
		result.Settlements = append(result.Settlements, settlement)
	}
	m.emit(newEpochClosedEvent(result))
	return result, nil
}

func (m *Manager) closeTranche(ledger PoolLedger, tranche pool.Tranche, available *big.Int) (*TrancheSettlement, error) {
	vault, err := m.loadVault(tranche)
	if err != nil {
		return nil, err
	}
	summary, err := m.state.GetSummary(tranche, vault.CurrentEpoch)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		summary = &RedemptionSummary{Tranche: tranche, EpochID: vault.CurrentEpoch}
	} else {
		summary = summary.Clone()
	}
	summary.ensureDefaults()
	if summary.Sealed {
		return nil, ErrEpochInProgress
	}

	assets, err := ledger.TrancheAssets(tranche)
	if err != nil {
		return nil, err
	}

	pending := cloneBigInt(vault.EscrowedShares)
	// Share price is assets over the non-escrowed supply. When every share is
	// escrowed that denominator vanishes and the full supply prices the
	// payout instead.
	denominator := new(big.Int).Sub(vault.TotalShares, vault.EscrowedShares)
	if denominator.Sign() == 0 {
		denominator = cloneBigInt(vault.TotalShares)
	}

	processed := big.NewInt(0)
	amount := big.NewInt(0)
	if pending.Sign() > 0 && assets.Sign() > 0 && denominator.Sign() > 0 {
		affordable := mulDiv(available, denominator, assets)
		processed = minBigInt(pending, affordable)
		amount = mulDiv(processed, assets, denominator)
		amount = minBigInt(amount, assets)
	}

	if amount.Sign() > 0 {
		if err := ledger.ReduceTrancheAssets(tranche, amount); err != nil {
			return nil, err
		}
		if m.custody != nil {
			if err := m.custody.ReserveForPayout(tranche, amount); err != nil {
				return nil, err
			}
		}
	}

	summary.TotalSharesRequested = pending
	summary.TotalSharesProcessed = processed
	summary.TotalAmountProcessed = amount
	summary.Sealed = true

	vault.TotalShares = new(big.Int).Sub(vault.TotalShares, processed)
	vault.EscrowedShares = new(big.Int).Sub(vault.EscrowedShares, processed)
	vault.CurrentEpoch++

	// Unprocessed shares stay escrowed and seed the next epoch's demand.
	next := &RedemptionSummary{
		Tranche:              tranche,
		EpochID:              vault.CurrentEpoch,
		TotalSharesRequested: cloneBigInt(vault.EscrowedShares),
	}
	next.ensureDefaults()

	if err := m.state.PutSummary(summary); err != nil {
		return nil, err
	}
	if err := m.state.PutSummary(next); err != nil {
		return nil, err
	}
	if err := m.state.PutVault(vault); err != nil {
		return nil, err
	}

	return &TrancheSettlement{
		Tranche:         tranche,
		EpochID:         summary.EpochID,
		SharesRequested: pending,
		SharesProcessed: processed,
		AmountProcessed: amount,
	}, nil
}

// Summary returns the sealed or open redemption summary for one tranche and
// epoch id.
func (m *Manager) Summary(tranche pool.Tranche, epochID uint64) (*RedemptionSummary, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	summary, err := m.state.GetSummary(tranche, epochID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, nil
	}
	summary = summary.Clone()
	summary.ensureDefaults()
	return summary, nil
}
