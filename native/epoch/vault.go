package epoch

import (
	"math/big"
	"strings"

	"tranchepool/events"
	"tranchepool/native/common"
	"tranchepool/native/pool"
)

const moduleName = "epoch"

type engineState interface {
	GetVault(tranche pool.Tranche) (*VaultState, error)
	PutVault(*VaultState) error
	GetLender(tranche pool.Tranche, lender string) (*LenderPosition, error)
	PutLender(*LenderPosition) error
	GetSummary(tranche pool.Tranche, epochID uint64) (*RedemptionSummary, error)
	PutSummary(*RedemptionSummary) error
}

// PoolLedger is the slice of the pool engine the redemption protocol needs.
// The concrete pool is resolved by identifier through the registry, keeping
// the modules acyclic.
type PoolLedger interface {
	TrancheAssets(tranche pool.Tranche) (*big.Int, error)
	DepositTrancheAssets(tranche pool.Tranche, amount *big.Int) error
	ReduceTrancheAssets(tranche pool.Tranche, amount *big.Int) error
}

// PoolLedgerRegistry resolves a pool identifier to its ledger.
type PoolLedgerRegistry interface {
	Ledger(poolID string) (PoolLedger, error)
}

// Custody abstracts the value-transfer collaborator for lender flows.
type Custody interface {
	CollectFromLender(lender string, amount *big.Int) error
	ReserveForPayout(tranche pool.Tranche, amount *big.Int) error
	PayToLender(lender string, amount *big.Int) error
}

// Vault is the share ledger for one tranche. It mints shares on deposit,
// escrows them on redemption requests, and pays settled entitlements out on
// disbursement. Settlement itself is the Manager's job.
type Vault struct {
	state    engineState
	emitter  events.Emitter
	pauses   common.PauseView
	registry PoolLedgerRegistry
	custody  Custody
	poolID   string
	tranche  pool.Tranche
}

// NewVault constructs a vault for the given tranche.
func NewVault(tranche pool.Tranche) *Vault {
	return &Vault{
		emitter: events.NoopEmitter{},
		tranche: tranche,
	}
}

// SetState wires the vault to the external persistence layer.
func (v *Vault) SetState(state engineState) { v.state = state }

// SetPauses wires the administrative pause view.
func (v *Vault) SetPauses(p common.PauseView) { v.pauses = p }

// SetRegistry wires the pool ledger lookup and owning pool.
func (v *Vault) SetRegistry(registry PoolLedgerRegistry, poolID string) {
	v.registry = registry
	v.poolID = poolID
}

// SetCustody wires the value-transfer collaborator.
func (v *Vault) SetCustody(c Custody) { v.custody = c }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// Tranche returns the tranche this vault administers.
func (v *Vault) Tranche() pool.Tranche { return v.tranche }

func (v *Vault) emit(evt events.Event) {
	if v.emitter != nil {
		v.emitter.Emit(evt)
	}
}

func (v *Vault) ledger() (PoolLedger, error) {
	if v.registry == nil {
		return nil, ErrNilPool
	}
	return v.registry.Ledger(v.poolID)
}

func (v *Vault) loadVault() (*VaultState, error) {
	if v == nil || v.state == nil {
		return nil, ErrNilState
	}
	state, err := v.state.GetVault(v.tranche)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &VaultState{Tranche: v.tranche}
	} else {
		state = state.Clone()
	}
	state.ensureDefaults()
	return state, nil
}

func (v *Vault) loadPosition(lender string) (*LenderPosition, error) {
	pos, err := v.state.GetLender(v.tranche, lender)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, nil
	}
	pos = pos.Clone()
	pos.ensureDefaults()
	return pos, nil
}

// foldPosition walks the lender's position forward across every sealed epoch
// since their last interaction, converting their pro-rata slice of each
// epoch's processed shares into withdrawable funds. Unprocessed shares stay
// escrowed and roll into the next epoch's pro-ration.
func (v *Vault) foldPosition(vault *VaultState, pos *LenderPosition) error {
	for id := pos.NextEpochToProcess; id < vault.CurrentEpoch; id++ {
		summary, err := v.state.GetSummary(v.tranche, id)
		if err != nil {
			return err
		}
		if summary == nil || !summary.Sealed {
			continue
		}
		summary = summary.Clone()
		summary.ensureDefaults()
		if summary.TotalSharesRequested.Sign() == 0 || summary.TotalSharesProcessed.Sign() == 0 {
			continue
		}
		if pos.SharesRequested.Sign() == 0 {
			continue
		}
		shares := mulDiv(pos.SharesRequested, summary.TotalSharesProcessed, summary.TotalSharesRequested)
		amount := mulDiv(shares, summary.TotalAmountProcessed, summary.TotalSharesProcessed)
		pos.SharesRequested = new(big.Int).Sub(pos.SharesRequested, shares)
		pos.Withdrawable = new(big.Int).Add(pos.Withdrawable, amount)
	}
	pos.NextEpochToProcess = vault.CurrentEpoch
	return nil
}

// Deposit mints shares for fresh lender capital at the tranche's current
// share price (one-to-one for the first deposit) and credits the pool's
// tranche balance. Returns the minted share count.
func (v *Vault) Deposit(lender string, amount *big.Int) (*big.Int, error) {
	if err := common.Guard(v.pauses, moduleName); err != nil {
		return nil, err
	}
	lender = strings.TrimSpace(lender)
	if lender == "" || amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	vault, err := v.loadVault()
	if err != nil {
		return nil, err
	}
	ledger, err := v.ledger()
	if err != nil {
		return nil, err
	}
	assets, err := ledger.TrancheAssets(v.tranche)
	if err != nil {
		return nil, err
	}

	shares := cloneBigInt(amount)
	if vault.TotalShares.Sign() > 0 && assets.Sign() > 0 {
		shares = mulDiv(amount, vault.TotalShares, assets)
	}
	if shares.Sign() == 0 {
		return nil, ErrInvalidAmount
	}

	pos, err := v.loadPosition(lender)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &LenderPosition{Lender: lender, Tranche: v.tranche}
		pos.ensureDefaults()
		pos.NextEpochToProcess = vault.CurrentEpoch
	} else if err := v.foldPosition(vault, pos); err != nil {
		return nil, err
	}

	if v.custody != nil {
		if err := v.custody.CollectFromLender(lender, amount); err != nil {
			return nil, err
		}
	}
	if err := ledger.DepositTrancheAssets(v.tranche, amount); err != nil {
		return nil, err
	}

	vault.TotalShares = new(big.Int).Add(vault.TotalShares, shares)
	pos.Shares = new(big.Int).Add(pos.Shares, shares)

	if err := v.state.PutLender(pos); err != nil {
		return nil, err
	}
	if err := v.state.PutVault(vault); err != nil {
		return nil, err
	}
	v.emit(newDepositEvent(v.tranche, lender, amount, shares))
	return shares, nil
}

// AddRedemptionRequest escrows shares from the lender's balance into the
// open epoch. Entitlement is not computed here; it is folded in lazily when
// the lender next interacts with the vault.
func (v *Vault) AddRedemptionRequest(lender string, shares *big.Int) error {
	if err := common.Guard(v.pauses, moduleName); err != nil {
		return err
	}
	if shares == nil || shares.Sign() <= 0 {
		return ErrInvalidAmount
	}
	vault, err := v.loadVault()
	if err != nil {
		return err
	}
	pos, err := v.loadPosition(lender)
	if err != nil {
		return err
	}
	if pos == nil {
		return ErrLenderNotFound
	}
	if err := v.foldPosition(vault, pos); err != nil {
		return err
	}
	if pos.Shares.Cmp(shares) < 0 {
		return ErrInsufficientShares
	}

	summary, err := v.state.GetSummary(v.tranche, vault.CurrentEpoch)
	if err != nil {
		return err
	}
	if summary == nil {
		summary = &RedemptionSummary{Tranche: v.tranche, EpochID: vault.CurrentEpoch}
	} else {
		summary = summary.Clone()
	}
	summary.ensureDefaults()
	if summary.Sealed {
		return ErrEpochInProgress
	}

	pos.Shares = new(big.Int).Sub(pos.Shares, shares)
	pos.SharesRequested = new(big.Int).Add(pos.SharesRequested, shares)
	vault.EscrowedShares = new(big.Int).Add(vault.EscrowedShares, shares)
	summary.TotalSharesRequested = new(big.Int).Add(summary.TotalSharesRequested, shares)

	if err := v.state.PutSummary(summary); err != nil {
		return err
	}
	if err := v.state.PutLender(pos); err != nil {
		return err
	}
	if err := v.state.PutVault(vault); err != nil {
		return err
	}
	v.emit(newRedemptionRequestedEvent(v.tranche, lender, shares, vault.CurrentEpoch))
	return nil
}

// Disburse folds the lender's entitlement from all sealed epochs since their
// last claim and pays it out. Calling again with no newly sealed epoch is a
// no-op.
func (v *Vault) Disburse(lender string) (*big.Int, error) {
	if err := common.Guard(v.pauses, moduleName); err != nil {
		return nil, err
	}
	vault, err := v.loadVault()
	if err != nil {
		return nil, err
	}
	pos, err := v.loadPosition(lender)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrLenderNotFound
	}
	if err := v.foldPosition(vault, pos); err != nil {
		return nil, err
	}

	amount := cloneBigInt(pos.Withdrawable)
	if amount.Sign() > 0 {
		if v.custody != nil {
			if err := v.custody.PayToLender(lender, amount); err != nil {
				return nil, err
			}
		}
		pos.Withdrawable = big.NewInt(0)
		pos.Withdrawn = new(big.Int).Add(pos.Withdrawn, amount)
	}
	if err := v.state.PutLender(pos); err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		v.emit(newDisbursedEvent(v.tranche, lender, amount))
	}
	return amount, nil
}

// Position returns the lender's position with all sealed epochs folded in,
// without persisting the fold.
func (v *Vault) Position(lender string) (*LenderPosition, error) {
	vault, err := v.loadVault()
	if err != nil {
		return nil, err
	}
	pos, err := v.loadPosition(lender)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrLenderNotFound
	}
	if err := v.foldPosition(vault, pos); err != nil {
		return nil, err
	}
	return pos, nil
}

// Snapshot returns a copy of the vault's share ledger totals.
func (v *Vault) Snapshot() (*VaultState, error) {
	return v.loadVault()
}
