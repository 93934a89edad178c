package epoch

import (
	"errors"
	"math/big"
	"testing"

	"tranchepool/native/pool"
)

type managerEnv struct {
	manager *Manager
	senior  *Vault
	junior  *Vault
	state   *mockState
	ledger  *mockLedger
	custody *mockCustody
	liq     *staticLiquidity
}

func newManagerEnv(available int64) *managerEnv {
	env := &managerEnv{
		state:   newMockState(),
		ledger:  newMockLedger(0, 0),
		custody: newMockCustody(),
		liq:     &staticLiquidity{available: big.NewInt(available)},
	}
	registry := &mockLedgerRegistry{ledger: env.ledger}
	env.senior = NewVault(pool.Senior)
	env.senior.SetState(env.state)
	env.senior.SetRegistry(registry, "pool-1")
	env.senior.SetCustody(env.custody)
	env.junior = NewVault(pool.Junior)
	env.junior.SetState(env.state)
	env.junior.SetRegistry(registry, "pool-1")
	env.junior.SetCustody(env.custody)
	env.manager = NewManager()
	env.manager.SetState(env.state)
	env.manager.SetRegistry(registry, "pool-1")
	env.manager.SetCustody(env.custody)
	env.manager.SetLiquiditySource(env.liq)
	return env
}

func settlementFor(t *testing.T, result *CloseResult, tranche pool.Tranche) *TrancheSettlement {
	t.Helper()
	for _, s := range result.Settlements {
		if s.Tranche == tranche {
			return s
		}
	}
	t.Fatalf("no settlement for tranche %s", tranche)
	return nil
}

func TestCloseEpochSettlesProRata(t *testing.T) {
	env := newManagerEnv(600)
	if _, err := env.senior.Deposit("alice", big.NewInt(600)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := env.senior.Deposit("bob", big.NewInt(400)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.senior.AddRedemptionRequest("alice", big.NewInt(600)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := env.senior.AddRedemptionRequest("bob", big.NewInt(400)); err != nil {
		t.Fatalf("request: %v", err)
	}

	// 1000 shares requested at price 1.0 against 600 of liquidity.
	result, err := env.manager.CloseEpoch()
	if err != nil {
		t.Fatalf("close epoch: %v", err)
	}
	settlement := settlementFor(t, result, pool.Senior)
	requireAmount(t, settlement.SharesRequested, 1000, "shares requested")
	requireAmount(t, settlement.SharesProcessed, 600, "shares processed")
	requireAmount(t, settlement.AmountProcessed, 600, "amount processed")
	requireAmount(t, env.ledger.assets[pool.Senior], 400, "tranche assets after settlement")
	requireAmount(t, env.custody.reserved, 600, "custody reservation")

	vault := env.state.vaults[pool.Senior]
	if vault.CurrentEpoch != 2 {
		t.Fatalf("current epoch: got %d want 2", vault.CurrentEpoch)
	}
	requireAmount(t, vault.TotalShares, 400, "shares after burn")
	requireAmount(t, vault.EscrowedShares, 400, "escrow after burn")
	// Carryover seeds the next epoch's demand.
	requireAmount(t, env.state.summaries[summaryKey(pool.Senior, 2)].TotalSharesRequested, 400, "carried-over requested")

	// bob requested 400 of the 1000 and receives 400/1000 x 600 = 240.
	amount, err := env.senior.Disburse("bob")
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	requireAmount(t, amount, 240, "bob disbursement")
	requireAmount(t, env.custody.paid["bob"], 240, "bob payout")

	// alice receives the remaining 360.
	amount, err = env.senior.Disburse("alice")
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	requireAmount(t, amount, 360, "alice disbursement")

	// Idempotence: a second disburse with no new sealed epoch pays nothing.
	amount, err = env.senior.Disburse("bob")
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	requireAmount(t, amount, 0, "repeat disbursement")
	requireAmount(t, env.custody.paid["bob"], 240, "bob payout unchanged")

	// bob's unprocessed 160 shares stay escrowed for the next epoch.
	pos, err := env.senior.Position("bob")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	requireAmount(t, pos.SharesRequested, 160, "bob carryover escrow")
}

func TestCloseEpochSeniorDrawsLiquidityFirst(t *testing.T) {
	env := newManagerEnv(600)
	if _, err := env.senior.Deposit("alice", big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := env.junior.Deposit("bob", big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.senior.AddRedemptionRequest("alice", big.NewInt(500)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := env.junior.AddRedemptionRequest("bob", big.NewInt(500)); err != nil {
		t.Fatalf("request: %v", err)
	}

	result, err := env.manager.CloseEpoch()
	if err != nil {
		t.Fatalf("close epoch: %v", err)
	}
	requireAmount(t, settlementFor(t, result, pool.Senior).AmountProcessed, 500, "senior amount")
	requireAmount(t, settlementFor(t, result, pool.Junior).AmountProcessed, 100, "junior amount")
	requireAmount(t, result.LiquidityUsed, 600, "liquidity used")
}

func TestCloseEpochJuniorFirstWhenConfigured(t *testing.T) {
	env := newManagerEnv(600)
	env.manager.SetSeniorFirst(false)
	if _, err := env.senior.Deposit("alice", big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := env.junior.Deposit("bob", big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.senior.AddRedemptionRequest("alice", big.NewInt(500)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := env.junior.AddRedemptionRequest("bob", big.NewInt(500)); err != nil {
		t.Fatalf("request: %v", err)
	}

	result, err := env.manager.CloseEpoch()
	if err != nil {
		t.Fatalf("close epoch: %v", err)
	}
	requireAmount(t, settlementFor(t, result, pool.Junior).AmountProcessed, 500, "junior amount")
	requireAmount(t, settlementFor(t, result, pool.Senior).AmountProcessed, 100, "senior amount")
}

func TestCloseEpochRejectsSealedCurrentSummary(t *testing.T) {
	env := newManagerEnv(600)
	if _, err := env.senior.Deposit("alice", big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	env.state.PutSummary(&RedemptionSummary{
		Tranche: pool.Senior,
		EpochID: 1,
		Sealed:  true,
	})

	if _, err := env.manager.CloseEpoch(); !errors.Is(err, ErrEpochInProgress) {
		t.Fatalf("expected epoch in progress, got %v", err)
	}
}

func TestCloseEpochWithoutRequestsAdvancesEpoch(t *testing.T) {
	env := newManagerEnv(600)
	if _, err := env.senior.Deposit("alice", big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	result, err := env.manager.CloseEpoch()
	if err != nil {
		t.Fatalf("close epoch: %v", err)
	}
	requireAmount(t, settlementFor(t, result, pool.Senior).SharesProcessed, 0, "shares processed")
	if env.state.vaults[pool.Senior].CurrentEpoch != 2 {
		t.Fatalf("current epoch: got %d want 2", env.state.vaults[pool.Senior].CurrentEpoch)
	}
	requireAmount(t, env.ledger.assets[pool.Senior], 100, "assets untouched")
}

func TestPartiallySettledRequestRollsForward(t *testing.T) {
	env := newManagerEnv(600)
	if _, err := env.senior.Deposit("alice", big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.senior.AddRedemptionRequest("alice", big.NewInt(1000)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := env.manager.CloseEpoch(); err != nil {
		t.Fatalf("close epoch: %v", err)
	}

	// Second close with fresh liquidity settles the 400-share carryover.
	env.liq.available = big.NewInt(1000)
	result, err := env.manager.CloseEpoch()
	if err != nil {
		t.Fatalf("close epoch: %v", err)
	}
	settlement := settlementFor(t, result, pool.Senior)
	requireAmount(t, settlement.SharesRequested, 400, "carryover requested")
	requireAmount(t, settlement.SharesProcessed, 400, "carryover processed")
	requireAmount(t, settlement.AmountProcessed, 400, "carryover amount")

	total, err := env.senior.Disburse("alice")
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	// 600 from the first epoch plus 400 from the second.
	requireAmount(t, total, 1000, "total disbursed")
	requireAmount(t, env.ledger.assets[pool.Senior], 0, "tranche fully drained")
}
