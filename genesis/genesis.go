package genesis

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tranchepool/native/epoch"
	"tranchepool/native/pool"
	"tranchepool/state"
)

// Document is the YAML pool genesis: the initial tranche balances, the
// configured first-loss covers and any pre-seeded lender share positions.
// Amounts are decimal strings to survive YAML number handling.
type Document struct {
	Pool    PoolDoc     `yaml:"pool"`
	Covers  []CoverDoc  `yaml:"covers"`
	Lenders []LenderDoc `yaml:"lenders"`
}

type PoolDoc struct {
	Enabled      bool   `yaml:"enabled"`
	SeniorAssets string `yaml:"senior_assets"`
	JuniorAssets string `yaml:"junior_assets"`
}

type CoverDoc struct {
	ID           string `yaml:"id"`
	Rank         uint8  `yaml:"rank"`
	Assets       string `yaml:"assets"`
	MaxLiquidity string `yaml:"max_liquidity"`
}

type LenderDoc struct {
	Lender  string `yaml:"lender"`
	Tranche string `yaml:"tranche"`
	Shares  string `yaml:"shares"`
}

// Load parses a genesis document from disk.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse parses a genesis document from raw YAML.
func Parse(raw []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("genesis: decode: %w", err)
	}
	return doc, nil
}

// Apply seeds the store from the document. It is a no-op when the pool
// ledger already exists, so restarts never reset state.
func Apply(store *state.Store, doc *Document) error {
	existing, err := store.GetPool()
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	seniorAssets, err := parseAmount(doc.Pool.SeniorAssets, "pool.senior_assets")
	if err != nil {
		return err
	}
	juniorAssets, err := parseAmount(doc.Pool.JuniorAssets, "pool.junior_assets")
	if err != nil {
		return err
	}
	poolState := &pool.PoolState{
		SeniorAssets: seniorAssets,
		JuniorAssets: juniorAssets,
		SeniorLoss:   big.NewInt(0),
		JuniorLoss:   big.NewInt(0),
		AccruedFees:  big.NewInt(0),
		Enabled:      doc.Pool.Enabled,
	}
	if err := store.PutPool(poolState); err != nil {
		return err
	}

	for _, c := range doc.Covers {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("genesis: cover with empty id")
		}
		assets, err := parseAmount(c.Assets, "cover "+c.ID+" assets")
		if err != nil {
			return err
		}
		maxLiquidity, err := parseAmount(c.MaxLiquidity, "cover "+c.ID+" max_liquidity")
		if err != nil {
			return err
		}
		cover := &pool.Cover{
			ID:           c.ID,
			Rank:         c.Rank,
			Assets:       assets,
			MaxLiquidity: maxLiquidity,
			Loss:         big.NewInt(0),
		}
		if err := store.PutCover(cover); err != nil {
			return err
		}
	}

	return seedLenders(store, doc.Lenders)
}

// seedLenders mints initial one-to-one share positions. The matching asset
// value must already be part of the tranche balances above; genesis does not
// double count it.
func seedLenders(store *state.Store, lenders []LenderDoc) error {
	totals := map[pool.Tranche]*big.Int{
		pool.Senior: big.NewInt(0),
		pool.Junior: big.NewInt(0),
	}
	for _, l := range lenders {
		tranche, err := parseTranche(l.Tranche)
		if err != nil {
			return err
		}
		shares, err := parseAmount(l.Shares, "lender "+l.Lender+" shares")
		if err != nil {
			return err
		}
		position := &epoch.LenderPosition{
			Lender:             l.Lender,
			Tranche:            tranche,
			Shares:             shares,
			SharesRequested:    big.NewInt(0),
			NextEpochToProcess: 1,
			Withdrawable:       big.NewInt(0),
			Withdrawn:          big.NewInt(0),
		}
		if err := store.PutLender(position); err != nil {
			return err
		}
		totals[tranche].Add(totals[tranche], shares)
	}
	for tranche, total := range totals {
		if total.Sign() == 0 {
			continue
		}
		vault := &epoch.VaultState{
			Tranche:        tranche,
			TotalShares:    total,
			EscrowedShares: big.NewInt(0),
			CurrentEpoch:   1,
		}
		if err := store.PutVault(vault); err != nil {
			return err
		}
	}
	return nil
}

func parseAmount(raw, field string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(raw, 10)
	if !ok || out.Sign() < 0 {
		return nil, fmt.Errorf("genesis: invalid amount %q for %s", raw, field)
	}
	return out, nil
}

func parseTranche(raw string) (pool.Tranche, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "senior":
		return pool.Senior, nil
	case "junior":
		return pool.Junior, nil
	}
	return 0, fmt.Errorf("genesis: unknown tranche %q", raw)
}
