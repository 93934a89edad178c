package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"tranchepool/native/credit"
	"tranchepool/native/epoch"
	"tranchepool/native/pool"
	"tranchepool/storage"
)

// Store persists all engine ledgers for one pool as JSON documents in a
// key-value database. It satisfies the state interface of every engine, so a
// single Store instance is wired into the pool engine, the credit engines
// and the redemption vaults alike. Keys are namespaced under the pool id, so
// several pools can share one database.
type Store struct {
	db     storage.Database
	poolID string
}

// NewStore wraps a database for the given pool.
func NewStore(db storage.Database, poolID string) *Store {
	return &Store{db: db, poolID: poolID}
}

// PoolID returns the pool this store is scoped to.
func (s *Store) PoolID() string { return s.poolID }

func (s *Store) key(parts ...string) []byte {
	out := s.poolID
	for _, p := range parts {
		out += "/" + p
	}
	return []byte(out)
}

func (s *Store) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return s.db.Put(key, raw)
}

// --- pool ledger ---

func (s *Store) GetPool() (*pool.PoolState, error) {
	var out pool.PoolState
	ok, err := s.getJSON(s.key("pool"), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutPool(p *pool.PoolState) error {
	return s.putJSON(s.key("pool"), p)
}

// Covers live under a single key as an ordered list: the cover set is tiny
// (a handful of buffers) and the waterfall always needs all of them at once.
func (s *Store) ListCovers() ([]*pool.Cover, error) {
	var out []*pool.Cover
	if _, err := s.getJSON(s.key("covers"), &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (s *Store) PutCover(c *pool.Cover) error {
	covers, err := s.ListCovers()
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range covers {
		if existing.ID == c.ID {
			covers[i] = c
			replaced = true
			break
		}
	}
	if !replaced {
		covers = append(covers, c)
	}
	sort.SliceStable(covers, func(i, j int) bool { return covers[i].Rank < covers[j].Rank })
	return s.putJSON(s.key("covers"), covers)
}

// --- credit ledger ---

func (s *Store) GetCredit(kind credit.Kind, borrower string) (*credit.Record, error) {
	var out credit.Record
	ok, err := s.getJSON(s.key("credit", kind.String(), borrower), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutCredit(r *credit.Record) error {
	return s.putJSON(s.key("credit", r.Kind.String(), r.Borrower), r)
}

func (s *Store) GetReceivable(id string) (*credit.Receivable, error) {
	var out credit.Receivable
	ok, err := s.getJSON(s.key("receivable", id), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutReceivable(r *credit.Receivable) error {
	return s.putJSON(s.key("receivable", r.ID), r)
}

// --- redemption ledger ---

func (s *Store) GetVault(tranche pool.Tranche) (*epoch.VaultState, error) {
	var out epoch.VaultState
	ok, err := s.getJSON(s.key("vault", tranche.String()), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutVault(v *epoch.VaultState) error {
	return s.putJSON(s.key("vault", v.Tranche.String()), v)
}

func (s *Store) GetLender(tranche pool.Tranche, lender string) (*epoch.LenderPosition, error) {
	var out epoch.LenderPosition
	ok, err := s.getJSON(s.key("lender", tranche.String(), lender), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutLender(p *epoch.LenderPosition) error {
	return s.putJSON(s.key("lender", p.Tranche.String(), p.Lender), p)
}

func (s *Store) GetSummary(tranche pool.Tranche, epochID uint64) (*epoch.RedemptionSummary, error) {
	var out epoch.RedemptionSummary
	ok, err := s.getJSON(s.key("summary", tranche.String(), fmt.Sprintf("%d", epochID)), &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutSummary(summary *epoch.RedemptionSummary) error {
	key := s.key("summary", summary.Tranche.String(), fmt.Sprintf("%d", summary.EpochID))
	return s.putJSON(key, summary)
}
