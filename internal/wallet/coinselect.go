package wallet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bdk-go/walletchain/pkg/chain"
	"github.com/btcsuite/btcd/wire"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUTXOs           = errors.New("no UTXOs available")
)

// Candidate is a spendable output considered for coin selection, carrying
// just enough chain position to support "oldest first" ordering.
type Candidate struct {
	Outpoint wire.OutPoint
	TxOut    wire.TxOut
	Height   chain.TxHeight
}

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []Candidate // Selected candidates to spend.
	Total  int64       // Sum of selected input values.
	Change int64       // Change = Total - target.
}

// Selector picks a subset of candidates covering target, or reports why it
// couldn't. Out of scope beyond two named strategies: real coin selection
// (branch-and-bound, privacy-aware grouping, fee-rate awareness) is a
// Non-goal — these exist to give the CLI's `-c` flag something real to do.
type Selector func(candidates []Candidate, target int64) (*CoinSelection, error)

// Selectors is the registry the CLI's `-c <algo>` flag resolves against.
var Selectors = map[string]Selector{
	"largest-first": LargestFirst,
	"oldest-first":  OldestFirst,
}

// LargestFirst greedily spends the largest-value candidates first, which
// tends to minimize the number of inputs in the resulting transaction.
func LargestFirst(candidates []Candidate, target int64) (*CoinSelection, error) {
	sorted := filterPositive(candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TxOut.Value > sorted[j].TxOut.Value })
	return accumulate(sorted, target)
}

// OldestFirst spends the most-confirmed candidates first (lowest TxHeight,
// per the ordering where Confirmed(h) < Confirmed(h') for h < h' and every
// Confirmed height sorts before Unconfirmed), which tends to consolidate
// aging UTXOs and keep the wallet's history shallow.
func OldestFirst(candidates []Candidate, target int64) (*CoinSelection, error) {
	sorted := filterPositive(candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Height.Less(sorted[j].Height) })
	return accumulate(sorted, target)
}

func filterPositive(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.TxOut.Value > 0 {
			out = append(out, c)
		}
	}
	return out
}

func accumulate(ordered []Candidate, target int64) (*CoinSelection, error) {
	if len(ordered) == 0 {
		return nil, ErrNoUTXOs
	}
	if target <= 0 {
		return nil, fmt.Errorf("target must be positive")
	}

	var selected []Candidate
	var total int64
	for _, c := range ordered {
		selected = append(selected, c)
		total += c.TxOut.Value
		if total >= target {
			return &CoinSelection{Inputs: selected, Total: total, Change: total - target}, nil
		}
	}
	return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, target)
}
