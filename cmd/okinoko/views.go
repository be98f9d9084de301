package main

import (
	"context"
	"io"

	"gopkg.in/yaml.v3"

	"okinoko_moloch/contract"
	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

// The views below are what the CLI prints as YAML and serve returns as JSON.

type proposalView struct {
	ID        string        `json:"id"        yaml:"id"`
	State     string        `json:"state"     yaml:"state"`
	Proposer  string        `json:"proposer"  yaml:"proposer,omitempty"`
	CreatedAt int64         `json:"createdAt" yaml:"createdAt,omitempty"`
	Snapshot  uint64        `json:"snapshot"  yaml:"snapshot,omitempty"`
	Supply    string        `json:"supply"    yaml:"supply"`
	For       string        `json:"for"       yaml:"for"`
	Against   string        `json:"against"   yaml:"against"`
	Abstain   string        `json:"abstain"   yaml:"abstain"`
	QueuedAt  int64         `json:"queuedAt"  yaml:"queuedAt,omitempty"`
	Futarchy  *futarchyView `json:"futarchy"  yaml:"futarchy,omitempty"`
}

type futarchyView struct {
	Kind          string `json:"kind"          yaml:"kind"`
	Pool          string `json:"pool"          yaml:"pool"`
	Resolved      bool   `json:"resolved"      yaml:"resolved"`
	Winner        string `json:"winner"        yaml:"winner,omitempty"`
	WinningSupply string `json:"winningSupply" yaml:"winningSupply,omitempty"`
	PayoutPerUnit string `json:"payoutPerUnit" yaml:"payoutPerUnit,omitempty"`
}

type seatView struct {
	Slot    uint16 `json:"slot"    yaml:"slot"`
	Holder  string `json:"holder"  yaml:"holder"`
	Balance string `json:"balance" yaml:"balance"`
}

type accountView struct {
	Address   string       `json:"address"   yaml:"address"`
	Shares    string       `json:"shares"    yaml:"shares"`
	Loot      string       `json:"loot"      yaml:"loot"`
	Votes     string       `json:"votes"     yaml:"votes"`
	Seat      uint16       `json:"seat"      yaml:"seat,omitempty"`
	Delegates []splitView  `json:"delegates" yaml:"delegates"`
	PastVotes *heightVotes `json:"pastVotes" yaml:"pastVotes,omitempty"`
}

type splitView struct {
	Delegate string `json:"delegate" yaml:"delegate"`
	Bps      uint16 `json:"bps"      yaml:"bps"`
}

type heightVotes struct {
	Height uint64 `json:"height" yaml:"height"`
	Votes  string `json:"votes"  yaml:"votes"`
}

func loadProposal(ctx context.Context, d *contract.DAO, id dao.Hash) (*proposalView, error) {
	st, err := d.ProposalState(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := d.Proposal(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &proposalView{
		ID:        id.String(),
		State:     st.String(),
		Proposer:  p.Proposer.String(),
		CreatedAt: p.CreatedAt,
		Snapshot:  p.Snapshot,
		Supply:    p.SupplyAtSnapshot.Dec(),
		For:       p.Tally.For.Dec(),
		Against:   p.Tally.Against.Dec(),
		Abstain:   p.Tally.Abstain.Dec(),
		QueuedAt:  p.QueuedAt,
	}
	f, err := d.Futarchy(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Enabled {
		v.Futarchy = &futarchyView{
			Kind:     f.Kind.String(),
			Pool:     f.Pool.Dec(),
			Resolved: f.Resolved,
		}
		if f.Resolved {
			v.Futarchy.Winner = f.Winner.String()
			v.Futarchy.WinningSupply = f.WinningSupply.Dec()
			v.Futarchy.PayoutPerUnit = f.PayoutPerUnit.Dec()
		}
	}
	return v, nil
}

func loadSeats(ctx context.Context, d *contract.DAO) ([]seatView, error) {
	seats, err := d.Seats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]seatView, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatView{Slot: s.Slot, Holder: s.Holder.String(), Balance: s.Balance.Dec()})
	}
	return out, nil
}

func loadAccount(ctx context.Context, d *contract.DAO, a sdk.Address) (*accountView, error) {
	shares, err := d.BalanceOf(ctx, a)
	if err != nil {
		return nil, err
	}
	loot, err := d.LootOf(ctx, a)
	if err != nil {
		return nil, err
	}
	votes, err := d.GetVotes(ctx, a)
	if err != nil {
		return nil, err
	}
	seat, err := d.SeatOf(ctx, a)
	if err != nil {
		return nil, err
	}
	splits, err := d.Delegates(ctx, a)
	if err != nil {
		return nil, err
	}
	v := &accountView{
		Address: a.String(),
		Shares:  shares.Dec(),
		Loot:    loot.Dec(),
		Votes:   votes.Dec(),
		Seat:    seat,
	}
	for _, s := range splits {
		v.Delegates = append(v.Delegates, splitView{Delegate: s.Delegate.String(), Bps: s.Bps})
	}
	return v, nil
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
