package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"okinoko_moloch/contract/dao"
	"okinoko_moloch/sdk"
)

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}

func parseID(s string) (dao.Hash, error) {
	id, err := dao.HashFromHex(s)
	if err != nil {
		return id, fmt.Errorf("proposal id %q: %w", s, err)
	}
	return id, nil
}

func parseStance(s string) (dao.Stance, error) {
	for _, st := range []dao.Stance{dao.StanceAgainst, dao.StanceFor, dao.StanceAbstain} {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("stance %q: want for, against or abstain", s)
}

func parseRewardKind(s string) (dao.RewardKind, error) {
	for _, k := range []dao.RewardKind{dao.RewardNative, dao.RewardMintedShares, dao.RewardTreasuryShares} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("reward kind %q: want native, minted-shares or treasury-shares", s)
}

// parseSplits reads "hive:a=5000,hive:b=5000" into a split delegation.
func parseSplits(s string) ([]dao.Split, error) {
	var out []dao.Split
	for _, part := range strings.Split(s, ",") {
		addr, bps, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("split %q: expected address=bps", part)
		}
		n, err := strconv.ParseUint(bps, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("split %q: %w", part, err)
		}
		out = append(out, dao.Split{Delegate: sdk.Address(addr), Bps: uint16(n)})
	}
	return out, nil
}

type actionFlags struct {
	value    string
	delegate bool
}

func (f *actionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.value, "value", "0", "native value attached to the action")
	cmd.Flags().BoolVar(&f.delegate, "delegatecall", false, "perform the action as a delegate call")
}

// action builds the action from <target> <payload-hex> <nonce>.
func (f *actionFlags) action(args []string) (*dao.Action, error) {
	payload, err := hex.DecodeString(strings.TrimPrefix(args[1], "0x"))
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	nonce, err := parseAmount(args[2])
	if err != nil {
		return nil, err
	}
	value, err := parseAmount(f.value)
	if err != nil {
		return nil, err
	}
	a := &dao.Action{
		Op:      sdk.OpCall,
		Target:  sdk.Address(args[0]),
		Value:   *value,
		Payload: payload,
		Nonce:   *nonce,
	}
	if f.delegate {
		a.Op = sdk.OpDelegateCall
	}
	return a, nil
}
