package main

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"okinoko_moloch/contract"
	"okinoko_moloch/sdk"
)

// daoCommand wires the common boilerplate: open the node, resolve the DAO and
// hand both to run.
func daoCommand(use, short string, args cobra.PositionalArgs, run func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return withNode(cmd.Context(), func(n *node) error {
				d, err := n.instance()
				if err != nil {
					return err
				}
				return run(cmd, n, d, argv)
			})
		},
	}
}

func summonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summon",
		Short: "Summon a DAO from the summon section of the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withNode(cmd.Context(), func(n *node) error {
				sc := n.cfg.Summon
				params := contract.InitParams{
					Name:          sc.Name,
					Symbol:        sc.Symbol,
					URI:           sc.URI,
					QuorumBps:     sc.QuorumBps,
					Ragequittable: sc.Ragequittable,
				}
				for _, h := range sc.Holders {
					params.Holders = append(params.Holders, sdk.Address(h.Address))
					params.Amounts = append(params.Amounts, uint256.NewInt(h.Shares))
				}
				from := sdk.Address(globalFlags.as).Or(sdk.Address(n.cfg.Factory))
				ctx, err := n.mineAs(cmd.Context(), from)
				if err != nil {
					return err
				}
				d, err := n.factory.Summon(ctx, sc.Salt, params)
				if err != nil {
					return err
				}
				n.logger.Info("summoned", "component", programName, "dao", d.Address().String(), "salt", sc.Salt)
				fmt.Fprintln(cmd.OutOrStdout(), d.Address())
				return nil
			})
		},
	}
}

func depositCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <asset> <holder> <amount>",
		Short: "Credit a holder on the local host ledger",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return withNode(cmd.Context(), func(n *node) error {
				n.host.Credit(sdk.Asset(args[0]), sdk.Address(args[1]), amount)
				return nil
			})
		},
	}
}

func idCommand() *cobra.Command {
	var af actionFlags
	cmd := daoCommand("id <target> <payload-hex> <nonce>", "Print the proposal id of an action", cobra.ExactArgs(3),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			a, err := af.action(args)
			if err != nil {
				return err
			}
			ctx, err := n.viewAt(cmd.Context())
			if err != nil {
				return err
			}
			id, err := d.ProposalID(ctx, a)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	af.register(cmd)
	return cmd
}

func openCommand() *cobra.Command {
	return daoCommand("open <id>", "Open a proposal, fixing its snapshot", cobra.ExactArgs(1),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			return d.OpenProposal(ctx, id)
		})
}

func voteCommand() *cobra.Command {
	return daoCommand("vote <id> <for|against|abstain>", "Cast a vote, opening the proposal if needed", cobra.ExactArgs(2),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			stance, err := parseStance(args[1])
			if err != nil {
				return err
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			weight, err := d.CastVote(ctx, id, stance)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), weight.Dec())
			return nil
		})
}

func cancelVoteCommand() *cobra.Command {
	return daoCommand("cancel-vote <id>", "Withdraw a vote while the proposal is active", cobra.ExactArgs(1),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			return d.CancelVote(ctx, id)
		})
}

func executeCommand() *cobra.Command {
	var af actionFlags
	cmd := daoCommand("execute <target> <payload-hex> <nonce>", "Queue or execute a passed proposal", cobra.ExactArgs(3),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			a, err := af.action(args)
			if err != nil {
				return err
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			executed, ret, err := d.Execute(ctx, a)
			if err != nil {
				return err
			}
			if !executed {
				fmt.Fprintln(cmd.OutOrStdout(), "queued")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "executed", hex.EncodeToString(ret))
			return nil
		})
	af.register(cmd)
	return cmd
}

func stateCommand() *cobra.Command {
	return daoCommand("state <id>", "Show a proposal with its tallies and futarchy pool", cobra.ExactArgs(1),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, err := n.viewAt(cmd.Context())
			if err != nil {
				return err
			}
			v, err := loadProposal(ctx, d, id)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), v)
		})
}

func delegateCommand() *cobra.Command {
	return daoCommand("delegate <delegate>", "Delegate all voting weight, an empty delegate means self", cobra.RangeArgs(0, 1),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			var to sdk.Address
			if len(args) == 1 {
				to = sdk.Address(args[0])
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			return d.Delegate(ctx, to)
		})
}

func splitCommand() *cobra.Command {
	var reset bool
	cmd := daoCommand("split [address=bps,...]", "Spread voting weight over up to four delegates", cobra.RangeArgs(0, 1),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			if reset == (len(args) == 1) {
				return fmt.Errorf("give either a split list or --clear")
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			if reset {
				return d.ClearSplitDelegation(ctx)
			}
			splits, err := parseSplits(args[0])
			if err != nil {
				return err
			}
			return d.SetSplitDelegation(ctx, splits)
		})
	cmd.Flags().BoolVar(&reset, "clear", false, "drop the split and return to self delegation")
	return cmd
}

func seatsCommand() *cobra.Command {
	return daoCommand("seats", "List the occupied top holder seats", cobra.NoArgs,
		func(cmd *cobra.Command, n *node, d *contract.DAO, _ []string) error {
			ctx, err := n.viewAt(cmd.Context())
			if err != nil {
				return err
			}
			seats, err := loadSeats(ctx, d)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), seats)
		})
}

func votesCommand() *cobra.Command {
	var at uint64
	cmd := daoCommand("votes <address>", "Show balances, voting weight and delegation of an account", cobra.ExactArgs(1),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			ctx, err := n.viewAt(cmd.Context())
			if err != nil {
				return err
			}
			a := sdk.Address(args[0])
			v, err := loadAccount(ctx, d, a)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("at") {
				past, err := d.GetPastVotes(ctx, a, at)
				if err != nil {
					return err
				}
				v.PastVotes = &heightVotes{Height: at, Votes: past.Dec()}
			}
			return printYAML(cmd.OutOrStdout(), v)
		})
	cmd.Flags().Uint64Var(&at, "at", 0, "also show the weight as of this earlier block")
	return cmd
}

func fundCommand() *cobra.Command {
	return daoCommand("fund <id> <native|minted-shares|treasury-shares> <amount>", "Add to the futarchy pool of a proposal", cobra.ExactArgs(3),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			kind, err := parseRewardKind(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			return d.FundFutarchy(ctx, id, kind, amount)
		})
}

func resolveCommand() *cobra.Command {
	return daoCommand("resolve <id>", "Settle the futarchy pool of a defeated or expired proposal", cobra.ExactArgs(1),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			return d.ResolveFutarchy(ctx, id)
		})
}

func cashOutCommand() *cobra.Command {
	return daoCommand("cash-out <id> <receipts>", "Burn winning vote receipts for a share of the pool", cobra.ExactArgs(2),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			paid, err := d.CashOut(ctx, id, amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), paid.Dec())
			return nil
		})
}

func ragequitCommand() *cobra.Command {
	var shares, loot string
	cmd := daoCommand("ragequit <asset>...", "Burn shares and loot for a pro-rata part of each asset", cobra.MinimumNArgs(1),
		func(cmd *cobra.Command, n *node, d *contract.DAO, args []string) error {
			s, err := parseAmount(shares)
			if err != nil {
				return err
			}
			l, err := parseAmount(loot)
			if err != nil {
				return err
			}
			assets := make([]sdk.Asset, len(args))
			for i, a := range args {
				assets[i] = sdk.Asset(a)
			}
			ctx, err := n.mine(cmd.Context())
			if err != nil {
				return err
			}
			paid, err := d.Ragequit(ctx, assets, s, l)
			if err != nil {
				return err
			}
			for i := range paid {
				fmt.Fprintln(cmd.OutOrStdout(), assets[i], paid[i].Dec())
			}
			return nil
		})
	cmd.Flags().StringVar(&shares, "shares", "0", "shares to burn")
	cmd.Flags().StringVar(&loot, "loot", "0", "loot to burn")
	return cmd
}
