// Command graft is a post-create hook for a multi-worktree git workflow. It
// transfers expensively reproducible state — CMake/ninja build caches,
// submodule checkouts, file timestamps, and assistant trust settings — from
// a sibling "primary" working copy into a freshly created target worktree,
// so local build systems and submodule checkouts don't have to be rebuilt
// or refetched from the network.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mavam/graft/internal/buildfixup"
	"github.com/mavam/graft/internal/debuglog"
	"github.com/mavam/graft/internal/gitcmd"
	"github.com/mavam/graft/internal/settings"
	"github.com/mavam/graft/internal/submodule"
	"github.com/mavam/graft/internal/task"
	"github.com/mavam/graft/internal/tsmirror"
	"github.com/mavam/graft/internal/worktree"
	"github.com/spf13/cobra"
)

var (
	flagSource    string
	flagRemoteURL string
	flagBranch    string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "graft <worktree_path>",
	Short: "Graft cached build/submodule/timestamp state onto a freshly created git worktree",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraft,
}

func init() {
	rootCmd.Flags().StringVar(&flagSource, "source", "", "primary worktree to graft from (default: auto-detected sibling worktree)")
	rootCmd.Flags().StringVar(&flagRemoteURL, "remote-url", "", "remote URL used to synthesize the assistant task-list identifier (default: auto-detected via 'git remote get-url origin')")
	rootCmd.Flags().StringVar(&flagBranch, "branch", "", "branch name used to synthesize the assistant task-list identifier (default: auto-detected via 'git branch --show-current')")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "log per-file skips and other debug detail")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGraft(cmd *cobra.Command, args []string) error {
	debuglog.SetVerbose(flagVerbose)

	// An interactive Ctrl-C must not leave the terminal cursor hidden
	// (spec.md §5's "exception-safe scoped acquisition" of the status
	// display's hide/restore pair). signal.NotifyContext cancels ctx on the
	// first os.Interrupt instead of letting Go's default SIGINT behavior
	// kill the process out from under the deferred Display.Stop(); the
	// orchestrator notices ctx.Done(), restores the cursor itself, and
	// returns ctx.Err() here. Further interrupts are absorbed by the same
	// handler until the deferred stop() unregisters it as runGraft returns.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	target := args[0]

	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("worktree path %q does not exist: %w", target, err)
	}
	gitcmd.WarnStaleLock(target)

	source := flagSource
	if source == "" {
		found, ok, err := worktree.FindPrimary(ctx, target)
		if err != nil {
			return fmt.Errorf("find primary worktree: %w", err)
		}
		if !ok {
			fmt.Println("graft: no other worktree found, nothing to do")
			return nil
		}
		source = found
		debuglog.Printf("[graft] auto-detected primary worktree: %s", source)
	}

	if err := worktree.Validate(ctx, source, target); err != nil {
		return fmt.Errorf("validate worktree pair: %w", err)
	}
	pair := worktree.Pair{Source: source, Target: target}

	remoteURL, branch := detectIdentifierInputs(ctx, source, target, flagRemoteURL, flagBranch)

	orchestrator := task.New(
		&buildfixup.Task{},
		&submodule.Task{},
		tsmirror.Task{},
		&settings.Task{RemoteURL: remoteURL, Branch: branch},
	)

	return orchestrator.Run(ctx, pair)
}

// detectIdentifierInputs fills in the remote URL and branch used to
// synthesize the assistant task-list identifier when the corresponding flags
// were left empty. The remote URL is shared repository config, so source is
// as good a place to read it as any; the branch is per-worktree and must
// come from the target, or every grafted worktree would inherit the
// primary's identifier. Detection failures leave the value empty, which
// simply skips identifier synthesis.
func detectIdentifierInputs(ctx context.Context, source, target, remoteURL, branch string) (string, string) {
	if remoteURL == "" {
		if out, err := gitcmd.Run(ctx, source, []string{"remote", "get-url", "origin"}, gitcmd.RunOptions{}); err == nil {
			remoteURL = string(out)
		}
	}
	if branch == "" {
		if out, err := gitcmd.Run(ctx, target, []string{"branch", "--show-current"}, gitcmd.RunOptions{}); err == nil {
			branch = string(out)
		}
	}
	return remoteURL, branch
}
