package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pop/internal/journal"
	"github.com/roach88/pop/internal/value"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	Journal string
	Process string
	Status  string
	Limit   int
	Entries bool
}

// TraceTx is one journaled transaction in trace output.
type TraceTx struct {
	ID         string       `json:"id"`
	Epoch      int64        `json:"epoch"`
	Process    string       `json:"process"`
	Status     string       `json:"status"`
	ErrorCode  string       `json:"error_code,omitempty"`
	Error      string       `json:"error,omitempty"`
	EntryCount int          `json:"entry_count"`
	StateHash  string       `json:"state_hash"`
	Entries    []TraceEntry `json:"entries,omitempty"`
}

// TraceEntry is one journaled Delta Entry.
type TraceEntry struct {
	Seq   int         `json:"seq"`
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Index *int        `json:"index,omitempty"`
	Prior value.Value `json:"prior,omitempty"`
	New   value.Value `json:"new,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled transactions",
		Long: `Read a commit journal written by run or invoke and list its
transactions in epoch order, optionally with their Delta Entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal file (defaults to POP_JOURNAL_PATH)")
	cmd.Flags().StringVar(&opts.Process, "process", "", "only transactions of this process")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only committed or rolled_back transactions")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of transactions (0 = all)")
	cmd.Flags().BoolVar(&opts.Entries, "entries", false, "include Delta Entries")

	return cmd
}

func runTrace(cmd *cobra.Command, rootOpts *RootOptions, opts *TraceOptions) error {
	out := newFormatter(rootOpts, cmd)

	path := opts.Journal
	if path == "" {
		path = rootOpts.Config.JournalPath
	}
	if path == "" {
		return out.fail(ExitCommandError, ErrCodeJournal, "no journal", fmt.Errorf("pass --journal or set POP_JOURNAL_PATH"))
	}
	switch opts.Status {
	case "", "committed", "rolled_back":
	default:
		return out.fail(ExitCommandError, ErrCodeGeneric, "invalid --status", fmt.Errorf("%q is not committed or rolled_back", opts.Status))
	}
	// Open would create a missing file.
	if _, err := os.Stat(path); err != nil {
		return out.fail(ExitCommandError, ErrCodeNotFound, "journal not found", err)
	}

	j, err := journal.Open(path)
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeJournal, "open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	records, err := j.List(ctx, journal.Filter{Process: opts.Process, Status: opts.Status, Limit: opts.Limit})
	if err != nil {
		return out.fail(ExitCommandError, ErrCodeJournal, "read journal", err)
	}

	txs := make([]TraceTx, 0, len(records))
	for _, r := range records {
		tx := TraceTx{
			ID:         r.ID,
			Epoch:      r.Epoch,
			Process:    r.Process,
			Status:     r.Status,
			ErrorCode:  r.ErrorCode,
			Error:      r.Error,
			EntryCount: r.EntryCount,
			StateHash:  r.StateHash,
		}
		if opts.Entries {
			entries, err := j.Entries(ctx, r.ID)
			if err != nil {
				return out.fail(ExitCommandError, ErrCodeJournal, "read entries", err)
			}
			for _, e := range entries {
				tx.Entries = append(tx.Entries, TraceEntry{
					Seq:   e.Seq,
					Op:    e.Op,
					Path:  e.Path,
					Index: e.Index,
					Prior: e.Prior,
					New:   e.New,
				})
			}
		}
		txs = append(txs, tx)
	}

	if out.JSON() {
		return out.Success(txs)
	}
	printTrace(out, txs)
	return nil
}

func printTrace(out *OutputFormatter, txs []TraceTx) {
	if len(txs) == 0 {
		out.Printf("no transactions\n")
		return
	}
	for _, tx := range txs {
		line := fmt.Sprintf("%4d  %-12s %-16s %-11s entries=%d", tx.Epoch, tx.ID, tx.Process, tx.Status, tx.EntryCount)
		if tx.ErrorCode != "" {
			line += " code=" + tx.ErrorCode
		}
		out.Printf("%s\n", strings.TrimRight(line, " "))
		for _, e := range tx.Entries {
			out.Printf("        %s\n", formatEntry(e))
		}
	}
}

func formatEntry(e TraceEntry) string {
	target := e.Path
	if e.Index != nil {
		target = fmt.Sprintf("%s@%d", e.Path, *e.Index)
	}
	return fmt.Sprintf("#%d %-6s %s: %s -> %s", e.Seq, e.Op, target, render(e.Prior), render(e.New))
}

func render(v value.Value) string {
	if v == nil {
		return "<absent>"
	}
	return value.MustCanonical(v)
}
