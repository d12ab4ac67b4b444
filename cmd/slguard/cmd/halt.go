package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"slguard/internal/config"
	"slguard/internal/halt"
	"slguard/internal/journal"
)

var haltCmd = &cobra.Command{
	Use:   "halt",
	Short: "Inspect the daily trading halt",
}

var haltStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether trading is halted and the latest journal events",
	Args:  cobra.NoArgs,
	RunE:  runHaltStatus,
}

var haltEvents int

func init() {
	rootCmd.AddCommand(haltCmd)
	haltCmd.AddCommand(haltStatusCmd)

	haltStatusCmd.Flags().IntVarP(&haltEvents, "events", "n", 10, "number of recent journal events to show")
}

type haltStatus struct {
	HaltFile string      `yaml:"halt_file"`
	Halted   bool        `yaml:"halted"`
	Journal  string      `yaml:"journal,omitempty"`
	Events   []eventView `yaml:"recent_events,omitempty"`
}

type eventView struct {
	Time    string  `yaml:"time"`
	Kind    string  `yaml:"kind"`
	Symbol  string  `yaml:"symbol,omitempty"`
	OrderID string  `yaml:"order_id,omitempty"`
	Qty     int     `yaml:"qty,omitempty"`
	Trigger float64 `yaml:"trigger,omitempty"`
	Step    int     `yaml:"step,omitempty"`
	PnL     float64 `yaml:"pnl,omitempty"`
	Detail  string  `yaml:"detail,omitempty"`
}

func runHaltStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	halted, err := halt.NewFileStore(cfg.Risk.HaltFile).Halted()
	if err != nil {
		return err
	}
	status := haltStatus{HaltFile: cfg.Risk.HaltFile, Halted: halted}

	if path := cfg.Runtime.JournalPath; path != "" && haltEvents > 0 {
		events, err := recentEvents(cmd.Context(), path, haltEvents)
		if err != nil {
			return err
		}
		if events != nil {
			status.Journal = path
		}
		for _, ev := range events {
			status.Events = append(status.Events, eventView{
				Time:    ev.Time.Format(time.RFC3339),
				Kind:    string(ev.Kind),
				Symbol:  ev.Symbol,
				OrderID: ev.OrderID,
				Qty:     ev.Qty,
				Trigger: ev.Trigger,
				Step:    ev.Step,
				PnL:     ev.PnL,
				Detail:  ev.Detail,
			})
		}
	}
	return writeYAML(cmd.OutOrStdout(), status)
}

// recentEvents returns nil without creating the journal when it does not exist.
func recentEvents(ctx context.Context, path string, n int) ([]journal.Event, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	defer j.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	return j.Recent(ctx, n)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
