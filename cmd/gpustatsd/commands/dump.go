package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/piwi3910/gpustatsd/pkg/config"
	"github.com/piwi3910/gpustatsd/pkg/gpustats"
)

func newDumpCommand() *cobra.Command {
	var (
		address    string
		dumpGlobal bool
		dumpApp    bool
		clearAfter bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the stats tables of a running daemon",
		Long: `Fetches the diagnostic report from a running gpustatsd instance and
prints it. Without selector flags both tables are included. With --clear
the selected tables (both when no selector is given) are reset after the
report is produced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags []string
			if dumpGlobal {
				flags = append(flags, gpustats.FlagGlobal)
			}
			if dumpApp {
				flags = append(flags, gpustats.FlagApp)
			}
			if clearAfter {
				flags = append(flags, gpustats.FlagClear)
			}
			return runDump(cmd.Context(), cmd.OutOrStdout(), address, flags)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "daemon address (default from config)")
	cmd.Flags().BoolVar(&dumpGlobal, "global", false, "dump the global table")
	cmd.Flags().BoolVar(&dumpApp, "app", false, "dump the app table")
	cmd.Flags().BoolVar(&clearAfter, "clear", false, "clear the selected tables after dumping")

	return cmd
}

func runDump(ctx context.Context, out io.Writer, address string, flags []string) error {
	if address == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		address = cfg.ListenAddress
	}

	query := url.Values{}
	for _, flag := range flags {
		query.Add("arg", flag)
	}

	dumpURL := url.URL{
		Scheme:   "http",
		Host:     address,
		Path:     "/api/v1/dump",
		RawQuery: query.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dumpURL.String(), nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	_, err = io.Copy(out, resp.Body)
	return err
}
