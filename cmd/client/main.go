// Command client is a reference quorum-verifying oracle client: it queries
// several oracle instances for the same pair, verifies each signature,
// enforces a minimum response quorum, and checks price coherence across
// responses before reporting a median.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "sho-client",
		Short:   "Quorum-verifying client for the sho price oracle",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Long: `sho-client queries a set of oracle instances for the same pair,
verifies each response's signature against its advertised pubkey, rejects
any response whose price deviates from the median beyond a configured
tolerance, and fails unless a minimum quorum of valid responses remains.`,
	}

	rootCmd.AddCommand(newQuoteCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newQuoteCmd() *cobra.Command {
	var (
		urls            []string
		minQuorum       int
		maxDeviationPct float64
		scheme          string
		timeoutSeconds  int
	)

	cmd := &cobra.Command{
		Use:   "quote <route>",
		Short: "Fetch and verify a quorum of signed quotes for a route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(urls) == 0 {
				return fmt.Errorf("at least one --url is required")
			}
			result, err := fetchQuorum(cmd.Context(), quorumRequest{
				route:           args[0],
				urls:            urls,
				minQuorum:       minQuorum,
				maxDeviationPct: maxDeviationPct,
				scheme:          scheme,
				timeoutSeconds:  timeoutSeconds,
			})
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&urls, "url", "u", nil, "oracle base URL (repeatable)")
	cmd.Flags().IntVar(&minQuorum, "min-quorum", 2, "minimum number of valid responses required")
	cmd.Flags().Float64Var(&maxDeviationPct, "max-deviation-pct", 0.5, "max allowed percent deviation from the median")
	cmd.Flags().StringVar(&scheme, "scheme", "ed25519", "expected signature scheme: secp256k1 or ed25519")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", 10, "per-request timeout in seconds")

	return cmd
}

func printResult(r *quorumResult) {
	fmt.Printf("route:        %s\n", r.Route)
	fmt.Printf("median price: %s\n", r.MedianPrice.String())
	fmt.Printf("quorum:       %d/%d valid\n", r.ValidCount, r.TotalCount)
	fmt.Println()
	for _, resp := range r.Responses {
		status := "ok"
		if !resp.Valid {
			status = "REJECTED: " + resp.RejectReason
		}
		fmt.Printf("  %-40s price=%-14v sig=%-3s %s\n", resp.URL, resp.Price, boolStr(resp.SignatureValid), status)
	}
}

func boolStr(b bool) string {
	if b {
		return "ok"
	}
	return "bad"
}
