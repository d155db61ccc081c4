package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/repository"
	"github.com/emiliopc17/redmil-crm/internal/domain/forex"
	importservice "github.com/emiliopc17/redmil-crm/internal/domain/import/service"
)

func (c *cli) ingestCmd() *cobra.Command {
	var opts importservice.ImportOptions
	var quiet bool

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Import a supplier price list (pdf, xlsx, csv)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			if !quiet {
				errOut := cmd.ErrOrStderr()
				opts.Progress = func(done, total int) bool {
					if done == total || done%100 == 0 {
						fmt.Fprintf(errOut, "\r%d/%d", done, total)
						if done == total {
							fmt.Fprintln(errOut)
						}
					}
					return true
				}
			}

			res, err := c.deps.ImportService.Import(cmd.Context(), data, filepath.Base(args[0]), opts)
			if err != nil {
				return err
			}
			printImportResult(cmd.OutOrStdout(), res, c.deps.Converter)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.BrandOverride, "brand", "", "assign this brand to every record")
	cmd.Flags().StringVar(&opts.ChangedBy, "changed-by", "", "name recorded on price changes")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "extract and price without saving")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report progress")
	return cmd
}

func printImportResult(w io.Writer, res *importservice.ImportResult, conv forex.CurrencyConverter) {
	fmt.Fprintf(w, "batch:     %s\n", res.BatchID)
	fmt.Fprintf(w, "format:    %s\n", res.Ingest.Format)
	fmt.Fprintf(w, "records:   %d\n", len(res.Ingest.Records))
	fmt.Fprintf(w, "rejected:  %d\n", len(res.Ingest.Rejections))
	for reason, n := range res.Ingest.RejectedByReason() {
		fmt.Fprintf(w, "  %-16s %d\n", reason, n)
	}
	fmt.Fprintf(w, "rate:      %s (%s)\n", res.Rate.Value.String(), res.Rate.Source)

	if res.Batch == nil {
		if wb := res.Workbook; wb != nil {
			fmt.Fprintf(w, "sheet:     %s (%d rows)\n", wb.Sheet, wb.RowCount)
			fmt.Fprintf(w, "headers:   %s\n", strings.Join(wb.Headers, " | "))
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tDESCRIPTION\tBRAND\tUSD\tLOCAL")
		for _, p := range res.Preview {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				p.ProductCode, p.Description, p.BrandOrDefault(), p.CostUSD.StringFixed(2), conv.Round(p.CostLocal).StringFixed(2))
		}
		_ = tw.Flush()
		return
	}

	b := res.Batch
	fmt.Fprintf(w, "inserted:  %d\n", b.Inserted)
	fmt.Fprintf(w, "updated:   %d\n", b.Updated)
	fmt.Fprintf(w, "changed:   %d\n", b.PriceChanges)
	fmt.Fprintf(w, "failed:    %d\n", b.Failed)
	for _, f := range b.Failures {
		fmt.Fprintf(w, "  %s: %s\n", f.Record.ProductCode, f.Reason)
	}
	if b.Stopped {
		fmt.Fprintln(w, "stopped before the end of the batch")
	}
}

func (c *cli) brandsCmd() *cobra.Command {
	var suggest string
	var limit int

	cmd := &cobra.Command{
		Use:   "brands",
		Short: "List known brands, or suggest matches with --suggest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				brands []string
				err    error
			)
			if suggest != "" {
				brands, err = c.deps.Brands.Suggest(cmd.Context(), suggest, limit)
			} else {
				brands, err = c.deps.Brands.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			for _, b := range brands {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&suggest, "suggest", "", "rank brands against a partial name")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum suggestions")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <product-code>",
		Short: "Show the price history of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.TrimSpace(args[0])
			entry, err := c.deps.CatalogStore.GetByCode(cmd.Context(), code)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("product %s not found", code)
			}
			if err != nil {
				return err
			}

			history, err := c.deps.CatalogStore.ListHistory(cmd.Context(), entry.ID, limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s  [%s]\n", entry.ProductCode, entry.Description, entry.Brand)
			fmt.Fprintf(w, "current: USD %s / %s %s\n\n",
				entry.CostUSD.StringFixed(2), c.deps.Converter.Target(), entry.CostLocal.StringFixed(2))

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CHANGED AT\tOLD USD\tNEW USD\tBY")
			for _, h := range history {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					h.ChangedAt.Local().Format(time.DateTime), h.OldCostUSD.StringFixed(2), h.NewCostUSD.StringFixed(2), h.ChangedBy)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (0 for the default)")
	return cmd
}

func (c *cli) ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Show or update the exchange rate",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the rate imports would use now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.deps.RateService.CurrentRate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, %s)\n",
				r.Value.String(), c.deps.Converter.Target(), r.Source, r.Date.Format(time.DateOnly))
			return nil
		},
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the rate from the feed and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.deps.RateService.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", r.Value.String(), c.deps.Converter.Target(), r.Source)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <value>",
		Short: "Store a manual rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", args[0], err)
			}
			r, err := c.deps.RateService.SetManualRate(cmd.Context(), value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", r.Value.String(), c.deps.Converter.Target(), r.Source)
			return nil
		},
	}

	cmd.AddCommand(show, refresh, set)
	return cmd
}

func (c *cli) clearProductsCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear-products",
		Short: "Delete every product and its price history; brands are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear the catalog without --yes")
			}
			n, err := c.deps.CatalogStore.ClearProducts(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.deps.SearchIndex.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d products\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

type exportRow struct {
	ProductCode   string `csv:"product_code"`
	Description   string `csv:"description"`
	Brand         string `csv:"brand"`
	Category      string `csv:"category"`
	CostUSD       string `csv:"cost_usd"`
	CostLocal     string `csv:"cost_local"`
	StockQuantity int    `csv:"stock_quantity"`
	LastUpdated   string `csv:"last_updated"`
}

func (c *cli) exportCmd() *cobra.Command {
	var brand, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []*exportRow
			const page = 500
			for offset := 0; ; offset += page {
				entries, err := c.deps.CatalogStore.ListEntries(cmd.Context(), repository.ListFilter{Brand: brand, Limit: page, Offset: offset})
				if err != nil {
					return err
				}
				for _, e := range entries {
					rows = append(rows, &exportRow{
						ProductCode:   e.ProductCode,
						Description:   e.Description,
						Brand:         e.Brand,
						Category:      e.Category,
						CostUSD:       e.CostUSD.StringFixed(2),
						CostLocal:     e.CostLocal.StringFixed(2),
						StockQuantity: e.StockQuantity,
						LastUpdated:   e.LastUpdated.UTC().Format(time.RFC3339),
					})
				}
				if len(entries) < page {
					break
				}
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return gocsv.Marshal(&rows, w)
		},
	}

	cmd.Flags().StringVar(&brand, "brand", "", "only export this brand")
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file")
	return cmd
}
