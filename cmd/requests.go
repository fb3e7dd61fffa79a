package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/requestarr/filter"
	"github.com/s0up4200/requestarr/session"
	"github.com/s0up4200/requestarr/store"
)

const cliToken = "cli"

var (
	filterExpr  string
	preset      string
	kindFlag    string
	actAs       string
	showDetails bool
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Inspect and remove stored requests",
}

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests, newest first",
	Long: `List stored requests. An optional filter expression narrows the result, e.g.

  requestarr requests list --filter 'isShow() and requestedBy("alice")'
  requestarr requests list --preset stale`,
	RunE: runRequestsList,
}

var requestsDeleteCmd = &cobra.Command{
	Use:   "delete <movie|show> <id>",
	Short: "Delete a request",
	Long: `Remove the title from Radarr or Sonarr, then delete the request.
The request is kept when the acquisition service declines.`,
	Args: cobra.ExactArgs(2),
	RunE: runRequestsDelete,
}

func init() {
	requestsListCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression")
	requestsListCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset filter from config")
	requestsListCmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "only list movie or show requests")
	requestsListCmd.Flags().BoolVar(&showDetails, "details", false, "show requester and acquisition details")

	requestsDeleteCmd.Flags().StringVar(&actAs, "as", "admin", "username recorded as performing the deletion")

	requestsCmd.AddCommand(requestsListCmd)
	requestsCmd.AddCommand(requestsDeleteCmd)
}

func runRequestsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	kind := store.Kind(kindFlag)
	if kind != "" && !kind.Valid() {
		return fmt.Errorf("unknown kind %q, expected movie or show", kindFlag)
	}

	var f *filter.Filter
	if expr, ok := getFilterExpression(); ok {
		var err error
		f, err = filters.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid filter expression: %w", err)
		}
		logger.Debug().Str("filter", expr).Msg("Filtering requests")
	} else if preset != "" {
		return fmt.Errorf("preset '%s' not found in config", preset)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.List(ctx, store.ListOptions{Kind: kind})
	if err != nil {
		return err
	}
	if f != nil {
		records = f.Apply(records)
	}

	if len(records) == 0 {
		fmt.Println("No requests found.")
		return nil
	}

	fmt.Println(renderTable(requestHeaders(), requestRows(records), 0))
	fmt.Printf("%d requests\n", len(records))
	return nil
}

func requestHeaders() []string {
	headers := []string{"ID", "Kind", "Title", "Year", "Seasons", "Requested by", "Requested"}
	if showDetails {
		headers = append(headers, "E-mail", "External ID", "Acquisition ID")
	}
	return headers
}

func requestRows(records []*store.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			string(rec.Kind),
			rec.Title,
			rec.Year(),
			joinInts(rec.Seasons),
			rec.RequestedBy,
			rec.CreatedAt.Format("2006-01-02"),
		}
		if showDetails {
			row = append(row, rec.RequestedByEmail, rec.ExternalID, rec.AcquisitionID)
		}
		rows = append(rows, row)
	}
	return rows
}

func runRequestsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	kind := store.Kind(args[0])
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q, expected movie or show", args[0])
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid request id %q", args[1])
	}

	resolver := session.Static{cliToken: {Username: actAs}}
	svc, st, err := newService(ctx, resolver)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := svc.Delete(ctx, cliToken, kind, id); err != nil {
		return fmt.Errorf("failed to delete %s request %d: %w", kind, id, err)
	}
	fmt.Printf("✓ Deleted %s request %d\n", kind, id)
	return nil
}

// getFilterExpression picks the command line filter, then the preset, then
// the configured default.
func getFilterExpression() (string, bool) {
	if filterExpr != "" {
		return filterExpr, true
	}
	if preset != "" {
		p, ok := cfg.Filter.Presets[preset]
		return p.Expression, ok
	}
	if cfg.Filter.DefaultExpression != "" {
		return cfg.Filter.DefaultExpression, true
	}
	return "", false
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
