package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidline/aidline/config"
	"github.com/aidline/aidline/core/model"
)

var (
	casesStatus   string
	casesReporter string
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Case related commands",
}

var casesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List cases via the read API",
	RunE:  runCasesLs,
}

func init() {
	casesLsCmd.Flags().StringVar(&casesStatus, "status", "", "filter by status")
	casesLsCmd.Flags().StringVar(&casesReporter, "reporter", "", "filter by reporter id")
	casesCmd.AddCommand(casesLsCmd)
	rootCmd.AddCommand(casesCmd)
}

func runCasesLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	addr := cfg.API.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	url := fmt.Sprintf("http://%s/api/cases", addr)
	params := []string{}
	if casesStatus != "" {
		params = append(params, "status="+casesStatus)
	}
	if casesReporter != "" {
		params = append(params, "reporter="+casesReporter)
	}
	if len(params) > 0 {
		url += "?" + strings.Join(params, "&")
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if cfg.API.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.API.Token)
	}
	cli := &http.Client{Timeout: 10 * time.Second}
	resp, err := cli.Do(req)
	if err != nil {
		return fmt.Errorf("query api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []model.Case
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	w := os.Stdout
	for _, c := range records {
		assigned := c.AssignedOrganizationID
		if assigned == "" {
			assigned = "-"
		}
		fmt.Fprintf(w, "%s\t%s\tseverity=%d\t%s\tassigned=%s\n",
			c.ID, c.Status, c.Severity, c.Grade(), assigned)
	}
	return nil
}
