package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/marmos91/cdapd/pkg/api"
)

var sessionsAPIAddr string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the live CDAP sessions of a running daemon",
	Long: `Query a running daemon's control-plane API and list its CDAP
sessions: port id, connection state and pending operation counts.`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsAPIAddr, "api",
		"http://localhost:8680", "control-plane API base URL")
}

func runSessions(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(sessionsAPIAddr + "/api/v1/sessions")
	if err != nil {
		return fmt.Errorf("control-plane API unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("control-plane API returned %s", resp.Status)
	}

	var wrapper struct {
		Status string            `json:"status"`
		Data   []api.SessionInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return fmt.Errorf("decode session listing: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"PORT", "STATE", "VERSION", "PEER", "PENDING", "RECEIVED"})
	for _, s := range wrapper.Data {
		peer := s.DestAPName
		if s.DestAEName != "" {
			peer += "/" + s.DestAEName
		}
		table.Append([]string{
			strconv.Itoa(s.PortID),
			s.State,
			strconv.FormatInt(s.Version, 10),
			peer,
			strconv.Itoa(s.PendingSent),
			strconv.Itoa(s.PendingRecv),
		})
	}
	table.Render()
	return nil
}
