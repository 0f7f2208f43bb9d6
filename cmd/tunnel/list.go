package tunnel

import (
	"fmt"
	"time"

	"kairo-keeper/internal/models"
	"kairo-keeper/internal/utils"

	"github.com/iancoleman/orderedmap"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all running tunnels",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		tunnels, err := client.List()
		if err != nil {
			return serverError(err)
		}
		if len(tunnels) == 0 {
			fmt.Println("No running tunnels")
			return nil
		}
		return listAllTunnels(tunnels)
	},
}

/**
 *	Fields displayed in list format
 */
type Tunnel_Columns struct {
	TunnelId  int    `json:"tunnel_id"`
	Pid       int    `json:"pid"`
	Status    string `json:"status"`
	Healthy   string `json:"healthy"`
	StartTime string `json:"start_time"`
	Binary    string `json:"binary"`
}

/**
 * List all tunnels with formatted output
 * @param {[]models.TunnelRecord} tunnels - Tunnels to display
 * @returns {error} Returns error if listing fails, nil on success
 * @description
 * - Healthy is Y when the PID is still alive on this host
 */
func listAllTunnels(tunnels []models.TunnelRecord) error {
	var dataList []*orderedmap.OrderedMap
	for _, tunnel := range tunnels {
		row := Tunnel_Columns{
			TunnelId:  tunnel.TunnelId,
			Pid:       tunnel.Pid,
			Status:    string(tunnel.Status),
			StartTime: tunnel.StartTime.Format(time.RFC3339),
			Binary:    tunnel.Binary,
		}
		if running, err := utils.IsProcessRunning(row.Pid); err == nil && running {
			row.Healthy = "Y"
		} else {
			row.Healthy = "N"
		}

		recordMap, err := utils.StructToOrderedMap(row)
		if err != nil {
			return err
		}
		dataList = append(dataList, recordMap)
	}

	utils.PrintFormat(dataList)
	return nil
}

func init() {
	tunnelCmd.AddCommand(listCmd)
}
