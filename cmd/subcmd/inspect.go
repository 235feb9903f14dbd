package subcmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwuah/steerd/sockdiag"
)

func init() {
	Inspect.PersistentFlags().StringVar(&apiURL, "api", "http://127.0.0.1:7777", "base URL of a running steerd's api")
}

var (
	apiURL string

	Inspect = &cobra.Command{
		Use:   "inspect",
		Short: "Show the steered ports of a running steerd and the listeners they shadow.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}

			var ports struct {
				Ports    []uint16 `json:"ports"`
				Capacity int      `json:"capacity"`
			}
			if err := getJSON(client, apiURL+"/ports", &ports); err != nil {
				return fmt.Errorf("error getting the steered ports: %w", err)
			}

			var socket struct {
				Mode        string `json:"mode"`
				Present     bool   `json:"present"`
				Cookie      uint64 `json:"cookie"`
				Inode       uint32 `json:"inode"`
				Outstanding int64  `json:"outstanding"`
				Pending     int    `json:"pending"`
			}
			if err := getJSON(client, apiURL+"/socket", &socket); err != nil {
				return fmt.Errorf("error getting the dedicated socket: %w", err)
			}

			fmt.Printf("mode: %s\n", socket.Mode)
			fmt.Printf("steered ports (%d/%d): %v\n", len(ports.Ports), ports.Capacity, ports.Ports)
			if !socket.Present {
				fmt.Printf("dedicated socket: none, steered connections are being dropped\n")
			} else {
				fmt.Printf("dedicated socket: present (cookie %#x, inode %d, outstanding %d, pending %d)\n",
					socket.Cookie, socket.Inode, socket.Outstanding, socket.Pending)
			}

			listeners, err := sockdiag.Listeners(nil)
			if err != nil {
				slog.Warn("couldn't inspect the host's listeners", "err", err)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "PORT\tFAMILY\tCOOKIE\tINODE\tUID\tROLE")
			for _, l := range listeners {
				var role string
				switch {
				case isDedicated(l, socket.Inode):
					role = "dedicated socket"
				case slices.Contains(ports.Ports, l.Port):
					role = "shadowed"
				default:
					continue
				}
				fmt.Fprintf(w, "%d\t%s\t%#x\t%d\t%d\t%s\n", l.Port, l.Network(), l.Cookie, l.Inode, l.UID, role)
			}

			return w.Flush()
		},
	}
)

func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("got status %d: %s", resp.StatusCode, body)
	}

	return json.Unmarshal(body, v)
}

// isDedicated tells whether l is the dedicated socket. sock_diag and SO_COOKIE
// can disagree on a socket's cookie, the inode is stable across both.
func isDedicated(l sockdiag.Listener, inode uint32) bool {
	return inode != 0 && l.Inode == inode
}
