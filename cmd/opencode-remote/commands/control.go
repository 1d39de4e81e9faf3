package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// controlPort is shared by the commands that talk to a running serve
// instance over its local control API.
var controlPort int

var connectCmd = &cobra.Command{
	Use:   "connect <id|name|url>",
	Short: "Connect a server on the running engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := controlPost("/servers/" + args[0] + "/connect"); err != nil {
			return err
		}
		fmt.Printf("connecting %s\n", args[0])
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect [id|name|url]",
	Short: "Disconnect one server, or all with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		switch {
		case all:
			return controlPost("/disconnect-all")
		case len(args) == 1:
			return controlPost("/servers/" + args[0] + "/disconnect")
		default:
			return fmt.Errorf("specify a server or --all")
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection state of the running engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		var state struct {
			Connected  []string       `json:"connected"`
			Connecting []string       `json:"connecting"`
			Sessions   map[string]int `json:"sessions"`
		}
		if err := controlGet("/state", &state); err != nil {
			return err
		}

		if len(state.Connected) == 0 && len(state.Connecting) == 0 {
			fmt.Println("no servers connected")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVER\tSTATE\tSESSIONS")
		for _, id := range state.Connected {
			fmt.Fprintf(w, "%s\tconnected\t%d\n", id, state.Sessions[id])
		}
		for _, id := range state.Connecting {
			fmt.Fprintf(w, "%s\tconnecting\t%d\n", id, state.Sessions[id])
		}
		return w.Flush()
	},
}

func init() {
	for _, cmd := range []*cobra.Command{connectCmd, disconnectCmd, statusCmd} {
		cmd.Flags().IntVar(&controlPort, "port", 7654, "Control API port of the running engine")
	}
	disconnectCmd.Flags().Bool("all", false, "Disconnect every server")
}

func controlClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func controlURL(path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", controlPort, path)
}

func controlPost(path string) error {
	resp, err := controlClient().Post(controlURL(path), "application/json", nil)
	if err != nil {
		return fmt.Errorf("is 'opencode-remote serve' running? %w", err)
	}
	defer resp.Body.Close()
	return controlError(resp)
}

func controlGet(path string, out any) error {
	resp, err := controlClient().Get(controlURL(path))
	if err != nil {
		return fmt.Errorf("is 'opencode-remote serve' running? %w", err)
	}
	defer resp.Body.Close()
	if err := controlError(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// controlError turns a non-2xx control API response into an error using
// the API's error envelope when present.
func controlError(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		return fmt.Errorf("%s", envelope.Error.Message)
	}
	return fmt.Errorf("control API returned %s", resp.Status)
}
