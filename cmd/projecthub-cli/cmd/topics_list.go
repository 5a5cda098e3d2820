package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/projecthub/internal/topics"

	// Importing the feature packages runs their topic definitions, so the
	// registry the CLI inspects matches what the server actually uses.
	_ "github.com/nfrund/projecthub/internal/chat"
	_ "github.com/nfrund/projecthub/internal/rooms"
	_ "github.com/nfrund/projecthub/internal/websocket"
	_ "github.com/nfrund/projecthub/internal/whiteboard"
)

var (
	listOutputFormat string
	listModuleFilter string
	listClientOnly   bool
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Inspect the topics flowing over the pub/sub bus",
}

// topicsListCmd represents the topics list command
var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered topics",
	Long: `List all topics registered on the pub/sub bus.

Client-publishable topics double as the whitelist of actions a WebSocket
client may send; everything else is server-internal.

Examples:
  projecthub-cli topics list                    # All topics in table format
  projecthub-cli topics list --format json      # Machine-readable output
  projecthub-cli topics list --module chat      # Only the chat module's topics
  projecthub-cli topics list --client           # Only client-publishable actions`,
	Run: topicsListHandler,
}

func topicsListHandler(cmd *cobra.Command, args []string) {
	var topicList []topics.Topic
	for _, t := range topics.Default().List() {
		if listModuleFilter != "" && t.Module != listModuleFilter {
			continue
		}
		if listClientOnly && !t.ClientPublishable {
			continue
		}
		topicList = append(topicList, t)
	}

	if len(topicList) == 0 {
		fmt.Println("No topics found")
		return
	}

	switch listOutputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(topicList); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
			os.Exit(1)
		}
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOPIC\tMODULE\tCLIENT\tDESCRIPTION")
		for _, t := range topicList {
			client := ""
			if t.ClientPublishable {
				client = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Module, client, t.Description)
		}
		w.Flush()
	default:
		fmt.Fprintf(os.Stderr, "Error: Unsupported output format '%s'. Use 'table' or 'json'\n", listOutputFormat)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(topicsCmd)
	topicsCmd.AddCommand(topicsListCmd)

	topicsListCmd.Flags().StringVarP(&listOutputFormat, "format", "f", "table", "Output format (table, json)")
	topicsListCmd.Flags().StringVarP(&listModuleFilter, "module", "m", "", "Filter topics by module name")
	topicsListCmd.Flags().BoolVar(&listClientOnly, "client", false, "Show only client-publishable actions")
}
