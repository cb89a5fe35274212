package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/integrations"
	"github.com/mycelium-labs/mycelium/internal/verify"
)

// errDrift makes verify exit non-zero when a tool disagrees with the
// manifest.
var errDrift = errors.New("drift detected")

var (
	verifyTool string
	verifyType string
	verifyJSON bool
)

func init() {
	verifyCmd.Flags().StringVarP(&verifyTool, "tool", "t", "", "Only check this tool")
	verifyCmd.Flags().StringVar(&verifyType, "type", "", "Item type (skill, mcp, agent, rule, command, hook, memory)")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify [name]",
	Short: "Check that disabled and removed items are gone from every tool",
	Long: `Read each tool's files and report items the manifest marks disabled or
removed that a tool still has. With a name, only that item is checked and
every tool's view of it is shown.

Exits non-zero when drift is found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

type verifyView struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	State   string          `json:"state"`
	Drifted []string        `json:"drifted"`
	Tools   []verifyToolRow `json:"tools,omitempty"`
}

type verifyToolRow struct {
	Tool        string `json:"tool"`
	Present     bool   `json:"present"`
	Location    string `json:"location"`
	Unparseable string `json:"unparseable,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	section, err := parseType(verifyType)
	if err != nil {
		return err
	}
	opts := verify.Options{Type: section}
	if verifyTool != "" {
		id, ok := integrations.ParseToolID(verifyTool)
		if !ok {
			return fmt.Errorf("%w: %q", integrations.ErrUnsupportedTool, verifyTool)
		}
		opts.Tool = id
	}

	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	v := verify.New(verify.Config{Home: ws.userHome, Merged: ws.merged()})

	var results []verify.Result
	if len(args) == 1 {
		res, err := v.VerifyItemState(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		results = []verify.Result{res}
	} else {
		results, err = v.VerifyAll(cmd.Context(), opts)
		if err != nil {
			return err
		}
	}

	views := make([]verifyView, 0, len(results))
	drifted := 0
	for _, r := range results {
		view := verifyView{Name: r.Name, Type: r.Section.Singular(), State: string(r.State), Drifted: r.Drifted}
		if view.Drifted == nil {
			view.Drifted = []string{}
		}
		if len(args) == 1 {
			for _, t := range r.Tools {
				row := verifyToolRow{Tool: t.DisplayName, Present: t.Present, Location: t.Location}
				if t.Unparseable != nil {
					row.Unparseable = t.Unparseable.Error()
				}
				view.Tools = append(view.Tools, row)
			}
		}
		if r.HasDrift() {
			drifted++
		}
		views = append(views, view)
	}

	if verifyJSON {
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printVerify(cmd, views, len(args) == 1)
	}

	if drifted > 0 {
		return fmt.Errorf("%w in %d item(s); run 'sync' to repair", errDrift, drifted)
	}
	return nil
}

func printVerify(cmd *cobra.Command, views []verifyView, detail bool) {
	out := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(out, "No disabled or removed items to check.")
		return
	}

	if detail {
		v := views[0]
		fmt.Fprintf(out, "%s %s (%s)\n", v.Type, v.Name, v.State)
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TOOL\tPRESENT\tLOCATION")
		for _, t := range v.Tools {
			present := "no"
			if t.Present {
				present = "yes"
			}
			if t.Unparseable != "" {
				present += " (unparseable)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Tool, present, t.Location)
		}
		w.Flush()
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tSTATE\tDRIFTED")
	for _, v := range views {
		drift := "-"
		if len(v.Drifted) > 0 {
			drift = fmt.Sprint(v.Drifted)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Type, v.Name, v.State, drift)
	}
	w.Flush()
}
