package main

import (
	"fmt"
	"text/tabwriter"

	"callsieve/internal/parser"

	"github.com/spf13/cobra"
)

type formatInfo struct {
	Name      string               `json:"name"`
	Opener    string               `json:"opener"`
	Closer    string               `json:"closer"`
	Structure parser.StructureInfo `json:"structure"`
}

func newFormatsCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the supported tool call formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := describeFormats()
			if err != nil {
				return err
			}
			if asJSON {
				return writeIndentedJSON(a.stdout, infos)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, a.palette.bold("FORMAT")+"\t"+a.palette.bold("OPENER")+"\t"+a.palette.bold("CLOSER")+"\t"+a.palette.bold("BEGIN"))
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.palette.cyan(info.Name), info.Opener, info.Closer, info.Structure.Begin)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// describeFormats reports every registered format, with the framing shown
// for a placeholder tool name.
func describeFormats() ([]formatInfo, error) {
	names := parser.Formats()
	infos := make([]formatInfo, 0, len(names))
	for _, name := range names {
		detector, err := parser.New(name)
		if err != nil {
			return nil, err
		}
		info := formatInfo{Name: name, Structure: detector.StructureInfo()("<name>")}
		if d, ok := detector.(interface{ Delimiters() (string, string) }); ok {
			info.Opener, info.Closer = d.Delimiters()
		}
		infos = append(infos, info)
	}
	return infos, nil
}
