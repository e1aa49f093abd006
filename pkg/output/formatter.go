package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ritzau/wfc/pkg/compiler"
	"github.com/ritzau/wfc/pkg/inject"
	"github.com/ritzau/wfc/pkg/model"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// PrintCompileReport summarizes a compilation: node count, warnings and,
// when given, the execution order.
func PrintCompileReport(w io.Writer, source string, res *compiler.Result, order []string) {
	bold.Fprintf(w, "Compiled %s\n", source)
	fmt.Fprintf(w, "Nodes: %d\n", len(res.Graph))

	if len(order) > 0 {
		fmt.Fprintln(w, "Execution order:")
		for i, id := range order {
			node := res.Graph[id]
			if node == nil {
				continue
			}
			fmt.Fprintf(w, "  %2d. ", i+1)
			cyan.Fprintf(w, "%s", id)
			fmt.Fprintf(w, " %s", node.ClassType)
			if title := node.Title(); title != "" {
				fmt.Fprintf(w, " (%s)", title)
			}
			fmt.Fprintln(w)
		}
	}

	printWarnings(w, res.Warnings)
}

// PrintValidation prints the outcome of a validation run.
func PrintValidation(w io.Writer, source string, res compiler.ValidationResult) {
	if res.Valid {
		green.Fprintf(w, "✓ %s is a valid execution graph\n", source)
		return
	}
	red.Fprintf(w, "✗ %s is invalid (%d error(s))\n", source, len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}

// PrintInjectReport lists the writes and misses of an injection.
func PrintInjectReport(w io.Writer, report inject.Report) {
	if len(report.Applied) > 0 {
		bold.Fprintln(w, "Injected:")
		for _, a := range report.Applied {
			fmt.Fprintf(w, "  %s → node ", a.Name)
			cyan.Fprintf(w, "%s", a.NodeID)
			fmt.Fprintf(w, " at %s\n", a.Path)
		}
	}
	printWarnings(w, report.Warnings)
}

func printWarnings(w io.Writer, warnings []model.Warning) {
	if len(warnings) == 0 {
		green.Fprintln(w, "No warnings")
		return
	}
	yellow.Fprintf(w, "%d warning(s):\n", len(warnings))
	for _, warn := range warnings {
		yellow.Fprint(w, "  ! ")
		fmt.Fprintln(w, warn.String())
	}
}
