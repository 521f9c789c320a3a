package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/agbru/rbergomi/internal/ui"
)

// setCustomUsage configures the flag set with a colored usage function.
func setCustomUsage(fs *flag.FlagSet) {
	fs.Usage = func() {
		t := ui.Current()
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			t = ui.NoColorTheme
		}

		out := fs.Output()

		fmt.Fprintf(out, "\n%sRough Bergomi Monte-Carlo pricer%s\n", t.Bold, t.Reset)
		fmt.Fprintf(out, "Prices European calls over a grid of (H, eta, rho, T, K, xi).\n\n")
		fmt.Fprintf(out, "%sUsage:%s\n  %s\n\n", t.Warning, t.Reset, Usage)
		fmt.Fprintf(out, "With positionals, inputs are read from <path>.<stem>X.txt for X in\nH, eta, rho, T, K, xi and the table is written to <path><outfile>.\n\n")
		fmt.Fprintf(out, "%sFlags:%s\n", t.Warning, t.Reset)

		fs.VisitAll(func(f *flag.Flag) {
			name, usage := flag.UnquoteUsage(f)
			flagSig := fmt.Sprintf("-%s", f.Name)
			if len(name) > 0 {
				flagSig += " " + name
			}

			fmt.Fprintf(out, "  %s%-25s%s %s", t.Primary, flagSig, t.Reset, usage)

			if f.DefValue != "" && f.DefValue != "0" && f.DefValue != "false" {
				fmt.Fprintf(out, " %s(default %s)%s", t.Secondary, f.DefValue, t.Reset)
			}
			fmt.Fprintln(out)
		})
		fmt.Fprintln(out)
	}
}
