// Command rbergomi prices European calls under the rough Bergomi model by
// Monte-Carlo simulation over a grid of parameter rows.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agbru/rbergomi/internal/app"
	"github.com/agbru/rbergomi/internal/config"
	apperrors "github.com/agbru/rbergomi/internal/errors"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if app.HasVersionFlag(args[1:]) {
		app.PrintVersion(os.Stdout, app.HasJSONFlag(args[1:]))
		return apperrors.ExitSuccess
	}

	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	application, err := app.New(args, os.Stderr)
	if err != nil {
		if app.IsHelpError(err) {
			return apperrors.ExitSuccess
		}
		return apperrors.ExitCodeFor(err)
	}
	return application.Run(context.Background(), os.Stdout)
}
