// Command flux-server runs the Flux license key server: the public
// validation endpoint plus the authenticated admin API over a local SQLite
// store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flux-server: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "flux-server: %v\n", err)
		os.Exit(1)
	}
}
