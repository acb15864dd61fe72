// Command opticctl administers the optic catalog from the shell: schema
// migrations, CSV import and export, resolution lookups and password hashing.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/JonMunkholm/opticfit/internal/core/tables" // Register all tables
)

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp()
	root := newRootCmd(a)
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

// loadEnv reads .env (or the given files) over the process environment, the
// same way the server does. A missing file is not an error.
func loadEnv(files ...string) error {
	if err := godotenv.Overload(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
