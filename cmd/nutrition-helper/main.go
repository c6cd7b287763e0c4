package main

import (
	"context"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/valerioformato/nutrition-helper/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
