package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"gmdb/internal/cli"
	_ "gmdb/internal/store/all"
)

func main() {
	if err := godotenv.Overload(); err != nil {
		log.Printf("no .env file found, relying on environment variables")
	}

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
