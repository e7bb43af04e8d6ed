package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "nutrition-scraper",
		Usage: "collect product nutrition records from retail search results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"SCRAPER_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only log errors",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "scrape the configured search page and save every product",
				Action: RunAction,
			},
			{
				Name:  "extract",
				Usage: "extract one product record from a saved product page",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "html", Usage: "saved product page", Required: true},
					&cli.StringFlag{Name: "url", Usage: "URL the page was saved from", Value: "https://www.walmart.com/ip/snapshot"},
					&cli.StringFlag{Name: "output-dir", Usage: "also save the record into this directory"},
				},
				Action: ExtractAction,
			},
			{
				Name:      "parse",
				Usage:     "parse a nutrition facts text block",
				ArgsUsage: "[file|-]",
				Action:    ParseAction,
			},
			{
				Name:      "resolve",
				Usage:     "print the product URL behind each tracking URL",
				ArgsUsage: "<tracking-url>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Usage: "product URL prefix", Value: "https://www.walmart.com/ip/"},
				},
				Action: ResolveAction,
			},
		},
	}
}
