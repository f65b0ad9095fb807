package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ruteri/campuscred-backend/api/clients"
	"github.com/urfave/cli/v2"
)

var flagServerAddr = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:5000",
	Usage:   "CampusCred server address",
	EnvVars: []string{"CAMPUSCRED_SERVER"},
}
var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 30 * time.Second,
	Usage: "request timeout",
}
var flagTokenID = &cli.Uint64Flag{
	Name:     "token-id",
	Required: true,
	Usage:    "credential token id",
}
var flagToken = &cli.StringFlag{
	Name:     "token",
	Required: true,
	Usage:    "disclosure token from a verifier link",
}
var flagWallet = &cli.StringFlag{
	Name:     "wallet",
	Required: true,
	Usage:    "owner wallet address",
}
var flagOut = &cli.StringFlag{
	Name:  "out",
	Usage: "file to write the signed evidence to. Defaults to the server filename",
}

func main() {
	app := &cli.App{
		Name:  "verify-client",
		Usage: "Verify CampusCred credentials from the command line",
		Flags: []cli.Flag{flagServerAddr, flagTimeout},
		Commands: []*cli.Command{
			{
				Name:  "credential",
				Usage: "show the public view of a credential",
				Flags: []cli.Flag{flagTokenID},
				Action: func(cCtx *cli.Context) error {
					view, err := newClient(cCtx).Credential(cCtx.Context, cCtx.Uint64(flagTokenID.Name))
					if err != nil {
						return err
					}
					return printJSON(view)
				},
			},
			{
				Name:  "link",
				Usage: "issue a verifier link as the credential owner",
				Flags: []cli.Flag{flagTokenID, flagWallet},
				Action: func(cCtx *cli.Context) error {
					link, err := newClient(cCtx).CreateVerifierLink(cCtx.Context, cCtx.Uint64(flagTokenID.Name), cCtx.String(flagWallet.Name))
					if err != nil {
						return err
					}
					return printJSON(link)
				},
			},
			{
				Name:  "private",
				Usage: "show the private view behind a verifier link",
				Flags: []cli.Flag{flagToken},
				Action: func(cCtx *cli.Context) error {
					view, err := newClient(cCtx).PrivateView(cCtx.Context, cCtx.String(flagToken.Name))
					if err != nil {
						return err
					}
					return printJSON(view)
				},
			},
			{
				Name:  "download",
				Usage: "download signed evidence and check its signature",
				Flags: []cli.Flag{flagToken, flagOut},
				Action: func(cCtx *cli.Context) error {
					c := newClient(cCtx)
					token := cCtx.String(flagToken.Name)

					signed, content, err := c.VerifyEvidence(cCtx.Context, token)
					if err != nil {
						return fmt.Errorf("evidence verification failed: %w", err)
					}

					out := cCtx.String(flagOut.Name)
					if out == "" {
						out = "signed_evidence.pdf"
					}
					if err := os.WriteFile(out, content, 0o644); err != nil {
						return err
					}
					fmt.Fprintf(os.Stderr, "signature valid, written to %s\n", out)
					return printJSON(signed)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context) *clients.VerifyClient {
	return clients.NewVerifyClient(cCtx.String(flagServerAddr.Name), cCtx.Duration(flagTimeout.Name))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
