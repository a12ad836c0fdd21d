// Command zoho-init exchanges a one-time Zoho authorization code for the
// first token record and writes it to the configured token store.
//
// Generate the code in the Zoho API console with access_type=offline and
// the ZohoCRM.modules.leads.ALL scope, then run:
//
//	zoho-init -code 1000.xxxx.yyyy
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/zoho-lead-gateway/internal/config"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/integration/zoho"
	"github.com/xavierca1/zoho-lead-gateway/internal/infra/tokenstore"
	"github.com/xavierca1/zoho-lead-gateway/internal/usecase"
)

func main() {
	code := flag.String("code", "", "one-time authorization code from the Zoho API console")
	flag.Parse()

	if *code == "" {
		fmt.Fprintln(os.Stderr, "usage: zoho-init -code <authorization code>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.ZohoHTTPTimeout)
	defer cancel()

	store, backends, err := tokenstore.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("opening token store", zap.Error(err))
	}
	defer backends.Close()

	accounts := zoho.NewAccountsClient(cfg.ZohoAccountsURL, cfg.ZohoClientID, cfg.ZohoClientSecret, cfg.ZohoRedirectURI, cfg.ZohoHTTPTimeout)
	tokens := usecase.NewTokenManager(store, accounts, cfg.TokenSafetyMargin, logger)

	rec, err := tokens.Initialize(ctx, *code)
	if err != nil {
		logger.Error("authorization failed", zap.String("code", usecase.ErrorCode(err)), zap.Error(err))
		backends.Close()
		os.Exit(1)
	}

	fmt.Printf("Zoho authorized. Token stored in %s backend, access token %s expires at %s.\n",
		cfg.TokenStore, usecase.MaskSecret(rec.AccessToken), rec.ExpiresAt.Format(time.RFC3339))
}
