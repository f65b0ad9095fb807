package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/campuscred-backend/chain"
	"github.com/ruteri/campuscred-backend/claims"
	"github.com/ruteri/campuscred-backend/cmd/flags"
	"github.com/ruteri/campuscred-backend/config"
	"github.com/ruteri/campuscred-backend/disclosure"
	"github.com/ruteri/campuscred-backend/docsign"
	"github.com/ruteri/campuscred-backend/httpserver"
	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/ruteri/campuscred-backend/lifecycle"
	"github.com/ruteri/campuscred-backend/metadata"
	"github.com/ruteri/campuscred-backend/session"
	"github.com/ruteri/campuscred-backend/storage"
	"github.com/urfave/cli/v2"

	vaultapi "github.com/hashicorp/vault/api"
)

const linkSweepInterval = time.Minute

func main() {
	app := &cli.App{
		Name:   "campuscred",
		Usage:  "Serve the CampusCred credential claim, minting and verification API",
		Flags:  append(flags.ServerFlags, flags.CommonFlags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	cfg := flags.LoadConfig(cCtx)
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "err", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openClaimStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	revocations, closeRevocations, err := openRevocationList(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRevocations()

	evidence, err := storage.NewEvidenceStore(cfg.Evidence.URI, storage.EvidenceStoreOptions{
		AccessKey:   cfg.Evidence.AccessKey,
		SecretKey:   cfg.Evidence.SecretKey,
		FallbackDir: cfg.Evidence.LocalDir,
	}, logger)
	if err != nil {
		logger.Error("Failed to create evidence store", "err", err)
		return err
	}
	logger.Info("Evidence store ready", "store", evidence.Name())

	publisher := metadata.NewPublisher(metadata.PublisherConfig{
		PinataURL:       cfg.Publisher.PinataURL,
		PinataAPIKey:    cfg.Publisher.PinataAPIKey,
		PinataSecretKey: cfg.Publisher.PinataSecretKey,
		IPFSAPIAddr:     cfg.Publisher.IPFSAPIAddr,
		Timeout:         cfg.Publisher.Timeout,
	}, logger)

	gateway, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}

	identity, err := docsign.LoadOrCreateIdentity(cfg.Signing.KeyPath, cfg.Signing.CertPath, logger)
	if err != nil {
		logger.Error("Failed to load document signing identity", "err", err)
		return err
	}

	engine := lifecycle.NewEngine(store, evidence, publisher, gateway, lifecycle.Options{
		Issuer:        cfg.Issuer,
		PublicBaseURL: cfg.PublicBaseURL,
	}, logger)

	disclosureSvc := disclosure.NewService(store, gateway, evidence, docsign.NewSigner(identity, logger), disclosure.Options{
		LinkTTL: config.DisclosureTTL,
	}, logger)

	instructor := cfg.Instructor()
	if instructor == "" {
		logger.Warn("No instructor wallet configured, instructor endpoints are unreachable")
	}
	sessions, err := session.NewManager(cfg.SessionSecret, instructor, cfg.SessionTTL, revocations, logger)
	if err != nil {
		return err
	}

	handler := httpserver.NewHandler(engine, disclosureSvc, sessions, identity, httpserver.HandlerOptions{
		PublicBaseURL:  cfg.PublicBaseURL,
		SecureCookies:  cCtx.Bool(flags.SecureCookiesFlag.Name),
		MaxUploadBytes: cCtx.Int64(flags.MaxUploadBytesFlag.Name),
	}, logger)
	server := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)

	go sweepLinks(ctx, disclosureSvc.Links(), logger)

	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	cancel()
	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

func openClaimStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (interfaces.ClaimStore, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("No database configured, claims are kept in memory")
		return claims.NewMemoryStore(), func() {}, nil
	}

	store, db, err := claims.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to open claim database", "err", err)
		return nil, nil, err
	}
	logger.Info("Claim database ready")
	return store, func() { db.Close() }, nil
}

func openRevocationList(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.RevocationList, func(), error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryRevocationList(), func() {}, nil
	}

	client, err := session.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to connect to redis", "err", err)
		return nil, nil, err
	}
	logger.Info("Using redis session revocation list")
	return session.NewRedisRevocationList(client), func() { client.Close() }, nil
}

// newGateway resolves the issuer key and builds the chain gateway. Missing
// chain settings surface when the gateway is first used.
func newGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*chain.Gateway, error) {
	vaultClient, err := newVaultClient(cfg)
	if err != nil {
		logger.Error("Failed to create vault client", "err", err)
		return nil, err
	}

	issuerKey, err := chain.LoadIssuerKey(ctx, cfg.Chain.IssuerKeyRef, vaultClient)
	if err != nil {
		logger.Error("Failed to load issuer key", "err", err)
		return nil, fmt.Errorf("issuer key: %w", err)
	}
	if issuerKey == nil {
		logger.Warn("No issuer key configured, minting and revoking will fail")
	}

	var chainID *big.Int
	if cfg.Chain.ChainID > 0 {
		chainID = big.NewInt(cfg.Chain.ChainID)
	}

	return chain.NewGateway(chain.Config{
		RPCURL:              cfg.Chain.RPCURL,
		ContractAddress:     cfg.Chain.ContractAddress,
		IssuerKey:           issuerKey,
		ChainID:             chainID,
		ConfirmationTimeout: config.ConfirmationTimeout,
	}, logger), nil
}

func newVaultClient(cfg *config.Config) (*vaultapi.Client, error) {
	if cfg.Vault.Addr == "" {
		return nil, nil
	}
	return chain.NewVaultClient(cfg.Vault.Addr, cfg.Vault.Token)
}

func sweepLinks(ctx context.Context, links *disclosure.LinkStore, logger *slog.Logger) {
	ticker := time.NewTicker(linkSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := links.Sweep(); removed > 0 {
				logger.Debug("Swept expired verifier links", "removed", removed)
			}
		}
	}
}
