package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/common"
	"github.com/ruteri/campuscred-backend/config"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		// Approvals wait for mint confirmation.
		WriteTimeout:   config.ConfirmationTimeout + 60*time.Second,
		SecureCookies:  cCtx.Bool(SecureCookiesFlag.Name),
		MaxUploadBytes: cCtx.Int64(MaxUploadBytesFlag.Name),
	}
}

// LoadConfig builds the typed configuration from flags and environment.
func LoadConfig(cCtx *cli.Context) *config.Config {
	cfg := config.Default()
	cfg.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	cfg.PublicBaseURL = cCtx.String(PublicBaseURLFlag.Name)
	cfg.Issuer = cCtx.String(IssuerFlag.Name)
	cfg.InstructorWallet = cCtx.String(InstructorWalletFlag.Name)
	cfg.DatabaseURL = cCtx.String(DatabaseURLFlag.Name)
	cfg.RedisURL = cCtx.String(RedisURLFlag.Name)
	cfg.SessionSecret = cCtx.String(SessionSecretFlag.Name)
	cfg.SessionTTL = cCtx.Duration(SessionTTLFlag.Name)

	cfg.Chain = config.Chain{
		RPCURL:          cCtx.String(RpcURLFlag.Name),
		ContractAddress: cCtx.String(ContractAddressFlag.Name),
		IssuerKeyRef:    cCtx.String(IssuerKeyFlag.Name),
		ChainID:         cCtx.Int64(ChainIDFlag.Name),
	}
	cfg.Publisher = config.Publisher{
		PinataURL:       cCtx.String(PinataURLFlag.Name),
		PinataAPIKey:    cCtx.String(PinataAPIKeyFlag.Name),
		PinataSecretKey: cCtx.String(PinataSecretKeyFlag.Name),
		IPFSAPIAddr:     cCtx.String(IPFSAPIAddrFlag.Name),
		Timeout:         config.DefaultPublishTimeout,
	}
	cfg.Evidence = config.Evidence{
		URI:       cCtx.String(EvidenceStoreFlag.Name),
		LocalDir:  cCtx.String(EvidenceDirFlag.Name),
		AccessKey: cCtx.String(AWSAccessKeyFlag.Name),
		SecretKey: cCtx.String(AWSSecretKeyFlag.Name),
	}
	cfg.Vault = config.Vault{
		Addr:  cCtx.String(VaultAddrFlag.Name),
		Token: cCtx.String(VaultTokenFlag.Name),
	}
	cfg.Signing = config.Signing{
		KeyPath:  cCtx.String(SigningKeyPathFlag.Name),
		CertPath: cCtx.String(SigningCertPathFlag.Name),
	}
	return cfg
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   config.DefaultListenAddr,
	Usage:   "address to listen on for API",
	EnvVars: []string{"LISTEN_ADDR"},
}

var PublicBaseURLFlag = &cli.StringFlag{
	Name:    "public-base-url",
	Value:   config.DefaultPublicBaseURL,
	Usage:   "externally reachable base URL, used in credential metadata and verifier links",
	EnvVars: []string{"PUBLIC_BASE_URL"},
}

var IssuerFlag = &cli.StringFlag{
	Name:    "issuer",
	Value:   "CampusCred",
	Usage:   "issuing institution named in credential metadata",
	EnvVars: []string{"CREDENTIAL_ISSUER"},
}

var InstructorWalletFlag = &cli.StringFlag{
	Name:    "instructor-wallet",
	Usage:   "the only wallet address allowed on instructor endpoints",
	EnvVars: []string{"INSTRUCTOR_WALLET"},
}

var DatabaseURLFlag = &cli.StringFlag{
	Name:    "database-url",
	Usage:   "postgres DSN for the claim table. In-memory when empty",
	EnvVars: []string{"DATABASE_URL"},
}

var RedisURLFlag = &cli.StringFlag{
	Name:    "redis-url",
	Usage:   "redis URL for the shared session revocation list. In-memory when empty",
	EnvVars: []string{"REDIS_URL"},
}

var SessionSecretFlag = &cli.StringFlag{
	Name:    "session-secret",
	Usage:   "HMAC key for session tokens. A random per-process key is used when empty",
	EnvVars: []string{"SESSION_SECRET"},
}

var SessionTTLFlag = &cli.DurationFlag{
	Name:    "session-ttl",
	Value:   24 * time.Hour,
	Usage:   "lifetime of a wallet session",
	EnvVars: []string{"SESSION_TTL"},
}

var SecureCookiesFlag = &cli.BoolFlag{
	Name:    "secure-cookies",
	Usage:   "mark session cookies Secure (enable behind TLS)",
	EnvVars: []string{"SECURE_COOKIES"},
}

var MaxUploadBytesFlag = &cli.Int64Flag{
	Name:    "max-upload-bytes",
	Value:   16 << 20,
	Usage:   "maximum size of a claim submission including evidence",
	EnvVars: []string{"MAX_UPLOAD_BYTES"},
}

var RpcURLFlag = &cli.StringFlag{
	Name:    "rpc-url",
	Usage:   "Ethereum JSON-RPC endpoint",
	EnvVars: []string{"SEPOLIA_RPC_URL", "RPC_URL"},
}

var ContractAddressFlag = &cli.StringFlag{
	Name:    "contract-address",
	Usage:   "credential NFT contract address",
	EnvVars: []string{"CONTRACT_ADDRESS"},
}

var IssuerKeyFlag = &cli.StringFlag{
	Name:    "issuer-key",
	Usage:   "issuer private key: hex, file://path or vault://mount/path#field",
	EnvVars: []string{"DEPLOYER_PRIVATE_KEY"},
}

var ChainIDFlag = &cli.Int64Flag{
	Name:    "chain-id",
	Usage:   "chain id override. Read from the node when 0",
	EnvVars: []string{"CHAIN_ID"},
}

var PinataURLFlag = &cli.StringFlag{
	Name:    "pinata-url",
	Value:   config.DefaultPinataURL,
	Usage:   "Pinata API base URL",
	EnvVars: []string{"PINATA_API_URL"},
}

var PinataAPIKeyFlag = &cli.StringFlag{
	Name:    "pinata-api-key",
	EnvVars: []string{"PINATA_API_KEY"},
}

var PinataSecretKeyFlag = &cli.StringFlag{
	Name:    "pinata-secret-api-key",
	EnvVars: []string{"PINATA_SECRET_API_KEY"},
}

var IPFSAPIAddrFlag = &cli.StringFlag{
	Name:    "ipfs-api-addr",
	Usage:   "IPFS node API address, used when Pinata is not configured",
	EnvVars: []string{"IPFS_API_ADDR"},
}

var EvidenceStoreFlag = &cli.StringFlag{
	Name:    "evidence-store",
	Usage:   "evidence location: file:///dir or s3://[key:secret@]bucket/prefix?region=..&endpoint=..",
	EnvVars: []string{"EVIDENCE_STORE"},
}

var EvidenceDirFlag = &cli.StringFlag{
	Name:    "evidence-dir",
	Value:   config.DefaultEvidenceDir,
	Usage:   "local evidence directory used when no evidence store is configured",
	EnvVars: []string{"UPLOAD_FOLDER"},
}

var AWSAccessKeyFlag = &cli.StringFlag{
	Name:    "aws-access-key-id",
	EnvVars: []string{"AWS_ACCESS_KEY_ID"},
}

var AWSSecretKeyFlag = &cli.StringFlag{
	Name:    "aws-secret-access-key",
	EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
}

var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	EnvVars: []string{"VAULT_ADDR"},
}

var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	EnvVars: []string{"VAULT_TOKEN"},
}

var SigningKeyPathFlag = &cli.StringFlag{
	Name:    "signing-key-path",
	Value:   config.DefaultSigningKeyPath,
	Usage:   "PEM private key of the document signer, created when missing",
	EnvVars: []string{"SIGNING_KEY_PATH"},
}

var SigningCertPathFlag = &cli.StringFlag{
	Name:    "signing-cert-path",
	Value:   config.DefaultSigningCert,
	Usage:   "PEM certificate of the document signer, created when missing",
	EnvVars: []string{"SIGNING_CERT_PATH"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "campuscred",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: []string{"METRICS_ADDR"},
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PublicBaseURLFlag,
	IssuerFlag,
	InstructorWalletFlag,
	DatabaseURLFlag,
	RedisURLFlag,
	SessionSecretFlag,
	SessionTTLFlag,
	SecureCookiesFlag,
	MaxUploadBytesFlag,
	RpcURLFlag,
	ContractAddressFlag,
	IssuerKeyFlag,
	ChainIDFlag,
	PinataURLFlag,
	PinataAPIKeyFlag,
	PinataSecretKeyFlag,
	IPFSAPIAddrFlag,
	EvidenceStoreFlag,
	EvidenceDirFlag,
	AWSAccessKeyFlag,
	AWSSecretKeyFlag,
	VaultAddrFlag,
	VaultTokenFlag,
	SigningKeyPathFlag,
	SigningCertPathFlag,
}
