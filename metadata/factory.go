package metadata

import (
	"log/slog"
	"time"

	"github.com/ruteri/campuscred-backend/interfaces"
)

// PublisherConfig selects and configures the metadata publisher.
type PublisherConfig struct {
	PinataURL       string
	PinataAPIKey    string
	PinataSecretKey string
	IPFSAPIAddr     string
	Timeout         time.Duration
}

// NewPublisher returns the Pinata publisher when API credentials are set,
// the IPFS node publisher when an API address is set, and the deterministic
// mock publisher otherwise.
func NewPublisher(cfg PublisherConfig, log *slog.Logger) interfaces.MetadataPublisher {
	switch {
	case cfg.PinataAPIKey != "" && cfg.PinataSecretKey != "":
		log.Info("Using Pinata metadata publisher")
		return NewPinataPublisher(cfg.PinataURL, cfg.PinataAPIKey, cfg.PinataSecretKey, cfg.Timeout, log)
	case cfg.IPFSAPIAddr != "":
		log.Info("Using IPFS node metadata publisher", slog.String("api", cfg.IPFSAPIAddr))
		return NewIPFSPublisher(cfg.IPFSAPIAddr, cfg.Timeout, log)
	default:
		log.Warn("Pinata credentials not configured, using mock IPFS publisher")
		return NewMockPublisher(log)
	}
}
