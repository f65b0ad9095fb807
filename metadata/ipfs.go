package metadata

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/campuscred-backend/interfaces"
)

// IPFSPublisher adds metadata documents to an IPFS node and pins them.
type IPFSPublisher struct {
	shell   *shell.Shell
	apiAddr string
	log     *slog.Logger
}

// NewIPFSPublisher connects to the IPFS HTTP API at apiAddr (host:port).
func NewIPFSPublisher(apiAddr string, timeout time.Duration, log *slog.Logger) *IPFSPublisher {
	sh := shell.NewShell(apiAddr)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}
	return &IPFSPublisher{
		shell:   sh,
		apiAddr: apiAddr,
		log:     log,
	}
}

// Publish adds and pins the canonical document. The shell has no context
// aware add, so the upload runs in the background and Publish returns as soon
// as ctx is done; the shell timeout bounds the abandoned request.
func (p *IPFSPublisher) Publish(ctx context.Context, doc interfaces.CredentialMetadata) (string, error) {
	start := time.Now()

	data, err := CanonicalJSON(doc)
	if err != nil {
		return "", err
	}

	if err := p.shell.Request("version").Exec(ctx, nil); err != nil {
		return "", fmt.Errorf("failed to upload to IPFS: node at %s unavailable: %w", p.apiAddr, err)
	}

	type addResult struct {
		cid string
		err error
	}
	done := make(chan addResult, 1)
	go func() {
		cid, err := p.shell.Add(bytes.NewReader(data), shell.Pin(true))
		done <- addResult{cid: cid, err: err}
	}()

	var res addResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil {
		p.log.Error("IPFS add failed",
			slog.String("api", p.apiAddr),
			"err", res.err,
			slog.Duration("duration", time.Since(start)))
		return "", fmt.Errorf("failed to upload to IPFS: %w", res.err)
	}

	uri := "ipfs://" + res.cid
	p.log.Info("Uploaded metadata to IPFS",
		slog.String("uri", uri),
		slog.Duration("duration", time.Since(start)))
	return uri, nil
}

func (p *IPFSPublisher) Name() string {
	return fmt.Sprintf("ipfs-%s", p.apiAddr)
}
