package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/statuswatch/statuswatch/internal/pkg/errors"
)

// probe checks backend reachability before a socket handshake is attempted.
// Any HTTP response counts as reachable; only transport failures and the
// timeout fail the check. The timeout fails closed.
func probe(ctx context.Context, probeURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return errors.TransportError("building probe request", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.TimeoutError("reachability probe")
		}
		return errors.TransportError("reachability probe", err)
	}
	resp.Body.Close()

	return nil
}
