package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
)

var ErrUnknownVerification = errors.New("unknown verification type")

// Verify checks a traction claim before a pitch. It talks to the backend
// directly and leaves session state alone; the result is handed back to
// Start by the caller.
func (c *Controller) Verify(ctx context.Context, kind models.VerificationType, subject string) (*models.Verification, error) {
	backend := c.deps.Backend
	if backend == nil {
		return nil, ErrNoBackend
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var (
		v   *models.Verification
		err error
	)
	switch kind {
	case models.VerificationTrustMRR:
		v, err = backend.VerifyTrustMRR(ctx, subject)
	case models.VerificationDeFi:
		v, err = backend.VerifyDeFi(ctx, subject)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVerification, kind)
	}
	if err != nil {
		log.Warn().Err(err).Str("type", string(kind)).Str("subject", subject).Msg("verification failed")
		return nil, err
	}

	log.Info().
		Str("type", string(kind)).
		Str("subject", subject).
		Bool("verified", v.Verified).
		Str("level", v.Level).
		Msg("verification checked")
	return v, nil
}

// SearchDeFi finds protocols to verify against.
func (c *Controller) SearchDeFi(ctx context.Context, query string) ([]models.Protocol, error) {
	backend := c.deps.Backend
	if backend == nil {
		return nil, ErrNoBackend
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	return backend.SearchDeFi(ctx, query)
}
