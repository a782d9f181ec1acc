package mentor

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"
)

const DefaultTimeout = 30 * time.Second

// Responder turns a query into renderable text. It never fails: a missing
// key and every backend error resolve to fixed bilingual replies.
type Responder struct {
	backend Backend
	persona string
	timeout time.Duration
}

func NewResponder(b Backend, timeout time.Duration) *Responder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Responder{backend: b, persona: Persona, timeout: timeout}
}

func (r *Responder) Generate(ctx context.Context, query, credential string) string {
	if strings.TrimSpace(credential) == "" {
		log.Debug("no credential, skipping generation")
		return MissingCredentialReply
	}
	if r.backend == nil {
		log.Error("generation failed", "err", errors.New("no backend configured"))
		return ApologyReply
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	text, err := r.backend.Complete(ctx, Request{Persona: r.persona, Query: query}, credential)
	if err != nil {
		log.Error("generation failed", "err", err, "took", time.Since(start))
		return ApologyReply
	}
	text = strings.TrimSpace(text)
	if text == "" {
		log.Error("generation failed", "err", errors.New("empty reply"))
		return ApologyReply
	}

	log.Debug("generated reply", "chars", len(text), "took", time.Since(start))
	return text
}

func (r *Responder) Links(query string) []Link {
	return ReferenceLinks(query)
}
