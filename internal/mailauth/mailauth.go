// Package mailauth consumes SPF/DKIM/DMARC verdicts for inbound mail and
// decides whether a message passes the authentication gate. Computing the
// verdicts (DNS lookups, signature cryptography) is the verifier's job;
// this package only evaluates its results against the configured policy.
package mailauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Verdict is one authentication check outcome, using the usual
// Authentication-Results vocabulary.
type Verdict string

const (
	VerdictPass      Verdict = "pass"
	VerdictFail      Verdict = "fail"
	VerdictSoftFail  Verdict = "softfail"
	VerdictNeutral   Verdict = "neutral"
	VerdictNone      Verdict = "none"
	VerdictTempError Verdict = "temperror"
	VerdictPermError Verdict = "permerror"
)

// Result carries the three verdicts for one message.
type Result struct {
	SPF   Verdict
	DKIM  Verdict
	DMARC Verdict
}

// Session is the transport metadata the verifier needs alongside the raw
// message bytes.
type Session struct {
	RemoteAddr string
	HELO       string
	Sender     string
}

// Verifier computes authentication verdicts for a raw message.
type Verifier interface {
	Verify(ctx context.Context, raw []byte, sess Session) (Result, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, raw []byte, sess Session) (Result, error)

func (f VerifierFunc) Verify(ctx context.Context, raw []byte, sess Session) (Result, error) {
	return f(ctx, raw, sess)
}

// Bypass passes every message. Used when auth.bypass is configured.
var Bypass = VerifierFunc(func(context.Context, []byte, Session) (Result, error) {
	return Result{SPF: VerdictPass, DKIM: VerdictPass, DMARC: VerdictPass}, nil
})

// Unverified reports "none" for every check, for deployments where no
// external verifier is wired in. Absent verdicts pass the default
// policy; they only lose the protection the verifier would add.
var Unverified = VerifierFunc(func(context.Context, []byte, Session) (Result, error) {
	return Result{SPF: VerdictNone, DKIM: VerdictNone, DMARC: VerdictNone}, nil
})

// Policy pins down which partial results reject. A DKIM or DMARC hard
// failure always rejects; an SPF failure is logged-only unless
// RejectSPFFail is set.
type Policy struct {
	RejectSPFFail bool
}

// ErrAuthRejected is wrapped by every rejection Evaluate produces.
var ErrAuthRejected = errors.New("mailauth: message rejected")

// Evaluate applies the policy to a result. A nil return means the gate
// passed; SPF soft-fails and absent verdicts never reject on their own.
func (p Policy) Evaluate(res Result, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if res.DKIM == VerdictFail || res.DKIM == VerdictPermError {
		return fmt.Errorf("%w: dkim verdict %q", ErrAuthRejected, res.DKIM)
	}
	if res.DMARC == VerdictFail {
		return fmt.Errorf("%w: dmarc verdict %q", ErrAuthRejected, res.DMARC)
	}

	if res.SPF == VerdictFail {
		if p.RejectSPFFail {
			return fmt.Errorf("%w: spf verdict %q", ErrAuthRejected, res.SPF)
		}
		logger.Warn("spf check failed, accepting per policy", "spf", string(res.SPF))
	}
	return nil
}
