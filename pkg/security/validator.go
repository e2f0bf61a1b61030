package security

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
)

// HeaderSecret is the request header that may carry the shared secret.
const HeaderSecret = "x-custom-secret"

// Accepted probe states.
const (
	StateNotResponding  = "Not Responding"
	StateRequestTimeout = "Request Timeout"
	PrefixReportingErr  = "Reporting Error"
)

// SignalKind classifies a reported health state.
type SignalKind string

const (
	SignalNotResponding  SignalKind = "not_responding"
	SignalRequestTimeout SignalKind = "request_timeout"
	SignalReportingError SignalKind = "reporting_error"
)

// Signal is a classified health signal. Reason carries the text after the
// "Reporting Error" prefix, if any.
type Signal struct {
	Kind   SignalKind
	Raw    string
	Reason string
}

// Payload is the inbound JSON body of a probe report.
type Payload struct {
	Secret        string `json:"secret"`
	ResponseState string `json:"responseState" validate:"required"`
}

// Report is an authorized, classified probe report.
type Report struct {
	Signal Signal
}

// Validator authenticates probe reports and classifies their health signal.
type Validator struct {
	secret   []byte
	validate *validator.Validate
}

// NewValidator creates a validator for the given shared secret.
func NewValidator(secret string) *Validator {
	slog.Info("security_validator_init", "secret_configured", secret != "")
	return &Validator{
		secret:   []byte(secret),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Authorize accepts when either channel carries the configured secret.
// An empty configured secret never authorizes.
func (v *Validator) Authorize(headerSecret, payloadSecret string) error {
	if len(v.secret) == 0 {
		return errors.Newf(errors.KindAuthorization, "authorize", "no secret configured")
	}
	header := subtle.ConstantTimeCompare([]byte(headerSecret), v.secret) == 1
	payload := subtle.ConstantTimeCompare([]byte(payloadSecret), v.secret) == 1
	if header || payload {
		return nil
	}
	return errors.Newf(errors.KindAuthorization, "authorize", "secret mismatch")
}

// ClassifySignal maps a reported state onto a signal kind.
func ClassifySignal(state string) (Signal, error) {
	switch {
	case state == StateNotResponding:
		return Signal{Kind: SignalNotResponding, Raw: state}, nil
	case state == StateRequestTimeout:
		return Signal{Kind: SignalRequestTimeout, Raw: state}, nil
	case strings.HasPrefix(state, PrefixReportingErr):
		reason := strings.TrimSpace(strings.TrimPrefix(state, PrefixReportingErr))
		reason = strings.TrimSpace(strings.TrimLeft(reason, ":-"))
		return Signal{Kind: SignalReportingError, Raw: state, Reason: reason}, nil
	default:
		return Signal{}, errors.Newf(errors.KindSignalValidation, "classify", "unrecognized response state %q", state)
	}
}

// Validate runs both checks and returns a single rejection if either fails.
// An authorization failure is reported in preference to a signal failure.
func (v *Validator) Validate(headerSecret string, p Payload) (*Report, error) {
	authErr := v.Authorize(headerSecret, p.Secret)

	var signal Signal
	sigErr := v.validate.Struct(p)
	if sigErr != nil {
		sigErr = errors.New(errors.KindSignalValidation, "validate", sigErr)
	} else {
		signal, sigErr = ClassifySignal(p.ResponseState)
	}

	if authErr != nil {
		slog.Warn("report_rejected", "reason", errors.KindAuthorization.String())
		return nil, authErr
	}
	if sigErr != nil {
		slog.Warn("report_rejected", "reason", errors.KindSignalValidation.String(), "response_state", p.ResponseState)
		return nil, sigErr
	}

	slog.Info("report_accepted", "signal", signal.Kind, "reason", signal.Reason)
	return &Report{Signal: signal}, nil
}

// Malformed returns the rejection for a body that could not be decoded.
func Malformed(err error) error {
	return errors.New(errors.KindSignalValidation, "decode", fmt.Errorf("malformed payload: %w", err))
}
