package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PabloGalante/quiet-room/internal/app/protocol"
	"github.com/PabloGalante/quiet-room/internal/app/session"
	"github.com/PabloGalante/quiet-room/internal/domain"
	"github.com/PabloGalante/quiet-room/internal/observability"
)

// Service drives the room: it turns witness actions into transport requests
// and applies what comes back to the session machine. The remote call is made
// outside the machine lock; the turn lock keeps it to one request at a time.
type Service struct {
	machine     *session.Machine
	transport   domain.Transport
	creds       domain.CredentialStore
	projector   protocol.Projector
	temperature float32
	now         func() time.Time
}

// Options tunes the remote calls. Temperature is passed through as is, zero
// included; defaults belong to config.
type Options struct {
	Temperature  float32
	HistoryLimit int
}

func NewService(
	machine *session.Machine,
	transport domain.Transport,
	creds domain.CredentialStore,
	opts Options,
) *Service {
	return &Service{
		machine:     machine,
		transport:   transport,
		creds:       creds,
		projector:   protocol.NewProjector(opts.HistoryLimit),
		temperature: opts.Temperature,
		now:         time.Now,
	}
}

func (s *Service) Snapshot() session.Snapshot {
	return s.machine.Snapshot()
}

// Vendor is the name of the configured transport.
func (s *Service) Vendor() string {
	return s.transport.Name()
}

// HasCredential reports whether a stored credential passes the vendor check.
func (s *Service) HasCredential(ctx context.Context) (bool, error) {
	key, err := s.creds.Load(ctx)
	if errors.Is(err, domain.ErrCredentialMissing) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading credential: %w", err)
	}
	return s.transport.CheckCredential(key) == nil, nil
}

// SaveCredential validates key against the vendor prefix and stores it.
// A rejected key is never written.
func (s *Service) SaveCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if err := s.transport.CheckCredential(key); err != nil {
		return err
	}
	if err := s.creds.Save(ctx, key); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("credential saved", "vendor", s.transport.Name())
	return nil
}

// ResetCredential purges the stored key and discards the session.
func (s *Service) ResetCredential(ctx context.Context) error {
	s.machine.ForceEnd()
	if err := s.creds.Purge(ctx); err != nil {
		return fmt.Errorf("purging credential: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("credential reset", "vendor", s.transport.Name())
	return nil
}

// Begin leaves IDLE for CONFIGURING. It fails with ErrCredentialMissing when
// no usable credential is stored.
func (s *Service) Begin(ctx context.Context) error {
	ok, err := s.HasCredential(ctx)
	if err != nil {
		return err
	}
	if err := s.machine.Begin(ok); err != nil {
		return err
	}
	s.logger(ctx).Info("session configuring")
	return nil
}

func (s *Service) Calibrate(ctx context.Context, profile domain.WitnessProfile) error {
	if err := s.machine.Calibrate(profile); err != nil {
		return err
	}
	s.logger(ctx).Debug("profile calibrated", "moods", len(profile.Moods))
	return nil
}

// AdmissionOutput is the outcome of Orient.
type AdmissionOutput struct {
	Decision domain.Decision
	Message  string
	// Soft is set when the decline came from a transport failure rather than
	// from the model.
	Soft bool
}

// Orient freezes the profile and asks the model whether it will engage.
func (s *Service) Orient(ctx context.Context) (*AdmissionOutput, error) {
	profile, err := s.machine.StartOrienting()
	if err != nil {
		return nil, err
	}

	log := s.logger(ctx)
	log.Info("orienting")

	prompt := protocol.AdmissionPrompt(profile)
	start := s.now()
	raw, err := s.transport.Request(ctx, prompt.System, prompt.Payload, s.temperature)
	elapsed := s.now().Sub(start).Milliseconds()

	if err != nil {
		if domain.IsCredentialFault(err) {
			return nil, s.revoke(ctx, err)
		}
		log.Warn("admission request failed", "error", err, "elapsed_ms", elapsed)
		if derr := s.machine.Decline(protocol.SoftDeclineReason); derr != nil {
			return nil, derr
		}
		return &AdmissionOutput{
			Decision: domain.DecisionDecline,
			Message:  protocol.SoftDeclineReason,
			Soft:     true,
		}, nil
	}

	res := protocol.ParseAdmission(raw)
	switch res.Decision {
	case domain.DecisionDecline:
		err = s.machine.Decline(res.Message)
	default:
		err = s.machine.Admit(res.Message)
	}
	if err != nil {
		return nil, err
	}

	s.logger(ctx).Info("admission decided", "decision", res.Decision, "elapsed_ms", elapsed)
	return &AdmissionOutput{Decision: res.Decision, Message: res.Message}, nil
}

// TurnOutput describes a completed witness turn.
type TurnOutput struct {
	Input   domain.Message
	Result  domain.TurnResult
	Effects session.Effects
	// Interrupted is set when the transport failed recoverably. Notice holds
	// the SYSTEM message that was logged and Cause the transport error.
	Interrupted bool
	Notice      domain.Message
	Cause       error
}

// Send submits a witness message and waits for the Architect's turn.
func (s *Service) Send(ctx context.Context, text string) (*TurnOutput, error) {
	p, err := s.machine.SubmitMessage(text)
	if err != nil {
		return nil, err
	}
	return s.runTurn(ctx, p, text)
}

// Signal sends a non-verbal cue. The echo is logged under the signal label;
// the model receives the signal phrase as input.
func (s *Service) Signal(ctx context.Context, sig protocol.Signal) (*TurnOutput, error) {
	if _, err := protocol.ParseSignal(string(sig)); err != nil {
		return nil, err
	}
	p, err := s.machine.SubmitSignal(sig.Label())
	if err != nil {
		return nil, err
	}
	return s.runTurn(ctx, p, sig.Phrase())
}

func (s *Service) runTurn(ctx context.Context, p session.Pending, input string) (*TurnOutput, error) {
	log := s.turnLogger(ctx, p)
	log.Info("architect turn started", "history", len(p.History))

	system := protocol.SessionSystemPrompt(p.Document)
	payload := s.projector.Payload(p.History, input)

	start := s.now()
	raw, err := s.transport.Request(ctx, system, payload, s.temperature)
	elapsed := s.now().Sub(start).Milliseconds()

	if err != nil {
		if domain.IsCredentialFault(err) {
			return nil, s.revoke(ctx, err)
		}
		notice, ferr := s.machine.FailTurn(p, err)
		if ferr != nil {
			return nil, ferr
		}
		s.turnLogger(ctx, p).Warn("architect turn interrupted", "error", err, "elapsed_ms", elapsed)
		return &TurnOutput{Input: p.Input, Interrupted: true, Notice: notice, Cause: err}, nil
	}

	res := protocol.Decode(raw)
	if res.Degraded {
		log.Warn("architect response degraded", "raw_len", len(raw))
	}

	fx, err := s.machine.ApplyTurn(p, res)
	if err != nil {
		log.Error("failed to apply turn", "error", err)
		return nil, err
	}

	s.turnLogger(ctx, p).Info("architect turn completed",
		"atmosphere", res.Atmosphere,
		"action", res.Action,
		"glimmer", fx.Glimmer,
		"ended", fx.Ended,
		"elapsed_ms", elapsed,
	)
	return &TurnOutput{Input: p.Input, Result: res, Effects: fx}, nil
}

// EditDocument replaces the canvas while the witness holds the turn.
func (s *Service) EditDocument(ctx context.Context, text string) error {
	if err := s.machine.EditDocument(text); err != nil {
		return err
	}
	s.logger(ctx).Debug("document edited", "len", len(text))
	return nil
}

// Return goes back to IDLE from a rest state.
func (s *Service) Return(ctx context.Context) error {
	if err := s.machine.Return(); err != nil {
		return err
	}
	s.logger(ctx).Info("returned to idle")
	return nil
}

// ForceEnd discards everything and goes back to IDLE.
func (s *Service) ForceEnd(ctx context.Context) {
	s.machine.ForceEnd()
	s.logger(ctx).Info("session force ended")
}

// revoke handles a credential rejected by the vendor: the stored key is
// purged and the session is discarded.
func (s *Service) revoke(ctx context.Context, cause error) error {
	log := s.logger(ctx)
	log.Warn("credential rejected by vendor", "error", cause)

	s.machine.ForceEnd()
	if err := s.creds.Purge(ctx); err != nil {
		log.Error("failed to purge credential", "error", err)
	}
	return fmt.Errorf("%w: %w", domain.ErrCredentialRevoked, cause)
}

// turnLogger snapshots status again, so call it after each transition.
func (s *Service) turnLogger(ctx context.Context, p session.Pending) *slog.Logger {
	return s.logger(ctx).With("input_id", p.Input.ID, "signal", p.Input.IsSignal)
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	snap := s.machine.Snapshot()
	return observability.LoggerFromContext(ctx).With(
		"vendor", s.transport.Name(),
		"status", snap.Status,
		"turn_owner", snap.Turn,
	)
}
