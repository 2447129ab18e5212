package tripauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/travelplanner/tripauth/api"
	"go.uber.org/zap"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

// Phase is the position of a LoginFlow in the sign-in sequence.
type Phase int

const (
	PhaseAwaitingEmail Phase = iota
	PhaseAwaitingCode
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingEmail:
		return "awaiting_email"
	case PhaseAwaitingCode:
		return "awaiting_code"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

type otpGateway interface {
	RequestOTP(ctx context.Context, email string) (*api.RequestOTPResponse, error)
	VerifyOTP(ctx context.Context, email, otp string) (*api.VerifyOTPResponse, error)
}

type sessionWriter interface {
	completeLogin(ctx context.Context, email, token string) error
}

// LoginState is a consistent snapshot of a LoginFlow for rendering.
type LoginState struct {
	Phase           Phase
	Email           string
	Digits          [CodeLength]string
	ExpiresIn       int
	ResendAvailable bool
	Busy            bool
	ChallengeID     uuid.UUID
}

// LoginFlow is the email + one-time-code state machine.
//
// All methods are safe for concurrent use. Network calls and session saves run
// without holding the state lock, so Tick keeps working while either is outstanding.
// A response is applied only if the challenge it was issued for is still current.
type LoginFlow struct {
	otp      otpGateway
	sessions sessionWriter
	logger   *zap.Logger
	metrics  *Metrics

	ttlSeconds      int
	enforceCooldown bool

	mu          sync.Mutex
	phase       Phase
	email       string
	digits      [CodeLength]string
	expiresIn   int
	challengeID uuid.UUID
	generation  uint64
	busy        bool
	saving      bool
	reqSeq      uint64
	detached    bool
}

func newLoginFlow(otp otpGateway, sessions sessionWriter, cfg OTPConfig, logger *zap.Logger) *LoginFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := int(cfg.ChallengeTTL / time.Second)
	if ttl <= 0 {
		ttl = 600
	}
	return &LoginFlow{
		otp:             otp,
		sessions:        sessions,
		logger:          logger.Named("login"),
		ttlSeconds:      ttl,
		enforceCooldown: cfg.EnforceResendCooldown,
		phase:           PhaseAwaitingEmail,
		challengeID:     uuid.New(),
	}
}

type ticket struct {
	seq         uint64
	generation  uint64
	challengeID uuid.UUID
	email       string
}

// begin must be called with f.mu held.
func (f *LoginFlow) begin(want Phase) (ticket, error) {
	if f.detached {
		return ticket{}, ErrLoginClosed
	}
	if f.phase != want {
		return ticket{}, ErrWrongPhase
	}
	if f.busy {
		return ticket{}, ErrBusy
	}
	f.busy = true
	f.reqSeq++
	return ticket{
		seq:         f.reqSeq,
		generation:  f.generation,
		challengeID: f.challengeID,
		email:       f.email,
	}, nil
}

// finish releases the busy flag owned by t and reports whether t's challenge is gone.
// Must be called with f.mu held.
func (f *LoginFlow) finish(t ticket) (stale bool) {
	if f.reqSeq == t.seq {
		f.busy = false
	}
	return f.detached || f.generation != t.generation || f.challengeID != t.challengeID
}

// replaceChallenge starts a fresh challenge. Must be called with f.mu held.
func (f *LoginFlow) replaceChallenge(expiresIn int) {
	f.generation++
	f.challengeID = uuid.New()
	f.digits = [CodeLength]string{}
	f.expiresIn = expiresIn
}

// SubmitEmail requests a code for email and moves to PhaseAwaitingCode.
func (f *LoginFlow) SubmitEmail(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	f.mu.Lock()
	if f.detached {
		f.mu.Unlock()
		return ErrLoginClosed
	}
	if f.phase != PhaseAwaitingEmail {
		f.mu.Unlock()
		return ErrWrongPhase
	}
	if !strings.Contains(email, "@") {
		f.mu.Unlock()
		return &ValidationError{Field: "email", Message: msgInvalidEmail}
	}
	t, err := f.begin(PhaseAwaitingEmail)
	if err == nil {
		f.email = email
		t.email = email
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}

	reqErr := f.requestCode(ctx, t.email)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finish(t) {
		f.logger.Debug("discarding late otp request response", zap.String("email", t.email))
		f.metrics.Inc(MetricStaleResponse)
		return ErrStaleResponse
	}
	if reqErr != nil {
		f.logger.Warn("otp request failed", zap.String("email", t.email), zap.Error(reqErr))
		f.metrics.Inc(MetricCodeRequestFailed)
		return fmt.Errorf("%w: %v", ErrRequestFailed, reqErr)
	}

	f.phase = PhaseAwaitingCode
	f.email = t.email
	f.replaceChallenge(f.ttlSeconds)
	f.metrics.Inc(MetricCodeRequested)
	f.logger.Info("otp requested", zap.String("email", t.email))
	return nil
}

func (f *LoginFlow) requestCode(ctx context.Context, email string) error {
	defer f.metrics.since(MetricBackendLatency, time.Now())
	resp, err := f.otp.RequestOTP(ctx, email)
	if err != nil {
		return err
	}
	if resp.Rejected() {
		if resp.Message != "" {
			return errors.New(resp.Message)
		}
		return errors.New("backend rejected the request")
	}
	return nil
}

// SetDigit writes value into slot index and returns the slot the host should focus
// next, or -1 for none.
//
// Input that is out of range or not a single digit, or that arrives outside
// PhaseAwaitingCode or while a request is outstanding, is ignored. A blank value
// clears the slot.
func (f *LoginFlow) SetDigit(index int, value string) int {
	if index < 0 || index >= CodeLength {
		return -1
	}
	if len(value) > 1 || (value != "" && !isDigit(value[0])) {
		return -1
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detached || f.busy || f.phase != PhaseAwaitingCode {
		return -1
	}

	f.digits[index] = value
	if value != "" && index < CodeLength-1 {
		return index + 1
	}
	return -1
}

// PasteDigits fills all slots from text. Non-digits are stripped and the first
// CodeLength digits are used; with fewer than that nothing changes.
func (f *LoginFlow) PasteDigits(text string) bool {
	var picked []string
	for i := 0; i < len(text) && len(picked) < CodeLength; i++ {
		if isDigit(text[i]) {
			picked = append(picked, text[i:i+1])
		}
	}
	if len(picked) != CodeLength {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detached || f.busy || f.phase != PhaseAwaitingCode {
		return false
	}
	copy(f.digits[:], picked)
	return true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// SubmitCode exchanges the entered digits for a token and persists the session.
// On failure the digits are kept so the user can correct them.
func (f *LoginFlow) SubmitCode(ctx context.Context) error {
	f.mu.Lock()
	if f.detached {
		f.mu.Unlock()
		return ErrLoginClosed
	}
	if f.phase != PhaseAwaitingCode {
		f.mu.Unlock()
		return ErrWrongPhase
	}
	code := strings.Join(f.digits[:], "")
	if len(code) != CodeLength {
		f.mu.Unlock()
		return &ValidationError{Field: "code", Message: msgIncomplete}
	}
	t, err := f.begin(PhaseAwaitingCode)
	f.mu.Unlock()
	if err != nil {
		return err
	}

	start := time.Now()
	resp, verifyErr := f.otp.VerifyOTP(ctx, t.email, code)
	f.metrics.since(MetricBackendLatency, start)
	if verifyErr == nil && strings.TrimSpace(resp.Token) == "" {
		verifyErr = errors.New("backend returned no token")
	}

	f.mu.Lock()
	if f.finish(t) {
		f.mu.Unlock()
		f.logger.Debug("discarding late otp verify response", zap.String("email", t.email))
		f.metrics.Inc(MetricStaleResponse)
		return ErrStaleResponse
	}
	if verifyErr != nil {
		f.mu.Unlock()
		f.logger.Warn("otp verify failed", zap.String("email", t.email), zap.Error(verifyErr))
		f.metrics.Inc(MetricCodeRejected)
		return fmt.Errorf("%w: %v", ErrInvalidCode, verifyErr)
	}
	// The verified challenge is pinned until the save returns: input stays blocked
	// and ChangeEmail is refused, but Tick and State do not wait on storage.
	f.busy = true
	f.saving = true
	f.mu.Unlock()

	saveErr := f.sessions.completeLogin(ctx, t.email, resp.Token)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saving = false
	f.busy = false
	if saveErr != nil {
		return saveErr
	}
	f.phase = PhaseAuthenticated
	f.expiresIn = 0
	f.metrics.Inc(MetricCodeVerified)
	return nil
}

// Resend requests a new code for the same email. Success restarts the countdown
// and clears the digits; failure leaves the challenge as it was.
func (f *LoginFlow) Resend(ctx context.Context) error {
	f.mu.Lock()
	if f.enforceCooldown && !f.detached && f.phase == PhaseAwaitingCode && f.expiresIn > 0 {
		f.mu.Unlock()
		return ErrResendCooldown
	}
	t, err := f.begin(PhaseAwaitingCode)
	f.mu.Unlock()
	if err != nil {
		return err
	}

	reqErr := f.requestCode(ctx, t.email)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finish(t) {
		f.logger.Debug("discarding late otp resend response", zap.String("email", t.email))
		f.metrics.Inc(MetricStaleResponse)
		return ErrStaleResponse
	}
	if reqErr != nil {
		f.logger.Warn("otp resend failed", zap.String("email", t.email), zap.Error(reqErr))
		f.metrics.Inc(MetricCodeRequestFailed)
		return fmt.Errorf("%w: %v", ErrRequestFailed, reqErr)
	}

	f.replaceChallenge(f.ttlSeconds)
	f.metrics.Inc(MetricCodeResent)
	f.logger.Info("otp resent", zap.String("email", t.email))
	return nil
}

// Tick advances the countdown by one second. It never changes the phase.
func (f *LoginFlow) Tick() {
	f.mu.Lock()
	if f.phase == PhaseAwaitingCode && f.expiresIn > 0 {
		f.expiresIn--
	}
	f.mu.Unlock()
}

// ChangeEmail abandons the current challenge and returns to PhaseAwaitingEmail.
// The email is kept for editing. It has no effect once authenticated or while a
// verified code's session is being saved.
func (f *LoginFlow) ChangeEmail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detached || f.saving || f.phase == PhaseAuthenticated {
		return
	}
	f.phase = PhaseAwaitingEmail
	f.replaceChallenge(0)
	f.busy = false
}

// Detach abandons the flow. Responses that complete afterwards are discarded; a
// session save already under way still finishes.
func (f *LoginFlow) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached = true
	f.generation++
	f.busy = false
}

// State returns a snapshot of the flow.
func (f *LoginFlow) State() LoginState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return LoginState{
		Phase:           f.phase,
		Email:           f.email,
		Digits:          f.digits,
		ExpiresIn:       f.expiresIn,
		ResendAvailable: f.resendAvailable(),
		Busy:            f.busy,
		ChallengeID:     f.challengeID,
	}
}

func (f *LoginFlow) resendAvailable() bool {
	if f.detached || f.busy || f.phase != PhaseAwaitingCode {
		return false
	}
	return !f.enforceCooldown || f.expiresIn == 0
}

func (f *LoginFlow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *LoginFlow) Email() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email
}

func (f *LoginFlow) Digits() [CodeLength]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.digits
}

// Code concatenates the filled digits.
func (f *LoginFlow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.digits[:], "")
}

func (f *LoginFlow) ExpiresIn() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expiresIn
}

// ResendAvailable reports whether Resend would currently be attempted.
func (f *LoginFlow) ResendAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resendAvailable()
}

func (f *LoginFlow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *LoginFlow) ChallengeID() uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.challengeID
}

// FormatExpiresIn renders the countdown as m:ss.
func (f *LoginFlow) FormatExpiresIn() string {
	return FormatCountdown(f.ExpiresIn())
}

// FormatCountdown renders seconds as m:ss. Negative input renders as 0:00.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
