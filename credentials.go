package session

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// ExchangeErrorKind classifies why a credential exchange failed.
type ExchangeErrorKind string

const (
	ExchangeInvalidCredentials ExchangeErrorKind = "invalid_credentials"
	ExchangeConflict           ExchangeErrorKind = "conflict"
	ExchangeUnavailable        ExchangeErrorKind = "unavailable"
	ExchangeValidation         ExchangeErrorKind = "validation"
	ExchangeUnknown            ExchangeErrorKind = "unknown"
)

var exchangeDefaultMessages = map[ExchangeErrorKind]string{
	ExchangeInvalidCredentials: "invalid email or password",
	ExchangeConflict:           "an account with this email already exists",
	ExchangeUnavailable:        "authentication service is unavailable, try again later",
	ExchangeValidation:         "submitted details are invalid",
	ExchangeUnknown:            "login failed",
}

// ExchangeError is the failure a CredentialExchanger reports. Transports
// map their responses onto it so the session never probes raw payloads.
type ExchangeError struct {
	Kind    ExchangeErrorKind
	Message string
	Status  int
	Fields  map[string]string
	Err     error
}

// NewExchangeError builds an ExchangeError of kind with an optional message.
func NewExchangeError(kind ExchangeErrorKind, message string) *ExchangeError {
	return &ExchangeError{Kind: kind, Message: message}
}

func (e *ExchangeError) Error() string {
	if e == nil {
		return "credential exchange failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("credential exchange %s: %s: %v", e.kind(), e.UserMessage(), e.Err)
	}
	return fmt.Sprintf("credential exchange %s: %s", e.kind(), e.UserMessage())
}

func (e *ExchangeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the text shown to the user, falling back to a stock
// message for the kind.
func (e *ExchangeError) UserMessage() string {
	if e == nil {
		return exchangeDefaultMessages[ExchangeUnknown]
	}
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return exchangeDefaultMessages[e.kind()]
}

// TextCode is the snapshot error code for the kind.
func (e *ExchangeError) TextCode() string {
	return "SESSION_EXCHANGE_" + strings.ToUpper(string(e.kind()))
}

func (e *ExchangeError) kind() ExchangeErrorKind {
	if e == nil || e.Kind == "" {
		return ExchangeUnknown
	}
	if _, ok := exchangeDefaultMessages[e.Kind]; !ok {
		return ExchangeUnknown
	}
	return e.Kind
}

// LoginCredentials is the email and password payload.
type LoginCredentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will validate the payload
func (c LoginCredentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

// Registration is the sign-up payload.
type Registration struct {
	Name            string   `json:"name" form:"name"`
	Email           string   `json:"email" form:"email"`
	Password        string   `json:"password" form:"password"`
	ConfirmPassword string   `json:"confirm_password" form:"confirm_password"`
	Role            UserRole `json:"role" form:"role"`
}

// Validate will validate the payload
func (r Registration) Validate() error {
	roles := make([]any, 0, len(GetAllRoles()))
	for _, role := range GetAllRoles() {
		roles = append(roles, role)
	}

	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.Role, validation.Required, validation.In(roles...)),
	)
}

// ValidateStringEquals returns a rule matching value against str.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return goerrors.New("values must match", goerrors.CategoryValidation)
		}
		return nil
	}
}

// ExchangeResult is what a successful exchange yields. Exchangers that
// already speak Identity may set it instead of User.
type ExchangeResult struct {
	User     *User
	Identity Identity
	Token    string
}

func (r ExchangeResult) user() *User {
	if r.User != nil {
		return r.User
	}
	return UserFromIdentity(r.Identity)
}

// CredentialExchanger performs the network round trip that trades
// credentials for a user and token. Failures should be *ExchangeError.
type CredentialExchanger interface {
	Login(ctx context.Context, creds LoginCredentials) (ExchangeResult, error)
	Register(ctx context.Context, reg Registration) (ExchangeResult, error)
}

// Authenticator drives a Manager through a credential exchange: loading is
// raised for the duration, failures land in SetError and success in Login.
type Authenticator struct {
	manager   *Manager
	exchanger CredentialExchanger
	logger    Logger
}

// NewAuthenticator returns an Authenticator bound to manager.
func NewAuthenticator(manager *Manager, exchanger CredentialExchanger) *Authenticator {
	return &Authenticator{
		manager:   manager,
		exchanger: exchanger,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger
func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Login validates creds, exchanges them and logs the session in.
func (a *Authenticator) Login(ctx context.Context, creds LoginCredentials) (Snapshot, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	return a.run(ctx, "login", creds.Validate, func(ctx context.Context) (ExchangeResult, error) {
		return a.exchanger.Login(ctx, creds)
	})
}

// Register validates reg, creates the account and logs the session in.
func (a *Authenticator) Register(ctx context.Context, reg Registration) (Snapshot, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if role, ok := ParseRole(reg.Role); ok {
		reg.Role = role
	}
	return a.run(ctx, "register", reg.Validate, func(ctx context.Context) (ExchangeResult, error) {
		return a.exchanger.Register(ctx, reg)
	})
}

func (a *Authenticator) run(
	ctx context.Context,
	op string,
	validate func() error,
	exchange func(context.Context) (ExchangeResult, error),
) (Snapshot, error) {
	if _, err := a.manager.SetLoading(ctx, true); err != nil {
		return a.manager.Snapshot(), err
	}

	if err := validate(); err != nil {
		a.logger.Info("%s payload rejected: %v", op, err)
		exErr := &ExchangeError{
			Kind:    ExchangeValidation,
			Message: err.Error(),
			Fields:  validationFields(err),
			Err:     err,
		}
		return a.fail(ctx, exErr)
	}

	result, err := exchange(ctx)
	if err != nil {
		a.logger.Error("%s exchange failed: %v", op, err)
		return a.fail(ctx, normalizeExchangeError(err))
	}

	return a.manager.Login(ctx, result.user(), result.Token)
}

func (a *Authenticator) fail(ctx context.Context, exErr *ExchangeError) (Snapshot, error) {
	// SetError also clears loading
	snap, err := a.manager.SetError(ctx, exErr)
	if err != nil {
		return snap, err
	}
	return snap, exErr
}

func normalizeExchangeError(err error) *ExchangeError {
	var exErr *ExchangeError
	if goerrors.As(err, &exErr) {
		return exErr
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		kind := ExchangeUnknown
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz:
			kind = ExchangeInvalidCredentials
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			kind = ExchangeValidation
		case goerrors.CategoryConflict:
			kind = ExchangeConflict
		}
		return &ExchangeError{Kind: kind, Message: richErr.Message, Status: richErr.Code, Err: err}
	}

	return &ExchangeError{Kind: ExchangeUnknown, Err: err}
}

func validationFields(err error) map[string]string {
	errs, ok := err.(validation.Errors)
	if !ok {
		return nil
	}
	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return fields
}
