package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hostel-inventory/apiserver/internal/mail"
	"github.com/hostel-inventory/apiserver/internal/metrics"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	CreateRegistered(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
	SetResetCode(ctx context.Context, id int, code string, expires time.Time) error
	ClearResetCode(ctx context.Context, id int) error
}

// UserService encapsulates account, administration and password reset use-cases.
type UserService struct {
	repo    UserRepository
	mailer  mail.Sender
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewUserService(repo UserRepository, mailer mail.Sender, m *metrics.Metrics) *UserService {
	return &UserService{
		repo:    repo,
		mailer:  mailer,
		metrics: m,
		now:     time.Now,
	}
}

// Registration is the self-service sign-up payload.
type Registration struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NewUser is the payload a Warden uses to create an account.
type NewUser struct {
	Registration
	Role types.Optional[types.Role] `json:"role"`
}

// UserPatch holds the fields of a sparse account update. Absent fields are left unchanged.
type UserPatch struct {
	FirstName   types.Optional[string]     `json:"first_name"`
	LastName    types.Optional[string]     `json:"last_name"`
	Email       types.Optional[string]     `json:"email"`
	PhoneNumber types.Optional[*string]    `json:"phone_number"`
	Role        types.Optional[types.Role] `json:"role"`
	Password    types.Optional[string]     `json:"password"`
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates a self-registered account. The first account ever created
// becomes Warden; later ones wait in Pending.
func (s *UserService) Register(ctx context.Context, reg Registration) (types.User, error) {
	user, err := s.newAccount(ctx, reg)
	if err != nil {
		return types.User{}, err
	}
	created, err := s.repo.CreateRegistered(ctx, user)
	if errors.Is(err, store.ErrConflict) {
		return types.User{}, ErrUsernameTaken
	}
	return created, err
}

// Authenticate checks credentials. Pending accounts are refused even with a
// correct password.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, invalid("Username and password required")
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, err
	}
	if !user.CheckPassword(password) {
		return types.User{}, ErrInvalidPassword
	}
	if !user.Role.CanLogin() {
		return types.User{}, ErrPendingApproval
	}
	return user, nil
}

// UpdateProfile lets a user change their own phone number.
func (s *UserService) UpdateProfile(ctx context.Context, userID int, phone types.Optional[*string]) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if phone.Set {
		user.PhoneNumber = normalizePhone(phone.Value)
	}
	if err := validateUserFields(user); err != nil {
		return types.User{}, err
	}
	return s.repo.Update(ctx, user)
}

func (s *UserService) List(ctx context.Context, actor types.User) ([]types.User, error) {
	if !actor.Role.CanManageUsers() {
		return nil, ErrForbidden
	}
	return s.repo.List(ctx)
}

// Create adds an account on behalf of a Warden. The role defaults to Inventory Staff.
func (s *UserService) Create(ctx context.Context, actor types.User, in NewUser) (types.User, error) {
	if !actor.Role.CanManageUsers() {
		return types.User{}, ErrForbidden
	}
	user, err := s.newAccount(ctx, in.Registration)
	if err != nil {
		return types.User{}, err
	}
	user.Role = in.Role.Or(types.RoleInventoryStaff)

	created, err := s.repo.Create(ctx, user)
	if errors.Is(err, store.ErrConflict) {
		return types.User{}, ErrUsernameTaken
	}
	return created, err
}

// UpdateUser applies patch to the target account on behalf of a Warden.
func (s *UserService) UpdateUser(ctx context.Context, actor types.User, targetID int, patch UserPatch) (types.User, error) {
	if !actor.Role.CanManageUsers() {
		return types.User{}, ErrForbidden
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, err
	}

	if patch.FirstName.Set {
		target.FirstName = patch.FirstName.Value
	}
	if patch.LastName.Set {
		target.LastName = patch.LastName.Value
	}
	if patch.Email.Set {
		target.Email = strings.TrimSpace(patch.Email.Value)
	}
	if patch.PhoneNumber.Set {
		target.PhoneNumber = normalizePhone(patch.PhoneNumber.Value)
	}
	if patch.Role.Set {
		target.Role = patch.Role.Value
	}
	if err := validateUserFields(target); err != nil {
		return types.User{}, err
	}
	if patch.Password.Set && patch.Password.Value != "" {
		if err := target.SetPassword(patch.Password.Value); err != nil {
			return types.User{}, err
		}
	}
	return s.repo.Update(ctx, target)
}

// Delete removes the target account. A Warden cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, actor types.User, targetID int) error {
	if !actor.Role.CanManageUsers() {
		return ErrForbidden
	}
	if actor.ID == targetID {
		return ErrSelfDelete
	}
	return s.repo.Delete(ctx, targetID)
}

// ForceResetPassword sets the target's password directly, bypassing reset codes.
func (s *UserService) ForceResetPassword(ctx context.Context, actor types.User, targetID int, newPassword string) error {
	if !actor.Role.CanManageUsers() {
		return ErrForbidden
	}
	if err := validateNewPassword(newPassword); err != nil {
		return err
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := target.SetPassword(newPassword); err != nil {
		return err
	}
	_, err = s.repo.Update(ctx, target)
	return err
}

func (s *UserService) newAccount(ctx context.Context, reg Registration) (types.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Password == "" || reg.Email == "" {
		return types.User{}, invalid("Username, password and email are required")
	}

	user := types.User{
		Username:  reg.Username,
		Email:     reg.Email,
		FirstName: strings.TrimSpace(reg.FirstName),
		LastName:  strings.TrimSpace(reg.LastName),
	}
	if err := validateUserFields(user); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByUsername(ctx, reg.Username); err == nil {
		return types.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	if err := user.SetPassword(reg.Password); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func validateNewPassword(password string) error {
	if password == "" {
		return invalid("New password is required")
	}
	if len(password) < types.MinPasswordLength {
		return invalid("Password must be at least %d characters", types.MinPasswordLength)
	}
	return nil
}

type fieldLimit struct {
	name  string
	value string
	max   int
}

// validateUserFields rejects values wider than their users table column.
func validateUserFields(u types.User) error {
	fields := []fieldLimit{
		{"username", u.Username, types.MaxUsernameLength},
		{"email", u.Email, types.MaxEmailLength},
		{"first_name", u.FirstName, types.MaxNameLength},
		{"last_name", u.LastName, types.MaxNameLength},
	}
	if u.PhoneNumber != nil {
		fields = append(fields, fieldLimit{"phone_number", *u.PhoneNumber, types.MaxPhoneLength})
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > f.max {
			return invalid("%s must be at most %d characters", f.name, f.max)
		}
	}
	return nil
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ResetDelivery describes what happened to a requested reset code.
type ResetDelivery int

const (
	// ResetSent means the code was handed to the mail transport.
	ResetSent ResetDelivery = iota
	// ResetNotDelivered means the code was stored but the email failed.
	ResetNotDelivered
	// ResetUnknownEmail means no account uses the address. Callers must not reveal this.
	ResetUnknownEmail
)

// RequestReset issues a new reset code for the account registered with
// email and emails it. A failed email does not fail the request.
func (s *UserService) RequestReset(ctx context.Context, email string) (ResetDelivery, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, invalid("Email is required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ResetUnknownEmail, nil
		}
		return 0, err
	}

	code, err := types.NewResetCode()
	if err != nil {
		return 0, err
	}
	if err := s.repo.SetResetCode(ctx, user.ID, code, s.now().Add(types.ResetCodeTTL)); err != nil {
		return 0, err
	}
	s.metrics.ResetCodeIssued()

	if err := s.mailer.Send(ctx, mail.ResetCodeMessage(user.Email, code)); err != nil {
		s.metrics.EmailFailed()
		slog.WarnContext(ctx, "reset code email failed", "user_id", user.ID, "error", err)
		return ResetNotDelivered, nil
	}
	return ResetSent, nil
}

// VerifyResetCode checks code against the account registered with email
// without consuming it.
func (s *UserService) VerifyResetCode(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return invalid("Email and code are required")
	}
	_, err := s.userWithValidCode(ctx, email, code)
	return err
}

// ResetPasswordWithCode sets a new password when code is valid and then
// consumes the code.
func (s *UserService) ResetPasswordWithCode(ctx context.Context, email, code, newPassword string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || newPassword == "" {
		return invalid("Email, code and new password are required")
	}
	if err := validateNewPassword(newPassword); err != nil {
		return err
	}

	user, err := s.userWithValidCode(ctx, email, code)
	if err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	if _, err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	return s.repo.ClearResetCode(ctx, user.ID)
}

func (s *UserService) userWithValidCode(ctx context.Context, email, code string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, err
	}
	if !user.ResetCodeValid(code, s.now()) {
		return types.User{}, ErrInvalidResetCode
	}
	return user, nil
}
