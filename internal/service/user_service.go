package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"murmur/internal/auth"
	"murmur/internal/authz"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/validation"
)

const nameMaxLen = 150

// Tokens issues and verifies JWTs.
type Tokens interface {
	IssuePair(userID uint) (auth.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (string, error)
	Parse(ctx context.Context, token string, want auth.TokenType) (*auth.Claims, error)
	Revoke(ctx context.Context, claims *auth.Claims) error
}

// UserService handles registration, login and user accounts.
type UserService struct {
	users  repository.UserRepository
	tokens Tokens
	now    func() time.Time
}

// NewUserService creates a UserService. tokens may be nil for tooling that never
// issues tokens, such as the admin command.
func NewUserService(users repository.UserRepository, tokens Tokens) *UserService {
	return &UserService{users: users, tokens: tokens, now: time.Now}
}

type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// CreateUserInput is used by administrative creation. Nil flags take the default.
type CreateUserInput struct {
	Email       string
	Username    string
	Password    string
	FirstName   string
	LastName    string
	IsStaff     *bool
	IsSuperuser *bool
}

// UpdateProfileInput holds the optional profile fields a user may change.
type UpdateProfileInput struct {
	Username  *string
	FirstName *string
	LastName  *string
}

type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return models.NewFieldValidationError(f)
}

func checkName(f fieldErrors, field, v string) {
	if utf8.RuneCountInString(v) > nameMaxLen {
		f.add(field, "Ensure this field has no more than 150 characters.")
	}
}

// validateAccount checks the shape of a new account and that its email and
// username are free.
func (s *UserService) validateAccount(ctx context.Context, email, username, password, first, last string) error {
	f := fieldErrors{}
	if email == "" {
		f.add("email", "This field is required.")
	} else if err := validation.ValidateEmail(email); err != nil {
		f.add("email", err.Error())
	}
	if username != "" {
		if err := validation.ValidateUsername(username); err != nil {
			f.add("username", err.Error())
		}
	}
	if err := validation.ValidatePassword(password); err != nil {
		f.add("password", err.Error())
	}
	checkName(f, "first_name", first)
	checkName(f, "last_name", last)
	if err := f.err(); err != nil {
		return err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		f.add("email", "A user with this email already exists.")
	}
	if username != "" {
		existing, err = s.users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if existing != nil {
			f.add("username", "A user with this username already exists.")
		}
	}
	return f.err()
}

func (s *UserService) create(ctx context.Context, in CreateUserInput, staff, superuser bool) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Email:       in.Email,
		Username:    models.StringPtr(in.Username),
		Password:    hash,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		IsActive:    true,
		IsStaff:     staff,
		IsSuperuser: superuser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Register creates an account and signs in as it.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (_ *models.User, _ auth.TokenPair, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "UserService", "Register")
	defer func() { observability.EndSpan(span, err) }()

	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validateAccount(ctx, in.Email, in.Username, in.Password, in.FirstName, in.LastName); err != nil {
		return nil, auth.TokenPair{}, err
	}

	user, err := s.create(ctx, CreateUserInput{
		Email:     in.Email,
		Username:  in.Username,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}, false, false)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, auth.TokenPair{}, models.NewInternalError(err)
	}
	return user, pair, nil
}

func invalidCredentials() error {
	return models.NewUnauthenticatedError("Invalid credentials")
}

// Login verifies email and password and returns a fresh token pair.
func (s *UserService) Login(ctx context.Context, email, password string) (_ *models.User, _ auth.TokenPair, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "UserService", "Login")
	defer func() { observability.EndSpan(span, err) }()

	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		f := fieldErrors{}
		if email == "" {
			f.add("email", "This field is required.")
		}
		if password == "" {
			f.add("password", "This field is required.")
		}
		return nil, auth.TokenPair{}, f.err()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if user == nil || !user.IsActive {
		return nil, auth.TokenPair{}, invalidCredentials()
	}
	ok, err := auth.CheckPassword(user.Password, password)
	if err != nil || !ok {
		return nil, auth.TokenPair{}, invalidCredentials()
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, auth.TokenPair{}, err
	}
	user.LastLogin = &now

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, auth.TokenPair{}, models.NewInternalError(err)
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *UserService) Refresh(ctx context.Context, refresh string) (string, error) {
	if refresh == "" {
		return "", models.NewFieldError("refresh", "This field is required.")
	}
	return s.tokens.Refresh(ctx, refresh)
}

// Logout revokes the caller's access token and, when given, a refresh token
// belonging to the same user. The refresh token is checked first so a bad one
// leaves both tokens usable.
func (s *UserService) Logout(ctx context.Context, access *auth.Claims, refresh string) error {
	revoke := []*auth.Claims{access}
	if refresh != "" {
		claims, err := s.tokens.Parse(ctx, refresh, auth.TokenRefresh)
		if err != nil {
			return err
		}
		if claims.Subject != access.Subject {
			return models.NewForbiddenError("Refresh token belongs to another user")
		}
		revoke = append(revoke, claims)
	}

	for _, claims := range revoke {
		if err := s.tokens.Revoke(ctx, claims); err != nil {
			return models.NewInternalError(err)
		}
	}
	return nil
}

// CreateUser creates an active account. Flags default to false.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if strings.TrimSpace(in.Email) == "" {
		return nil, models.NewFieldError("email", "The given email must be set")
	}
	in.Email = validation.NormalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validateAccount(ctx, in.Email, in.Username, in.Password, in.FirstName, in.LastName); err != nil {
		return nil, err
	}
	return s.create(ctx, in, in.IsStaff != nil && *in.IsStaff, in.IsSuperuser != nil && *in.IsSuperuser)
}

// CreateSuperuser creates a staff superuser. Passing either flag as false is an error.
func (s *UserService) CreateSuperuser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if in.IsStaff != nil && !*in.IsStaff {
		return nil, models.NewFieldError("is_staff", "Superuser must have is_staff=True.")
	}
	if in.IsSuperuser != nil && !*in.IsSuperuser {
		return nil, models.NewFieldError("is_superuser", "Superuser must have is_superuser=True.")
	}
	yes := true
	in.IsStaff, in.IsSuperuser = &yes, &yes
	return s.CreateUser(ctx, in)
}

// SetStaff grants or revokes staff status.
func (s *UserService) SetStaff(ctx context.Context, id uint, staff bool) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsStaff = staff
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListStaff returns every staff account.
func (s *UserService) ListStaff(ctx context.Context) ([]models.User, error) {
	return s.users.ListStaff(ctx)
}

// ListUsers pages through accounts.
func (s *UserService) ListUsers(ctx context.Context, actor authz.Actor, limit, offset int) ([]models.User, error) {
	if err := Authorize(actor, authz.ResourceUser, authz.ActionList, nil); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, limit, offset)
}

// GetUser returns one account.
func (s *UserService) GetUser(ctx context.Context, actor authz.Actor, id uint) (*models.User, error) {
	if err := Authorize(actor, authz.ResourceUser, authz.ActionRetrieve, nil); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// UpdateProfile changes the profile of id. Only the account owner may do so.
func (s *UserService) UpdateProfile(ctx context.Context, actor authz.Actor, id uint, in UpdateProfileInput) (*models.User, error) {
	if err := Authorize(actor, authz.ResourceUser, authz.ActionPartialUpdate, nil); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, authz.ResourceUser, authz.ActionPartialUpdate, &authz.Target{OwnerID: user.ID}); err != nil {
		return nil, err
	}

	f := fieldErrors{}
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if name != "" {
			if err := validation.ValidateUsername(name); err != nil {
				f.add("username", err.Error())
			} else if name != user.UsernameOrEmpty() {
				other, err := s.users.GetByUsername(ctx, name)
				if err != nil {
					return nil, err
				}
				if other != nil {
					f.add("username", "A user with this username already exists.")
				}
			}
		}
		user.Username = models.StringPtr(name)
	}
	if in.FirstName != nil {
		checkName(f, "first_name", *in.FirstName)
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		checkName(f, "last_name", *in.LastName)
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if err := f.err(); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
