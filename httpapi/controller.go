package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
)

// Service is the account lifecycle surface the controller exposes.
// *accounts.Coordinator implements it.
type Service interface {
	Register(ctx context.Context, input accounts.RegisterInput) (*accounts.AuthResult, error)
	Login(ctx context.Context, email, password string) (*accounts.AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*accounts.RefreshResult, error)
	Logout(ctx context.Context, identityID string)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, recoveryToken, newPassword string) error
	GetUserProfile(ctx context.Context, identityID string) (*accounts.ProfileView, error)
	UpdateUserProfile(ctx context.Context, identityID string, update accounts.ProfileUpdate) (*accounts.ProfileView, error)
	VerifyUserByID(ctx context.Context, identityID string) (*accounts.VerifiedUser, error)
}

var _ Service = (*accounts.Coordinator)(nil)

// TokenVerifier checks access tokens presented as bearer credentials.
type TokenVerifier interface {
	VerifyAccess(token string) (*accounts.SessionClaims, error)
}

// Routes holds the paths, relative to the group the controller is mounted on.
type Routes struct {
	Register       string
	Login          string
	RefreshToken   string
	Logout         string
	ForgotPassword string
	ResetPassword  string
	Profile        string
	Me             string
	// UserRole must contain an :id parameter.
	UserRole string
}

// Controller serves the account endpoints as JSON.
type Controller struct {
	Service Service
	Tokens  TokenVerifier
	Routes  *Routes
	Logger  accounts.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller) *Controller

// WithRoutes overrides the default route paths. Empty paths keep their default.
func WithRoutes(routes Routes) ControllerOption {
	return func(c *Controller) *Controller {
		r := c.Routes
		r.Register = firstPath(routes.Register, r.Register)
		r.Login = firstPath(routes.Login, r.Login)
		r.RefreshToken = firstPath(routes.RefreshToken, r.RefreshToken)
		r.Logout = firstPath(routes.Logout, r.Logout)
		r.ForgotPassword = firstPath(routes.ForgotPassword, r.ForgotPassword)
		r.ResetPassword = firstPath(routes.ResetPassword, r.ResetPassword)
		r.Profile = firstPath(routes.Profile, r.Profile)
		r.Me = firstPath(routes.Me, r.Me)
		r.UserRole = firstPath(routes.UserRole, r.UserRole)
		return c
	}
}

// WithLoggerProvider resolves the controller logger from provider.
func WithLoggerProvider(provider accounts.LoggerProvider) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = accounts.ResolveLogger("accounts.http", provider, c.Logger)
		return c
	}
}

// NewController creates a controller. It panics when service or tokens are
// missing.
func NewController(service Service, tokens TokenVerifier, opts ...ControllerOption) *Controller {
	c := &Controller{
		Service: service,
		Tokens:  tokens,
		Routes: &Routes{
			Register:       "/register",
			Login:          "/login",
			RefreshToken:   "/refresh-token",
			Logout:         "/logout",
			ForgotPassword: "/forgot-password",
			ResetPassword:  "/reset-password",
			Profile:        "/profile",
			Me:             "/me",
			UserRole:       "/users/:id/role",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing Service in accounts controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenVerifier in accounts controller...")
	}

	if c.Logger == nil {
		c.Logger = accounts.ResolveLogger("accounts.http", nil, nil)
	}

	return c
}

// RegisterAccountRoutes mounts the controller routes on app. Profile, logout
// and me routes require a bearer access token; role assignment additionally
// requires an administrator.
func RegisterAccountRoutes[T any](app router.Router[T], controller *Controller) {
	protected := RequireBearer(controller.Tokens, controller.Service, controller.Logger)
	adminOnly := RequireRole(accounts.RoleAdmin)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("register.post")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("login.post")
	app.Post(controller.Routes.RefreshToken, controller.RefreshTokenPost).
		SetName("refresh-token.post")
	app.Post(controller.Routes.Logout, controller.LogoutPost, protected).
		SetName("logout.post")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("forgot-password.post")
	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("reset-password.post")

	app.Get(controller.Routes.Profile, controller.ProfileGet, protected).
		SetName("profile.get")
	app.Put(controller.Routes.Profile, controller.ProfilePut, protected).
		SetName("profile.put")
	app.Get(controller.Routes.Me, controller.MeGet, protected).
		SetName("me.get")

	app.Put(controller.Routes.UserRole, controller.UserRolePut, protected, adminOnly).
		SetName("user-role.put")
}

// RegisterPayload is the registration body
type RegisterPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// LoginPayload is the login body
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenPayload is the refresh body
type RefreshTokenPayload struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgotPasswordPayload is the reset request body
type ForgotPasswordPayload struct {
	Email string `json:"email"`
}

// ResetPasswordPayload carries the recovery token and the new password. The
// token may also be sent as a bearer credential.
type ResetPasswordPayload struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ProfilePayload lists the fields a user may change on their own profile.
// Role is only decoded so that an attempt to change it can be rejected.
type ProfilePayload struct {
	FullName    *string `json:"fullName"`
	PhoneNumber *string `json:"phoneNumber"`
	Role        *string `json:"role"`
}

// RolePayload is the role assignment body
type RolePayload struct {
	Role string `json:"role"`
}

func (a *Controller) RegisterPost(ctx router.Context) error {
	payload := new(RegisterPayload)
	if err := a.bind(ctx, payload); err != nil {
		return respondError(ctx, err)
	}

	// self registration always yields an applicant
	if role, known := accounts.ParseRole(payload.Role); known && role != accounts.RoleApplicant {
		user, _, err := authenticate(ctx, a.Tokens, a.Service, a.Logger)
		if err != nil || !user.Role.IsAtLeast(accounts.RoleAdmin) {
			a.Logger.Warn("register role assignment rejected", "role", role)
			return respondError(ctx, errRoleAssignment)
		}
	}

	result, err := a.Service.Register(ctx.Context(), accounts.RegisterInput{
		Email:    payload.Email,
		Password: payload.Password,
		FullName: payload.FullName,
		Role:     accounts.UserRole(payload.Role),
	})
	if err != nil {
		return a.fail(ctx, "register", err)
	}

	return respond(ctx, http.StatusCreated, "User registered successfully", result)
}

func (a *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginPayload)
	if err := a.bind(ctx, payload); err != nil {
		return respondError(ctx, err)
	}

	result, err := a.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.fail(ctx, "login", err)
	}

	return respond(ctx, http.StatusOK, "Login successful", result)
}

func (a *Controller) RefreshTokenPost(ctx router.Context) error {
	payload := new(RefreshTokenPayload)
	if err := a.bind(ctx, payload); err != nil {
		return respondError(ctx, err)
	}

	result, err := a.Service.RefreshToken(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return a.fail(ctx, "refresh_token", err)
	}

	return respond(ctx, http.StatusOK, "Token refreshed successfully", result)
}

func (a *Controller) LogoutPost(ctx router.Context) error {
	user := CurrentUser(ctx)
	a.Service.Logout(ctx.Context(), user.ID)
	return respond(ctx, http.StatusOK, "Logout successful", nil)
}

func (a *Controller) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return respondError(ctx, err)
	}

	if err := a.Service.RequestPasswordReset(ctx.Context(), payload.Email); err != nil {
		return a.fail(ctx, "request_password_reset", err)
	}

	return respond(ctx, http.StatusOK, "Password reset email sent", nil)
}

func (a *Controller) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return respondError(ctx, err)
	}

	token := payload.Token
	if token == "" {
		token = bearerToken(ctx)
	}

	if err := a.Service.ResetPassword(ctx.Context(), token, payload.Password); err != nil {
		return a.fail(ctx, "reset_password", err)
	}

	return respond(ctx, http.StatusOK, "Password reset successful", nil)
}

func (a *Controller) ProfileGet(ctx router.Context) error {
	user := CurrentUser(ctx)
	profile, err := a.Service.GetUserProfile(ctx.Context(), user.ID)
	if err != nil {
		return a.fail(ctx, "get_profile", err)
	}
	return respond(ctx, http.StatusOK, "", profile)
}

func (a *Controller) ProfilePut(ctx router.Context) error {
	payload := new(ProfilePayload)
	if err := a.bind(ctx, payload); err != nil {
		return respondError(ctx, err)
	}

	user := CurrentUser(ctx)
	if payload.Role != nil {
		a.Logger.Warn("self service role change rejected", "user_id", user.ID)
		return respondError(ctx, errRoleAssignment)
	}

	profile, err := a.Service.UpdateUserProfile(ctx.Context(), user.ID, accounts.ProfileUpdate{
		FullName:    payload.FullName,
		PhoneNumber: payload.PhoneNumber,
	})
	if err != nil {
		return a.fail(ctx, "update_profile", err)
	}

	return respond(ctx, http.StatusOK, "Profile updated successfully", profile)
}

// UserRolePut assigns the role of the user named by the :id parameter.
func (a *Controller) UserRolePut(ctx router.Context) error {
	payload := new(RolePayload)
	if err := a.bind(ctx, payload); err != nil {
		return respondError(ctx, err)
	}

	if strings.TrimSpace(payload.Role) == "" {
		return respondError(ctx, accounts.WithMessage(accounts.ErrInvalidRequest, "role is required", nil))
	}

	targetID := ctx.Param("id")
	role := accounts.UserRole(strings.TrimSpace(payload.Role))
	profile, err := a.Service.UpdateUserProfile(ctx.Context(), targetID, accounts.ProfileUpdate{
		Role: &role,
	})
	if err != nil {
		return a.fail(ctx, "assign_role", err)
	}

	a.Logger.Info("user role assigned", "user_id", targetID, "role", role, "by", CurrentUser(ctx).ID)
	return respond(ctx, http.StatusOK, "Role updated successfully", profile)
}

func (a *Controller) MeGet(ctx router.Context) error {
	return respond(ctx, http.StatusOK, "", CurrentUser(ctx))
}

func (a *Controller) bind(ctx router.Context, payload any) error {
	if len(ctx.Body()) == 0 {
		return nil
	}
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("failed to parse request body", "path", ctx.Path(), "error", err)
		return accounts.WithMessage(accounts.ErrInvalidRequest, "Invalid request body", err)
	}
	return nil
}

func (a *Controller) fail(ctx router.Context, op string, err error) error {
	if accounts.KindOf(err) == accounts.KindInternal {
		a.Logger.Error("request failed", "operation", op, "path", ctx.Path(), "error", err)
	}
	return respondError(ctx, err)
}

func firstPath(path, fallback string) string {
	if strings.TrimSpace(path) == "" {
		return fallback
	}
	return path
}
