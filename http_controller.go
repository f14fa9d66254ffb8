package accounts

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"

	"github.com/userkit/go-accounts/middleware/jwtware"
)

// APIController exposes the account operations as a JSON API.
type APIController struct {
	debug  bool
	logger Logger
	cfg    Config
	repo   RepositoryManager
	tokens TokenService

	register      *RegisterAccountHandler
	verify        *VerifyEmailHandler
	login         *LoginHandler
	refresh       *RefreshSessionHandler
	logout        *LogoutHandler
	resetRequest  *RequestPasswordResetHandler
	reset         *ResetPasswordHandler
	invite        *InviteAccountHandler
	complete      *CompleteProfileHandler
	updateRole    *UpdateRoleHandler
	updateProfile *UpdateProfileHandler
	getAccount    *GetAccountHandler
	getProfile    *GetProfileHandler
	listProfiles  *ListProfilesHandler
}

// NewAPIController wires the command and query handlers behind HTTP routes.
func NewAPIController(
	cfg Config,
	repo RepositoryManager,
	tokens TokenService,
	publisher EventPublisher,
	images ImageStore,
) *APIController {
	return &APIController{
		logger:        defLogger{},
		cfg:           cfg,
		repo:          repo,
		tokens:        tokens,
		register:      NewRegisterAccountHandler(repo, publisher),
		verify:        NewVerifyEmailHandler(repo),
		login:         NewLoginHandler(repo, tokens),
		refresh:       NewRefreshSessionHandler(repo, tokens),
		logout:        NewLogoutHandler(repo),
		resetRequest:  NewRequestPasswordResetHandler(repo, publisher),
		reset:         NewResetPasswordHandler(repo),
		invite:        NewInviteAccountHandler(repo, publisher),
		complete:      NewCompleteProfileHandler(repo),
		updateRole:    NewUpdateRoleHandler(repo),
		updateProfile: NewUpdateProfileHandler(repo, images),
		getAccount:    NewGetAccountHandler(repo),
		getProfile:    NewGetProfileHandler(repo),
		listProfiles:  NewListProfilesHandler(repo),
	}
}

func (a *APIController) WithLogger(logger Logger) *APIController {
	if logger != nil {
		a.logger = logger
		a.login.WithLogger(logger)
	}
	return a
}

func (a *APIController) WithDebug(debug bool) *APIController {
	a.debug = debug
	return a
}

// RegisterRoutes mounts the full HTTP surface on the given router.
func (a *APIController) RegisterRoutes(app fiber.Router) {
	protected := a.Protected()
	admin := a.ProtectedMinimumRole(RoleAdmin)
	superAdmin := a.ProtectedMinimumRole(RoleSuperAdmin)

	strict := RateLimit(5, time.Minute)
	moderate := RateLimit(20, time.Minute)
	relaxed := RateLimit(100, time.Minute)

	auth := app.Group("/auth")
	auth.Post("/register", moderate, a.RegisterAccount)
	auth.Get("/verify", moderate, a.VerifyEmail)
	auth.Post("/login", strict, a.Login)
	auth.Post("/refresh", moderate, a.RefreshSession)
	auth.Post("/logout", protected, a.Logout)
	auth.Post("/password-reset/request", strict, a.RequestPasswordReset)
	auth.Post("/password-reset", moderate, a.ResetPassword)
	auth.Post("/invite-user", admin, a.InviteAccount)
	auth.Post("/complete-profile", moderate, a.CompleteProfile)
	auth.Get("/me", protected, a.Me)

	users := app.Group("/users", relaxed)
	users.Get("/", admin, a.ListProfiles)
	users.Post("/", admin, a.InviteAccount)
	users.Get("/:id", protected, a.GetProfile)
	users.Put("/:id", protected, a.UpdateProfile)
	users.Put("/:id/profile-picture", protected, a.UpdateProfilePicture)
	users.Patch("/:id/role", superAdmin, a.UpdateRole)
}

// RateLimit builds a fixed window limiter keyed by client IP.
func RateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return goerrors.New("too many requests", goerrors.CategoryRateLimit).
				WithCode(fiber.StatusTooManyRequests)
		},
	})
}

// Protected returns the bearer token middleware for authenticated routes.
func (a *APIController) Protected() fiber.Handler {
	return jwtware.New(a.protectedConfig())
}

// ProtectedMinimumRole requires an authenticated session holding at least
// the given role.
func (a *APIController) ProtectedMinimumRole(role string) fiber.Handler {
	cfg := a.protectedConfig()
	cfg.MinimumRole = role
	return jwtware.New(cfg)
}

func (a *APIController) protectedConfig() jwtware.Config {
	return jwtware.Config{
		TokenValidator: accessTokenValidator{tokens: a.tokens},
		ContextKey:     a.cfg.GetContextKey(),
		TokenLookup:    a.cfg.GetTokenLookup(),
		AuthScheme:     a.cfg.GetAuthScheme(),
		ErrorHandler:   guardError,
	}
}

// guardError maps middleware failures onto rich errors and returns them, so
// the app level handler renders the same JSON body as every other route.
func guardError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, jwtware.ErrJWTMissingOrMalformed.Error()).
			WithCode(goerrors.CodeBadRequest)
	}

	if strings.HasPrefix(err.Error(), "access denied") {
		return goerrors.New(err.Error(), goerrors.CategoryAuthz).
			WithCode(goerrors.CodeForbidden)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code != 0 {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, "invalid or expired token").
		WithCode(goerrors.CodeUnauthorized)
}

// accessTokenValidator adapts TokenService to the middleware and rejects
// refresh tokens presented as bearer credentials.
type accessTokenValidator struct {
	tokens TokenService
}

func (v accessTokenValidator) Validate(token string) (jwtware.AuthClaims, error) {
	claims, err := v.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	if claims.TokenUse() != TokenUseAccess {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (a *APIController) currentClaims(c *fiber.Ctx) (AuthClaims, error) {
	raw := c.Locals(a.cfg.GetContextKey())
	claims, ok := raw.(AuthClaims)
	if !ok || claims == nil {
		return nil, goerrors.New("missing session claims", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}
	return claims, nil
}

func (a *APIController) parseAccountID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid account id").
			WithCode(goerrors.CodeBadRequest)
	}
	return id, nil
}

// authorizeSelfOrAdmin lets accounts act on their own record, and admins on
// any record.
func authorizeSelfOrAdmin(claims AuthClaims, id uuid.UUID) error {
	if claims.UserID() == id.String() || claims.IsAtLeast(RoleAdmin) {
		return nil
	}
	return goerrors.New("access denied", goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden)
}

func badBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse request body").
		WithCode(goerrors.CodeBadRequest)
}

func (a *APIController) dump(label string, payload any) {
	if a.debug {
		a.logger.Debug("%s: %s", label, print.MaybePrettyJSON(payload))
	}
}

type RegisterPayload struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *APIController) RegisterAccount(c *fiber.Ctx) error {
	payload := RegisterPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	a.dump("register payload", payload)

	var resp *RegisterAccountResponse
	err := a.register.Execute(c.UserContext(), RegisterAccountMessage{
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(r *RegisterAccountResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"account": resp.Account,
	})
}

func (a *APIController) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return goerrors.New("missing verification token", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := a.verify.Execute(c.UserContext(), VerifyEmailMessage{Token: token}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"verified": true})
}

type LoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *APIController) Login(c *fiber.Ctx) error {
	payload := LoginPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	var resp *LoginResponse
	err := a.login.Execute(c.UserContext(), LoginMessage{
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(r *LoginResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"account":       resp.Account,
		"access_token":  resp.AccessToken,
		"refresh_token": resp.RefreshToken,
	})
}

type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

func (r RefreshPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *APIController) RefreshSession(c *fiber.Ctx) error {
	payload := RefreshPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	var resp *RefreshSessionResponse
	err := a.refresh.Execute(c.UserContext(), RefreshSessionMessage{
		RefreshToken: payload.RefreshToken,
		OnResponse: func(r *RefreshSessionResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"access_token": resp.AccessToken,
	})
}

func (a *APIController) Logout(c *fiber.Ctx) error {
	claims, err := a.currentClaims(c)
	if err != nil {
		return err
	}

	accountID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuth, "invalid session subject").
			WithCode(goerrors.CodeUnauthorized)
	}

	if err := a.logout.Execute(c.UserContext(), LogoutMessage{AccountID: accountID}); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"logged_out": true})
}

type PasswordResetRequestPayload struct {
	Email string `json:"email" form:"email"`
}

func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *APIController) RequestPasswordReset(c *fiber.Ctx) error {
	payload := PasswordResetRequestPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	err := a.resetRequest.Execute(c.UserContext(), RequestPasswordResetMessage{
		Email: payload.Email,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"reset_requested": true})
}

type PasswordResetPayload struct {
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

func (r PasswordResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *APIController) ResetPassword(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return goerrors.New("missing reset token", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	payload := PasswordResetPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	err := a.reset.Execute(c.UserContext(), ResetPasswordMessage{
		Token:    token,
		Password: payload.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"password_reset": true})
}

type InvitePayload struct {
	Email string `json:"email" form:"email"`
	Role  string `json:"role" form:"role"`
}

func (r InvitePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.Required, validation.In(RoleUser, RoleAdmin)),
	)
}

func (a *APIController) InviteAccount(c *fiber.Ctx) error {
	payload := InvitePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	a.dump("invite payload", payload)

	var resp *InviteAccountResponse
	err := a.invite.Execute(c.UserContext(), InviteAccountMessage{
		Email: payload.Email,
		Role:  payload.Role,
		OnResponse: func(r *InviteAccountResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"account":            resp.Account,
		"temporary_password": resp.TemporaryPassword,
	})
}

type CompleteProfilePayload struct {
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	FirstName       string `json:"first_name" form:"first_name"`
	LastName        string `json:"last_name" form:"last_name"`
	Phone           string `json:"phone_number" form:"phone_number"`
	Address         string `json:"address" form:"address"`
}

func (r CompleteProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Address, validation.Length(0, 250)),
	)
}

func (a *APIController) CompleteProfile(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return goerrors.New("missing invitation token", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	payload := CompleteProfilePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	var resp *CompleteProfileResponse
	err := a.complete.Execute(c.UserContext(), CompleteProfileMessage{
		Token:     token,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Address:   payload.Address,
		OnResponse: func(r *CompleteProfileResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"account": resp.Account,
		"profile": resp.Profile,
	})
}

func (a *APIController) Me(c *fiber.Ctx) error {
	claims, err := a.currentClaims(c)
	if err != nil {
		return err
	}

	accountID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuth, "invalid session subject").
			WithCode(goerrors.CodeUnauthorized)
	}

	var resp *GetAccountResponse
	err = a.getAccount.Execute(c.UserContext(), GetAccountMessage{
		AccountID: accountID,
		OnResponse: func(r *GetAccountResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"account": resp.Account})
}

func (a *APIController) ListProfiles(c *fiber.Ctx) error {
	var resp *ListProfilesResponse
	err := a.listProfiles.Execute(c.UserContext(), ListProfilesMessage{
		OnResponse: func(r *ListProfilesResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"profiles": resp.Profiles})
}

func (a *APIController) GetProfile(c *fiber.Ctx) error {
	claims, err := a.currentClaims(c)
	if err != nil {
		return err
	}

	accountID, err := a.parseAccountID(c)
	if err != nil {
		return err
	}

	if err := authorizeSelfOrAdmin(claims, accountID); err != nil {
		return err
	}

	var resp *GetProfileResponse
	err = a.getProfile.Execute(c.UserContext(), GetProfileMessage{
		AccountID: accountID,
		OnResponse: func(r *GetProfileResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"profile": resp.Profile})
}

type UpdateProfilePayload struct {
	FirstName *string `json:"first_name" form:"first_name"`
	LastName  *string `json:"last_name" form:"last_name"`
	Phone     *string `json:"phone_number" form:"phone_number"`
	Address   *string `json:"address" form:"address"`
}

func (r UpdateProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Length(1, 100)),
		validation.Field(&r.Address, validation.Length(0, 250)),
	)
}

func (a *APIController) UpdateProfile(c *fiber.Ctx) error {
	claims, err := a.currentClaims(c)
	if err != nil {
		return err
	}

	accountID, err := a.parseAccountID(c)
	if err != nil {
		return err
	}

	if err := authorizeSelfOrAdmin(claims, accountID); err != nil {
		return err
	}

	payload := UpdateProfilePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	a.dump("profile update payload", payload)

	var resp *UpdateProfileResponse
	err = a.updateProfile.Execute(c.UserContext(), UpdateProfileMessage{
		AccountID: accountID,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Address:   payload.Address,
		OnResponse: func(r *UpdateProfileResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"profile": resp.Profile})
}

func (a *APIController) UpdateProfilePicture(c *fiber.Ctx) error {
	claims, err := a.currentClaims(c)
	if err != nil {
		return err
	}

	accountID, err := a.parseAccountID(c)
	if err != nil {
		return err
	}

	if err := authorizeSelfOrAdmin(claims, accountID); err != nil {
		return err
	}

	header, err := c.FormFile("picture")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "missing picture upload").
			WithCode(goerrors.CodeBadRequest)
	}

	if header.Size > MaxProfilePictureBytes {
		return goerrors.New("picture exceeds the upload size limit", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	file, err := header.Open()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to read picture upload").
			WithCode(goerrors.CodeBadRequest)
	}
	defer file.Close()

	var resp *UpdateProfileResponse
	err = a.updateProfile.Execute(c.UserContext(), UpdateProfileMessage{
		AccountID: accountID,
		Picture: &PictureUpload{
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
			Size:        header.Size,
		},
		OnResponse: func(r *UpdateProfileResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"profile": resp.Profile})
}

type UpdateRolePayload struct {
	Role string `json:"role" form:"role"`
}

func (r UpdateRolePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(RoleUser, RoleAdmin)),
	)
}

func (a *APIController) UpdateRole(c *fiber.Ctx) error {
	accountID, err := a.parseAccountID(c)
	if err != nil {
		return err
	}

	payload := UpdateRolePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return badBody(err)
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError(err)
	}

	var resp *UpdateRoleResponse
	err = a.updateRole.Execute(c.UserContext(), UpdateRoleMessage{
		AccountID: accountID,
		Role:      payload.Role,
		OnResponse: func(r *UpdateRoleResponse) {
			resp = r
		},
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"account": resp.Account})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
