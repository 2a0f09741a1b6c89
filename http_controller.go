package identity

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// GetRouterSession reads the session stored on the request context by the
// token middleware. It understands both structured AuthClaims and the raw
// *jwt.Token shape used by generic JWT middlewares.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrUnableToFindSession
	}

	if claims, ok := raw.(AuthClaims); ok {
		return sessionFromAuthClaims(claims)
	}

	token, ok := raw.(*jwt.Token)
	if token == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if claims == nil || !ok {
		return nil, ErrUnableToMapClaims
	}

	return sessionFromClaims(claims)
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		SetName("sign-in.get")

	app.
		Post(
			controller.Routes.Login,
			// limitReq,
			controller.LoginPost,
		).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")
	app.Post(controller.Routes.Logout, controller.LogOut).SetName("sign-out.post")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(fmt.Sprintf("%s/:token", controller.Routes.Verify), controller.VerifyEmail).
		SetName("verify.get")
}

type AuthControllerRoutes struct {
	Login    string
	Logout   string
	Register string
	Verify   string
}

type AuthControllerViews struct {
	Login    string
	Logout   string
	Register string
	Verify   string
}

type AuthController struct {
	Debug          bool
	Repo           RepositoryManager
	Routes         *AuthControllerRoutes
	Views          *AuthControllerViews
	Auther         HTTPAuthenticator
	Registrar      *RegisterUserHandler
	Verifier       *VerifyEmailHandler
	ErrorHandler   router.ErrorHandler
	logger         Logger
	loggerProvider LoggerProvider
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	provider, logger := ResolveLogger("identity.controller", nil, nil)

	c := &AuthController{
		logger:         logger,
		loggerProvider: provider,
		ErrorHandler:   defaultControllerErrHandler,
		Routes: &AuthControllerRoutes{
			Login:    "/login",
			Logout:   "/logout",
			Register: "/register",
			Verify:   "/verify",
		},
		Views: &AuthControllerViews{
			Login:    "login",
			Logout:   "logout",
			Register: "register",
			Verify:   "verify",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Registrar == nil {
		c.Registrar = NewRegisterUserHandler(c.Repo).WithLogger(c.logger)
	}

	if c.Verifier == nil {
		c.Verifier = NewVerifyEmailHandler(c.Repo).WithLogger(c.logger)
	}

	return c
}

// WithLogger sets the controller logger.
func (a *AuthController) WithLogger(logger Logger) *AuthController {
	a.loggerProvider, a.logger = ResolveLogger("identity.controller", a.loggerProvider, logger)
	return a
}

// WithLoggerProvider resolves a scoped logger from the given provider.
func (a *AuthController) WithLoggerProvider(provider LoggerProvider) *AuthController {
	a.loggerProvider, a.logger = ResolveLogger("identity.controller", provider, a.logger)
	return a
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether the remember me flag was set
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.logger.Error("login parse payload", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		a.logger.Error("login validate payload", "error", err)
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		status := statusForAuthError(err)

		formErrors := map[string]string{"authentication": "Authentication Error"}
		if status == fiber.StatusForbidden {
			formErrors["authentication"] = "Account email is not verified"
		}

		return ctx.Status(status).Render(a.Views.Login, router.ViewContext{
			"errors": formErrors,
			"record": payload,
		})
	}

	redirect := a.Auther.GetRedirect(ctx, "/")

	a.logger.Debug("login redirect", "to", redirect)

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

func (a *AuthController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegisterUserMessage{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(10, 11), is.Digit),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		formErrors := map[string]string{"form": "Failed to parse form"}
		a.logger.Error("register user parse payload", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": formErrors,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		formErrors := FormatValidationErrorToMap(err)
		a.logger.Error("register user validate payload", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": formErrors,
		})
	}

	var res *RegisterUserResponse

	req := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		OnResponse: func(resp *RegisterUserResponse) {
			res = resp
		},
	}

	if err := a.Registrar.Execute(ctx.Context(), req); err != nil {
		a.logger.Error("register user error", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error registering user",
		}).Status(statusForAuthError(err)).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("============================")
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Registration received, check your email to verify your account",
	}).Status(fiber.StatusCreated).Render(a.Views.Register, router.ViewContext{
		"registered": true,
		"email":      payload.Email,
	})
}

func (a *AuthController) VerifyEmail(ctx router.Context) error {
	token := ctx.Param("token", "")

	var res *VerificationResult

	msg := VerifyEmailMessage{
		Token: token,
		OnResponse: func(r *VerificationResult) {
			res = r
		},
	}

	if err := a.Verifier.Execute(ctx.Context(), msg); err != nil {
		a.logger.Error("verify email error", "error", err)

		return ctx.Status(statusForAuthError(err)).Render(a.Views.Verify, router.ViewContext{
			"verified": false,
			"errors":   []string{err.Error()},
		})
	}

	if a.Debug {
		fmt.Println("======= VERIFY EMAIL ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("===========================")
	}

	return ctx.Render(a.Views.Verify, router.ViewContext{
		"verified": true,
		"already":  res.Already,
	})
}

// statusForAuthError maps identity errors onto the HTTP codes the auth routes
// respond with. Unknown and internal errors collapse to a 500.
func statusForAuthError(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return fiber.StatusInternalServerError
	}

	switch richErr.TextCode {
	case TextCodeInvalidCreds, TextCodeEmailTaken:
		return fiber.StatusBadRequest
	case TextCodeNotVerified, TextCodeSignupDisabled:
		return fiber.StatusForbidden
	case TextCodeTokenNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
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

// FormatValidationErrorToMap flattens an ozzo validation error into a
// field to message map for template rendering.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var fieldErrors validation.Errors
	if errors.As(err, &fieldErrors) {
		for field, fieldErr := range fieldErrors {
			if fieldErr != nil {
				out[field] = fieldErr.Error()
			}
		}
		return out
	}

	out["validation"] = err.Error()
	return out
}

func defaultControllerErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
