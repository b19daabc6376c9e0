package login_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prompt-manager/prompt-manager/internal/db/models"
	"github.com/prompt-manager/prompt-manager/internal/settings"
	"github.com/prompt-manager/prompt-manager/internal/web/handler"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/handlertest"
	"github.com/prompt-manager/prompt-manager/internal/web/handler/login"
	websess "github.com/prompt-manager/prompt-manager/internal/web/session"
)

func createUser(t *testing.T, env *handlertest.Env, username, password string, active bool) {
	t.Helper()

	hash, err := models.HashPassword(password)
	require.NoError(t, err)

	require.NoError(t, env.Deps.DB.Create(&models.User{Username: username, Password: hash, Active: active}).Error)
}

func performPost(t *testing.T, app *fiber.App, form url.Values, sessionID string) (int, string, *http.Response) {
	t.Helper()

	return handlertest.Do(t, app, handlertest.Request(http.MethodPost, login.Path, strings.NewReader(form.Encode()),
		fiber.MIMEApplicationForm, sessionID))
}

func TestPostSuccessSetsCookieAndRedirects(t *testing.T) {
	env := handlertest.New(t)
	app := env.App(&login.Service{})

	createUser(t, env, "bob", "s3cr3t", true)

	status, _, resp := performPost(t, app, url.Values{"username": {"bob"}, "password": {"s3cr3t"}}, "")
	require.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, handler.AdminPath, resp.Header.Get(fiber.HeaderLocation))

	setCookie := resp.Header.Get(fiber.HeaderSetCookie)
	assert.Contains(t, setCookie, websess.CookieName+"=")
	assert.Contains(t, strings.ToLower(setCookie), "secure")

	var id string
	for _, c := range resp.Cookies() {
		if c.Name == websess.CookieName {
			id = c.Value
		}
	}

	data := new(websess.Data)
	require.NoError(t, data.Read(id))
	assert.True(t, data.Valid())
	assert.Equal(t, "bob", data.Username)
}

func TestPostDevModeDisablesSecureAndKeepsNext(t *testing.T) {
	env := handlertest.New(t)
	env.Deps.Cfg.DevMode = true
	app := env.App(&login.Service{})

	createUser(t, env, "carol", "pass", true)

	status, _, resp := performPost(t, app, url.Values{
		"username": {"carol"},
		"password": {"pass"},
		"next":     {"/admin/settings"},
	}, "")
	require.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, "/admin/settings", resp.Header.Get(fiber.HeaderLocation))
	assert.NotContains(t, strings.ToLower(resp.Header.Get(fiber.HeaderSetCookie)), "secure")
}

func TestPostRejectsBadCredentials(t *testing.T) {
	env := handlertest.New(t)
	app := env.App(&login.Service{})

	createUser(t, env, "dave", "right", true)
	createUser(t, env, "eve", "right", false)

	tests := []struct {
		name string
		form url.Values
		want error
	}{
		{name: "wrong password", form: url.Values{"username": {"dave"}, "password": {"wrong"}}, want: login.ErrInvalidCredentials},
		{name: "unknown user", form: url.Values{"username": {"nobody"}, "password": {"right"}}, want: login.ErrInvalidCredentials},
		{name: "inactive user", form: url.Values{"username": {"eve"}, "password": {"right"}}, want: login.ErrInvalidCredentials},
		{name: "missing password", form: url.Values{"username": {"dave"}}, want: login.ErrInvalidFormData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, resp := performPost(t, app, tt.form, "")
			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, tt.want.Error(), body)
			assert.Empty(t, resp.Header.Get(fiber.HeaderSetCookie))
		})
	}
}

func TestLoggedInUserIsRedirectedFromForm(t *testing.T) {
	env := handlertest.New(t)
	app := env.App(&login.Service{})

	status, _, resp := handlertest.Do(t, app, handlertest.Request(http.MethodGet, login.Path, nil, "", env.Login(t)))
	assert.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, handler.AdminPath, resp.Header.Get(fiber.HeaderLocation))

	status, body, _ := handlertest.Do(t, app, handlertest.Request(http.MethodGet, login.Path, nil, "", ""))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "login", body)
}

func TestPostIsRateLimited(t *testing.T) {
	env := handlertest.New(t)
	require.NoError(t, env.Deps.Settings.SetString(settings.KeyLoginRateLimit, "2 per minute"))

	app := env.App(&login.Service{})
	form := url.Values{"username": {"x"}, "password": {"y"}}

	for i := 0; i < 2; i++ {
		status, _, _ := performPost(t, app, form, "")
		assert.Equal(t, fiber.StatusOK, status)
	}

	status, _, _ := performPost(t, app, form, "")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
}
