package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panel-agent/internal/entity"
	"panel-agent/internal/ports"
)

const (
	loginURL     = testBaseURL + "/login"
	dashboardURL = testBaseURL + "/dashboard"
)

// loginForm renders a login page whose submit button lands on the dashboard.
func loginForm(page *fakePage) (user, pass, submit *fakeElement) {
	user = &fakeElement{}
	pass = &fakeElement{}
	submit = &fakeElement{onClick: func() {
		page.url = dashboardURL
		delete(page.elements, passwordSelector)
	}}

	page.elements[`input[name="username"]`] = []ports.Element{user}
	page.elements[passwordSelector] = []ports.Element{pass}
	page.elements[`button[type="submit"]`] = []ports.Element{submit}

	return user, pass, submit
}

func TestSession_IsAuthenticated(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		password bool
		want     bool
	}{
		{name: "outside login page", url: testBaseURL + "/farms/1/sections/2", password: true, want: true},
		{name: "login page with password field", url: loginURL, password: true, want: false},
		{name: "login page without password field", url: loginURL, password: false, want: true},
		{name: "login sub-path with password field", url: loginURL + "/sso?next=/", password: true, want: false},
		{name: "path that only shares a prefix", url: testBaseURL + "/login-help", password: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage(tt.url)
			if tt.password {
				page.elements[passwordSelector] = []ports.Element{&fakeElement{}}
			}

			s := NewSession(testParams(page, newFakeClock()))

			assert.Equal(t, tt.want, s.IsAuthenticated(context.Background()))
		})
	}
}

func TestSession_IsAuthenticated_QueryErrorIsUnauthenticated(t *testing.T) {
	page := newFakePage(loginURL)
	page.errs[passwordSelector] = errBadSelector

	s := NewSession(testParams(page, newFakeClock()))

	assert.False(t, s.IsAuthenticated(context.Background()))
}

func TestSession_Login(t *testing.T) {
	page := newFakePage("about:blank")
	user, pass, submit := loginForm(page)
	clock := newFakeClock()

	s := NewSession(testParams(page, clock))

	ok := s.Login(context.Background(), entity.Credentials{Username: "operator", Password: "s3cret"})

	require.True(t, ok)
	assert.Equal(t, []string{loginURL}, page.gotoURLs)
	assert.Equal(t, []int{3}, user.clicks)
	assert.Equal(t, []string{""}, user.fills)
	assert.Equal(t, []string{"operator"}, user.typed)
	assert.Equal(t, []string{"s3cret"}, pass.typed)
	assert.Equal(t, []int{1}, submit.clicks)
	assert.Empty(t, page.pressed)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.slept)
}

func TestSession_Login_SubmitsWithEnterWithoutButton(t *testing.T) {
	page := newFakePage("about:blank")
	_, _, _ = loginForm(page)
	delete(page.elements, `button[type="submit"]`)
	page.onPress = func(key string) {
		if key == "Enter" {
			page.url = dashboardURL
		}
	}

	s := NewSession(testParams(page, newFakeClock()))

	assert.True(t, s.Login(context.Background(), entity.Credentials{Username: "operator", Password: "s3cret"}))
	assert.Equal(t, []string{"Enter"}, page.pressed)
}

func TestSession_Login_IdleTimeoutIsNotFatal(t *testing.T) {
	page := newFakePage("about:blank")
	loginForm(page)
	page.idleErr = context.DeadlineExceeded

	s := NewSession(testParams(page, newFakeClock()))

	assert.True(t, s.Login(context.Background(), entity.Credentials{Username: "operator", Password: "s3cret"}))
}

func TestSession_Login_Failures(t *testing.T) {
	tests := []struct {
		name  string
		creds entity.Credentials
		setup func(page *fakePage)
	}{
		{
			name:  "missing secret",
			creds: entity.Credentials{Username: "operator"},
			setup: func(page *fakePage) { loginForm(page) },
		},
		{
			name:  "login page unreachable",
			creds: entity.Credentials{Username: "operator", Password: "s3cret"},
			setup: func(page *fakePage) {
				loginForm(page)
				page.errs["goto"] = context.DeadlineExceeded
			},
		},
		{
			name:  "no username field",
			creds: entity.Credentials{Username: "operator", Password: "s3cret"},
			setup: func(page *fakePage) {
				page.elements[passwordSelector] = []ports.Element{&fakeElement{}}
			},
		},
		{
			name:  "rejected credentials keep the login page",
			creds: entity.Credentials{Username: "operator", Password: "wrong"},
			setup: func(page *fakePage) {
				loginForm(page)
				page.elements[`button[type="submit"]`] = []ports.Element{&fakeElement{}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage("about:blank")
			tt.setup(page)

			s := NewSession(testParams(page, newFakeClock()))

			assert.False(t, s.Login(context.Background(), tt.creds))
		})
	}
}

func TestSession_Login_AlreadyAuthenticated(t *testing.T) {
	page := newFakePage("about:blank")
	page.onGoto = func(string) string { return dashboardURL }

	s := NewSession(testParams(page, newFakeClock()))

	assert.True(t, s.Login(context.Background(), entity.Credentials{Username: "operator", Password: "s3cret"}))
}

func TestSession_WaitForExternalLogin(t *testing.T) {
	page := newFakePage(loginURL)
	page.elements[passwordSelector] = []ports.Element{&fakeElement{}}

	clock := newFakeClock()
	clock.onSleep = func(n int) {
		if n == 3 {
			page.url = dashboardURL
		}
	}

	s := NewSession(testParams(page, clock))

	require.True(t, s.WaitForExternalLogin(context.Background(), time.Minute))
	assert.Len(t, clock.slept, 3)
}

func TestSession_WaitForExternalLogin_Timeout(t *testing.T) {
	page := newFakePage(loginURL)
	page.elements[passwordSelector] = []ports.Element{&fakeElement{}}
	clock := newFakeClock()

	s := NewSession(testParams(page, clock))

	assert.False(t, s.WaitForExternalLogin(context.Background(), 5*time.Second))
	assert.Len(t, clock.slept, 5)
}

func TestSession_WaitForExternalLogin_Cancelled(t *testing.T) {
	page := newFakePage(loginURL)
	page.elements[passwordSelector] = []ports.Element{&fakeElement{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSession(testParams(page, newFakeClock()))

	assert.False(t, s.WaitForExternalLogin(ctx, time.Minute))
}

func TestSession_EnsureAuthenticated(t *testing.T) {
	t.Run("already authenticated", func(t *testing.T) {
		page := newFakePage(dashboardURL)
		s := NewSession(testParams(page, newFakeClock()))

		assert.True(t, s.EnsureAuthenticated(context.Background(), nil))
		assert.Empty(t, page.gotoURLs)
	})

	t.Run("logs in with credentials", func(t *testing.T) {
		page := newFakePage(loginURL)
		loginForm(page)
		s := NewSession(testParams(page, newFakeClock()))

		assert.True(t, s.EnsureAuthenticated(context.Background(),
			&entity.Credentials{Username: "operator", Password: "s3cret"}))
	})

	t.Run("falls back to manual wait without credentials", func(t *testing.T) {
		page := newFakePage(loginURL)
		page.elements[passwordSelector] = []ports.Element{&fakeElement{}}

		clock := newFakeClock()
		clock.onSleep = func(int) { page.url = dashboardURL }

		s := NewSession(testParams(page, clock))

		assert.True(t, s.EnsureAuthenticated(context.Background(), nil))
		assert.Equal(t, []time.Duration{time.Second}, clock.slept)
		assert.Empty(t, page.gotoURLs)
	})
}
