package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hongminglow/all-in-dash/internal/apitest"
	"github.com/hongminglow/all-in-dash/internal/app"
)

type cli struct {
	t    *testing.T
	srv  *apitest.Server
	opts app.Options
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	srv := apitest.New(t, clockwork.NewRealClock())
	t.Setenv("DASH_CONFIG", "")
	t.Setenv("BACKEND_URL", srv.BaseURL())
	t.Setenv("DASH_CREDENTIAL_PATH", filepath.Join(t.TempDir(), "all-in-dash", "token"))
	t.Setenv("DASH_WATCH_CREDENTIAL", "false")
	return &cli{t: t, srv: srv, opts: app.Options{Logger: zap.NewNop()}}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	root := NewRootCmd(c.opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	require.NoError(c.t, err, out)
	return out
}

func TestCLIFlow(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("", "status")
	assert.Contains(t, out, "Not logged in.")

	out = c.mustRun("s3cret\n", "signup", "--name", "Ada Lovelace", "--email", "ada@example.com", "--password-stdin")
	assert.Contains(t, out, "Logged in as Ada Lovelace <ada@example.com>. Next: /onboarding")

	out = c.mustRun("", "status")
	assert.Contains(t, out, "Logged in as Ada Lovelace")
	assert.Contains(t, out, "Session expires in")

	_, err := c.run("", "onboard", "--content-type", "Charts")
	assert.EqualError(t, err, "Please select your investor type")

	out = c.mustRun("", "onboard", "--investor-type", "HODLer", "--content-type", "Charts", "--content-type", "Market News", "--asset", "bitcoin")
	assert.Contains(t, out, "Next: /dashboard")

	out = c.mustRun("", "dashboard")
	assert.Contains(t, out, "== Market News ==")
	assert.Contains(t, out, "== Prices ==")
	assert.NotContains(t, out, "== Meme ==")
	assert.Contains(t, out, "$67123.45")

	out = c.mustRun("", "vote", "price", "bitcoin", "up")
	assert.Contains(t, out, "Voted up on price-bitcoin.")
	c.mustRun("", "vote", "price", "bitcoin", "up")
	assert.Equal(t, 1, c.srv.Hits("/feedback"), "repeating the active vote sends nothing")

	out = c.mustRun("", "dashboard", "--refresh")
	assert.Regexp(t, `\[\+\]\s+Bitcoin`, out)

	out = c.mustRun("", "profile")
	assert.Contains(t, out, "Investor type: HODLer")
	assert.Contains(t, out, "Assets:        bitcoin")

	out = c.mustRun("", "profile", "update", "--investor-type", "DeFi Enthusiast", "--content-type", "Fun")
	assert.Contains(t, out, "Preferences updated successfully!")

	out = c.mustRun("", "dashboard")
	assert.Contains(t, out, "== Meme ==")
	assert.NotContains(t, out, "== Prices ==")

	out = c.mustRun("", "logout")
	assert.Contains(t, out, "Logged out.")
	out = c.mustRun("", "status")
	assert.Contains(t, out, "Not logged in.")

	_, err = c.run("", "dashboard")
	assert.Error(t, err)
}

func TestCLILoginErrors(t *testing.T) {
	c := newCLI(t)
	c.srv.AddUser(t, "Grace", "grace@example.com", "pw", nil)

	_, err := c.run("nope\n", "login", "--email", "grace@example.com", "--password-stdin")
	assert.EqualError(t, err, "Invalid credentials")

	_, err = c.run("pw\n", "login", "--email", "not-an-email", "--password-stdin")
	assert.EqualError(t, err, "Email address is invalid")
	assert.Equal(t, 1, c.srv.Hits("/auth/login"), "invalid input is rejected before the request")

	out := c.mustRun("pw\n", "login", "--email", "grace@example.com", "--password-stdin")
	assert.Contains(t, out, "Next: /onboarding")

	_, err = c.run("", "vote", "price", "bitcoin", "sideways")
	assert.EqualError(t, err, `vote must be up or down, got "sideways"`)
}

func TestVersion(t *testing.T) {
	root := NewRootCmd(app.Options{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "dash v"+version+"\n", out.String())
}
