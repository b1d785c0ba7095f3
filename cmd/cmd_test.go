package cmd

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/devapi"
	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/session"
	"github.com/nilcar/leads-console/internal/store"
)

func setListFlags(t *testing.T, fn func()) {
	t.Helper()
	saved := listFlags
	t.Cleanup(func() { listFlags = saved })
	fn()
}

func TestBuildListQuery(t *testing.T) {
	config := Config{Leads: LeadsConfig{PageSize: 20, Sort: "name,asc"}}
	logger := log.New(io.Discard, "", 0)

	setListFlags(t, func() {
		listFlags.search = "  civic "
		listFlags.status = "WAITING_CONTACT"
		listFlags.temperature = "Quente"
		listFlags.portal = "14"
		listFlags.page = 2
	})

	q, err := buildListQuery(config, logger)
	require.NoError(t, err)
	assert.Equal(t, "civic", q.Filters.SearchText)
	assert.Equal(t, 1, q.Filters.Status)
	assert.Equal(t, 3, q.Filters.Temperature)
	assert.Equal(t, 14, q.Filters.Portal)
	assert.Equal(t, 0, q.Filters.Subject)
	assert.Equal(t, lead.Sort{Field: "name", Direction: lead.Asc}, q.Sort)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 20, q.Size)
}

func TestBuildListQueryRejectsBadInput(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	config := Config{Leads: LeadsConfig{PageSize: 10}}

	t.Run("unknown status", func(t *testing.T) {
		setListFlags(t, func() { listFlags.status = "MAYBE" })
		_, err := buildListQuery(config, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--status")
	})
	t.Run("bad sort", func(t *testing.T) {
		setListFlags(t, func() { listFlags.sort = "name,sideways" })
		_, err := buildListQuery(config, logger)
		assert.Error(t, err)
	})
	t.Run("negative page", func(t *testing.T) {
		setListFlags(t, func() { listFlags.page = -1 })
		_, err := buildListQuery(config, logger)
		assert.Error(t, err)
	})
	t.Run("invalid configured sort falls back", func(t *testing.T) {
		setListFlags(t, func() {})
		q, err := buildListQuery(Config{Leads: LeadsConfig{Sort: ",desc"}}, logger)
		require.NoError(t, err)
		assert.Equal(t, lead.DefaultSort, q.Sort)
		assert.Equal(t, 10, q.Size)
	})
}

func TestParseVarFlags(t *testing.T) {
	vars, err := parseVarFlags([]string{"1=Ana", " 2 = Onix 2020 ", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "Ana", "2": "Onix 2020", "empty": ""}, vars)

	_, err = parseVarFlags([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseVarFlags([]string{"=x"})
	assert.Error(t, err)
}

func TestSplitPatterns(t *testing.T) {
	assert.Equal(t, []string{"*.jsonl", "*.json"}, splitPatterns(" *.jsonl, ,*.json "))
	assert.Nil(t, splitPatterns(""))
}

func TestResolvePathRelativeToBase(t *testing.T) {
	base := filepath.FromSlash("/srv/app")
	assert.Equal(t, filepath.Join(base, "data", "devapi.db"), resolvePathRelativeToBase(base, "./data/devapi.db"))
	assert.Equal(t, ":memory:", resolvePathRelativeToBase(base, ":memory:"))
	assert.Equal(t, "", resolvePathRelativeToBase(base, ""))
	abs, _ := filepath.Abs(filepath.FromSlash("/tmp/x.db"))
	assert.Equal(t, abs, resolvePathRelativeToBase(base, abs))
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("yes\n"), &out, "? "))
	assert.True(t, confirm(strings.NewReader(" Y \n"), &out, "? "))
	assert.False(t, confirm(strings.NewReader("n\n"), &out, "? "))
	assert.False(t, confirm(strings.NewReader(""), &out, "? "))
	assert.Equal(t, "? ? ? ? ", out.String())
}

// TestLoginAndListWorkflow drives the CLI helpers against the development backend:
// log in, store the session, list leads and users.
func TestLoginAndListWorkflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)

	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = devapi.Seed(ctx, st, devapi.SeedOptions{})
	require.NoError(t, err)
	for i, l := range []lead.Lead{
		{Name: "Ana", Vehicle: "Civic", Status: 1, Temperature: 3, Portal: 1, Subject: 2},
		{Name: "Bruno", Status: 7, Temperature: 1, Portal: 2, Subject: 6},
	} {
		l.SendDate = lead.Time{Time: time.Date(2024, 5, 1+i, 9, 30, 0, 0, time.UTC)}
		_, err := st.SaveLead(ctx, l)
		require.NoError(t, err)
	}

	srv := devapi.New(st, devapi.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}, devapi.Options{Logger: logger})
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	sess := session.New(session.NewMemoryStorage(), logger)
	client := api.NewClient(ts.URL+"/api", sess, logger)

	token, err := client.Login(ctx, api.Credentials{Identifier: "admin", Password: devapi.DefaultSeedPassword})
	require.NoError(t, err)
	claims, err := sess.LoginWithToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.True(t, sess.IsAdmin(ctx))
	require.NoError(t, client.Validate(ctx))

	setListFlags(t, func() { listFlags.output = "table" })

	var out bytes.Buffer
	q := lead.Query{Sort: lead.Sort{Field: "name", Direction: lead.Asc}, Size: 10}
	require.NoError(t, listLeads(ctx, client, q, &out))
	text := out.String()
	assert.Contains(t, text, "Ana")
	assert.Contains(t, text, "Quente")
	assert.Contains(t, text, "Aguardando contato")
	assert.Contains(t, text, "Não especificado")
	assert.Contains(t, text, "01/05/2024 09:30")
	assert.Contains(t, text, "Página 1 de 1 · 2 leads")
	assert.Less(t, strings.Index(text, "Ana"), strings.Index(text, "Bruno"))

	out.Reset()
	q.Filters = q.Filters.With(lead.FieldStatus, 7)
	require.NoError(t, listLeads(ctx, client, q, &out))
	assert.NotContains(t, out.String(), "Ana")
	assert.Contains(t, out.String(), "Bruno")

	out.Reset()
	require.NoError(t, listUsers(ctx, client, &out))
	assert.Contains(t, out.String(), "admin@leads.local")
	assert.Contains(t, out.String(), "ADMIN")

	require.NoError(t, sess.Logout(ctx))
	out.Reset()
	err = listLeads(ctx, client, q, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Faça login novamente")
}

func TestErrorFilterWriter(t *testing.T) {
	var out bytes.Buffer
	w := &errorFilterWriter{writer: &out}
	for _, line := range []string{
		"[UI] session storage: sqlite\n",
		"[UI] failed to load users: boom\n",
		"[UI] list leads: context canceled (error)\n",
		"[UI] Error rendering\n",
	} {
		n, err := w.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
	assert.Equal(t, "[UI] failed to load users: boom\n[UI] Error rendering\n", out.String())
}

func TestTerminalProbeString(t *testing.T) {
	p := terminalProbe{name: "xterm-256color", width: 120, height: 40, tty: true, color: true}
	assert.Equal(t, "TERM=xterm-256color, Size=120x40, TTY=yes, Colors=yes", p.String())
	assert.Equal(t, "TERM=<not set>, TTY=no, Colors=no", terminalProbe{}.String())
	assert.True(t, colorTerm("screen"))
	assert.False(t, colorTerm("dumb"))
}

func TestTerminalSizeFromEnv(t *testing.T) {
	t.Setenv("COLUMNS", "132")
	t.Setenv("LINES", "43")
	w, h := terminalSize()
	assert.Equal(t, 132, w)
	assert.Equal(t, 43, h)
}
