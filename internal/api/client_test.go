package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/validate"
)

func newTestClient(t *testing.T, token string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", StaticToken(token), nil)
}

func TestBearerAttachedOnlyWhenPresent(t *testing.T) {
	var gotAuth, gotReqID string
	c := newTestClient(t, "tok-1", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.Validate(context.Background()))
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.NotEmpty(t, gotReqID)

	anon := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, anon.Validate(context.Background()))
	assert.Empty(t, gotAuth)
}

func TestValidateUnauthorized(t *testing.T) {
	c := newTestClient(t, "expired", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})
	err := c.Validate(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusUnauthorized, serr.Code)
	assert.Contains(t, Message(err), "login")
}

func TestListLeadsSendsQuery(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/leads", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "CLOSED", q.Get("status"))
		assert.Equal(t, "sendDate,desc", q.Get("sort"))
		assert.Equal(t, "0", q.Get("page"))
		assert.Equal(t, "10", q.Get("size"))
		_, _ = w.Write([]byte(`{"content":[{"id":1,"name":"Ana","status":"CLOSED","temperature":2,"portal":1,"subject":1}],
			"page":{"size":10,"number":0,"totalElements":1,"totalPages":1}}`))
	})
	page, err := c.ListLeads(context.Background(), lead.Query{
		Filters: lead.Filters{Status: 7},
		Sort:    lead.DefaultSort,
		Size:    10,
	})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, 7, page.Content[0].Status)
	assert.Equal(t, 1, page.TotalPages())
}

func TestListLeadsMalformedEnvelope(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	_, err := c.ListLeads(context.Background(), lead.Query{Size: 10})
	var derr *DecodeError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "Resposta inesperada do servidor.", Message(err))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, nil, nil)
	err := c.Validate(context.Background())
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "Não foi possível conectar ao servidor.", Message(err))
}

func TestLoginReturnsToken(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "admin", creds.Identifier)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "abc.def.ghi"})
	})
	tok, err := c.Login(context.Background(), Credentials{Identifier: "admin", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)
}

func TestLoginMissingToken(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.Login(context.Background(), Credentials{Identifier: "admin", Password: "pw"})
	var derr *DecodeError
	assert.True(t, errors.As(err, &derr))
}

func TestSignupBlockedByValidation(t *testing.T) {
	var calls int32
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	err := c.Signup(context.Background(), SignupRequest{Username: "ana", Password: "weak", Role: "USER"})
	var verr validate.Errors
	require.True(t, errors.As(err, &verr))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSignupSendsPrefixedRole(t *testing.T) {
	var body SignupRequest
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/signup", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	})
	err := c.Signup(context.Background(), SignupRequest{Username: "ana", Email: "ana@loja.com", Password: "Abcdefg1!", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "ROLE_ADMIN", body.Role)
}

func TestUsersRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":1,"username":"ana","email":"a@b.co","phoneNumber":"","role":"ADMIN"}]`))
		case http.MethodPut:
			var u User
			require.NoError(t, json.NewDecoder(r.Body).Decode(&u))
			_ = json.NewEncoder(w).Encode(u)
		}
	})
	var deleted string
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, "tok", mux.ServeHTTP)

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin())

	users[0].Role = "ROLE_USER"
	updated, err := c.UpdateUser(context.Background(), users[0])
	require.NoError(t, err)
	assert.Equal(t, "USER", updated.Role)

	require.NoError(t, c.DeleteUser(context.Background(), 1))
	assert.Equal(t, "/api/users/1", deleted)
}

func TestInternalChat(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "eco: " + in["message"]})
	})
	out, err := c.InternalChat(context.Background(), "oi")
	require.NoError(t, err)
	assert.Equal(t, "eco: oi", out)
}

func TestSendTemplate(t *testing.T) {
	var got TemplateMessage
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})
	err := c.SendTemplate(context.Background(), TemplateMessage{To: "(84) 99999-1234", TemplateSID: "HX1", Variables: map[string]string{"1": "Ana"}})
	require.NoError(t, err)
	assert.Equal(t, "84999991234", got.To)
	assert.Equal(t, "Ana", got.Variables["1"])
}

func TestMessageUsesServerText(t *testing.T) {
	assert.Equal(t, "Usuário já existe", Message(&StatusError{Code: 409, Body: `{"message":"Usuário já existe"}`}))
	assert.Equal(t, "Erro no servidor (502). Tente novamente.", Message(&StatusError{Code: 502}))
	assert.Empty(t, Message(nil))
}

func TestStatusErrorBodyKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("ã", 300)
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(body))
	})

	err := c.Validate(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, utf8.ValidString(se.Body))
	assert.True(t, strings.HasSuffix(se.Body, "..."))
	assert.LessOrEqual(t, len(se.Body), 403)

	assert.Equal(t, "a...", truncateBody("aé", 2))
	assert.Equal(t, "ok", truncateBody("ok", 2))
}
