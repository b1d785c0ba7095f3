package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTokens bool

func (f fakeTokens) LoggedIn(context.Context) bool { return bool(f) }

type fakeValidator struct {
	err   error
	calls int
}

func (f *fakeValidator) Validate(context.Context) error {
	f.calls++
	return f.err
}

func TestNoTokenRedirectsWithoutRoundTrip(t *testing.T) {
	v := &fakeValidator{}
	g := New(fakeTokens(false), v, nil)
	var from string
	g.OnRedirect(func(p string) { from = p })

	assert.Equal(t, Invalid, g.Evaluate(context.Background(), "/users"))
	assert.Equal(t, "/users", from)
	assert.Equal(t, "/users", g.ReturnPath())
	assert.Zero(t, v.calls)
}

func TestInvalidTokenRedirectsAfterOneValidation(t *testing.T) {
	v := &fakeValidator{err: errors.New("401")}
	g := New(fakeTokens(true), v, nil)
	redirects := 0
	g.OnRedirect(func(string) { redirects++ })

	assert.Equal(t, Invalid, g.Evaluate(context.Background(), "/leads"))
	assert.Equal(t, 1, v.calls)
	assert.Equal(t, 1, redirects)
	assert.Equal(t, Invalid, g.Status())
}

func TestValidTokenRendersContent(t *testing.T) {
	v := &fakeValidator{}
	g := New(fakeTokens(true), v, nil)
	g.OnRedirect(func(string) { t.Fatal("unexpected redirect") })

	assert.Equal(t, Unknown, g.Status())
	assert.Equal(t, Valid, g.Evaluate(context.Background(), "/chat"))
	assert.Equal(t, 1, v.calls)
	assert.Empty(t, g.ReturnPath())

	g.Reset()
	assert.Equal(t, Unknown, g.Status())
	assert.Equal(t, "unknown", g.Status().String())
}
