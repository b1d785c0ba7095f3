package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRules(t *testing.T) {
	cases := map[string]bool{
		"":             false,
		"Ab1!":         false,
		"abcdefg1!":    false,
		"ABCDEFG1!":    false,
		"Abcdefgh!":    false,
		"Abcdefg1":     false,
		"Abcdefg1!":    true,
		"Senha Forte1": true,
	}
	for pw, ok := range cases {
		assert.Equal(t, ok, Password(pw) == "", "password %q", pw)
	}
}

func TestEmailAndPhone(t *testing.T) {
	assert.Empty(t, Email("ana@loja.com.br"))
	assert.NotEmpty(t, Email("ana@loja"))
	assert.NotEmpty(t, Email("ana loja@x.com"))
	assert.NotEmpty(t, Email(""))

	assert.Empty(t, Phone("(84) 99999-1234"))
	assert.Empty(t, Phone("+5584999991234"))
	assert.NotEmpty(t, Phone("123"))
	assert.NotEmpty(t, Phone("1234567890123456"))
	assert.NotEmpty(t, Phone("84 9999 abcd"))
	assert.Equal(t, "5584999991234", Digits("+55 (84) 99999-1234"))
}

func TestSignupRequiresEmailOrPhone(t *testing.T) {
	err := Signup{Username: "ana", Password: "Abcdefg1!", Role: "USER"}.Validate()
	require.Error(t, err)

	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.NotEmpty(t, errs.Field("contact"))
	assert.Empty(t, errs.Field("password"))

	assert.NoError(t, Signup{Username: "ana", Phone: "84999991234", Password: "Abcdefg1!", Role: "ROLE_ADMIN"}.Validate())
	assert.NoError(t, Signup{Username: "ana", Email: "a@b.co", Password: "Abcdefg1!", Role: "user"}.Validate())
}

func TestSignupCollectsAllFieldErrors(t *testing.T) {
	err := Signup{Email: "bad", Phone: "12", Password: "x", Role: "ROOT"}.Validate()
	var errs Errors
	require.True(t, errors.As(err, &errs))
	for _, field := range []string{"username", "email", "phone", "password", "role"} {
		assert.NotEmpty(t, errs.Field(field), field)
	}
}

func TestResetConfirmationMustMatch(t *testing.T) {
	err := Reset{Token: "tok", Password: "Abcdefg1!", Confirm: "Abcdefg1?"}.Validate()
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.NotEmpty(t, errs.Field("confirm"))

	assert.NoError(t, Reset{Token: "tok", Password: "Abcdefg1!", Confirm: "Abcdefg1!"}.Validate())
	assert.Error(t, Reset{Password: "Abcdefg1!", Confirm: "Abcdefg1!"}.Validate())
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, NormalizeRole("ROLE_ADMIN"))
	assert.Equal(t, RoleAdmin, NormalizeRole(" admin "))
	assert.Equal(t, RoleUser, NormalizeRole("ROLE_USER"))
	assert.Equal(t, RoleUser, NormalizeRole("guest"))
}

func TestTemplate(t *testing.T) {
	assert.NoError(t, Template{To: "84999991234", TemplateSID: "HX123"}.Validate())
	err := Template{To: "", TemplateSID: " ", Variables: map[string]string{"": "x"}}.Validate()
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Len(t, errs, 3)
}

func TestLogin(t *testing.T) {
	assert.NoError(t, Login("ana", "x"))
	assert.Error(t, Login(" ", "x"))
	assert.Error(t, Login("ana", ""))
}
