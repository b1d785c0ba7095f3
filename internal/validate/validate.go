// Package validate holds the client-side form rules. A failing form is never
// submitted; the field messages are shown next to the offending inputs.
package validate

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Roles as stored in the session and shown in user administration.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Errors maps a form field to its message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return strings.Join(parts, "; ")
}

// Field returns the message for one field, "" when valid.
func (e Errors) Field(name string) string { return e[name] }

func (e Errors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Rule is one password requirement.
type Rule struct {
	Label string
	Test  func(string) bool
}

// PasswordRules are displayed as a checklist while typing.
var PasswordRules = []Rule{
	{"Mínimo 8 caracteres", func(v string) bool { return len([]rune(v)) >= 8 }},
	{"Letra maiúscula", func(v string) bool { return strings.IndexFunc(v, isASCIIUpper) >= 0 }},
	{"Letra minúscula", func(v string) bool { return strings.IndexFunc(v, isASCIILower) >= 0 }},
	{"Número", func(v string) bool { return strings.IndexFunc(v, isASCIIDigit) >= 0 }},
	{"Caractere especial", func(v string) bool {
		return strings.IndexFunc(v, func(r rune) bool { return !isASCIIUpper(r) && !isASCIILower(r) && !isASCIIDigit(r) }) >= 0
	}},
}

func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }

// Password returns the first unmet rule, or "".
func Password(pw string) string {
	for _, r := range PasswordRules {
		if !r.Test(pw) {
			return "Senha fraca: " + strings.ToLower(r.Label) + "."
		}
	}
	return ""
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email checks the address format. Empty input is reported as missing.
func Email(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "E-mail é obrigatório."
	}
	if !emailPattern.MatchString(s) {
		return "E-mail inválido."
	}
	return ""
}

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if isASCIIDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Phone accepts 10 to 15 digits once punctuation is removed. Letters are rejected.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Telefone é obrigatório."
	}
	if strings.IndexFunc(s, unicode.IsLetter) >= 0 {
		return "Telefone deve conter apenas números."
	}
	if n := len(Digits(s)); n < 10 || n > 15 {
		return "Telefone deve ter entre 10 e 15 dígitos."
	}
	return ""
}

// NormalizeRole strips a ROLE_ prefix and upper-cases; unknown roles become USER.
func NormalizeRole(role string) string {
	r := strings.ToUpper(strings.TrimSpace(role))
	r = strings.TrimPrefix(r, "ROLE_")
	switch r {
	case RoleAdmin, RoleUser:
		return r
	}
	return RoleUser
}

// Login requires both fields.
func Login(identifier, password string) error {
	errs := Errors{}
	if strings.TrimSpace(identifier) == "" {
		errs["identifier"] = "Informe usuário, e-mail ou telefone."
	}
	if password == "" {
		errs["password"] = "Informe a senha."
	}
	return errs.orNil()
}

// Signup is the user registration form.
type Signup struct {
	Username string
	Email    string
	Phone    string
	Password string
	Role     string
}

// Validate requires a username, an email or a phone, a strong password and a known role.
func (s Signup) Validate() error {
	errs := Errors{}
	if strings.TrimSpace(s.Username) == "" {
		errs["username"] = "Usuário é obrigatório."
	}
	email, phone := strings.TrimSpace(s.Email), strings.TrimSpace(s.Phone)
	if email == "" && phone == "" {
		errs["contact"] = "Informe e-mail ou telefone."
	}
	if email != "" {
		if msg := Email(email); msg != "" {
			errs["email"] = msg
		}
	}
	if phone != "" {
		if msg := Phone(phone); msg != "" {
			errs["phone"] = msg
		}
	}
	if msg := Password(s.Password); msg != "" {
		errs["password"] = msg
	}
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s.Role)), "ROLE_") {
	case RoleAdmin, RoleUser:
	default:
		errs["role"] = "Perfil inválido."
	}
	return errs.orNil()
}

// Reset is the password reset form.
type Reset struct {
	Token    string
	Password string
	Confirm  string
}

func (r Reset) Validate() error {
	errs := Errors{}
	if strings.TrimSpace(r.Token) == "" {
		errs["token"] = "Token de recuperação ausente."
	}
	if msg := Password(r.Password); msg != "" {
		errs["password"] = msg
	}
	if r.Password != r.Confirm {
		errs["confirm"] = "As senhas não coincidem."
	}
	return errs.orNil()
}

// Template is an outbound template message form.
type Template struct {
	To          string
	TemplateSID string
	Variables   map[string]string
}

func (t Template) Validate() error {
	errs := Errors{}
	if msg := Phone(t.To); msg != "" {
		errs["to"] = msg
	}
	if strings.TrimSpace(t.TemplateSID) == "" {
		errs["templateSid"] = "Template é obrigatório."
	}
	for k := range t.Variables {
		if strings.TrimSpace(k) == "" {
			errs["variables"] = "Variável sem nome."
			break
		}
	}
	return errs.orNil()
}
