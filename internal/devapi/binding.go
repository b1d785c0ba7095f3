package devapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var registerOnce sync.Once

// registerValidations adds "notblank" to gin's validator and reports fields
// by their JSON name.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// fieldMessages maps "<json field>.<tag>" to the message shown to the user.
// "<json field>" alone matches any tag on that field.
var fieldMessages = map[string]string{
	"identifier":     "Informe usuário, e-mail ou telefone.",
	"password":       "Informe a senha.",
	"username":       "Usuário é obrigatório.",
	"email.required": "E-mail é obrigatório.",
	"email.email":    "E-mail inválido.",
	"id":             "Usuário sem identificador.",
	"message":        "Mensagem é obrigatória.",
	"token":          "Token de recuperação ausente.",
	"newPassword":    "Informe a nova senha.",
	"to":             "Telefone é obrigatório.",
	"templateSid":    "Template é obrigatório.",
}

// bindingMessage turns a ShouldBindJSON error into a response message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	if msg, ok := fieldMessages[fe.Field()]; ok {
		return msg
	}
	return "Campo inválido: " + fe.Field() + "."
}

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, bindingMessage(err))
		return false
	}
	return true
}
