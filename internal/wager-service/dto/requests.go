package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/wager/normalize"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// erros usam o nome do campo JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PlaceWagerRequest é o corpo de POST /v1/wagers. Stake e pontos aceitam número ou string.
type PlaceWagerRequest struct {
	Kind            string             `json:"kind" validate:"required,oneof=single parlay teaser round_robin if_bet reverse bet_it_all"`
	Stake           decimal.Decimal    `json:"stake"`
	Legs            []normalize.RawLeg `json:"legs" validate:"required,min=1"`
	RoundRobinSizes []int              `json:"roundRobinSizes,omitempty" validate:"omitempty,dive,min=2"`
	TeaserPoints    *decimal.Decimal   `json:"teaserPoints,omitempty"`
	PushRule        string             `json:"pushRule,omitempty" validate:"omitempty,oneof=continue halt"`
	IdempotencyKey  string             `json:"idempotencyKey,omitempty" validate:"omitempty,max=128"`
}

func (p *PlaceWagerRequest) Validate() *domain.ValidationError {
	return toValidation(validate.Struct(p))
}

// DepositRequest é o corpo de POST /v1/accounts/me/deposits
type DepositRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"externalRef" validate:"required,max=128"`
}

func (d *DepositRequest) Validate() *domain.ValidationError {
	return toValidation(validate.Struct(d))
}

func toValidation(err error) *domain.ValidationError {
	verr := &domain.ValidationError{}
	if err == nil {
		return verr
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		verr.Add("body", "%v", err)
		return verr
	}
	for _, fe := range ves {
		verr.Add(fieldPath(fe), "%s", message(fe))
	}
	return verr
}

// fieldPath remove o nome da struct raiz: "PlaceWagerRequest.roundRobinSizes[0]" -> "roundRobinSizes[0]"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag()
}
