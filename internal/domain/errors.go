package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidOdds       = errors.New("invalid odds")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMalformedLeg      = errors.New("malformed leg")
	ErrLockHeld          = errors.New("lock already held")
	// ErrDuplicate indica violação de unicidade (chave de idempotência já usada)
	ErrDuplicate = errors.New("duplicate")
)

// FieldError é uma violação de um campo da requisição
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError agrupa todas as violações para o cliente corrigir de uma vez
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add registra uma violação
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge anexa as violações de outro erro, prefixando o caminho
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for _, f := range other.Fields {
		name := f.Field
		if prefix != "" {
			name = prefix + "." + name
		}
		e.Fields = append(e.Fields, FieldError{Field: name, Message: f.Message})
	}
}

// Err retorna nil quando não há violações
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// InsufficientFundsError carrega os números que explicam a recusa
type InsufficientFundsError struct {
	Balance   decimal.Decimal
	Risk      decimal.Decimal
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, required %s (balance %s, risk %s)",
		e.Available.StringFixed(2), e.Required.StringFixed(2), e.Balance.StringFixed(2), e.Risk.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// CorruptWagerError isola uma aposta cujo payload persistido não pode ser graduado
type CorruptWagerError struct {
	WagerID string
	Err     error
}

func (e *CorruptWagerError) Error() string {
	return fmt.Sprintf("corrupt wager %s: %v", e.WagerID, e.Err)
}

func (e *CorruptWagerError) Unwrap() error { return e.Err }

// SettlementError é transitório: a fila tenta de novo
type SettlementError struct {
	GameRef string
	Err     error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement of game %s: %v", e.GameRef, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }
