package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"moonhollow/internal/game"
)

const maxNameLength = 20

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("playername", func(fl validator.FieldLevel) bool {
			_, err := validateName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("joincode", func(fl validator.FieldLevel) bool {
			return validateJoinCode(fl.Field().String()) == nil
		})
	})
}

func validateName(name string) (string, error) {
	trimmed := normalizeText(name)
	if trimmed == "" {
		return "", errors.New("name is required")
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("name must be %d characters or fewer", maxNameLength)
	}
	if !isSafeText(trimmed) {
		return "", errors.New("name contains unsupported characters")
	}
	return trimmed, nil
}

func validateJoinCode(code string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if len(trimmed) != game.JoinCodeLength {
		return errors.New("join code must be six characters")
	}
	for _, r := range trimmed {
		if !strings.ContainsRune(game.JoinCodeCharset, r) {
			return errors.New("join code contains unsupported characters")
		}
	}
	return nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

func isSafeText(text string) bool {
	for _, r := range text {
		if r > 127 {
			return false
		}
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			continue
		}
		if r == ' ' || r == '-' || r == '_' || r == '\'' || r == '.' {
			continue
		}
		return false
	}
	return true
}
