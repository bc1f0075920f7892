// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"strings"
	"unicode"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	maxEmailLen    = 100
	minPasswordLen = 6
)

// IsValidUsername проверяет имя пользователя: латиница, цифры, '_', '.', '-'.
func IsValidUsername(username string) bool {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return false
	}

	for _, ch := range username {
		if ch > unicode.MaxASCII {
			return false
		}
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			continue
		}
		switch ch {
		case '_', '.', '-':
			continue
		}
		return false
	}

	return true
}

// IsValidEmail проверяет адрес электронной почты без отображаемого имени.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLen {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}

	return addr.Address == email && strings.Contains(email, "@")
}

// IsValidPassword проверяет минимальную длину пароля.
func IsValidPassword(password string) bool {
	return len(password) >= minPasswordLen && strings.TrimSpace(password) != ""
}
