// Package qrcode рисует PNG с QR-кодами заказов и пользователей.
package qrcode

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	qr "github.com/skip2/go-qrcode"
)

const imageSize = 256

// Generator сохраняет QR-коды в каталог dir.
type Generator struct {
	dir string
}

// NewGenerator создаёт генератор и каталог для файлов.
func NewGenerator(dir string) (*Generator, error) {
	if dir == "" {
		dir = "qr_codes"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create qr dir: %w", err)
	}
	return &Generator{dir: dir}, nil
}

// Dir возвращает каталог с файлами.
func (g *Generator) Dir() string {
	return g.dir
}

// Render кодирует payload в JSON и пишет PNG с именем name, если файла ещё нет.
// Возвращает имя файла.
func (g *Generator) Render(payload any, name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid qr file name %q", name)
	}

	path := filepath.Join(g.dir, name)
	if _, err := os.Stat(path); err == nil {
		return name, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat qr file: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal qr payload: %w", err)
	}

	if err := qr.WriteFile(string(data), qr.Medium, imageSize, path); err != nil {
		return "", fmt.Errorf("write qr file: %w", err)
	}

	return name, nil
}

// OrderFileName возвращает имя файла QR-кода заказа.
func OrderFileName(orderID string) string {
	return "order_" + orderID + ".png"
}

// UserFileName возвращает имя файла QR-кода пользователя.
func UserFileName(userID string) string {
	return "user_" + userID + ".png"
}
