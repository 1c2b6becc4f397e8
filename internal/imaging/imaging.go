// Пакет imaging — валидация загружаемых текстур и вычисление fingerprint.
//
// Принимается единственный растровый формат — PNG. Fingerprint считается
// по декодированному каноническому пиксельному буферу (NRGBA), а не по
// сырым байтам файла: две разные кодировки одного изображения дают один
// fingerprint и дедуплицируются в хранилище.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"

	// Регистрация декодеров. PNG — принимаемый формат; прочие декодеры
	// нужны, чтобы отличать "не изображение" от "неподдерживаемый формат".
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Ошибки валидации изображений.
var (
	// ErrInvalidImage — байты не декодируются как изображение.
	ErrInvalidImage = errors.New("данные не являются изображением")
	// ErrUnsupportedFormat — изображение декодируется, но формат не PNG.
	ErrUnsupportedFormat = errors.New("неподдерживаемый формат изображения")
	// ErrUnsupportedDimensions — размеры вне допустимого набора.
	ErrUnsupportedDimensions = errors.New("неподдерживаемый размер изображения")
)

// acceptedFormat — единственный принимаемый формат (имя декодера stdlib).
const acceptedFormat = "png"

// Допустимые значения ширины. Высота — либо равна ширине (полная текстура),
// либо вдвое меньше (legacy half-height вариант).
var validWidths = map[int]bool{64: true, 128: true, 256: true, 512: true, 1024: true}

// ValidateAndHash декодирует data, проверяет формат и размеры и возвращает
// fingerprint — SHA-256 канонического пиксельного буфера в hex.
// Ограничение размера входных данных обеспечивает вызывающая сторона
// ДО декодирования (Content-Length / MaxBytesReader).
func ValidateAndHash(data []byte) (string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if format != acceptedFormat {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if !validWidths[width] || (height != width && height*2 != width) {
		return "", fmt.Errorf("%w: %dx%d", ErrUnsupportedDimensions, width, height)
	}

	return hashPixels(img), nil
}

// hashPixels приводит изображение к NRGBA и считает SHA-256 пиксельного буфера.
// Канонизация гарантирует одинаковый fingerprint для перекодировок
// (interlaced/non-interlaced, разные уровни сжатия, палитра vs truecolor).
func hashPixels(img image.Image) string {
	bounds := img.Bounds()
	canonical := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canonical, canonical.Bounds(), img, bounds.Min, draw.Src)

	sum := sha256.Sum256(canonical.Pix)
	return hex.EncodeToString(sum[:])
}
