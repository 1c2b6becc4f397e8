// Пакет textype — нормализация идентификаторов типов текстур.
//
// Каноническая внутренняя форма — всегда "namespace:value" (например,
// "minecraft:skin"). Поверх неё существуют две исторические конвенции
// представления на разных поверхностях API:
//
//   - v1 (legacy): плоский токен, namespace отделяется первым подчёркиванием
//     ("skin", "foo_bar"). ParseLegacy/FormatLegacy — точные взаимно
//     обратные преобразования.
//   - v2 (strict): форма "namespace:value" с валидацией символов и
//     зарезервированным namespace "minecraft".
//
// Расхождение конвенций (underscore-split против colon-passthrough) —
// органическая особенность эволюции протокола. Обе сохраняются на своих
// поверхностях, унификация не выполняется.
package textype

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Ошибки валидации идентификаторов.
var (
	// ErrInvalidIdentifier — недопустимые символы в namespace или value.
	ErrInvalidIdentifier = errors.New("недопустимый идентификатор типа текстуры")
	// ErrReservedNamespace — namespace "minecraft" допускает только
	// встроенные типы skin, cape, elytra.
	ErrReservedNamespace = errors.New("namespace 'minecraft' зарезервирован")
)

// DefaultNamespace — namespace, подразумеваемый для неквалифицированных типов.
const DefaultNamespace = "minecraft"

// Встроенные типы, разрешённые в namespace "minecraft" на strict-поверхности.
var builtinTypes = map[string]bool{
	"skin":   true,
	"cape":   true,
	"elytra": true,
}

var (
	namespaceRe = regexp.MustCompile(`^[a-z._-]+$`)
	valueRe     = regexp.MustCompile(`^[a-z./_-]+$`)

	// Очистка символов при конверсии из legacy-формы (как в исходном протоколе:
	// нелегальные символы отбрасываются, а не отклоняются).
	namespaceStripRe = regexp.MustCompile(`[^a-z0-9._-]`)
	valueStripRe     = regexp.MustCompile(`[^a-z0-9./_-]`)
)

// ParseLegacy преобразует идентификатор v1-поверхности в каноническую форму.
// Первое подчёркивание трактуется как разделитель namespace_value;
// без подчёркивания подразумевается namespace "minecraft".
// Нелегальные символы отбрасываются (поведение legacy-протокола).
func ParseLegacy(s string) string {
	s = strings.ToLower(s)
	s = strings.Replace(s, "_", ":", 1)

	ns := DefaultNamespace
	val := s
	if idx := strings.Index(s, ":"); idx >= 0 {
		ns = namespaceStripRe.ReplaceAllString(s[:idx], "")
		val = valueStripRe.ReplaceAllString(s[idx+1:], "")
	}
	return ns + ":" + val
}

// FormatLegacy — обратное преобразование для v1-поверхности.
// Для namespace "minecraft" возвращает голое значение, иначе "ns_value".
// Точная инверсия ParseLegacy: FormatLegacy(ParseLegacy(x)) == x
// для всех валидных входов v1-поверхности.
func FormatLegacy(canonical string) string {
	ns, val, ok := strings.Cut(canonical, ":")
	if !ok {
		return canonical
	}
	if ns == DefaultNamespace {
		return val
	}
	return ns + "_" + val
}

// ParseStrict валидирует идентификатор v2-поверхности и возвращает
// каноническую форму. Без двоеточия подразумевается namespace "minecraft".
// В отличие от legacy-пути, недопустимые символы — ошибка, а namespace
// "minecraft" ограничен встроенным набором типов.
func ParseStrict(s string) (string, error) {
	ns := DefaultNamespace
	val := s
	if n, v, ok := strings.Cut(s, ":"); ok {
		ns, val = n, v
	}

	if !namespaceRe.MatchString(ns) || !valueRe.MatchString(val) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}

	if ns == DefaultNamespace && !builtinTypes[val] {
		return "", fmt.Errorf("%w: %q не входит в набор skin, cape, elytra", ErrReservedNamespace, val)
	}

	return ns + ":" + val, nil
}

// FormatNamespaced приводит хранимое значение к форме "namespace:value"
// для v2-поверхности. Исторические записи могли быть сохранены в плоской
// форме, поэтому преобразование терпимо к обоим вариантам.
func FormatNamespaced(s string) string {
	if strings.Contains(s, ":") {
		return s
	}
	if ns, val, ok := strings.Cut(s, "_"); ok {
		return ns + ":" + val
	}
	return DefaultNamespace + ":" + s
}
