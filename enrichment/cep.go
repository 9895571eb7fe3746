package enrichment

import "strings"

// CEPLength длина CEP без форматирования
const CEPLength = 8

// NormalizeCEP убирает дефисы и пробелы по краям
func NormalizeCEP(cep string) string {
	return strings.TrimSpace(strings.ReplaceAll(cep, "-", ""))
}

// IsValidCEP проверяет, что после нормализации остается ровно 8 цифр
func IsValidCEP(cep string) bool {
	cleaned := NormalizeCEP(cep)
	if len(cleaned) != CEPLength {
		return false
	}
	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] < '0' || cleaned[i] > '9' {
			return false
		}
	}
	return true
}

// FormatCEP возвращает CEP в виде NNNNN-NNN; невалидный CEP возвращается как есть
func FormatCEP(cep string) string {
	if !IsValidCEP(cep) {
		return cep
	}
	cleaned := NormalizeCEP(cep)
	return cleaned[:5] + "-" + cleaned[5:]
}
