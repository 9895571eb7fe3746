package enrichment

import (
	"context"
	"time"

	"cepsilver/dataset"
)

// OriginalCEPField поле с CEP в том виде, в каком он был во входных данных
const OriginalCEPField = "cep_original"

// Reason причина результата поиска
type Reason string

const (
	ReasonFound          Reason = "found"
	ReasonInvalidFormat  Reason = "invalid_format"
	ReasonHTTPError      Reason = "http_error"
	ReasonNotFound       Reason = "not_found"
	ReasonTransportError Reason = "transport_error"
	ReasonBadPayload     Reason = "bad_payload"
)

// LookupResult результат поиска одного CEP.
// Вызывающий код ветвится только по Found(); Reason, StatusCode и Err нужны для логов и статистики.
type LookupResult struct {
	Code       string       // CEP как передан
	Normalized string       // CEP после нормализации
	Record     *dataset.Row // ответ сервиса, только при Found()
	Reason     Reason
	StatusCode int
	Err        error
	Cached     bool
	Duration   time.Duration
}

// Found успешен ли поиск
func (r *LookupResult) Found() bool {
	return r != nil && r.Reason == ReasonFound && r.Record != nil
}

// RecordWithOriginal возвращает копию записи с полем cep_original.
// Исходная запись не изменяется (она может лежать в кэше).
func (r *LookupResult) RecordWithOriginal(original string) *dataset.Row {
	if !r.Found() {
		return nil
	}
	rec := r.Record.Clone()
	rec.Set(OriginalCEPField, original)
	return rec
}

// Lookuper интерфейс сервиса поиска CEP
type Lookuper interface {
	// Lookup ищет CEP. Ошибки сервиса не возвращаются, а сворачиваются в Reason.
	Lookup(ctx context.Context, cep string) *LookupResult
}

// LookuperFunc адаптер функции к Lookuper
type LookuperFunc func(ctx context.Context, cep string) *LookupResult

func (f LookuperFunc) Lookup(ctx context.Context, cep string) *LookupResult {
	return f(ctx, cep)
}

// EnricherConfig конфигурация клиента ViaCEP
type EnricherConfig struct {
	BaseURL      string        `json:"base_url"`
	Timeout      time.Duration `json:"timeout"`
	RequestDelay time.Duration `json:"request_delay"` // минимальный интервал между запросами к сервису
	UserAgent    string        `json:"user_agent"`
}

// CacheConfig конфигурация кэша
type CacheConfig struct {
	Enabled bool          `json:"enabled"`
	TTL     time.Duration `json:"ttl"` // 0 - без ограничения в пределах запуска
}
