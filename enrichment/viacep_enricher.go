package enrichment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cepsilver/dataset"
)

const (
	DefaultViaCEPBaseURL = "https://viacep.com.br"
	DefaultTimeout       = 5 * time.Second
	DefaultRequestDelay  = 800 * time.Millisecond

	// поле, которым ViaCEP сообщает "CEP не найден" при статусе 200
	errorFlagField = "erro"

	maxResponseSize = 1 << 20
)

// ViaCEPEnricher клиент ViaCEP. Один запрос на CEP, без повторов.
type ViaCEPEnricher struct {
	config *EnricherConfig
	client *http.Client
	cache  *LookupCache
	logger *slog.Logger

	// callMu держит запросы к сервису по одному, cooldown отсчитывается от конца предыдущего
	callMu   sync.Mutex
	cooldown *rate.Limiter
}

// NewViaCEPEnricher создает клиент ViaCEP
func NewViaCEPEnricher(config *EnricherConfig) *ViaCEPEnricher {
	if config == nil {
		config = &EnricherConfig{}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultViaCEPBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = "cepsilver/1.0"
	}
	if config.RequestDelay <= 0 {
		config.RequestDelay = DefaultRequestDelay
	}

	return &ViaCEPEnricher{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: slog.Default(),
	}
}

// SetCache устанавливает кэш для клиента
func (v *ViaCEPEnricher) SetCache(cache *LookupCache) {
	v.cache = cache
}

// SetLogger устанавливает логгер
func (v *ViaCEPEnricher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		v.logger = logger
	}
}

// GetName возвращает название сервиса
func (v *ViaCEPEnricher) GetName() string {
	return "viacep"
}

// EndpointURL возвращает URL запроса для CEP (после нормализации)
func (v *ViaCEPEnricher) EndpointURL(cep string) string {
	return fmt.Sprintf("%s/ws/%s/json/", strings.TrimRight(v.config.BaseURL, "/"), NormalizeCEP(cep))
}

// Lookup ищет CEP в ViaCEP
func (v *ViaCEPEnricher) Lookup(ctx context.Context, cep string) *LookupResult {
	start := time.Now()
	result := v.lookup(ctx, cep)
	result.Duration = time.Since(start)

	attrs := []any{
		"cep", cep,
		"reason", result.Reason,
		"cached", result.Cached,
		"duration", result.Duration,
	}
	if result.StatusCode != 0 {
		attrs = append(attrs, "status", result.StatusCode)
	}
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err)
	}
	v.logger.Debug("CEP lookup finished", attrs...)

	return result
}

func (v *ViaCEPEnricher) lookup(ctx context.Context, cep string) *LookupResult {
	normalized := NormalizeCEP(cep)
	result := &LookupResult{Code: cep, Normalized: normalized}

	// Невалидный формат - без обращения к сервису
	if !IsValidCEP(normalized) {
		result.Reason = ReasonInvalidFormat
		return result
	}

	if v.cache != nil {
		if cached, found := v.cache.Get(normalized); found {
			hit := *cached
			hit.Code = cep
			hit.Cached = true
			return &hit
		}
	}

	v.callMu.Lock()
	defer v.callMu.Unlock()

	if err := v.throttle(ctx); err != nil {
		result.Reason = ReasonTransportError
		result.Err = fmt.Errorf("rate limiter: %w", err)
		return result
	}
	defer v.startCooldown()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.EndpointURL(normalized), nil)
	if err != nil {
		result.Reason = ReasonTransportError
		result.Err = fmt.Errorf("failed to create request: %w", err)
		return result
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", v.config.UserAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		result.Reason = ReasonTransportError
		result.Err = fmt.Errorf("request failed: %w", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		result.Reason = ReasonHTTPError
		result.Err = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		return result
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		result.Reason = ReasonTransportError
		result.Err = fmt.Errorf("failed to read response: %w", err)
		return result
	}

	record, err := dataset.DecodeObject(body)
	if err != nil {
		result.Reason = ReasonBadPayload
		result.Err = fmt.Errorf("failed to decode response: %w", err)
		return result
	}

	// ViaCEP отвечает 200 и {"erro": true} для несуществующего CEP
	if flag, ok := record.Get(errorFlagField); ok && dataset.Truthy(flag) {
		result.Reason = ReasonNotFound
		if v.cache != nil {
			v.cache.Set(normalized, result)
		}
		return result
	}

	result.Reason = ReasonFound
	result.Record = record
	if v.cache != nil {
		v.cache.Set(normalized, result)
	}
	return result
}

// throttle ждет, пока с конца предыдущего запроса пройдет RequestDelay
func (v *ViaCEPEnricher) throttle(ctx context.Context) error {
	if v.cooldown == nil {
		return nil
	}
	return v.cooldown.Wait(ctx)
}

// startCooldown запускает отсчет интервала с текущего момента
func (v *ViaCEPEnricher) startCooldown() {
	cooldown := rate.NewLimiter(rate.Every(v.config.RequestDelay), 1)
	cooldown.Allow()
	v.cooldown = cooldown
}
