package utils

// validator.go - валидация входных данных конфигурации и учётных
// записей перед тем, как они попадут в орекстратор или venue-адаптер.

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidSymbol     = errors.New("invalid symbol format")
	ErrInvalidSpread     = errors.New("spread must be in (0, 100]")
	ErrInvalidVolume     = errors.New("volume must be in (0, 1e9]")
	ErrInvalidNOrders    = errors.New("n_orders must be in [1, 100]")
	ErrInvalidStopLoss   = errors.New("stop_loss must be in (0, 100]")
	ErrInvalidLeverage   = errors.New("leverage must be in [1, 100]")
	ErrInvalidPercentage = errors.New("percentage must be in [0, 100]")
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrInvalidAPIKey     = errors.New("api key must be at least 16 chars of [A-Za-z0-9_-]")
	ErrInvalidAPISecret  = errors.New("api secret must be at least 16 characters")
	ErrInvalidPassphrase = errors.New("passphrase too long")
	ErrInvalidExchange   = errors.New("unsupported exchange")
)

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9/_-]{2,20}$`)

// ValidateSymbol checks a trading pair symbol's shape. It does not
// check that the symbol exists on any venue.
func ValidateSymbol(symbol string) error {
	if !symbolPattern.MatchString(symbol) {
		return ErrInvalidSymbol
	}
	return nil
}

// NormalizeSymbol uppercases a symbol and strips separator characters,
// e.g. "btc-usdt" -> "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	return s
}

// quoteCurrencies is ordered longest-first so a suffix scan matches the
// most specific quote before a shorter false-positive.
var quoteCurrencies = []string{"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "DAI", "EUR", "USD", "BTC", "ETH", "BNB"}

func splitSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(symbol)
	for _, sep := range []string{"-", "_", "/"} {
		if idx := strings.Index(s, sep); idx >= 0 {
			return s[:idx], s[idx+1:]
		}
	}
	for _, q := range quoteCurrencies {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	return s, ""
}

// ExtractBaseCurrency returns the base asset of a symbol, e.g. "BTC"
// from "BTCUSDT" or "BTC-USDT".
func ExtractBaseCurrency(symbol string) string {
	base, _ := splitSymbol(symbol)
	return base
}

// ExtractQuoteCurrency returns the quote asset of a symbol, e.g.
// "USDT" from "BTCUSDT" or "BTC-USDT".
func ExtractQuoteCurrency(symbol string) string {
	_, quote := splitSymbol(symbol)
	return quote
}

// ValidateSpread checks a spread percentage is a sane, positive value.
func ValidateSpread(spread float64) error {
	if spread <= 0 || spread > 100 {
		return ErrInvalidSpread
	}
	return nil
}

// ValidateVolume checks an order volume is positive and within a sane
// upper bound.
func ValidateVolume(volume float64) error {
	if volume <= 0 || volume > 1e9 {
		return ErrInvalidVolume
	}
	return nil
}

// ValidateNOrders checks a split-order count.
func ValidateNOrders(n int) error {
	if n < 1 || n > 100 {
		return ErrInvalidNOrders
	}
	return nil
}

// ValidateStopLoss checks a stop-loss percentage.
func ValidateStopLoss(sl float64) error {
	if sl <= 0 || sl > 100 {
		return ErrInvalidStopLoss
	}
	return nil
}

// ValidateLeverage checks a leverage multiplier.
func ValidateLeverage(leverage int) error {
	if leverage < 1 || leverage > 100 {
		return ErrInvalidLeverage
	}
	return nil
}

// ValidatePercentage checks a generic [0, 100] percentage value.
func ValidatePercentage(pct float64) error {
	if pct < 0 || pct > 100 {
		return ErrInvalidPercentage
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmail checks a basic, practical email shape.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

var apiKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,}$`)

// ValidateAPIKey checks an API key's length and character set.
func ValidateAPIKey(apiKey string) error {
	if !apiKeyPattern.MatchString(apiKey) {
		return ErrInvalidAPIKey
	}
	return nil
}

// ValidateAPISecret checks an API secret's minimum length. Secrets may
// contain arbitrary characters, unlike API keys.
func ValidateAPISecret(secret string) error {
	if len(secret) < 16 {
		return ErrInvalidAPISecret
	}
	return nil
}

// ValidateAPIPassphrase checks an optional venue passphrase (OKX,
// Bitget). Empty is valid - not every venue requires one.
func ValidateAPIPassphrase(passphrase string) error {
	if len(passphrase) > 64 {
		return ErrInvalidPassphrase
	}
	return nil
}

// SupportedExchanges lists the venues this engine's adapters cover.
var SupportedExchanges = []string{"bybit", "bitget", "okx", "gate", "htx", "bingx"}

// NormalizeExchange trims and lowercases a venue id.
func NormalizeExchange(exchange string) string {
	return strings.ToLower(strings.TrimSpace(exchange))
}

// ValidateExchange checks exchange against the supported venue set.
func ValidateExchange(exchange string) error {
	name := NormalizeExchange(exchange)
	for _, e := range SupportedExchanges {
		if name == e {
			return nil
		}
	}
	return ErrInvalidExchange
}

// GetSupportedExchanges returns a copy of SupportedExchanges so callers
// cannot mutate the package-level slice.
func GetSupportedExchanges() []string {
	out := make([]string, len(SupportedExchanges))
	copy(out, SupportedExchanges)
	return out
}

// PairConfigValidation is the subset of a pair's configuration that
// ValidatePairConfig checks before the pair is armed.
type PairConfigValidation struct {
	Symbol      string
	EntrySpread float64
	ExitSpread  float64
	Volume      float64
	NOrders     int
	StopLoss    float64
	ExchangeA   string
	ExchangeB   string
}

// ValidatePairConfig runs every field-level check plus the cross-field
// invariants (entry spread must exceed exit spread, the two venues must
// differ) and aggregates them into one ValidationErrors.
func ValidatePairConfig(cfg PairConfigValidation) error {
	var errs ValidationErrors

	errs.AddError("symbol", ValidateSymbol(cfg.Symbol))
	errs.AddError("entry_spread", ValidateSpread(cfg.EntrySpread))
	errs.AddError("exit_spread", ValidateSpread(cfg.ExitSpread))
	errs.AddError("volume", ValidateVolume(cfg.Volume))
	errs.AddError("n_orders", ValidateNOrders(cfg.NOrders))

	if cfg.StopLoss != 0 {
		errs.AddError("stop_loss", ValidateStopLoss(cfg.StopLoss))
	}
	if cfg.ExchangeA != "" {
		errs.AddError("exchange_a", ValidateExchange(cfg.ExchangeA))
	}
	if cfg.ExchangeB != "" {
		errs.AddError("exchange_b", ValidateExchange(cfg.ExchangeB))
	}
	if cfg.ExchangeA != "" && cfg.ExchangeB != "" && strings.EqualFold(cfg.ExchangeA, cfg.ExchangeB) {
		errs.Add("exchange_b", "exchange_a and exchange_b must differ")
	}
	if cfg.EntrySpread <= cfg.ExitSpread {
		errs.Add("entry_spread", "entry spread must exceed exit spread")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidationError is one field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors aggregates multiple field-level failures into a
// single error value.
type ValidationErrors []ValidationError

// Add appends a field/message pair directly.
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// AddError appends err's message under field, unless err is nil.
func (e *ValidationErrors) AddError(field string, err error) {
	if err == nil {
		return
	}
	*e = append(*e, ValidationError{Field: field, Message: err.Error()})
}

// HasErrors reports whether any failure was recorded.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Error joins every field failure into one message.
func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, er := range e {
		parts[i] = fmt.Sprintf("%s: %s", er.Field, er.Message)
	}
	return strings.Join(parts, "; ")
}

// IsValidSymbol is a boolean convenience wrapper around ValidateSymbol.
func IsValidSymbol(symbol string) bool { return ValidateSymbol(symbol) == nil }

// IsValidEmail is a boolean convenience wrapper around ValidateEmail.
func IsValidEmail(email string) bool { return ValidateEmail(email) == nil }

// IsValidAPIKey is a boolean convenience wrapper around ValidateAPIKey.
func IsValidAPIKey(apiKey string) bool { return ValidateAPIKey(apiKey) == nil }

// IsValidExchange is a boolean convenience wrapper around ValidateExchange.
func IsValidExchange(exchange string) bool { return ValidateExchange(exchange) == nil }
