package gridcfg

import (
	"os"
	"strconv"
	"strings"

	"arbitrage/internal/dec"
)

// LoadSymbols reads ARBITRAGE_SYMBOLS as a comma-separated list of
// neutral BASE-QUOTE-KIND symbols (grid_config is keyed by
// symbol), the same os.Getenv-driven idiom internal/config.Load uses
// for every other section.
func LoadSymbols() []string {
	raw := os.Getenv("ARBITRAGE_SYMBOLS")
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadVenues reads ARBITRAGE_VENUES as a comma-separated list of venue
// ids shared by every configured symbol's route.
func LoadVenues() []string {
	raw := os.Getenv("ARBITRAGE_VENUES")
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// envKey turns a neutral symbol into the upper-snake prefix used for
// its per-symbol environment overrides, e.g. "BTC-USDC-PERP" ->
// "BTC_USDC_PERP".
func envKey(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", "_"))
}

func getEnvDec(key string, fallback dec.D) dec.D {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := dec.Parse(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// LoadGridConfig builds a symbol's GridConfig from GRID_<SYMBOL>_*
// environment overrides layered over process-wide GRID_DEFAULT_*
// values ("per-symbol overrides layered over process-wide
// defaults").
func LoadGridConfig(symbol string) *GridConfig {
	key := envKey(symbol)
	lookup := func(suffix string) string {
		if v := os.Getenv("GRID_" + key + "_" + suffix); v != "" {
			return "GRID_" + key + "_" + suffix
		}
		return "GRID_DEFAULT_" + suffix
	}

	return &GridConfig{
		Symbol:                      symbol,
		InitialSpreadThreshold:      getEnvDec(lookup("INITIAL_SPREAD_THRESHOLD"), dec.New(2, -1)),
		GridStep:                    getEnvDec(lookup("GRID_STEP"), dec.New(1, -1)),
		MaxSegments:                 getEnvInt("GRID_"+key+"_MAX_SEGMENTS", getEnvInt("GRID_DEFAULT_MAX_SEGMENTS", 5)),
		BaseQuantity:                getEnvDec(lookup("BASE_QUANTITY"), dec.New(1, -2)),
		SplitOrderSize:              getEnvDec(lookup("SPLIT_ORDER_SIZE"), dec.Zero),
		SegmentPartialOrderRatio:    getEnvDec(lookup("SEGMENT_PARTIAL_ORDER_RATIO"), dec.New(5, -1)),
		MinPartialOrderQuantity:     getEnvDec(lookup("MIN_PARTIAL_ORDER_QUANTITY"), dec.New(1, -3)),
		T0CloseRatio:                getEnvDec(lookup("T0_CLOSE_RATIO"), dec.New(4, -1)),
		ProfitPerSegment:            getEnvDec(lookup("PROFIT_PER_SEGMENT"), dec.Zero),
		UseSymmetricClose:           getEnvBool("GRID_"+key+"_USE_SYMMETRIC_CLOSE", getEnvBool("GRID_DEFAULT_USE_SYMMETRIC_CLOSE", false)),
		ScalpingEnabled:             getEnvBool("GRID_"+key+"_SCALPING_ENABLED", getEnvBool("GRID_DEFAULT_SCALPING_ENABLED", false)),
		ScalpingTriggerSegment:      getEnvInt("GRID_"+key+"_SCALPING_TRIGGER_SEGMENT", getEnvInt("GRID_DEFAULT_SCALPING_TRIGGER_SEGMENT", 3)),
		ScalpingProfitThreshold:     getEnvDec(lookup("SCALPING_PROFIT_THRESHOLD"), dec.New(5, -2)),
		SpreadPersistenceSeconds:    getEnvInt("GRID_"+key+"_SPREAD_PERSISTENCE_SECONDS", getEnvInt("GRID_DEFAULT_SPREAD_PERSISTENCE_SECONDS", 3)),
		StrictPersistenceCheck:      getEnvBool("GRID_"+key+"_STRICT_PERSISTENCE_CHECK", getEnvBool("GRID_DEFAULT_STRICT_PERSISTENCE_CHECK", true)),
		RequireOrderbookLiquidity:   getEnvBool("GRID_"+key+"_REQUIRE_ORDERBOOK_LIQUIDITY", getEnvBool("GRID_DEFAULT_REQUIRE_ORDERBOOK_LIQUIDITY", true)),
		MinOrderbookQuantity:        getEnvDec(lookup("MIN_ORDERBOOK_QUANTITY"), dec.New(1, -2)),
		SlippageTolerance:           getEnvDec(lookup("SLIPPAGE_TOLERANCE"), dec.New(5, -3)),
		PriceStabilityWindowSeconds: getEnvInt("GRID_"+key+"_PRICE_STABILITY_WINDOW_SECONDS", getEnvInt("GRID_DEFAULT_PRICE_STABILITY_WINDOW_SECONDS", 10)),
		PriceStabilityThresholdPct:  getEnvDec(lookup("PRICE_STABILITY_THRESHOLD_PCT"), dec.New(2, -1)),
		LimitPriceOffset:            getEnvDec(lookup("LIMIT_PRICE_OFFSET"), dec.Zero),
		MaxLocalOrderbookSpreadPct:  getEnvDec(lookup("MAX_LOCAL_ORDERBOOK_SPREAD_PCT"), dec.New(5, -1)),
	}
}

// LoadQuantityConfig builds a symbol's QuantityConfig the same
// layered-override way as LoadGridConfig.
func LoadQuantityConfig(symbol string) *QuantityConfig {
	key := envKey(symbol)
	lookup := func(suffix string) string {
		if v := os.Getenv("QTY_" + key + "_" + suffix); v != "" {
			return "QTY_" + key + "_" + suffix
		}
		return "QTY_DEFAULT_" + suffix
	}

	mode := QuantityFixed
	if os.Getenv("QTY_"+key+"_MODE") == string(QuantityValue) || os.Getenv("QTY_DEFAULT_MODE") == string(QuantityValue) {
		mode = QuantityValue
	}

	return &QuantityConfig{
		BaseQuantity:        getEnvDec(lookup("BASE_QUANTITY"), dec.New(1, -2)),
		Mode:                mode,
		TargetValueUSDC:     getEnvDec(lookup("TARGET_VALUE_USDC"), dec.New(100, 0)),
		QuantityPrecision:   int32(getEnvInt("QTY_"+key+"_PRECISION", getEnvInt("QTY_DEFAULT_PRECISION", 3))),
		MinOrderSize:        getEnvDec(lookup("MIN_ORDER_SIZE"), dec.New(1, -3)),
		MinExchangeOrderQty: map[string]dec.D{},
	}
}
