package domain

import (
	"strconv"
	"strings"
	"time"
)

// UpstreamTrade es un trade tal como lo reporta la Data API de Polymarket,
// ya canonicalizado. Los nombres de campo del payload real varían entre
// endpoints (asset_id/token_id/asset, timestamp/created_at/time, enteros o
// strings ISO) — CanonicalizeUpstreamTrade absorbe esa variación.
type UpstreamTrade struct {
	ID        string
	TokenID   string
	Side      string // "BUY" o "SELL", ya en mayúsculas
	Size      float64
	Price     float64
	Market    string
	Timestamp time.Time
}

// USD devuelve el tamaño estimado del trade original en dólares.
func (t UpstreamTrade) USD() float64 {
	if t.Price > 0 {
		return t.Size * t.Price
	}
	return t.Size
}

// CanonicalizeUpstreamTrade normaliza un trade crudo decodificado desde JSON
// (map[string]any, con json.Decoder.UseNumber() para no perder precisión en
// los campos numéricos) al tipo UpstreamTrade. Los campos desconocidos del
// payload se ignoran.
func CanonicalizeUpstreamTrade(raw map[string]any) UpstreamTrade {
	t := UpstreamTrade{
		ID:      firstString(raw, "transactionHash", "transaction_hash", "id", "trade_id"),
		TokenID: firstString(raw, "asset_id", "token_id", "asset"),
		Side:    strings.ToUpper(firstString(raw, "side")),
		Size:    firstFloat(raw, "size"),
		Price:   firstFloat(raw, "price"),
		Market:  firstString(raw, "market", "title", "question"),
	}
	if ts, ok := parseTimestamp(raw, "timestamp", "created_at", "time"); ok {
		t.Timestamp = ts
	}
	if t.ID == "" {
		t.ID = t.TokenID + "_" + firstString(raw, "timestamp")
	}
	return t
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			if x != "" {
				return x
			}
		default:
			return strconv.FormatFloat(firstFloat(raw, k), 'f', -1, 64)
		}
	}
	return ""
}

func firstFloat(raw map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case float64:
			return x
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err == nil {
				return f
			}
		}
		if n, ok := v.(interface{ Float64() (float64, error) }); ok {
			if f, err := n.Float64(); err == nil {
				return f
			}
		}
	}
	return 0
}

// parseTimestamp intenta los formatos que devuelve la Data API: epoch
// numérico (segundos) o string ISO8601 con o sin sufijo "Z".
func parseTimestamp(raw map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			s := strings.Replace(x, "Z", "+00:00", 1)
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				return ts, true
			}
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return time.Unix(int64(f), 0).UTC(), true
			}
		case float64:
			return time.Unix(int64(x), 0).UTC(), true
		}
	}
	return time.Time{}, false
}
