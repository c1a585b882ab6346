package steam

import (
	"bytes"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Quote is a priceoverview snapshot. The endpoint has no schema guarantee, so every field is
// optional and decoded leniently.
type Quote struct {
	Success     bool    `json:"success"`
	LowestPrice *string `json:"lowest_price,omitempty"`
	MedianPrice *string `json:"median_price,omitempty"`
	Volume      *string `json:"volume,omitempty"`
}

type rawQuote struct {
	Success     json.RawMessage `json:"success"`
	LowestPrice json.RawMessage `json:"lowest_price"`
	MedianPrice json.RawMessage `json:"median_price"`
	Volume      json.RawMessage `json:"volume"`
}

// DecodeQuote parses a priceoverview body. Fields of unexpected JSON types are coerced to
// text where possible and dropped otherwise; only malformed JSON is an error.
func DecodeQuote(body []byte) (*Quote, error) {
	var raw rawQuote
	if err := json.Unmarshal(bytes.TrimSpace(body), &raw); err != nil {
		return nil, err
	}
	return &Quote{
		Success:     looseBool(raw.Success),
		LowestPrice: looseString(raw.LowestPrice),
		MedianPrice: looseString(raw.MedianPrice),
		Volume:      looseString(raw.Volume),
	}, nil
}

// HasPrice reports whether at least one of lowest/median carries a price other than a bare "0".
func (q *Quote) HasPrice() bool {
	return usablePrice(q.LowestPrice) || usablePrice(q.MedianPrice)
}

// PriceText returns the lowest price, falling back to the median price. A bare "0" counts
// as absent.
func (q *Quote) PriceText() string {
	if usablePrice(q.LowestPrice) {
		return *q.LowestPrice
	}
	if usablePrice(q.MedianPrice) {
		return *q.MedianPrice
	}
	return ""
}

// Price is the numeric value of PriceText.
func (q *Quote) Price() float64 {
	return ParsePrice(q.PriceText())
}

// VolumeCount is the numeric value of the volume field.
func (q *Quote) VolumeCount() int64 {
	if q.Volume == nil {
		return 0
	}
	return ParseVolume(*q.Volume)
}

// ParsePrice keeps only digits and '.', then parses the longest numeric prefix.
// "$1,234.56" -> 1234.56, "CDN$ 0.10" -> 0.10, "" -> 0.
func ParsePrice(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	// longest prefix of the form digits[.digits]
	end, seenDot := 0, false
	for end < len(cleaned) {
		c := cleaned[end]
		if c == '.' {
			if seenDot {
				break
			}
			seenDot = true
		}
		end++
	}
	num := strings.TrimSuffix(cleaned[:end], ".")
	if num == "" {
		return 0
	}
	if strings.HasPrefix(num, ".") {
		num = "0" + num
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// ParseVolume keeps only digits and parses them. "1,234 in stock" -> 1234, "" -> 0.
func ParseVolume(s string) int64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func usablePrice(s *string) bool {
	if s == nil {
		return false
	}
	v := strings.TrimSpace(*s)
	return v != "" && v != "0"
}

func looseString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	// numbers are kept as their literal text
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		s = string(raw)
		return &s
	}
	return nil
}

func looseBool(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseBool(strings.TrimSpace(s))
		return v
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}
