/**
 * @description
 * Wire types for the upstream quote API.
 *
 * @dependencies
 * - standard "strings"
 */

package marketdata

import "strings"

// Quote is a point-in-time price snapshot for one symbol
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	PreviousClose float64 `json:"previous_close"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Volume        int64   `json:"volume"`
}

// quoteResponse mirrors the upstream /v7/finance/quote payload
type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                     string  `json:"symbol"`
	LongName                   string  `json:"longName"`
	ShortName                  string  `json:"shortName"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
}

// toQuote converts an upstream result into the adapter's snapshot type.
// Returns nil when the upstream row has no usable price.
func (r quoteResult) toQuote() *Quote {
	if r.RegularMarketPrice <= 0 {
		return nil
	}

	name := r.LongName
	if name == "" {
		name = r.ShortName
	}
	if name == "" {
		name = r.Symbol
	}

	return &Quote{
		Symbol:        strings.ToUpper(r.Symbol),
		Name:          name,
		Price:         r.RegularMarketPrice,
		Change:        r.RegularMarketChange,
		ChangePercent: r.RegularMarketChangePercent,
		PreviousClose: r.RegularMarketPreviousClose,
		DayHigh:       r.RegularMarketDayHigh,
		DayLow:        r.RegularMarketDayLow,
		Volume:        r.RegularMarketVolume,
	}
}
