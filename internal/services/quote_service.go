/**
 * @description
 * Service layer for market quotes.
 * Orchestrates fetching snapshots from the upstream quote API and caching them in Redis.
 *
 * The alert evaluation pass, the quote endpoints, and watchlist enrichment
 * all read through this cache so that hot symbols cost one upstream call
 * per TTL window instead of one per reader.
 *
 * @dependencies
 * - backend/internal/marketdata
 * - github.com/redis/go-redis/v9
 */

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stockpulse/backend/internal/logger"
	"github.com/stockpulse/backend/internal/marketdata"
)

const (
	quoteCacheKeyPrefix = "quotes:"

	DefaultQuoteCacheTTL = time.Minute
)

// QuoteFetcher is the upstream market-data contract the cache sits in front of
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]*marketdata.Quote, error)
}

// QuoteService serves quote snapshots with a Redis read-through cache
type QuoteService struct {
	Redis   *redis.Client
	Fetcher QuoteFetcher
	TTL     time.Duration
}

// NewQuoteService creates a QuoteService. A nil Redis client disables
// caching and every read goes upstream.
func NewQuoteService(rdb *redis.Client, fetcher QuoteFetcher, ttl time.Duration) *QuoteService {
	if ttl <= 0 {
		ttl = DefaultQuoteCacheTTL
	}
	return &QuoteService{
		Redis:   rdb,
		Fetcher: fetcher,
		TTL:     ttl,
	}
}

// GetQuote returns the snapshot for one symbol, from cache when fresh.
// Returns (nil, nil) when the upstream has no usable quote.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}

	if cached := s.readCache(ctx, symbol); cached != nil {
		return cached, nil
	}

	return s.RefreshQuote(ctx, symbol)
}

// RefreshQuote bypasses the cache, fetches upstream, and re-primes the
// cache on success. Used by manual alert triggers that need a fresh read.
func (s *QuoteService) RefreshQuote(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	quote, err := s.Fetcher.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, nil
	}

	s.writeCache(ctx, quote)
	return quote, nil
}

// GetQuotes returns snapshots for a set of symbols, reading cached entries
// first and fetching the misses in one upstream batch call.
// Symbols with no data are absent from the result map.
func (s *QuoteService) GetQuotes(ctx context.Context, symbols []string) (map[string]*marketdata.Quote, error) {
	result := make(map[string]*marketdata.Quote, len(symbols))
	var misses []string

	for _, raw := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		if symbol == "" {
			continue
		}
		if _, seen := result[symbol]; seen {
			continue
		}
		if cached := s.readCache(ctx, symbol); cached != nil {
			result[symbol] = cached
		} else {
			misses = append(misses, symbol)
		}
	}

	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := s.Fetcher.GetQuotes(ctx, misses)
	if err != nil {
		// Serve whatever the cache had; a partial answer beats none
		if len(result) > 0 {
			logger.Error("QuoteService: batch fetch failed, serving %d cached quotes: %v", len(result), err)
			return result, nil
		}
		return nil, err
	}

	for symbol, quote := range fetched {
		if quote == nil {
			continue
		}
		result[symbol] = quote
		s.writeCache(ctx, quote)
	}

	return result, nil
}

func (s *QuoteService) readCache(ctx context.Context, symbol string) *marketdata.Quote {
	if s.Redis == nil {
		return nil
	}

	data, err := s.Redis.Get(ctx, quoteCacheKeyPrefix+symbol).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Error("QuoteService: cache read failed for %s: %v", symbol, err)
		}
		return nil
	}

	var quote marketdata.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		logger.Error("QuoteService: corrupt cache entry for %s: %v", symbol, err)
		return nil
	}

	return &quote
}

func (s *QuoteService) writeCache(ctx context.Context, quote *marketdata.Quote) {
	if s.Redis == nil || quote == nil {
		return
	}

	data, err := json.Marshal(quote)
	if err != nil {
		logger.Error("QuoteService: failed to marshal quote for cache: %v", err)
		return
	}

	if err := s.Redis.Set(ctx, quoteCacheKeyPrefix+quote.Symbol, data, s.TTL).Err(); err != nil {
		logger.Error("QuoteService: cache write failed for %s: %v", quote.Symbol, err)
	}
}
