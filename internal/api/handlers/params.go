package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stockwise/internal/analytics"
	"github.com/andresuchdata/stockwise/internal/domain"
)

const dateLayout = "2006-01-02"

// parseList accepts both ?items=A&items=B and ?items=A,B. No values means
// no filter.
func parseList(c *gin.Context, param string) analytics.Filter[string] {
	var values []string
	for _, raw := range c.QueryArray(param) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
	}
	if len(values) == 0 {
		return analytics.All[string]()
	}
	return analytics.Subset(values...)
}

func parseGranularity(c *gin.Context) (analytics.Granularity, error) {
	return analytics.ParseGranularity(c.DefaultQuery("granularity", string(analytics.Month)))
}

// parseTime reads a date or RFC3339 timestamp. A date-only end bound covers
// the whole day.
func parseTime(c *gin.Context, param string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(param))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD or RFC3339", param)
	}
	t = t.UTC()
	return &t, nil
}

func parseFloat(c *gin.Context, param string) (float64, error) {
	raw := strings.TrimSpace(c.Query(param))
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", param)
	}
	return f, nil
}

func parseInt(c *gin.Context, param string) (int, error) {
	raw := strings.TrimSpace(c.Query(param))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", param)
	}
	return n, nil
}

func parseSeriesQuery(c *gin.Context) (domain.SeriesQuery, error) {
	g, err := parseGranularity(c)
	if err != nil {
		return domain.SeriesQuery{}, err
	}
	start, err := parseTime(c, "start", false)
	if err != nil {
		return domain.SeriesQuery{}, err
	}
	end, err := parseTime(c, "end", true)
	if err != nil {
		return domain.SeriesQuery{}, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return domain.SeriesQuery{}, fmt.Errorf("end must not be before start")
	}
	return domain.SeriesQuery{
		Granularity: g,
		RangeStart:  start,
		RangeEnd:    end,
		Items:       parseList(c, "items"),
	}, nil
}

func parseCostQuery(c *gin.Context) (domain.CostQuery, error) {
	g, err := parseGranularity(c)
	if err != nil {
		return domain.CostQuery{}, err
	}
	return domain.CostQuery{Granularity: g, Items: parseList(c, "items")}, nil
}

func parseRankingQuery(c *gin.Context) (domain.RankingQuery, error) {
	limit, err := parseInt(c, "limit")
	if err != nil {
		return domain.RankingQuery{}, err
	}
	if limit < 0 {
		return domain.RankingQuery{}, fmt.Errorf("limit must not be negative")
	}
	return domain.RankingQuery{Limit: limit, Items: parseList(c, "items")}, nil
}

// parseForecastQuery leaves absent parameters nil so the service applies its
// defaults. An empty motives parameter (?motives=) selects every motive.
func parseForecastQuery(c *gin.Context) (domain.ForecastQuery, error) {
	q := domain.ForecastQuery{Items: parseList(c, "items")}
	if _, ok := c.GetQueryArray("motives"); ok {
		q.Motives = domain.Ptr(parseList(c, "motives"))
	}
	var err error
	if q.WindowMonths, err = parseOptionalInt(c, "window_months"); err != nil {
		return q, err
	}
	if q.TargetMonths, err = parseOptionalFloat(c, "target_months"); err != nil {
		return q, err
	}
	if q.LeadTimeMonths, err = parseOptionalFloat(c, "lead_time_months"); err != nil {
		return q, err
	}
	if q.BufferMonths, err = parseOptionalFloat(c, "buffer_months"); err != nil {
		return q, err
	}
	return q, nil
}

func parseOptionalFloat(c *gin.Context, param string) (*float64, error) {
	if strings.TrimSpace(c.Query(param)) == "" {
		return nil, nil
	}
	f, err := parseFloat(c, param)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseOptionalInt(c *gin.Context, param string) (*int, error) {
	if strings.TrimSpace(c.Query(param)) == "" {
		return nil, nil
	}
	n, err := parseInt(c, param)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
