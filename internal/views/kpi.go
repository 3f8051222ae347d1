package views

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// DefaultSentiment is reported when no sentiment column exists.
const DefaultSentiment = 75.0

// KPIs summarises engagement for a filtered subset of rows.
type KPIs struct {
	Records           int      `json:"records"`
	TotalEngagement   float64  `json:"total_engagement"`
	AvgEngagementRate float64  `json:"avg_engagement_rate"`
	TotalReach        float64  `json:"total_reach"`
	AvgGrowth         float64  `json:"avg_growth"`
	Sentiment         float64  `json:"sentiment"`
	EngagementColumns []string `json:"engagement_columns,omitempty"`
	ReachColumns      []string `json:"reach_columns,omitempty"`
	GrowthColumns     []string `json:"growth_columns,omitempty"`
	RateColumn        string   `json:"rate_column,omitempty"`
	SentimentColumn   string   `json:"sentiment_column,omitempty"`
}

// Card is a display-ready KPI.
type Card struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// ComputeKPIs aggregates metric columns over the rows matching selection.
// Only columns holding at least one number in the subset take part; cells
// that do not parse count as zero. An empty subset yields a zero KPIs value.
func ComputeKPIs(ds dataset.Dataset, selection string) KPIs {
	rows := FilterByPlatform(ds, selection)
	if len(rows) == 0 {
		return KPIs{}
	}
	n := float64(len(rows))
	cols := measurableColumns(ds.Headers, rows)
	k := KPIs{
		Records:           len(rows),
		EngagementColumns: filterHeaders(cols, "like", "comment", "share", "engagement"),
		ReachColumns:      filterHeaders(cols, "reach", "impression"),
		GrowthColumns:     filterHeaders(cols, "growth", "increase", "change"),
		RateColumn:        firstMatching(cols, "engagement_rate"),
		SentimentColumn:   firstMatching(cols, "sentiment"),
	}
	for _, c := range k.EngagementColumns {
		k.TotalEngagement += floats.Sum(column(rows, c))
	}
	if k.RateColumn != "" {
		k.AvgEngagementRate = stat.Mean(column(rows, k.RateColumn), nil)
	} else {
		k.AvgEngagementRate = k.TotalEngagement / (n * 1000) * 100
	}
	for _, c := range k.ReachColumns {
		k.TotalReach += floats.Sum(column(rows, c))
	}
	if g := len(k.GrowthColumns); g > 0 {
		perRow := make([]float64, len(rows))
		for _, c := range k.GrowthColumns {
			floats.Add(perRow, column(rows, c))
		}
		floats.Scale(1/float64(g), perRow)
		k.AvgGrowth = stat.Mean(perRow, nil)
	}
	k.Sentiment = DefaultSentiment
	if k.SentimentColumn != "" {
		k.Sentiment = stat.Mean(column(rows, k.SentimentColumn), nil)
	}
	return k
}

// column reads col from every row; unparsable cells are zero.
func column(rows []dataset.Record, col string) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = num(r, col)
	}
	return out
}

// Cards renders the KPI set the way the dashboard tiles show it.
func (k KPIs) Cards() []Card {
	if k.Records == 0 {
		return nil
	}
	return []Card{
		{Title: "Total Engagement", Value: FormatThousands(k.TotalEngagement)},
		{Title: "Avg. Engagement Rate", Value: fmt.Sprintf("%.1f%%", k.AvgEngagementRate)},
		{Title: "Total Reach", Value: FormatThousands(k.TotalReach)},
		{Title: "Avg. Growth Rate", Value: fmt.Sprintf("%.1f%%", k.AvgGrowth)},
		{Title: "Sentiment Score", Value: fmt.Sprintf("%.0f/100", k.Sentiment)},
	}
}

// FormatThousands groups the integer part with commas and keeps up to three decimals.
func FormatThousands(f float64) string {
	s := strconv.FormatFloat(math.Round(f*1000)/1000, 'f', -1, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

// Point is one chart sample.
type Point struct {
	Name       string  `json:"name"`
	Engagement float64 `json:"engagement"`
	Reach      float64 `json:"reach"`
	Likes      float64 `json:"likes"`
	Shares     float64 `json:"shares"`
	Comments   float64 `json:"comments"`
	Sentiment  float64 `json:"sentiment"`
}

// ChartSeries projects the first limit filtered rows into chart points.
// A missing column or unparseable cell falls back to a placeholder trend.
func ChartSeries(ds dataset.Dataset, selection string, limit int) []Point {
	rows := FilterByPlatform(ds, selection)
	if limit <= 0 {
		limit = ChartLimit
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	var (
		engCol   = firstMatching(ds.Headers, "engagement")
		reachCol = firstMatching(ds.Headers, "reach")
		likeCol  = firstMatching(ds.Headers, "like")
		shareCol = firstMatching(ds.Headers, "share")
		comCol   = firstMatching(ds.Headers, "comment")
		sentCol  = firstMatching(ds.Headers, "sentiment")
	)
	out := make([]Point, len(rows))
	for i, r := range rows {
		fi := float64(i)
		out[i] = Point{
			Name:       fmt.Sprintf("Day %d", i+1),
			Engagement: cellOr(r, engCol, fi*100+500),
			Reach:      cellOr(r, reachCol, fi*200+1000),
			Likes:      cellOr(r, likeCol, fi*50+200),
			Shares:     cellOr(r, shareCol, fi*10+50),
			Comments:   cellOr(r, comCol, fi*20+100),
			Sentiment:  cellOr(r, sentCol, 80),
		}
	}
	return out
}

func cellOr(r dataset.Record, col string, fallback float64) float64 {
	if col == "" {
		return fallback
	}
	if f, ok := dataset.ParseNumber(r[col]); ok {
		return f
	}
	return fallback
}
