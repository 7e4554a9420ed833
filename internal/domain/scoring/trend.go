package scoring

import (
	"math"
	"time"

	"github.com/okian/yecs/internal/domain/model"
)

const (
	trendShortWindow = 30 * 24 * time.Hour
	trendLongWindow  = 90 * 24 * time.Hour
)

// ApplyTrend fills next.Trend from the previous snapshot for the same subject.
// Without a previous snapshot the trend is flat with full consistency.
func ApplyTrend(prev *model.ScoreSnapshot, next model.ScoreSnapshot) model.ScoreSnapshot {
	if prev == nil {
		next.Trend = model.Trend{Consistency: 1}
		return next
	}

	delta := next.Composite - prev.Composite
	age := next.GeneratedAt.Sub(prev.GeneratedAt)

	var trend model.Trend
	if age <= trendShortWindow {
		trend.Delta30 = delta
	}
	if age <= trendLongWindow {
		trend.Delta90 = delta
	}
	trend.Consistency = unit(1 - math.Abs(float64(delta))/compositeSpan)
	next.Trend = trend
	return next
}
