package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbsentry/internal/models"
)

// Job limits shared by both engines.
const (
	slowQueryLimit        = 20
	fragmentationRatioMax = 0.10
	indexToDataRatioMax   = 2.0
	largeTableRows        = 1_000_000
)

// Analyzer runs the deep-inspection jobs against the monitored engine.
// Both jobs are read-only and best-effort: a missing statistics facility
// yields an unavailable report, not an error.
type Analyzer interface {
	SlowQueries(ctx context.Context) (*models.SlowQueryReport, error)
	TableHealth(ctx context.Context) (*models.TableHealthReport, error)
}

// BuildTableHealthReport derives advisory recommendations from raw table
// stats. Purely computational; both analyzers feed it their catalogs.
func BuildTableHealthReport(tables []models.TableStat, generatedAt time.Time) *models.TableHealthReport {
	report := &models.TableHealthReport{
		GeneratedAt:   generatedAt,
		TablesScanned: len(tables),
	}

	for _, t := range tables {
		name := t.Name
		if t.Schema != "" {
			name = t.Schema + "." + t.Name
		}

		if t.DataBytes > 0 {
			frag := float64(t.FreeBytes) / float64(t.DataBytes)
			if frag > fragmentationRatioMax {
				report.Recommendations = append(report.Recommendations, models.TableRecommendation{
					Table: name,
					Issue: "fragmentation",
					Recommendation: fmt.Sprintf(
						"Table has %.0f%% reclaimable space; consider OPTIMIZE TABLE or VACUUM", frag*100),
					Value: frag * 100,
				})
			}

			ratio := float64(t.IndexBytes) / float64(t.DataBytes)
			if ratio > indexToDataRatioMax {
				report.Recommendations = append(report.Recommendations, models.TableRecommendation{
					Table: name,
					Issue: "index_bloat",
					Recommendation: fmt.Sprintf(
						"Index size is %.1fx the data size; review for unused or duplicate indexes", ratio),
					Value: ratio,
				})
			}
		}

		if t.Rows > largeTableRows && !strings.Contains(strings.ToLower(t.Name), "archive") {
			report.Recommendations = append(report.Recommendations, models.TableRecommendation{
				Table: name,
				Issue: "large_table",
				Recommendation: fmt.Sprintf(
					"Table holds %d rows; consider partitioning or archiving old data", t.Rows),
				Value: float64(t.Rows),
			})
		}
	}

	return report
}
