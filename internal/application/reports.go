package application

import (
	"github.com/bnema/convtree/internal/domain"
	"go.uber.org/zap"
)

// ReportReferenceResolver turns a-tag coordinates on messages into report items.
type ReportReferenceResolver struct {
	logger *zap.Logger
}

func NewReportReferenceResolver(logger *zap.Logger) ReportReferenceResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return ReportReferenceResolver{logger: logger}
}

// Resolve keeps first-seen order and dedupes on the full tag string.
func (r ReportReferenceResolver) Resolve(messages []domain.Message, reports []domain.Report) []domain.ReferencedReportItem {
	lookup := make(map[string]domain.Report, len(reports))
	for _, report := range reports {
		coordinate := report.Coordinate()
		if existing, ok := lookup[coordinate]; ok && existing.CreatedAt.After(report.CreatedAt) {
			continue
		}
		lookup[coordinate] = report
	}

	seen := make(map[string]struct{})
	items := make([]domain.ReferencedReportItem, 0)

	for _, message := range messages {
		for _, tag := range message.ATags {
			if _, dup := seen[tag]; dup {
				continue
			}

			coordinate, err := domain.ParseCoordinate(tag)
			if err != nil {
				r.logger.Debug("skipping malformed a-tag", zap.String("message", message.ID), zap.Error(err))
				continue
			}
			if coordinate.Kind != domain.ReportKind {
				continue
			}
			seen[tag] = struct{}{}

			item := domain.ReferencedReportItem{
				Coordinate: tag,
				Title:      coordinate.Slug,
				Slug:       coordinate.Slug,
			}

			if report, ok := lookup[domain.FormatCoordinate(coordinate.Kind, coordinate.Pubkey, coordinate.Slug)]; ok {
				resolved := report
				item.Report = &resolved
				item.Slug = report.Slug
				if report.Title != "" {
					item.Title = report.Title
				}
			} else {
				r.logger.Debug("report not in snapshot, using slug", zap.String("coordinate", tag))
			}

			items = append(items, item)
		}
	}

	return items
}
