package governance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"modgov/logger"
	"modgov/models"
	"modgov/repository"
)

// ReportLedger records reports and opens a proposal when a content item
// reaches the report threshold.
type ReportLedger struct {
	base
	eligibility ReporterEligibility
	proposals   *ProposalManager
}

// SubmitReport stores one report of contentID by reporterID. The report,
// the counter and, at the threshold, the new proposal are committed together.
func (l *ReportLedger) SubmitReport(ctx context.Context, contentID, reporterID, reason string) (*models.Report, error) {
	if err := validID(contentID); err != nil {
		return nil, err
	}
	if err := validID(reporterID); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	if l.eligibility != nil {
		ok, err := l.eligibility.ReporterEligible(ctx, reporterID, contentID, now)
		if err != nil {
			return nil, fmt.Errorf("ledger: eligibility check: %w", err)
		}
		if !ok {
			return nil, models.ErrReporterIneligible
		}
	}

	report := &models.Report{
		ContentID:  contentID,
		ReporterID: reporterID,
		Reason:     strings.TrimSpace(reason),
		CreatedAt:  now,
	}
	opened, count, err := l.record(report, now)
	if err != nil {
		return nil, err
	}

	logger.Logger.Debug("Report recorded",
		zap.String("content_id", contentID),
		zap.String("reporter_id", reporterID),
		zap.Int("count", count))

	if opened != nil {
		l.proposals.announce(ctx, opened)
	}
	return report, nil
}

func (l *ReportLedger) record(report *models.Report, now time.Time) (*models.Proposal, int, error) {
	unlockContent := l.locks.Lock(contentKey(report.ContentID))
	defer unlockContent()
	// the cooldown spans content items, so the reporter is serialized too
	unlockReporter := l.locks.Lock(reporterKey(report.ReporterID))
	defer unlockReporter()

	removed, err := l.repo.IsRemoved(report.ContentID)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: lookup content: %w", err)
	}
	if removed {
		return nil, 0, models.ErrContentRemoved
	}

	// earlier rounds count too: archived reports keep their marker
	reported, err := l.repo.HasReported(report.ContentID, report.ReporterID)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: lookup report: %w", err)
	}
	if reported {
		return nil, 0, models.ErrDuplicateReport
	}

	last, err := l.repo.GetLastReportAt(report.ReporterID)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: lookup cooldown: %w", err)
	}
	if !last.IsZero() && now.Sub(last) < l.params.ReportCooldown {
		return nil, 0, models.ErrRateLimited
	}

	count, err := l.repo.GetReportCount(report.ContentID)
	if err != nil {
		return nil, 0, fmt.Errorf("ledger: read counter: %w", err)
	}
	count++

	c := repository.NewChanges()
	c.PutReport(report)
	c.SetReportCount(report.ContentID, count)
	c.SetLastReportAt(report.ReporterID, now)

	var opened *models.Proposal
	if count >= l.params.ReportThreshold {
		opened, err = l.proposals.open(report.ContentID, now, c)
		if errors.Is(err, models.ErrProposalAlreadyActive) {
			opened = nil
		} else if err != nil {
			return nil, 0, err
		}
	}

	if err := l.repo.Apply(c); err != nil {
		return nil, 0, fmt.Errorf("ledger: store report: %w", err)
	}
	return opened, count, nil
}

// GetReportCount returns the number of reports since the content's last
// resolved proposal.
func (l *ReportLedger) GetReportCount(_ context.Context, contentID string) (int, error) {
	if err := validID(contentID); err != nil {
		return 0, err
	}
	return l.repo.GetReportCount(contentID)
}

func (l *ReportLedger) ListReports(_ context.Context, contentID string) ([]*models.Report, error) {
	if err := validID(contentID); err != nil {
		return nil, err
	}
	return l.repo.ListReports(contentID)
}
