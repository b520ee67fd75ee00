package report

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"sentibot/internal/interfaces"
	"sentibot/internal/logger"
	"sentibot/internal/types"
)

// EmailConfig holds SMTP delivery settings. The password is looked up
// from the environment variable named by PasswordEnv.
type EmailConfig struct {
	Enabled     bool
	Host        string
	Port        int
	From        string
	To          []string
	Username    string
	PasswordEnv string
}

// Reporter writes a per-run CSV report and optionally emails a
// plain-text summary. Both outputs are best-effort: a reporting failure
// never fails the run.
type Reporter struct {
	csvDir string
	email  EmailConfig
}

var _ interfaces.Reporter = (*Reporter)(nil)

func New(csvDir string, email EmailConfig) *Reporter {
	return &Reporter{csvDir: csvDir, email: email}
}

func (r *Reporter) EmitSummary(ctx context.Context, runID string, records []types.DecisionRecord, summary types.RunSummary) error {
	var firstErr error

	if r.csvDir != "" {
		if err := r.writeCSV(runID, records); err != nil {
			logger.Warn(ctx, "Failed to write run report CSV", "run_id", runID, "error", err)
			firstErr = err
		}
	}

	if r.email.Enabled {
		if err := r.sendEmail(runID, records, summary); err != nil {
			logger.Warn(ctx, "Failed to send summary email", "run_id", runID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (r *Reporter) writeCSV(runID string, records []types.DecisionRecord) error {
	if err := os.MkdirAll(r.csvDir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(r.csvDir, runID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gocsv.Marshal(&records, f)
}

func (r *Reporter) sendEmail(runID string, records []types.DecisionRecord, summary types.RunSummary) error {
	password := os.Getenv(r.email.PasswordEnv)
	if r.email.Host == "" || r.email.From == "" || len(r.email.To) == 0 {
		return fmt.Errorf("email config incomplete")
	}

	body := buildBody(runID, records, summary)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Sentibot run %s\r\n\r\n%s",
		r.email.From, strings.Join(r.email.To, ", "), runID, body)

	addr := fmt.Sprintf("%s:%d", r.email.Host, r.email.Port)
	var auth smtp.Auth
	if r.email.Username != "" {
		auth = smtp.PlainAuth("", r.email.Username, password, r.email.Host)
	}

	return smtp.SendMail(addr, auth, r.email.From, r.email.To, []byte(msg))
}

func buildBody(runID string, records []types.DecisionRecord, summary types.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished in %s\n", runID, summary.Duration)
	fmt.Fprintf(&b, "processed=%d skipped=%d traded=%d failed=%d write_errors=%d\n\n",
		summary.Processed, summary.Skipped, summary.Traded, summary.Failed, summary.WriteErrors)

	for _, rec := range records {
		executed := ""
		if rec.TradeExecuted {
			executed = " [order placed]"
		}
		fmt.Fprintf(&b, "%-8s %-4s score=%.4f prev=%s%s\n",
			rec.Symbol, rec.Decision, rec.Score, rec.PreviousDecision, executed)
	}

	return b.String()
}
