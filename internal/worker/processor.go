// Package worker runs the delivery side of the intake pipeline: owner
// emails, client receipts, status notifications and submission logging.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/taxlakay/taxdrop/internal/config"
	"github.com/taxlakay/taxdrop/internal/csvlog"
	"github.com/taxlakay/taxdrop/internal/drive"
	"github.com/taxlakay/taxdrop/internal/mail"
	"github.com/taxlakay/taxdrop/internal/pdfinfo"
	"github.com/taxlakay/taxdrop/internal/queue"
	"github.com/taxlakay/taxdrop/internal/repository"
	"github.com/taxlakay/taxdrop/internal/sheets"
	"github.com/taxlakay/taxdrop/internal/signing"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	cfg    *config.Config
	repo   *repository.SubmissionRepository
	drive  *drive.Drive
	mailer *mail.Mailer
	csv    *csvlog.Logger
	sheets *sheets.Client
	signer *signing.Signer
	log    *logrus.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(cfg *config.Config, repo *repository.SubmissionRepository, dr *drive.Drive, mailer *mail.Mailer, csv *csvlog.Logger, sh *sheets.Client, signer *signing.Signer, log *logrus.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		repo:   repo,
		drive:  dr,
		mailer: mailer,
		csv:    csv,
		sheets: sh,
		signer: signer,
		log:    log,
	}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.OwnerEmailTask, p.handleOwnerEmail)
	mux.HandleFunc(queue.ReceiptEmailTask, p.handleReceiptEmail)
	mux.HandleFunc(queue.LogSubmissionTask, p.handleLogSubmission)
	mux.HandleFunc(queue.StatusEmailTask, p.handleStatusEmail)
	return mux
}

func (p *Processor) loadSubmission(ctx context.Context, task *asynq.Task) (*repository.Submission, error) {
	var payload queue.SubmissionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	sub, err := p.repo.Get(ctx, payload.Ref)
	if err != nil {
		return nil, fmt.Errorf("load submission %s: %w", payload.Ref, err)
	}
	return sub, nil
}

func (p *Processor) handleOwnerEmail(ctx context.Context, task *asynq.Task) error {
	sub, err := p.loadSubmission(ctx, task)
	if err != nil {
		return err
	}

	var (
		attachments []mail.Attachment
		details     []string
	)
	for _, f := range sub.Files {
		data, err := p.drive.Download(ctx, f.ObjectKey)
		if err != nil {
			return fmt.Errorf("download %s: %w", f.ObjectKey, err)
		}
		attachments = append(attachments, mail.Attachment{
			Name:        f.Name,
			ContentType: f.ContentType,
			Data:        data,
		})
		line := fmt.Sprintf("- %s — %.2f MB — %s", f.Name, float64(f.Size)/1024/1024, f.ContentType)
		if f.ContentType == "application/pdf" {
			if pages, err := pdfinfo.PageCount(data); err == nil {
				line += fmt.Sprintf(" — %d page(s)", pages)
			}
		}
		if link, err := p.drive.PresignURL(ctx, f.ObjectKey, p.cfg.SignedURLTTL); err == nil {
			line += "\n  " + link
		}
		details = append(details, line)
	}

	subject := fmt.Sprintf("New Tax Lakay upload — Ref %s", sub.Ref)
	body := fmt.Sprintf(`New Tax Lakay upload received.

Ref: %s
When: %s

Client: %s <%s>
Phone: %s
Return Type: %s
Dependents: %s

Client Message:
%s

Files:
%s
`,
		sub.Ref,
		sub.CreatedAt.Format("2006-01-02 15:04:05 UTC"),
		sub.ClientName, sub.ClientEmail,
		orNone(sub.ClientPhone),
		sub.ReturnType,
		sub.Dependents,
		orNone(sub.ClientMessage),
		strings.Join(details, "\n"),
	)
	if err := p.mailer.SendOwner(subject, body, attachments); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"ref": sub.Ref, "files": len(sub.Files)}).Info("owner email sent")
	return nil
}

func (p *Processor) handleReceiptEmail(ctx context.Context, task *asynq.Task) error {
	sub, err := p.loadSubmission(ctx, task)
	if err != nil {
		return err
	}
	if sub.ClientEmail == "" {
		return nil
	}
	link := p.signer.StatusLink(p.cfg.StatusBaseURL, sub.Ref, p.cfg.SignedURLTTL)
	subject := fmt.Sprintf("Tax Lakay — We received your documents (Ref %s)", sub.Ref)
	body := fmt.Sprintf(`Hello %s,

This is a confirmation that Tax Lakay received your documents.
Reference ID: %s
Received: %s

You can follow the progress of your return here:
%s

We will review your documents and contact you shortly.

— Tax Lakay
`,
		orDefault(sub.ClientName, "Client"),
		sub.Ref,
		sub.CreatedAt.Format("2006-01-02 15:04:05 UTC"),
		link,
	)
	if err := p.mailer.SendClient(sub.ClientEmail, subject, body); err != nil {
		return err
	}
	p.log.WithField("ref", sub.Ref).Info("client receipt sent")
	return nil
}

func (p *Processor) handleLogSubmission(ctx context.Context, task *asynq.Task) error {
	sub, err := p.loadSubmission(ctx, task)
	if err != nil {
		return err
	}
	when := sub.CreatedAt.Format(time.RFC3339)

	// The two destinations are independent; a webhook outage must not stop
	// the local CSV row and vice versa.
	if p.csv.Enabled() {
		if err := p.csv.Append(sub.Ref, when, sub.ClientName, sub.ClientEmail, sub.ClientPhone, sub.ReturnType, sub.Dependents, len(sub.Files)); err != nil {
			p.log.WithError(err).WithField("ref", sub.Ref).Warn("csv log append failed")
		}
	}
	if p.sheets.Enabled() {
		row := sheets.Row{
			Ref:         sub.Ref,
			When:        when,
			ClientName:  sub.ClientName,
			ClientEmail: sub.ClientEmail,
			ClientPhone: sub.ClientPhone,
			ReturnType:  sub.ReturnType,
			Dependents:  sub.Dependents,
			FileCount:   len(sub.Files),
		}
		if err := p.sheets.Append(ctx, row); err != nil {
			p.log.WithError(err).WithField("ref", sub.Ref).Warn("sheet append failed")
		}
	}
	return nil
}

func (p *Processor) handleStatusEmail(ctx context.Context, task *asynq.Task) error {
	var payload queue.StatusPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	sub, err := p.repo.Get(ctx, payload.Ref)
	if err != nil {
		return fmt.Errorf("load submission %s: %w", payload.Ref, err)
	}
	if sub.ClientEmail == "" {
		return nil
	}
	subject := fmt.Sprintf("Tax Lakay — Status update (Ref %s)", sub.Ref)
	body := fmt.Sprintf(`Hello %s,

The status of your submission %s changed to: %s
`,
		orDefault(sub.ClientName, "Client"), sub.Ref, payload.Stage)
	if payload.Note != "" {
		body += "\nNote from our team:\n" + payload.Note + "\n"
	}
	body += "\n— Tax Lakay\n"
	if err := p.mailer.SendClient(sub.ClientEmail, subject, body); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"ref": sub.Ref, "stage": payload.Stage}).Info("status email sent")
	return nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none provided)"
	}
	return s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
