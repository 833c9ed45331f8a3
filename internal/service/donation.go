package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/blob"
	"github.com/sakif/ngo-hub/internal/certificate"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	"github.com/sakif/ngo-hub/internal/session"
)

// Donation rules.
const (
	MaxScreenshotBytes = 5 << 20
	screenshotPrefix   = "donations"
	anonymousDonor     = "Anonymous"
)

// DonationService records donations with their proof-of-payment screenshot
// and issues certificates.
type DonationService struct {
	donations repository.DonationRepository
	projects  repository.ProjectRepository
	blobs     blob.Store
	issuer    string
	logger    *slog.Logger
	now       func() time.Time
}

// NewDonationService creates a DonationService. issuer is printed on
// certificates.
func NewDonationService(
	donations repository.DonationRepository,
	projects repository.ProjectRepository,
	blobs blob.Store,
	issuer string,
	logger *slog.Logger,
) *DonationService {
	return &DonationService{
		donations: donations,
		projects:  projects,
		blobs:     blobs,
		issuer:    issuer,
		logger:    logger,
		now:       time.Now,
	}
}

// DonationInput is the donation form. Amount is the raw form value.
type DonationInput struct {
	ProjectID   string
	Amount      string
	Screenshot  io.Reader
	Size        int64
	ContentType string
}

// ParseAmount accepts a decimal number greater than zero.
func ParseAmount(raw string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, apperror.ValidationFailed("donationAmount", "please enter a valid donation amount")
	}
	return amount, nil
}

// CheckScreenshot enforces the upload rules: an image of at most 5 MB.
func CheckScreenshot(contentType string, size int64) error {
	if size <= 0 {
		return apperror.ValidationFailed("screenshot", "please upload the payment screenshot")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return apperror.ValidationFailed("screenshot", "please upload a valid image file")
	}
	if size > MaxScreenshotBytes {
		return apperror.ValidationFailed("screenshot", "file size should be less than 5MB")
	}
	return nil
}

// Donate stores the screenshot, records the donation and adds the amount to
// the project's total. The donor must be signed in.
func (s *DonationService) Donate(ctx context.Context, donor session.Session, in DonationInput) (*model.Donation, error) {
	if !donor.SignedIn() {
		return nil, apperror.Unauthorized("sign in to donate")
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if err := CheckScreenshot(in.ContentType, in.Size); err != nil {
		return nil, err
	}

	project, err := s.projects.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	key := blob.NewKey(screenshotPrefix, now)
	// Read one byte past the limit so a lying Content-Length cannot slip
	// an oversized file through.
	body := io.LimitReader(in.Screenshot, MaxScreenshotBytes+1)
	if err := s.blobs.Put(ctx, key, in.ContentType, body, in.Size); err != nil {
		return nil, fmt.Errorf("service/donation: storing screenshot: %w", err)
	}

	name := donor.Identity.DisplayName
	if name == "" {
		name = anonymousDonor
	}
	d := &model.Donation{
		UserID:        donor.Identity.ID,
		UserName:      name,
		ProjectID:     project.ID,
		ProjectName:   project.Title,
		Amount:        amount,
		ScreenshotKey: key,
		Date:          now,
	}
	if err := s.donations.CreateDonation(ctx, d); err != nil {
		s.discardScreenshot(ctx, key)
		return nil, fmt.Errorf("service/donation: recording: %w", err)
	}
	if err := s.projects.AddDonations(ctx, project.ID, amount); err != nil {
		s.logger.Error("donation recorded but project total not updated",
			slog.String("donationID", d.ID),
			slog.String("projectID", project.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("donation recorded",
		slog.String("donationID", d.ID),
		slog.String("projectID", project.ID),
		slog.Float64("amount", amount),
	)
	return d, nil
}

// discardScreenshot removes a screenshot no donation refers to. A failure
// only leaves an orphan behind, so it is logged with the key.
func (s *DonationService) discardScreenshot(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Error("orphaned donation screenshot",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Get returns a donation to its donor or an admin.
func (s *DonationService) Get(ctx context.Context, viewer session.Session, id string) (*model.Donation, error) {
	d, err := s.donations.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && (!viewer.SignedIn() || viewer.Identity.ID != d.UserID) {
		return nil, apperror.Forbidden("this donation belongs to someone else")
	}
	return d, nil
}

// List returns every donation. Admin only.
func (s *DonationService) List(ctx context.Context) ([]model.Donation, error) {
	return s.donations.ListDonations(ctx)
}

// Certificate returns what the donation's certificate prints, under the
// same access rule as Get.
func (s *DonationService) Certificate(ctx context.Context, viewer session.Session, id string) (certificate.Details, error) {
	d, err := s.Get(ctx, viewer, id)
	if err != nil {
		return certificate.Details{}, err
	}
	return certificate.Details{
		DonorName:   d.UserName,
		Amount:      d.Amount,
		ProjectName: d.ProjectName,
		Date:        d.Date,
		Issuer:      s.issuer,
	}, nil
}

// Screenshot opens the donation's proof-of-payment image. The caller closes it.
func (s *DonationService) Screenshot(ctx context.Context, viewer session.Session, id string) (io.ReadCloser, string, error) {
	d, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, "", err
	}
	if d.ScreenshotKey == "" {
		return nil, "", apperror.NotFound("screenshot", id)
	}
	return s.blobs.Get(ctx, d.ScreenshotKey)
}
