// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/contentstore"
	"github.com/javajoker/vidmarket-backend/internal/models"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

type NotificationService struct {
	gateway  store.Gateway
	config   *config.Config
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(gateway store.Gateway, config *config.Config) *NotificationService {
	return &NotificationService{
		gateway:  gateway,
		config:   config,
		sendMail: smtp.SendMail,
	}
}

// NotifyPurchase mails a receipt to the buyer, when the buyer is a
// registered account, and a sale notice to the creator. Failures are
// logged only; the purchase is already recorded.
func (s *NotificationService) NotifyPurchase(ctx context.Context, purchase *models.Purchase, asset *models.Asset) {
	logger := logrus.WithFields(logrus.Fields{
		"purchase_id": purchase.ID,
		"asset_id":    asset.ID,
	})

	if buyerID, err := uuid.Parse(purchase.BuyerID); err == nil {
		if buyer, err := s.gateway.GetAccount(ctx, buyerID); err == nil {
			if err := s.SendPurchaseReceipt(buyer, purchase, asset); err != nil {
				logger.WithError(err).Warn("Failed to send purchase receipt")
			}
		}
	}

	creator, err := s.gateway.GetAccount(ctx, asset.CreatorID)
	if err != nil {
		logger.WithError(err).Warn("Failed to load creator for sale notification")
		return
	}
	if err := s.SendSaleNotification(creator, purchase, asset); err != nil {
		logger.WithError(err).Warn("Failed to send sale notification")
	}
}

func (s *NotificationService) SendPurchaseReceipt(buyer *models.Account, purchase *models.Purchase, asset *models.Asset) error {
	data := map[string]interface{}{
		"BuyerName":      buyer.DisplayName,
		"AssetTitle":     asset.Title,
		"Amount":         purchase.Amount.String(),
		"PaymentMethod":  purchase.PaymentMethod,
		"TransactionRef": purchase.TransactionRef,
		"WatchURL":       fmt.Sprintf("%s/videos/%s", s.config.Frontend.BaseURL, asset.ID),
	}
	return s.send(buyer.Email, "purchase_receipt", data, asset.Title)
}

func (s *NotificationService) SendSaleNotification(creator *models.Account, purchase *models.Purchase, asset *models.Asset) error {
	data := map[string]interface{}{
		"CreatorName":    creator.DisplayName,
		"AssetTitle":     asset.Title,
		"Amount":         purchase.Amount.String(),
		"PaymentMethod":  purchase.PaymentMethod,
		"TransactionRef": purchase.TransactionRef,
	}
	return s.send(creator.Email, "sale_notification", data, asset.Title)
}

// SendOrphanedUploadAlert tells operations that bytes were committed to the
// content store but the asset could not be pointed at them.
func (s *NotificationService) SendOrphanedUploadAlert(assetID uuid.UUID, obj *contentstore.Object, cause error) error {
	if s.config.Email.OpsEmail == "" {
		return nil
	}
	data := map[string]interface{}{
		"AssetID":   assetID,
		"ContentID": obj.ContentID,
		"Locator":   obj.Locator,
		"Digest":    obj.Proof.Digest,
		"Size":      obj.Proof.Size,
		"Error":     cause.Error(),
	}
	return s.send(s.config.Email.OpsEmail, "orphaned_upload", data, assetID.String())
}

func (s *NotificationService) send(to, templateType string, data interface{}, subjectSuffix string) error {
	tmpl := s.getEmailTemplate(templateType)
	body, err := s.renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return s.sendEmail(to, tmpl.Subject+" - "+subjectSuffix, body)
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Debug("SMTP not configured, skipping email")
		return nil
	}

	// Setup authentication
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	// Compose message
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.config.Email.FromName, s.config.Email.FromEmail, to, subject, body))

	// Send email
	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return s.sendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		"purchase_receipt": {
			Subject: "Your purchase",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Thanks for your purchase, {{.BuyerName}}!</h2>
	<p>You now have permanent access to "{{.AssetTitle}}".</p>
	<p>Amount: {{.Amount}} ({{.PaymentMethod}})<br>Reference: {{.TransactionRef}}</p>
	<a href="{{.WatchURL}}">Watch now</a>
</body>
</html>`,
		},
		"sale_notification": {
			Subject: "New sale",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Hello {{.CreatorName}},</h2>
	<p>Someone just bought "{{.AssetTitle}}" for {{.Amount}} ({{.PaymentMethod}}).</p>
	<p>Reference: {{.TransactionRef}}</p>
</body>
</html>`,
		},
		"orphaned_upload": {
			Subject: "Orphaned upload needs reconciliation",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Content was stored but asset {{.AssetID}} could not be updated.</p>
	<p>Content id: {{.ContentID}}<br>Locator: {{.Locator}}<br>Digest: {{.Digest}}<br>Size: {{.Size}}</p>
	<p>Error: {{.Error}}</p>
</body>
</html>`,
		},
	}

	if template, exists := templates[templateType]; exists {
		return template
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
