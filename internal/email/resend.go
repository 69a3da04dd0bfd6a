package email

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lashclub/internal/models"
)

var (
	ErrEmailNotConfigured = errors.New("email service not configured")
	ErrSendFailed         = errors.New("failed to send email")
)

// ResendClient is a minimal client for the Resend transactional email API.
type ResendClient struct {
	apiKey string
}

func NewResendClient(apiKey string) *ResendClient {
	return &ResendClient{apiKey: apiKey}
}

func (c *ResendClient) IsConfigured() bool {
	return c.apiKey != ""
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (c *ResendClient) SendEmail(fromEmail, to, subject, htmlContent string) error {
	if !c.IsConfigured() {
		return ErrEmailNotConfigured
	}
	if fromEmail == "" {
		return ErrEmailNotConfigured
	}

	reqBody := sendEmailRequest{
		From:    fromEmail,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlContent,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: status code %d", ErrSendFailed, resp.StatusCode)
	}
	return nil
}

// SendBookingConfirmation emails the member after a booking is created. The
// charged amount reflects any membership pricing already applied.
func (c *ResendClient) SendBookingConfirmation(fromEmail, to, serviceName string, booking models.Booking) error {
	subject := "Booking confirmed: " + serviceName

	priceLine := fmt.Sprintf("$%.2f", float64(booking.ChargedCents)/100)
	if booking.IsFree {
		priceLine = "Free (" + booking.FreeReason + ")"
	}
	var pointsLine string
	if booking.PointsRedeemed > 0 {
		pointsLine = fmt.Sprintf(`<p style="margin: 10px 0 0 0; color: #666666; font-size: 14px;">Points redeemed: %d</p>`, booking.PointsRedeemed)
	}

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
</head>
<body style="margin: 0; padding: 0; font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f4f4f4;">
    <table role="presentation" style="width: 100%%; border-collapse: collapse;">
        <tr>
            <td align="center" style="padding: 40px 0;">
                <table role="presentation" style="width: 600px; border-collapse: collapse; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
                    <tr>
                        <td style="padding: 40px 40px 20px 40px; text-align: center;">
                            <h1 style="margin: 0; color: #333333; font-size: 24px; font-weight: 600;">Your appointment is booked</h1>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 0 40px 20px 40px; text-align: center;">
                            <p style="margin: 0; color: #666666; font-size: 16px; line-height: 1.5;">%s</p>
                            <p style="margin: 10px 0 0 0; color: #666666; font-size: 16px;">%s</p>
                            <p style="margin: 10px 0 0 0; color: #333333; font-size: 18px; font-weight: 600;">%s</p>
                            %s
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 20px 40px 40px 40px; text-align: center;">
                            <p style="margin: 0; color: #999999; font-size: 14px;">Need to reschedule? Cancel from your account and book again.</p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`, subject, serviceName, booking.ScheduledAt.Format("Monday, January 2 at 3:04 PM"), priceLine, pointsLine)

	return c.SendEmail(fromEmail, to, subject, htmlContent)
}

// SendMembershipWelcome emails the member once their subscription activates.
func (c *ResendClient) SendMembershipWelcome(fromEmail, to, tierName string) error {
	subject := "Welcome to " + tierName

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
</head>
<body style="margin: 0; padding: 0; font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f4f4f4;">
    <table role="presentation" style="width: 100%%; border-collapse: collapse;">
        <tr>
            <td align="center" style="padding: 40px 0;">
                <table role="presentation" style="width: 600px; border-collapse: collapse; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
                    <tr>
                        <td style="padding: 40px 40px 20px 40px; text-align: center;">
                            <h1 style="margin: 0; color: #333333; font-size: 24px; font-weight: 600;">Your membership is active</h1>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 0 40px 20px 40px; text-align: center;">
                            <p style="margin: 0; color: #666666; font-size: 16px; line-height: 1.5;">You're now a %s member. Your discounts, free services and points start with your very next visit.</p>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 20px 40px 40px 40px; text-align: center;">
                            <p style="margin: 0; color: #999999; font-size: 14px;">Benefits renew at the start of each billing period.</p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`, subject, tierName)

	return c.SendEmail(fromEmail, to, subject, htmlContent)
}
