package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"splitshare-backend/config"
	"splitshare-backend/database"
	"splitshare-backend/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"google.golang.org/api/option"
)

type NotificationService struct {
	fcm     *messaging.Client
	fcmOnce sync.Once
}

var notifService = &NotificationService{}

func GetNotificationService() *NotificationService {
	return notifService
}

// ============================================================
// PUSH NOTIFICATIONS via Firebase Cloud Messaging
// ============================================================

func (ns *NotificationService) messagingClient() *messaging.Client {
	ns.fcmOnce.Do(func() {
		ctx := context.Background()
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(config.AppConfig.FirebaseCredPath))
		if err != nil {
			log.Printf("⚠️  Firebase not configured, push notifications disabled: %v", err)
			return
		}
		client, err := app.Messaging(ctx)
		if err != nil {
			log.Printf("⚠️  FCM client init failed, push notifications disabled: %v", err)
			return
		}
		ns.fcm = client
	})
	return ns.fcm
}

func (ns *NotificationService) sendPush(fcmToken string, title string, body string, data map[string]string) {
	if fcmToken == "" {
		return
	}

	client := ns.messagingClient()
	if client == nil {
		return
	}

	msg := &messaging.Message{
		Token: fcmToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	if _, err := client.Send(context.Background(), msg); err != nil {
		log.Printf("❌ FCM send error: %v", err)
		return
	}
	log.Printf("✅ Push notification sent: %s", title)
}

// ============================================================
// EMAIL NOTIFICATIONS via SendGrid
// ============================================================

func (ns *NotificationService) sendEmail(toEmail string, toName string, subject string, htmlBody string) {
	if config.AppConfig.SendGridAPIKey == "" {
		log.Printf("⚠️  SendGrid API key not set, skipping email to %s", toEmail)
		return
	}

	from := mail.NewEmail(config.AppConfig.AppName, config.AppConfig.SendGridFrom)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	client := sendgrid.NewSendClient(config.AppConfig.SendGridAPIKey)
	resp, err := client.Send(message)
	if err != nil {
		log.Printf("❌ Email send error: %v", err)
		return
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Printf("✅ Email sent to %s", toEmail)
	} else {
		log.Printf("⚠️  SendGrid returned status: %d", resp.StatusCode)
	}
}

// ============================================================
// NOTIFICATION EVENTS
// ============================================================

// NotifyExpenseAdded sends push + email to every split member except the payer.
func (ns *NotificationService) NotifyExpenseAdded(expense models.Expense, payer models.User, group models.Group) {
	for _, split := range expense.Splits {
		if split.UserID == expense.PaidBy {
			continue // Don't notify the payer
		}

		var user models.User
		if err := database.DB.First(&user, "id = ?", split.UserID).Error; err != nil {
			continue
		}

		title := fmt.Sprintf("%s added an expense", payer.Username)
		body := fmt.Sprintf("Your share of \"%s\" in %s is %.2f", expense.Description, group.Name, split.Share)

		ns.sendPush(user.FCMToken, title, body, map[string]string{
			"type":       "expense_added",
			"expense_id": expense.ID.String(),
			"group_id":   expense.GroupID.String(),
		})

		htmlBody := buildExpenseEmailHTML(payer.Username, user.Username, expense.Description, expense.Amount, split.Share, group.Name)
		ns.sendEmail(user.Email, user.Username, fmt.Sprintf("%s added \"%s\" in %s", payer.Username, expense.Description, group.Name), htmlBody)
	}
}

// NotifyGroupSettled tells every member the settlement cycle completed.
func (ns *NotificationService) NotifyGroupSettled(group models.Group, members []models.GroupMember) {
	title := fmt.Sprintf("\"%s\" is all settled", group.Name)
	body := "Every member confirmed settlement. Balances are back to zero."

	for _, m := range members {
		var user models.User
		if err := database.DB.First(&user, "id = ?", m.UserID).Error; err != nil {
			continue
		}
		ns.sendPush(user.FCMToken, title, body, map[string]string{
			"type":     "group_settled",
			"group_id": group.ID.String(),
		})
	}
}

// NotifyMemberAdded sends push + email to the newly added member.
func (ns *NotificationService) NotifyMemberAdded(group models.Group, adder models.User, newMember models.User) {
	title := fmt.Sprintf("You were added to \"%s\"", group.Name)
	body := fmt.Sprintf("%s added you to the group \"%s\"", adder.Username, group.Name)

	ns.sendPush(newMember.FCMToken, title, body, map[string]string{
		"type":     "member_added",
		"group_id": group.ID.String(),
	})

	htmlBody := buildMemberAddedEmailHTML(adder.Username, newMember.Username, group.Name)
	ns.sendEmail(newMember.Email, newMember.Username, title, htmlBody)
}

// NotifyInvitation sends email to non-registered users.
func (ns *NotificationService) NotifyInvitation(email string, inviterName string, groupName string) {
	subject := fmt.Sprintf("%s invited you to join \"%s\" on %s", inviterName, groupName, config.AppConfig.AppName)
	htmlBody := buildInvitationEmailHTML(inviterName, groupName)
	ns.sendEmail(email, "", subject, htmlBody)
}

// ============================================================
// EMAIL TEMPLATES
// ============================================================

func buildExpenseEmailHTML(payerName, userName, description string, totalAmount, share float64, groupName string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #1DB954; margin-top: 0;">💰 New Expense Added</h2>
		<p>Hi <strong>%s</strong>,</p>
		<p><strong>%s</strong> added a new expense in <strong>%s</strong>:</p>
		<div style="background: #f8f9fa; border-radius: 8px; padding: 16px; margin: 16px 0;">
			<p style="margin: 4px 0; font-size: 18px;"><strong>%s</strong></p>
			<p style="margin: 4px 0; color: #666;">Total: %.2f</p>
			<p style="margin: 4px 0; color: #e53e3e; font-size: 18px;"><strong>Your share: %.2f</strong></p>
		</div>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">— %s</p>
	</div>
</body>
</html>`, userName, payerName, groupName, description, totalAmount, share, config.AppConfig.AppName)
}

func buildMemberAddedEmailHTML(adderName, memberName, groupName string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #1DB954; margin-top: 0;">👋 You've been added to a group!</h2>
		<p>Hi <strong>%s</strong>,</p>
		<p><strong>%s</strong> added you to the group <strong>"%s"</strong>.</p>
		<p>Open the app to start splitting expenses with your group!</p>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">— %s</p>
	</div>
</body>
</html>`, memberName, adderName, groupName, config.AppConfig.AppName)
}

func buildInvitationEmailHTML(inviterName, groupName string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<h2 style="color: #1DB954; margin-top: 0;">🎉 You're invited!</h2>
		<p><strong>%s</strong> invited you to join <strong>"%s"</strong>.</p>
		<p>%s makes it easy to split expenses with friends, roommates, and groups.</p>
		<div style="margin: 24px 0;">
			<a href="%s" style="background: #1DB954; color: white; padding: 12px 32px; border-radius: 8px; text-decoration: none; font-weight: bold;">Join Now</a>
		</div>
		<p style="color: #999; font-size: 12px; margin-top: 24px;">— %s</p>
	</div>
</body>
</html>`, inviterName, groupName, config.AppConfig.AppName, config.AppConfig.AppURL, config.AppConfig.AppName)
}
