package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

// SMTPConfig -> kredensial server email
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService mengirim email konfirmasi order dan bukti bayar. Setiap percobaan dicatat
// di tabel notifications.
type EmailService struct {
	db       *gorm.DB
	config   SMTPConfig
	sendMail sendMailFunc
}

func NewEmailService(db *gorm.DB, config SMTPConfig) *EmailService {
	return &EmailService{db: db, config: config, sendMail: smtp.SendMail}
}

func (s *EmailService) Send(ctx context.Context, eventType string, order *models.Order) error {
	if order.Customer == nil || order.Customer.Email == "" {
		return invalidRequest("order %s has no customer email", order.OrderNumber)
	}
	recipient := order.Customer.Email

	subject, body := renderEmail(eventType, order)
	msg := buildMessage(s.config.From, recipient, subject, body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	sendErr := s.sendMail(addr, auth, s.config.From, []string{recipient}, msg)

	record := models.Notification{
		OrderID:   order.ID,
		EventType: eventType,
		Recipient: recipient,
		Sent:      sendErr == nil,
	}
	if sendErr != nil {
		record.Error = sendErr.Error()
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		utils.ErrorLogger.WithError(err).WithField("order_id", order.ID).Warn("record notification failed")
	}

	if sendErr != nil {
		return fmt.Errorf("send %s email: %w", eventType, sendErr)
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"event":        eventType,
	}).Info("email sent")
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func renderEmail(eventType string, order *models.Order) (string, string) {
	var b strings.Builder
	var subject string
	switch eventType {
	case models.NotificationPaymentReceipt:
		subject = "Payment receipt " + order.OrderNumber
		b.WriteString("Thank you, your payment has been received.\n\n")
	default:
		subject = "Order confirmation " + order.OrderNumber
		b.WriteString("Your order has been received and is waiting for payment.\n\n")
	}

	fmt.Fprintf(&b, "Order: %s\n", order.OrderNumber)
	if order.Table != nil {
		fmt.Fprintf(&b, "Table: %s\n", order.Table.TableNumber)
	}
	b.WriteString("\n")
	for _, item := range order.Items {
		name := fmt.Sprintf("Menu #%d", item.MenuID)
		if item.Menu != nil {
			name = item.Menu.Name
		}
		fmt.Fprintf(&b, "%dx %s  %s\n", item.Quantity, name, utils.FormatCurrencyIDR(item.Subtotal))
		if item.SpecialNotes != "" {
			fmt.Fprintf(&b, "   note: %s\n", item.SpecialNotes)
		}
	}

	breakdown := BreakdownFromOrder(order)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", utils.FormatCurrencyIDR(breakdown.Subtotal))
	fmt.Fprintf(&b, "Service charge (%s): %s\n", breakdown.ServiceCharge.Percentage, utils.FormatCurrencyIDR(breakdown.ServiceCharge.Amount))
	fmt.Fprintf(&b, "Tax (%s): %s\n", breakdown.Tax.Percentage, utils.FormatCurrencyIDR(breakdown.Tax.Amount))
	fmt.Fprintf(&b, "Total: %s\n", utils.FormatCurrencyIDR(breakdown.Total))
	if order.PaymentReference != nil && eventType == models.NotificationPaymentReceipt {
		fmt.Fprintf(&b, "Payment reference: %s\n", *order.PaymentReference)
	}
	return subject, b.String()
}

// LogNotifier dipakai saat SMTP belum dikonfigurasi, email hanya ditulis ke log
type LogNotifier struct {
	db *gorm.DB
}

func NewLogNotifier(db *gorm.DB) *LogNotifier {
	return &LogNotifier{db: db}
}

func (n *LogNotifier) Send(ctx context.Context, eventType string, order *models.Order) error {
	recipient := ""
	if order.Customer != nil {
		recipient = order.Customer.Email
	}
	subject, _ := renderEmail(eventType, order)
	utils.InfoLogger.WithFields(logrus.Fields{
		"recipient": recipient,
		"subject":   subject,
	}).Info("email skipped, smtp not configured")

	if n.db != nil {
		record := models.Notification{OrderID: order.ID, EventType: eventType, Recipient: recipient, Sent: true}
		if err := n.db.WithContext(ctx).Create(&record).Error; err != nil {
			utils.ErrorLogger.WithError(err).Warn("record notification failed")
		}
	}
	return nil
}
