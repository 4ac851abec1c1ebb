package email

import (
	"fmt"
	"net/smtp"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// OrderLine is an ordered item for email rendering.
type OrderLine struct {
	Title string
	Price float64
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to, orderID string, total float64, items []OrderLine) error {
	subject := fmt.Sprintf("Order confirmed: %s", orderID)
	body := BuildOrderConfirmationBody(orderID, total, items)
	return s.send(to, subject, body)
}

// SendPaymentReceipt sends a payment receipt email
func (s *Service) SendPaymentReceipt(to, receiptNumber, billingID string, amount float64, settled bool) error {
	subject := fmt.Sprintf("Payment received: %s", receiptNumber)
	body := BuildPaymentReceiptBody(receiptNumber, billingID, amount, settled)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
