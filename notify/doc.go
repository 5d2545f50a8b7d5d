// Package notify delivers overdue notices.
//
// SMTPNotifier sends plain text mails, LogNotifier only writes them to a structured logger
// and is the fallback when no mail server is configured.
package notify
