// Package mail delivers the plain-text messages the auth flows send:
// two-factor codes, welcome notes and password reset tokens.
//
// [SMTPSender] talks to a real relay. [LogSender] only logs the envelope and
// is used when no relay is configured.
package mail
