// Package devserver is a local stand-in for the travel planner backend: the OTP
// endpoints, token issuance, a placeholder itinerary planner, health and metrics.
//
// Codes are delivered through a [Mailer]; [LogMailer] writes them to the log so a
// developer can sign in without an email provider.
package devserver
