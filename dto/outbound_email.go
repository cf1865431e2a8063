package dto

// OutboundEmail is a composed message handed to the mailer. The sending
// identity is resolved from TenantID.
type OutboundEmail struct {
	TenantID string
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
}
