package enum

type EmailType string

const (
	EmailTypeReview    EmailType = "review"
	EmailTypeRetention EmailType = "retention"
)

func (t EmailType) String() string {
	return string(t)
}

func (t EmailType) IsValid() bool {
	return t == EmailTypeReview || t == EmailTypeRetention
}

type EmailLogStatus string

const (
	EmailLogStatusSent     EmailLogStatus = "sent"
	EmailLogStatusClicked  EmailLogStatus = "clicked"
	EmailLogStatusReviewed EmailLogStatus = "reviewed"
	EmailLogStatusFailed   EmailLogStatus = "failed"
)

func (s EmailLogStatus) String() string {
	return string(s)
}

type MailProvider string

const (
	MailProviderGoogle  MailProvider = "google"
	MailProviderOutlook MailProvider = "outlook"
)

func (p MailProvider) String() string {
	return string(p)
}
