package template

import "github.com/reviewloop/reviewloop/internal/enum"

const (
	VarName         = "name"
	VarBusinessName = "business_name"
)

var defaultReview = Template{
	Subject:    "How was your visit to {{business_name}}?",
	Heading:    "Thanks for stopping by, {{name}}!",
	Body:       "Hi {{name}}, we hope you enjoyed your recent visit to {{business_name}}. Would you take a minute to share your experience? Your review helps us a lot.",
	ButtonText: "Leave a review",
}

var defaultRetention = Template{
	Subject:    "We miss you at {{business_name}}",
	Heading:    "It's been a while, {{name}}",
	Body:       "Hi {{name}}, it has been some time since your last visit to {{business_name}}. We would love to see you again soon.",
	ButtonText: "Book your next visit",
}

// Default returns the built-in template for the type
func Default(emailType enum.EmailType) Template {
	if emailType == enum.EmailTypeRetention {
		return defaultRetention
	}
	return defaultReview
}
