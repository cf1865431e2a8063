package aws_client

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/pkg/errors"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
}

// R2Endpoint is the account scoped S3 compatible endpoint
func R2Endpoint(accountID string) string {
	return "https://" + accountID + ".r2.cloudflarestorage.com"
}

// NewR2Client returns an S3Client pointed at Cloudflare R2. R2 only accepts
// path style addressing and the "auto" region.
func NewR2Client(config R2Config) (S3Client, error) {
	if config.AccountID == "" {
		return nil, errors.New("r2 storage requires CLOUDFLARE_R2_ACCOUNT_ID")
	}
	return NewS3Client(&aws.Config{
		Endpoint:         aws.String(R2Endpoint(config.AccountID)),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(config.AccessKeyID, config.AccessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
}
