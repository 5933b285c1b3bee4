package s3

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// newAssumeRoleProvider returns credentials for roleARN, cached and
// refreshed by the SDK.
func newAssumeRoleProvider(cfg aws.Config, roleARN, sessionName, externalID string) aws.CredentialsProvider {
	client := sts.NewFromConfig(cfg)
	return aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(client, roleARN, func(o *stscreds.AssumeRoleOptions) {
		if sessionName != "" {
			o.RoleSessionName = sessionName
		}
		if externalID != "" {
			o.ExternalID = aws.String(externalID)
		}
	}))
}
